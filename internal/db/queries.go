package db

import (
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/hpungsan/matsift/internal/errors"
	"github.com/hpungsan/matsift/internal/run"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.SearchError{
	Code:    "UNIQUE_CONSTRAINT",
	Message: "unique constraint violation",
}

// InsertRun stores a new run record.
func InsertRun(db *sql.DB, r *run.Run) error {
	includeJSON, err := marshalList(r.Include)
	if err != nil {
		return errors.NewInternal(err)
	}
	var excludeJSON sql.NullString
	if len(r.Exclude) > 0 {
		s, err := marshalList(r.Exclude)
		if err != nil {
			return errors.NewInternal(err)
		}
		excludeJSON = sql.NullString{String: s, Valid: true}
	}

	query := `
		INSERT INTO runs (
			id, search_name, include_json, exclude_json, outcome,
			record_count, error_code, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.Exec(query,
		r.ID, r.SearchName, includeJSON, excludeJSON, string(r.Outcome),
		r.RecordCount, toNullString(r.ErrorCode), r.StartedAt, toNullInt64(r.FinishedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	return nil
}

// FinishRun records the outcome of a running run.
// Only runs still in the running state are updated.
func FinishRun(db *sql.DB, id string, outcome run.Outcome, recordCount int, errorCode *string, finishedAt int64) error {
	query := `
		UPDATE runs
		SET outcome = ?, record_count = ?, error_code = ?, finished_at = ?
		WHERE id = ? AND outcome = ?
	`

	result, err := db.Exec(query,
		string(outcome), recordCount, toNullString(errorCode), finishedAt,
		id, string(run.OutcomeRunning),
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}

	return nil
}

// GetRun retrieves a run by its ULID.
func GetRun(db *sql.DB, id string) (*run.Run, error) {
	query := `
		SELECT id, search_name, include_json, exclude_json, outcome,
			record_count, error_code, started_at, finished_at
		FROM runs
		WHERE id = ?
	`

	r, err := scanRun(db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return r, nil
}

// ListRuns returns runs newest first, optionally filtered by search name.
// Also returns the total count of matching runs for pagination.
func ListRuns(db *sql.DB, searchName string, limit, offset int) ([]run.Run, int, error) {
	where := ""
	var args []any
	if searchName != "" {
		where = " WHERE search_name = ?"
		args = append(args, searchName)
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM runs"+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT id, search_name, include_json, exclude_json, outcome,
			record_count, error_code, started_at, finished_at
		FROM runs` + where + `
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var runs []run.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return runs, total, nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row into a Run struct.
func scanRun(row scanner) (*run.Run, error) {
	var (
		r           run.Run
		includeJSON string
		excludeJSON sql.NullString
		outcome     string
		errorCode   sql.NullString
		finishedAt  sql.NullInt64
	)

	err := row.Scan(
		&r.ID, &r.SearchName, &includeJSON, &excludeJSON, &outcome,
		&r.RecordCount, &errorCode, &r.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Outcome = run.Outcome(outcome)
	r.ErrorCode = fromNullString(errorCode)
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.Int64
	}

	if err := json.Unmarshal([]byte(includeJSON), &r.Include); err != nil {
		return nil, err
	}
	if excludeJSON.Valid && excludeJSON.String != "" {
		if err := json.Unmarshal([]byte(excludeJSON.String), &r.Exclude); err != nil {
			return nil, err
		}
	}

	return &r, nil
}

func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	return string(data), err
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func toNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
