// Package history records pipeline runs in the SQLite ledger and lists them.
package history

import (
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/matsift/internal/db"
	"github.com/hpungsan/matsift/internal/errors"
	"github.com/hpungsan/matsift/internal/run"
)

// List limits.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Recorder tracks one run from start to finish.
type Recorder interface {
	// Start records a running run and returns its id.
	Start(searchName string, include, exclude []string) (string, error)
	// Finish records the outcome. cause is nil unless the run failed.
	Finish(id string, outcome run.Outcome, recordCount int, cause error) error
}

// SQLRecorder is a Recorder backed by the history database.
type SQLRecorder struct {
	DB  *sql.DB
	Now func() time.Time
}

// NewSQLRecorder returns a Recorder writing to database.
func NewSQLRecorder(database *sql.DB) *SQLRecorder {
	return &SQLRecorder{DB: database, Now: time.Now}
}

// Start implements Recorder.
func (r *SQLRecorder) Start(searchName string, include, exclude []string) (string, error) {
	now := r.now()
	id, err := generateULID(now)
	if err != nil {
		return "", errors.NewInternal(err)
	}

	entry := &run.Run{
		ID:         id,
		SearchName: searchName,
		Include:    include,
		Exclude:    exclude,
		Outcome:    run.OutcomeRunning,
		StartedAt:  now.Unix(),
	}
	if err := db.InsertRun(r.DB, entry); err != nil {
		return "", err
	}
	return id, nil
}

// Finish implements Recorder.
func (r *SQLRecorder) Finish(id string, outcome run.Outcome, recordCount int, cause error) error {
	var code *string
	if cause != nil {
		c := string(errors.CodeOf(cause))
		code = &c
	}
	return db.FinishRun(r.DB, id, outcome, recordCount, code, r.now().Unix())
}

func (r *SQLRecorder) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// generateULID generates a new ULID.
func generateULID(t time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ListInput contains parameters for the List operation.
type ListInput struct {
	SearchName string // optional filter
	Limit      int    // default: 20, max: 100
	Offset     int    // default: 0
}

// Pagination describes the page List returned.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []run.Run  `json:"items"`
	Pagination Pagination `json:"pagination"`
	Sort       string     `json:"sort"`
}

// List retrieves recorded runs, newest first, with pagination.
func List(database *sql.DB, input ListInput) (*ListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	runs, total, err := db.ListRuns(database, input.SearchName, limit, offset)
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	if runs == nil {
		runs = []run.Run{}
	}

	return &ListOutput{
		Items: runs,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(runs) < total,
			Total:   total,
		},
		Sort: "started_at_desc",
	}, nil
}
