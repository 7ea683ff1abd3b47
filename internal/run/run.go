// Package run models one recorded invocation of the search pipeline.
package run

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeRunning  Outcome = "running"   // started, not yet finished
	OutcomeCacheHit Outcome = "cache_hit" // results loaded from cache
	OutcomeQueried  Outcome = "queried"   // results fetched remotely and cached
	OutcomeFailed   Outcome = "failed"
)

// Run is one pipeline invocation as stored in the history database.
type Run struct {
	// ID is a ULID
	ID string `json:"id"`

	SearchName string   `json:"search_name"`
	Include    []string `json:"include"`
	Exclude    []string `json:"exclude,omitempty"`

	Outcome     Outcome `json:"outcome"`
	RecordCount int     `json:"record_count"`

	// ErrorCode is set for failed runs
	ErrorCode *string `json:"error_code,omitempty"`

	// StartedAt and FinishedAt are Unix timestamps
	StartedAt  int64  `json:"started_at"`
	FinishedAt *int64 `json:"finished_at,omitempty"`
}
