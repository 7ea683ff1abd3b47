// Package cache persists search result sets, one per search name.
//
// A cached result set is authoritative: once written, callers reuse it and
// never re-query, however old it is. There is no schema or staleness check.
package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/matsift/internal/errors"
	"github.com/hpungsan/matsift/internal/record"
)

// Store decides whether a search already has results and owns their persistence.
type Store interface {
	// Exists reports whether results for name have been persisted.
	Exists(name string) (bool, error)
	// Load returns the persisted results for name. CACHE_CORRUPT if they
	// cannot be parsed, NOT_FOUND if there are none.
	Load(name string) (record.ResultSet, error)
	// Save replaces any results for name. Readers never observe a partial write.
	Save(name string, rs record.ResultSet) error
	// List describes every persisted search.
	List() ([]Entry, error)
}

// Entry describes one persisted search.
type Entry struct {
	Name      string    `json:"name"`
	Path      string    `json:"path,omitempty"`
	SizeBytes int64     `json:"size_bytes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidateName rejects search names that SanitizeForFilename would alter.
// Keeping the name-to-file mapping one-to-one means two searches never
// share an entry.
func ValidateName(name string) error {
	if name == "" {
		return errors.NewInvalidRequest("search name is required")
	}
	if safe := SanitizeForFilename(name); safe != name {
		return errors.NewInvalidRequest(fmt.Sprintf(
			"search name %q is not usable as a file name (try %q)", name, safe))
	}
	return nil
}

// SanitizeForFilename sanitizes a search name for safe use as a file name.
// Removes/replaces characters that could be used for path traversal or injection.
func SanitizeForFilename(s string) string {
	s = strings.TrimSpace(s)

	// Replace path separators with dashes
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")

	// Replace ".." sequences (could be embedded)
	s = strings.ReplaceAll(s, "..", "-")

	// Remove null bytes and other control characters
	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	s = result.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-.")

	if s == "" {
		s = "unnamed"
	}
	return s
}
