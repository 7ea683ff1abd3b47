// Package query composes the criteria document sent to the materials database.
package query

import (
	"github.com/hpungsan/matsift/internal/elemset"
	"github.com/hpungsan/matsift/internal/errors"
	"github.com/hpungsan/matsift/internal/record"
)

// Defaults for the structural constraints and server-side batching.
const (
	DefaultMaxSites    = 30
	DefaultNumElements = 3
	DefaultChunkSize   = 10000
)

// Constraints are the fixed structural filters applied to every material.
type Constraints struct {
	MaxSites    int `json:"max_sites"`
	NumElements int `json:"num_elements"`
}

// DefaultConstraints returns at most 30 sites and exactly 3 distinct elements.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxSites:    DefaultMaxSites,
		NumElements: DefaultNumElements,
	}
}

// WithDefaults fills zero fields from DefaultConstraints.
func (c Constraints) WithDefaults() Constraints {
	if c.MaxSites == 0 {
		c.MaxSites = DefaultMaxSites
	}
	if c.NumElements == 0 {
		c.NumElements = DefaultNumElements
	}
	return c
}

// Spec is a fully determined query. A material qualifies when it contains at
// least one included element, none of the excluded ones, and satisfies the
// constraints.
type Spec struct {
	include     elemset.Set
	exclude     elemset.Set
	constraints Constraints
}

// NewSpec validates and builds a Spec. Zero constraint fields take defaults.
func NewSpec(include, exclude elemset.Set, c Constraints) (Spec, error) {
	if include.Len() == 0 {
		return Spec{}, errors.NewInvalidRequest("at least one element to include is required")
	}
	c = c.WithDefaults()
	if c.MaxSites < 0 || c.NumElements < 0 {
		return Spec{}, errors.NewInvalidRequest("structural constraints must be positive")
	}
	return Spec{include: include, exclude: exclude, constraints: c}, nil
}

// Include returns the inclusion set.
func (s Spec) Include() elemset.Set { return s.include }

// Exclude returns the exclusion set.
func (s Spec) Exclude() elemset.Set { return s.exclude }

// Constraints returns the structural constraints.
func (s Spec) Constraints() Constraints { return s.constraints }

// Criteria renders the Mongo-style criteria document understood by the
// Materials Project query endpoint.
func (s Spec) Criteria() map[string]any {
	elements := map[string]any{"$in": s.include.Symbols()}
	if s.exclude.Len() > 0 {
		elements["$nin"] = s.exclude.Symbols()
	}
	return map[string]any{
		"elements":  elements,
		"nsites":    map[string]any{"$lte": s.constraints.MaxSites},
		"nelements": map[string]any{"$eq": s.constraints.NumElements},
	}
}

// Fields returns the fixed projection requested for every query.
func Fields() []string {
	out := make([]string, len(record.Fields))
	copy(out, record.Fields)
	return out
}
