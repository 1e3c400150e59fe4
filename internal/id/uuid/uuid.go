// Package uuid generates time-ordered identifiers for jobs and pages.
package uuid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator creates UUIDv7 strings, optionally prefixed with "<prefix>_".
type Generator struct {
	prefix string
}

// New returns a Generator emitting bare UUIDv7 strings.
func New() *Generator {
	return &Generator{}
}

// NewPrefixed returns a Generator whose ids read "<prefix>_<uuid>".
func NewPrefixed(prefix string) *Generator {
	return &Generator{prefix: prefix}
}

// NewID implements audit.IDGenerator.
func (g *Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	if g.prefix == "" {
		return id.String(), nil
	}
	return g.prefix + "_" + id.String(), nil
}

// CreatedAt returns the timestamp embedded in an id produced by a
// Generator, with or without a prefix.
func CreatedAt(id string) (time.Time, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse id %q: %w", id, err)
	}
	if parsed.Version() != 7 {
		return time.Time{}, fmt.Errorf("id %q is uuid v%d, not v7", id, parsed.Version())
	}
	sec, nsec := parsed.Time().UnixTime()
	return time.Unix(sec, nsec).UTC(), nil
}
