package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Sentinel errors surfaced by the histogram engine. Callers wrap them with
// fmt.Errorf("...: %w", err) for context and match with errors.Is.
var (
	ErrNilCollection   = errors.New("collection must not be nil")
	ErrEmptyCollection = errors.New("collection must have at least one sample")
	ErrUnknownLevel    = errors.New("unrecognized taxonomy level")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrDuplicateKey    = errors.New("duplicate row key")
)

// Hierarchy is an ordered list of taxonomy level names, coarsest first.
// It is an explicit value passed into every engine operation rather than a
// package-level constant, so multiple hierarchies can coexist in one process.
type Hierarchy []string

// DefaultHierarchy returns the seven-rank hierarchy used by phylodist
// classification tables.
func DefaultHierarchy() Hierarchy {
	return Hierarchy{"domain", "phylum", "class", "order", "family", "genus", "species"}
}

// Validate checks that the hierarchy is non-empty and its level names are
// non-blank and unique.
func (h Hierarchy) Validate() error {
	if len(h) == 0 {
		return errors.New("hierarchy must have at least one level")
	}
	seen := make(map[string]bool, len(h))
	for i, level := range h {
		if strings.TrimSpace(level) == "" {
			return fmt.Errorf("hierarchy level %d is blank", i)
		}
		if seen[level] {
			return fmt.Errorf("hierarchy level %q appears more than once", level)
		}
		seen[level] = true
	}
	return nil
}

// Index returns the position of level in the hierarchy.
func (h Hierarchy) Index(level string) (int, bool) {
	for i, name := range h {
		if name == level {
			return i, true
		}
	}
	return 0, false
}

// Contains reports whether level is a member of the hierarchy.
func (h Hierarchy) Contains(level string) bool {
	_, ok := h.Index(level)
	return ok
}

// Suggest returns the hierarchy level closest to name by edit distance,
// or "" when nothing is close enough to be a plausible typo.
func (h Hierarchy) Suggest(name string) string {
	const maxDistance = 3
	best := ""
	bestDist := maxDistance + 1
	for _, level := range h {
		d := levenshtein.DistanceForStrings(
			[]rune(strings.ToLower(name)),
			[]rune(strings.ToLower(level)),
			levenshtein.DefaultOptions,
		)
		if d < bestDist {
			best = level
			bestDist = d
		}
	}
	if bestDist > maxDistance {
		return ""
	}
	return best
}

// unknownLevelError builds the ErrUnknownLevel failure for a requested
// level, including a did-you-mean hint when one is available.
func (h Hierarchy) unknownLevelError(level string) error {
	if s := h.Suggest(level); s != "" {
		return fmt.Errorf("%w: %q (did you mean %q?)", ErrUnknownLevel, level, s)
	}
	return fmt.Errorf("%w: %q", ErrUnknownLevel, level)
}
