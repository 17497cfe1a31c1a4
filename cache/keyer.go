package cache

import (
	"github.com/jonwraymond/persistcache/hashing"
	"github.com/jonwraymond/persistcache/reduce"
)

// Keyer derives the digest that names a slot.
//
// Contract:
// - Determinism: equal material under the same reducer yields the same key.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key digests material under r. material starts with the Function.
	Key(r *reduce.Reducer, material []any) (string, error)
}

// DefaultKeyer digests material with [hashing.ComputeHash].
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key returns the 40 hex character digest of material.
func (k *DefaultKeyer) Key(r *reduce.Reducer, material []any) (string, error) {
	return hashing.ComputeHash(r, material...)
}

var _ Keyer = (*DefaultKeyer)(nil)
