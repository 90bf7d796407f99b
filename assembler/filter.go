package assembler

import (
	"errors"
	"fmt"
)

// ErrInvalidFilter reports a malformed metadata filter, such as a nil
// predicate.
var ErrInvalidFilter = errors.New("assembler: invalid filter")

// Filter restricts search results by chunk metadata. Every key must match
// for a result to pass. A result that lacks a filtered key, or holds a value
// the predicate cannot evaluate, is dropped rather than passed through, so a
// filter never produces false positives.
type Filter map[string]Predicate

// Predicate tests a single metadata value.
type Predicate interface {
	matches(v any) bool
}

func (f Filter) validate() error {
	for key, p := range f {
		if p == nil {
			return fmt.Errorf("%w: nil predicate for key %q", ErrInvalidFilter, key)
		}
	}
	return nil
}

// allow reports whether metadata satisfies every predicate in the filter.
func (f Filter) allow(metadata map[string]any) bool {
	for key, p := range f {
		v, ok := metadata[key]
		if !ok || !p.matches(v) {
			return false
		}
	}
	return true
}

// Eq matches values equal to want. Numeric values compare by magnitude, so
// an int 7 stored through a JSON round-trip still matches Eq(7).
func Eq(want any) Predicate { return eqPredicate{want: want} }

type eqPredicate struct{ want any }

func (p eqPredicate) matches(v any) bool { return valueEqual(p.want, v) }

// In matches values equal to any member of the set.
func In(vs ...any) Predicate { return inPredicate{set: vs} }

type inPredicate struct{ set []any }

func (p inPredicate) matches(v any) bool {
	for _, want := range p.set {
		if valueEqual(want, v) {
			return true
		}
	}
	return false
}

// Range matches numeric values within [min, max]. A nil bound is open.
// Non-numeric values never match.
func Range(min, max *float64) Predicate { return rangePredicate{min: min, max: max} }

type rangePredicate struct{ min, max *float64 }

func (p rangePredicate) matches(v any) bool {
	f, ok := toFloat(v)
	if !ok {
		return false
	}
	if p.min != nil && f < *p.min {
		return false
	}
	if p.max != nil && f > *p.max {
		return false
	}
	return true
}

func valueEqual(want, got any) bool {
	if wf, ok := toFloat(want); ok {
		gf, gok := toFloat(got)
		return gok && wf == gf
	}
	return want == got
}

// toFloat widens the numeric types metadata can realistically carry,
// including the float64 that JSON decoding produces.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
