// Package reduce implements weak-head normalization for kernel
// expressions: beta reduction, iota reduction of recursors applied to
// fully applied constructors, delta unfolding of definitions gated by
// reducibility, and primitive rewriting of concrete literals. The
// engine is a pure function over an environment snapshot; it spawns no
// concurrency and mutates nothing but its own fuel and cache.
package reduce

import "github.com/arbor-lang/arbor/internal/env"

// UnfoldPolicy selects which definitions delta reduction may unfold.
type UnfoldPolicy int

const (
	// UnfoldAll unfolds every definition not marked irreducible.
	UnfoldAll UnfoldPolicy = iota
	// UnfoldReducibleOnly unfolds only definitions marked reducible.
	UnfoldReducibleOnly
	// UnfoldNone disables delta reduction entirely.
	UnfoldNone
)

func (p UnfoldPolicy) String() string {
	switch p {
	case UnfoldAll:
		return "all"
	case UnfoldReducibleOnly:
		return "reducible"
	case UnfoldNone:
		return "none"
	default:
		return "unknown"
	}
}

// allows reports whether the policy permits unfolding a definition with
// the given reducibility hint.
func (p UnfoldPolicy) allows(hint env.ReducibilityHint) bool {
	switch p {
	case UnfoldAll:
		return hint != env.ReducibilityIrreducible
	case UnfoldReducibleOnly:
		return hint == env.ReducibilityReducible
	default:
		return false
	}
}

// DefaultFuel is the reduction step budget used when the caller does
// not configure one.
const DefaultFuel = 100000
