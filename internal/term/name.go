// Package term implements the expression language of the Arbor kernel:
// hierarchical names, universe levels, and de Bruijn indexed expression
// trees together with the substitution and traversal operations the
// checker is built on. Expressions are immutable once constructed and
// subterms are shared freely between trees.
package term

import "strings"

// Name is a hierarchical, dot-separated identifier such as "Nat.succ".
// The empty Name is the anonymous name and never refers to a declaration.
type Name string

// Anonymous is the empty name used for unnamed binders.
const Anonymous Name = ""

// NameFromParts joins the given components into a hierarchical name.
func NameFromParts(parts ...string) Name {
	return Name(strings.Join(parts, "."))
}

// Child returns the name extended with one trailing component.
func (n Name) Child(component string) Name {
	if n == Anonymous {
		return Name(component)
	}

	return Name(string(n) + "." + component)
}

// Parent returns the name with its last component removed, or the
// anonymous name when there is nothing left to strip.
func (n Name) Parent() Name {
	idx := strings.LastIndexByte(string(n), '.')
	if idx < 0 {
		return Anonymous
	}

	return n[:idx]
}

// Base returns the last component of the name.
func (n Name) Base() string {
	idx := strings.LastIndexByte(string(n), '.')

	return string(n[idx+1:])
}

// IsAnonymous reports whether the name is the anonymous name.
func (n Name) IsAnonymous() bool {
	return n == Anonymous
}

func (n Name) String() string {
	if n == Anonymous {
		return "_"
	}

	return string(n)
}
