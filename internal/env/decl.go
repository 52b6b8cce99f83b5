// Package env implements the kernel environment: the append-only,
// insertion-ordered store of declarations consulted by reduction and
// type checking. Mutation is linearized through a single writer lock;
// readers operate on immutable snapshots and never block.
package env

import (
	"github.com/arbor-lang/arbor/internal/term"
)

// ReducibilityHint controls whether delta reduction may unfold a
// definition under a given policy.
type ReducibilityHint int

const (
	ReducibilityDefault ReducibilityHint = iota
	ReducibilityReducible
	ReducibilityIrreducible
)

func (h ReducibilityHint) String() string {
	switch h {
	case ReducibilityReducible:
		return "reducible"
	case ReducibilityIrreducible:
		return "irreducible"
	default:
		return "default"
	}
}

// DeclKind discriminates the declaration forms stored in the
// environment.
type DeclKind int

const (
	DeclAxiom DeclKind = iota
	DeclDefinition
	DeclTheorem
	DeclInductive
	DeclConstructor
	DeclRecursor
)

func (k DeclKind) String() string {
	switch k {
	case DeclAxiom:
		return "axiom"
	case DeclDefinition:
		return "definition"
	case DeclTheorem:
		return "theorem"
	case DeclInductive:
		return "inductive"
	case DeclConstructor:
		return "constructor"
	case DeclRecursor:
		return "recursor"
	default:
		return "unknown"
	}
}

// Declaration is one named entry of the environment. Immutable once
// declared. Value is nil for axioms, inductive type formers, and
// constructors.
type Declaration struct {
	Value       *term.Expr
	Type        *term.Expr
	Inductive   *InductiveInfo
	Constructor *ConstructorInfo
	Recursor    *RecursorInfo
	Name        term.Name
	LevelParams []term.Name
	Kind        DeclKind
	Hint        ReducibilityHint
}

// InductiveInfo is the extra payload on an inductive type former.
type InductiveInfo struct {
	ResultLevel  *term.Level
	Constructors []term.Name
	NumParams    int
	NumIndices   int
}

// ConstructorInfo is the extra payload on a constructor declaration.
type ConstructorInfo struct {
	Inductive term.Name
	CtorIdx   int
	NumParams int
	NumFields int
}

// RecursorInfo is the extra payload on a generated recursor. The major
// premise sits at argument position NumParams+1+NumMinors+NumIndices of
// a fully applied recursor.
type RecursorInfo struct {
	Inductive  term.Name
	Rules      []RecRule
	NumParams  int
	NumMinors  int
	NumIndices int
}

// MajorIdx returns the argument position of the major premise.
func (ri *RecursorInfo) MajorIdx() int {
	return ri.NumParams + 1 + ri.NumMinors + ri.NumIndices
}

// RuleFor returns the iota rule for the given constructor, if any.
func (ri *RecursorInfo) RuleFor(ctor term.Name) (*RecRule, bool) {
	for i := range ri.Rules {
		if ri.Rules[i].Ctor == ctor {
			return &ri.Rules[i], true
		}
	}

	return nil, false
}

// RecRule is one iota-reduction rule: when the major premise is the
// named constructor fully applied, the recursor application rewrites to
// RHS applied to the parameters, motive, minor premises, and the
// constructor's fields, in that order.
type RecRule struct {
	RHS       *term.Expr
	Ctor      term.Name
	NumFields int
}
