// Package errors provides the kernel error taxonomy. Every failure the
// kernel can report is a typed error carrying the offending name or
// term and, for failed comparisons, both sides, so an outer layer can
// produce precise diagnostics. All errors are recoverable at the
// granularity of a single call; a failed declaration never corrupts
// the environment.
package errors

import (
	"fmt"

	"github.com/arbor-lang/arbor/internal/term"
)

// Category groups kernel errors for coarse-grained reporting.
type Category string

const (
	CategoryEnvironment Category = "ENVIRONMENT"
	CategoryType        Category = "TYPE"
	CategoryUniverse    Category = "UNIVERSE"
	CategoryReduction   Category = "REDUCTION"
	CategoryUnification Category = "UNIFICATION"
	CategoryInstance    Category = "INSTANCE"
	CategoryInductive   Category = "INDUCTIVE"
)

// KernelError is implemented by every error in the taxonomy.
type KernelError interface {
	error
	Category() Category
}

// NameClash reports a declaration whose name already exists.
type NameClash struct {
	Name term.Name
}

func (e *NameClash) Error() string {
	return fmt.Sprintf("[%s] name already declared: %s", e.Category(), e.Name)
}

func (e *NameClash) Category() Category { return CategoryEnvironment }

// UnknownConstant reports a reference to a name absent from the
// environment snapshot.
type UnknownConstant struct {
	Name term.Name
}

func (e *UnknownConstant) Error() string {
	return fmt.Sprintf("[%s] unknown constant: %s", e.Category(), e.Name)
}

func (e *UnknownConstant) Category() Category { return CategoryEnvironment }

// IllFormedType reports a declaration whose stated type does not itself
// check to a sort.
type IllFormedType struct {
	Name  term.Name
	Type  *term.Expr
	Cause error
}

func (e *IllFormedType) Error() string {
	return fmt.Sprintf("[%s] type of %s is ill-formed: %s: %v", e.Category(), e.Name, e.Type, e.Cause)
}

func (e *IllFormedType) Category() Category { return CategoryEnvironment }

func (e *IllFormedType) Unwrap() error { return e.Cause }

// TypeMismatch reports a failed check between an expected and an
// inferred type. Both sides are carried for diagnostics.
type TypeMismatch struct {
	Term     *term.Expr
	Expected *term.Expr
	Actual   *term.Expr
}

func (e *TypeMismatch) Error() string {
	return fmt.Sprintf("[%s] type mismatch at %s: expected %s, got %s",
		e.Category(), e.Term, e.Expected, e.Actual)
}

func (e *TypeMismatch) Category() Category { return CategoryType }

// NotAFunction reports an application whose head does not reduce to a
// Pi type.
type NotAFunction struct {
	Fn     *term.Expr
	FnType *term.Expr
}

func (e *NotAFunction) Error() string {
	return fmt.Sprintf("[%s] not a function: %s : %s", e.Category(), e.Fn, e.FnType)
}

func (e *NotAFunction) Category() Category { return CategoryType }

// NotASort reports a term used where a sort was required (binder
// domains, declaration types).
type NotASort struct {
	Term *term.Expr
	Type *term.Expr
}

func (e *NotASort) Error() string {
	return fmt.Sprintf("[%s] expected a sort: %s : %s", e.Category(), e.Term, e.Type)
}

func (e *NotASort) Category() Category { return CategoryType }

// UniverseError reports a violated universe constraint. Fatal for the
// declaration being checked; never silently coerced.
type UniverseError struct {
	Name     term.Name
	Required *term.Level
	Actual   *term.Level
	Detail   string
}

func (e *UniverseError) Error() string {
	if e.Required != nil && e.Actual != nil {
		return fmt.Sprintf("[%s] universe constraint violated for %s: need level <= %s, got %s (%s)",
			e.Category(), e.Name, e.Required, e.Actual, e.Detail)
	}

	return fmt.Sprintf("[%s] universe constraint violated for %s: %s", e.Category(), e.Name, e.Detail)
}

func (e *UniverseError) Category() Category { return CategoryUniverse }

// UnboundVariable reports a loose de Bruijn index reaching the
// checker, meaning the submitted term was not closed.
type UnboundVariable struct {
	Idx int
}

func (e *UnboundVariable) Error() string {
	return fmt.Sprintf("[%s] unbound variable #%d", e.Category(), e.Idx)
}

func (e *UnboundVariable) Category() Category { return CategoryType }

// UnresolvedMetavariable reports a metavariable with no assignment in
// a position where a concrete term is required.
type UnresolvedMetavariable struct {
	MetaID uint64
}

func (e *UnresolvedMetavariable) Error() string {
	return fmt.Sprintf("[%s] unresolved metavariable ?m%d", e.Category(), e.MetaID)
}

func (e *UnresolvedMetavariable) Category() Category { return CategoryUnification }

// CyclicMetavariable reports a metavariable assignment that failed the
// occurs check.
type CyclicMetavariable struct {
	MetaID uint64
	Value  *term.Expr
}

func (e *CyclicMetavariable) Error() string {
	return fmt.Sprintf("[%s] metavariable ?m%d occurs in its own assignment %s",
		e.Category(), e.MetaID, e.Value)
}

func (e *CyclicMetavariable) Category() Category { return CategoryUnification }

// ReductionTimeout reports that the reduction fuel budget was exhausted
// before a weak-head normal form was reached. Distinct from a stuck
// term, which is not an error.
type ReductionTimeout struct {
	Term *term.Expr
	Fuel int
}

func (e *ReductionTimeout) Error() string {
	return fmt.Sprintf("[%s] reduction did not finish within %d steps: %s", e.Category(), e.Fuel, e.Term)
}

func (e *ReductionTimeout) Category() Category { return CategoryReduction }

// DefEqTimeout reports that the definitional equality budget was
// exhausted. Distinct from a definite mismatch so diagnostics never
// present an undecided comparison as a refutation.
type DefEqTimeout struct {
	Left  *term.Expr
	Right *term.Expr
	Fuel  int
}

func (e *DefEqTimeout) Error() string {
	return fmt.Sprintf("[%s] equality check exceeded %d unfolding steps: %s =?= %s",
		e.Category(), e.Fuel, e.Left, e.Right)
}

func (e *DefEqTimeout) Category() Category { return CategoryUnification }

// InstanceCycle reports that instance search revisited a goal already
// on the current search path.
type InstanceCycle struct {
	Goal *term.Expr
}

func (e *InstanceCycle) Error() string {
	return fmt.Sprintf("[%s] cyclic instance search at goal %s", e.Category(), e.Goal)
}

func (e *InstanceCycle) Category() Category { return CategoryInstance }

// InstanceSearchDepthExceeded reports that instance search reached the
// configured depth bound. Recoverable: the caller reports "no instance
// found".
type InstanceSearchDepthExceeded struct {
	Goal  *term.Expr
	Depth int
}

func (e *InstanceSearchDepthExceeded) Error() string {
	return fmt.Sprintf("[%s] instance search exceeded depth %d at goal %s", e.Category(), e.Depth, e.Goal)
}

func (e *InstanceSearchDepthExceeded) Category() Category { return CategoryInstance }

// InstanceNotFound reports an exhausted instance search.
type InstanceNotFound struct {
	Goal *term.Expr
}

func (e *InstanceNotFound) Error() string {
	return fmt.Sprintf("[%s] no instance found for %s", e.Category(), e.Goal)
}

func (e *InstanceNotFound) Category() Category { return CategoryInstance }

// NotPositive reports an inductive declaration violating strict
// positivity. Rejected at declaration time, never accepted.
type NotPositive struct {
	Inductive   term.Name
	Constructor term.Name
	ArgType     *term.Expr
}

func (e *NotPositive) Error() string {
	return fmt.Sprintf("[%s] constructor %s of %s is not strictly positive: argument type %s",
		e.Category(), e.Constructor, e.Inductive, e.ArgType)
}

func (e *NotPositive) Category() Category { return CategoryInductive }
