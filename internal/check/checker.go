package check

import (
	"github.com/arbor-lang/arbor/internal/env"
	"github.com/arbor-lang/arbor/internal/reduce"
	"github.com/arbor-lang/arbor/internal/term"
)

// InstanceResolver synthesizes a term inhabiting a typeclass goal. It
// is implemented by the instances package and injected so the checker
// can discharge instance-implicit arguments left as metavariables; a
// nil resolver makes such terms fail inference instead.
type InstanceResolver interface {
	Resolve(goal *term.Expr, locals []*term.Expr) (*term.Expr, error)
}

// Limits bounds the work a single checking operation may perform.
type Limits struct {
	ReductionFuel int
	DefEqFuel     int
}

// DefaultDefEqFuel is the unfolding budget for one equality check.
const DefaultDefEqFuel = 10000

// Checker performs type inference, type checking, and definitional
// equality over one environment snapshot. A Checker is not safe for
// concurrent use; the session creates one per worker.
type Checker struct {
	snap       *env.Snapshot
	red        *reduce.Reducer
	metas      *MetaState
	resolver   InstanceResolver
	inferCache map[*term.Expr]*term.Expr
	defeqCache map[defeqKey]bool
	locals     []*term.Expr
	defeqFuel  int
	maxDefeq   int
}

type defeqKey struct {
	left  *term.Expr
	right *term.Expr
}

// Option configures a Checker.
type Option func(*Checker)

// WithResolver injects the instance resolver consulted for
// instance-implicit arguments.
func WithResolver(r InstanceResolver) Option {
	return func(c *Checker) { c.resolver = r }
}

// WithLimits sets the work budgets.
func WithLimits(l Limits) Option {
	return func(c *Checker) {
		if l.DefEqFuel > 0 {
			c.defeqFuel = l.DefEqFuel
			c.maxDefeq = l.DefEqFuel
		}

		if l.ReductionFuel > 0 {
			c.red = reduce.New(c.snap, l.ReductionFuel)
		}
	}
}

// WithMetaState shares a metavariable table with the caller, letting it
// observe the assignments unification produced.
func WithMetaState(m *MetaState) Option {
	return func(c *Checker) { c.metas = m }
}

// New creates a checker over the snapshot.
func New(snap *env.Snapshot, opts ...Option) *Checker {
	c := &Checker{
		snap:       snap,
		red:        reduce.New(snap, reduce.DefaultFuel),
		metas:      NewMetaState(),
		inferCache: make(map[*term.Expr]*term.Expr),
		defeqCache: make(map[defeqKey]bool),
		defeqFuel:  DefaultDefEqFuel,
		maxDefeq:   DefaultDefEqFuel,
	}

	for _, o := range opts {
		o(c)
	}

	return c
}

// Snapshot returns the snapshot the checker judges against.
func (c *Checker) Snapshot() *env.Snapshot {
	return c.snap
}

// Metas returns the checker's metavariable assignment table.
func (c *Checker) Metas() *MetaState {
	return c.metas
}

// WHNF reduces through the checker's reducer, so nested reduction
// shares the operation's fuel and cache.
func (c *Checker) WHNF(e *term.Expr, policy reduce.UnfoldPolicy) (*term.Expr, error) {
	return c.red.WHNF(c.metas.Instantiate(e), policy)
}

// pushLocal opens a binder local for the duration of fn.
func (c *Checker) pushLocal(l *term.Expr, fn func() error) error {
	c.locals = append(c.locals, l)
	err := fn()
	c.locals = c.locals[:len(c.locals)-1]

	return err
}
