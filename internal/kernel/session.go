// Package kernel exposes the trusted checking boundary: declaring into
// the environment, inferring and checking types, and resolving
// typeclass instances. A Session owns one environment; declarations
// are validated against a read-only snapshot and committed atomically,
// so concurrent readers never observe partial state.
package kernel

import (
	"go.uber.org/zap"

	"github.com/arbor-lang/arbor/internal/check"
	"github.com/arbor-lang/arbor/internal/config"
	"github.com/arbor-lang/arbor/internal/env"
	kerr "github.com/arbor-lang/arbor/internal/errors"
	"github.com/arbor-lang/arbor/internal/instances"
	"github.com/arbor-lang/arbor/internal/reduce"
	"github.com/arbor-lang/arbor/internal/term"
)

// Session drives checking against one growing environment.
type Session struct {
	environment *env.Environment
	log         *zap.Logger
	limits      config.Limits
}

// Option configures a Session.
type Option func(*Session)

// WithLogger attaches a structured logger. The default is a nop
// logger so the library stays silent unless asked.
func WithLogger(log *zap.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithLimits sets the per-operation resource limits.
func WithLimits(l config.Limits) Option {
	return func(s *Session) { s.limits = l }
}

// NewSession creates a session over an empty environment.
func NewSession(opts ...Option) *Session {
	s := &Session{
		environment: env.New(),
		log:         zap.NewNop(),
		limits:      config.Default(),
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

// Environment returns the session's environment.
func (s *Session) Environment() *env.Environment {
	return s.environment
}

// Snapshot returns a read-only view of the current environment.
func (s *Session) Snapshot() *env.Snapshot {
	return s.environment.Snapshot()
}

// checkerFor builds a checker over the snapshot with instance
// resolution wired in.
func (s *Session) checkerFor(snap *env.Snapshot) *check.Checker {
	limits := check.Limits{
		ReductionFuel: s.limits.ReductionFuel,
		DefEqFuel:     s.limits.DefEqFuel,
	}

	resolver := instances.New(snap, instances.Config{
		MaxDepth:      s.limits.InstanceDepth,
		MaxIterations: s.limits.InstanceIterations,
		Limits:        limits,
	}, instances.WithLogger(s.log))

	return check.New(snap, check.WithLimits(limits), check.WithResolver(resolver))
}

// Declare validates the declaration against the current snapshot and
// commits it atomically. The type must check to a sort and the value,
// when present, must check against the type; on any failure the
// environment is left unchanged.
func (s *Session) Declare(d *env.Declaration) error {
	snap := s.Snapshot()

	if snap.Contains(d.Name) {
		return &kerr.NameClash{Name: d.Name}
	}

	if err := s.validate(snap, d); err != nil {
		s.log.Debug("declaration rejected",
			zap.String("name", d.Name.String()),
			zap.Error(err))

		return err
	}

	if err := s.environment.Declare(d); err != nil {
		return err
	}

	s.log.Debug("declaration committed",
		zap.String("name", d.Name.String()),
		zap.String("kind", d.Kind.String()))

	return nil
}

// validate checks a declaration against a snapshot without committing.
func (s *Session) validate(snap *env.Snapshot, d *env.Declaration) error {
	chk := s.checkerFor(snap)

	if _, err := chk.CheckIsSort(d.Type); err != nil {
		return &kerr.IllFormedType{Name: d.Name, Type: d.Type, Cause: err}
	}

	if d.Value != nil {
		if err := chk.Check(d.Value, d.Type); err != nil {
			return err
		}

		// Holes filled during checking (instance-implicit arguments)
		// are substituted so the committed value stays closed.
		d.Value = chk.Metas().Instantiate(d.Value)
		if id, ok := d.Value.FirstMetaID(); ok {
			return &kerr.UnresolvedMetavariable{MetaID: id}
		}
	}

	return nil
}

// DeclareInductive validates an inductive spec (type former, strict
// positivity, constructor signatures, universe constraints), generates
// its recursor, and commits the whole group atomically.
func (s *Session) DeclareInductive(spec *env.InductiveSpec) error {
	snap := s.Snapshot()

	if snap.Contains(spec.Name) {
		return &kerr.NameClash{Name: spec.Name}
	}

	elab, err := s.validateInductive(snap, spec)
	if err != nil {
		return err
	}

	if err := s.environment.DeclareBatch(elab.Decls(), nil); err != nil {
		return err
	}

	s.log.Debug("inductive committed",
		zap.String("name", spec.Name.String()),
		zap.Int("constructors", len(elab.Constructors)))

	return nil
}

// validateInductive checks an inductive spec against a snapshot and
// elaborates it, without committing.
func (s *Session) validateInductive(snap *env.Snapshot, spec *env.InductiveSpec) (*env.Elaborated, error) {
	chk := s.checkerFor(snap)
	if _, err := chk.CheckIsSort(spec.Type); err != nil {
		return nil, &kerr.IllFormedType{Name: spec.Name, Type: spec.Type, Cause: err}
	}

	elab, err := spec.Elaborate()
	if err != nil {
		return nil, err
	}

	// Constructor types mention the former, so they are checked
	// against a staged snapshot.
	staged := snap.Extend(elab.TypeFormer)
	stagedChk := s.checkerFor(staged)

	for _, ctor := range elab.Constructors {
		if _, err := stagedChk.CheckIsSort(ctor.Type); err != nil {
			return nil, &kerr.IllFormedType{Name: ctor.Name, Type: ctor.Type, Cause: err}
		}
	}

	if err := s.checkConstructorLevels(stagedChk, elab); err != nil {
		return nil, err
	}

	return elab, nil
}

// checkConstructorLevels enforces the universe constraint on
// constructor fields: unless the inductive lives in Prop, every field
// type's level must fit inside the inductive's result level.
func (s *Session) checkConstructorLevels(chk *check.Checker, elab *env.Elaborated) error {
	info := elab.TypeFormer.Inductive
	if info.ResultLevel.IsZero() {
		// Prop-valued inductives accept fields from any universe.
		return nil
	}

	for _, ctor := range elab.Constructors {
		typ := ctor.Type

		for i := 0; typ.Kind == term.ExprPi; i++ {
			b := typ.Binder()

			if i >= info.NumParams {
				fieldLevel, err := chk.CheckIsSort(b.Type)
				if err != nil {
					return err
				}

				if !fieldLevel.Leq(info.ResultLevel) {
					return &kerr.UniverseError{
						Name:     ctor.Name,
						Required: info.ResultLevel,
						Actual:   fieldLevel,
						Detail:   "constructor field escapes the inductive's universe",
					}
				}
			}

			local := term.NewLocal(b.Name, b.Type)
			typ = b.Body.Instantiate(local)
		}
	}

	return nil
}

// DeclareInstance registers a committed declaration as a typeclass
// instance. The class is the head constant of the declaration's result
// type.
func (s *Session) DeclareInstance(name term.Name, priority int) error {
	snap := s.Snapshot()

	decl, err := snap.Lookup(name)
	if err != nil {
		return err
	}

	class, ok := env.ClassOf(decl.Type)
	if !ok {
		return &kerr.IllFormedType{
			Name: name, Type: decl.Type,
			Cause: &kerr.InstanceNotFound{Goal: decl.Type},
		}
	}

	if priority <= 0 {
		priority = env.DefaultInstancePriority
	}

	return s.environment.DeclareInstance(&env.Instance{
		Class:    class,
		Decl:     decl,
		Priority: priority,
	})
}

// Infer computes the type of a closed term against the given snapshot.
func (s *Session) Infer(snap *env.Snapshot, e *term.Expr) (*term.Expr, error) {
	return s.checkerFor(snap).Infer(e)
}

// Check verifies a term against an expected type on the given snapshot.
func (s *Session) Check(snap *env.Snapshot, e, expected *term.Expr) error {
	return s.checkerFor(snap).Check(e, expected)
}

// IsDefEq decides definitional equality on the given snapshot.
func (s *Session) IsDefEq(snap *env.Snapshot, a, b *term.Expr) (bool, error) {
	return s.checkerFor(snap).IsDefEq(a, b)
}

// WHNF reduces a term to weak-head normal form on the given snapshot.
func (s *Session) WHNF(snap *env.Snapshot, e *term.Expr) (*term.Expr, error) {
	return reduce.New(snap, s.limits.ReductionFuel).WHNF(e, reduce.UnfoldAll)
}

// ResolveInstance synthesizes an instance term for the goal type.
func (s *Session) ResolveInstance(snap *env.Snapshot, goal *term.Expr, locals []*term.Expr) (*term.Expr, error) {
	resolver := instances.New(snap, instances.Config{
		MaxDepth:      s.limits.InstanceDepth,
		MaxIterations: s.limits.InstanceIterations,
		Limits: check.Limits{
			ReductionFuel: s.limits.ReductionFuel,
			DefEqFuel:     s.limits.DefEqFuel,
		},
	}, instances.WithLogger(s.log))

	return resolver.Resolve(goal, locals)
}
