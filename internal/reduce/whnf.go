package reduce

import (
	"github.com/arbor-lang/arbor/internal/env"
	kerr "github.com/arbor-lang/arbor/internal/errors"
	"github.com/arbor-lang/arbor/internal/term"
)

// Reducer normalizes expressions against one environment snapshot. It
// carries a step budget shared across nested calls so a single checking
// operation cannot reduce unboundedly, and a per-policy result cache so
// shared subterms are normalized once.
type Reducer struct {
	snap    *env.Snapshot
	cache   map[cacheKey]*term.Expr
	fuel    int
	maxFuel int
}

type cacheKey struct {
	expr   *term.Expr
	policy UnfoldPolicy
}

// New creates a reducer over the snapshot with the given step budget.
func New(snap *env.Snapshot, fuel int) *Reducer {
	if fuel <= 0 {
		fuel = DefaultFuel
	}

	return &Reducer{
		snap:    snap,
		cache:   make(map[cacheKey]*term.Expr),
		fuel:    fuel,
		maxFuel: fuel,
	}
}

// Snapshot returns the snapshot the reducer operates on.
func (r *Reducer) Snapshot() *env.Snapshot {
	return r.snap
}

// WHNF reduces the expression to weak-head normal form under the given
// unfolding policy. A stuck term (free variable or irreducible head) is
// returned as-is; only budget exhaustion is an error.
func (r *Reducer) WHNF(e *term.Expr, policy UnfoldPolicy) (*term.Expr, error) {
	key := cacheKey{expr: e, policy: policy}
	if cached, ok := r.cache[key]; ok {
		return cached, nil
	}

	result, err := r.whnfCore(e, policy)
	if err != nil {
		return nil, err
	}

	r.cache[key] = result
	r.cache[cacheKey{expr: result, policy: policy}] = result

	return result, nil
}

func (r *Reducer) whnfCore(e *term.Expr, policy UnfoldPolicy) (*term.Expr, error) {
	for {
		head, args := e.GetAppArgs()

		switch head.Kind {
		case term.ExprLambda:
			if len(args) == 0 {
				return e, nil
			}

			next, err := r.betaReduce(head, args)
			if err != nil {
				return nil, err
			}

			e = next
		case term.ExprConst:
			next, stepped, err := r.stepConst(head, args, e, policy)
			if err != nil {
				return nil, err
			}

			if !stepped {
				return e, nil
			}

			e = next
		case term.ExprLit:
			if len(args) == 0 {
				return e, nil
			}
			// A literal head never accepts arguments; the term is stuck.
			return e, nil
		default:
			// Sorts, Pi types, locals, metavariables, and loose bound
			// variables are weak-head normal (possibly stuck).
			return e, nil
		}
	}
}

// betaReduce contracts as many leading lambda binders as arguments are
// available and reapplies the surplus.
func (r *Reducer) betaReduce(head *term.Expr, args []*term.Expr) (*term.Expr, error) {
	if err := r.spend(head); err != nil {
		return nil, err
	}

	consumed := 0
	body := head

	for body.Kind == term.ExprLambda && consumed < len(args) {
		body = body.Binder().Body
		consumed++
	}

	// Instantiate wants the innermost binder's substitute first.
	subst := make([]*term.Expr, consumed)
	for i := 0; i < consumed; i++ {
		subst[i] = args[consumed-1-i]
	}

	return term.NewAppN(body.Instantiate(subst...), args[consumed:]...), nil
}

// stepConst applies one literal, iota, or delta step at a constant
// head. The boolean result reports whether a step was taken.
func (r *Reducer) stepConst(head *term.Expr, args []*term.Expr, whole *term.Expr, policy UnfoldPolicy) (*term.Expr, bool, error) {
	c := head.Const()

	if lit, ok, err := r.stepLiteral(c.Name, args, policy); err != nil {
		return nil, false, err
	} else if ok {
		return lit, true, nil
	}

	decl, err := r.snap.Lookup(c.Name)
	if err != nil {
		// Unknown constants are stuck rather than an error here; the
		// type checker rejects them before reduction in every kernel
		// call path.
		return nil, false, nil
	}

	if decl.Recursor != nil {
		next, ok, err := r.stepIota(decl, c.Levels, args, policy)
		if err != nil {
			return nil, false, err
		}

		if ok {
			return next, true, nil
		}
	}

	if decl.Value != nil && policy.allows(decl.Hint) {
		if err := r.spend(whole); err != nil {
			return nil, false, err
		}

		unfolded := decl.Value.InstantiateLevelParams(decl.LevelParams, c.Levels)

		return term.NewAppN(unfolded, args...), true, nil
	}

	return nil, false, nil
}

// stepIota rewrites a recursor applied to a fully applied constructor
// using the recursor's iota rule for that constructor.
func (r *Reducer) stepIota(decl *env.Declaration, levels []*term.Level, args []*term.Expr, policy UnfoldPolicy) (*term.Expr, bool, error) {
	info := decl.Recursor

	majorIdx := info.MajorIdx()
	if len(args) <= majorIdx {
		return nil, false, nil
	}

	major, err := r.WHNF(args[majorIdx], policy)
	if err != nil {
		return nil, false, err
	}

	// A concrete Nat literal stands for its constructor form.
	if major.Kind == term.ExprLit {
		expanded, ok := LitToConstructor(major.Lit().Lit)
		if !ok {
			return nil, false, nil
		}

		major = expanded
	}

	ctorHead, ctorArgs := major.GetAppArgs()
	if ctorHead.Kind != term.ExprConst {
		return nil, false, nil
	}

	ctorDecl, lookErr := r.snap.Lookup(ctorHead.Const().Name)
	if lookErr != nil || ctorDecl.Constructor == nil || ctorDecl.Constructor.Inductive != info.Inductive {
		return nil, false, nil
	}

	rule, ok := info.RuleFor(ctorDecl.Name)
	if !ok {
		return nil, false, nil
	}

	fields := ctorArgs[ctorDecl.Constructor.NumParams:]
	if len(fields) != rule.NumFields {
		// Constructor not fully applied; the term is stuck.
		return nil, false, nil
	}

	if err := r.spend(major); err != nil {
		return nil, false, err
	}

	rhs := rule.RHS.InstantiateLevelParams(decl.LevelParams, levels)

	rhsArgs := make([]*term.Expr, 0, majorIdx+len(fields))
	rhsArgs = append(rhsArgs, args[:info.NumParams+1+info.NumMinors]...)
	rhsArgs = append(rhsArgs, fields...)

	result := term.NewAppN(rhs, rhsArgs...)

	return term.NewAppN(result, args[majorIdx+1:]...), true, nil
}

// spend consumes one unit of fuel, failing with ReductionTimeout when
// the budget is exhausted.
func (r *Reducer) spend(at *term.Expr) error {
	if r.fuel <= 0 {
		return &kerr.ReductionTimeout{Term: at, Fuel: r.maxFuel}
	}

	r.fuel--

	return nil
}
