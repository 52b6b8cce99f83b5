package check

import (
	kerr "github.com/arbor-lang/arbor/internal/errors"
	"github.com/arbor-lang/arbor/internal/reduce"
	"github.com/arbor-lang/arbor/internal/term"
)

// Infer computes the type of the expression against the checker's
// snapshot. The expression must be closed; binders are opened with
// fresh locals on the way down, so inference never sees a loose index.
func (c *Checker) Infer(e *term.Expr) (*term.Expr, error) {
	e = c.metas.Instantiate(e)

	if cached, ok := c.inferCache[e]; ok {
		return cached, nil
	}

	typ, err := c.inferCore(e)
	if err != nil {
		return nil, err
	}

	c.inferCache[e] = typ

	return typ, nil
}

func (c *Checker) inferCore(e *term.Expr) (*term.Expr, error) {
	switch e.Kind {
	case term.ExprBVar:
		return nil, &kerr.UnboundVariable{Idx: e.BVar().Idx}
	case term.ExprLocal:
		return e.Local().Type, nil
	case term.ExprConst:
		return c.inferConst(e)
	case term.ExprApp:
		return c.inferApp(e)
	case term.ExprLambda:
		return c.inferLambda(e)
	case term.ExprPi:
		level, err := c.inferPiLevel(e)
		if err != nil {
			return nil, err
		}

		return term.NewSort(level), nil
	case term.ExprSort:
		return term.NewSort(term.NewSucc(e.Sort().Level)), nil
	case term.ExprLit:
		if e.Lit().Lit.Kind == term.LitNat {
			return term.NewConst(reduce.NatName), nil
		}

		return term.NewConst(reduce.StrName), nil
	case term.ExprMeta:
		if v, ok := c.metas.Lookup(e.Meta().ID); ok {
			return c.Infer(v)
		}

		return nil, &kerr.UnresolvedMetavariable{MetaID: e.Meta().ID}
	default:
		return nil, &kerr.UnboundVariable{Idx: -1}
	}
}

func (c *Checker) inferConst(e *term.Expr) (*term.Expr, error) {
	cd := e.Const()

	decl, err := c.snap.Lookup(cd.Name)
	if err != nil {
		return nil, err
	}

	if len(cd.Levels) != len(decl.LevelParams) {
		return nil, &kerr.UniverseError{
			Name:   cd.Name,
			Detail: "wrong number of universe arguments",
		}
	}

	return decl.Type.InstantiateLevelParams(decl.LevelParams, cd.Levels), nil
}

func (c *Checker) inferApp(e *term.Expr) (*term.Expr, error) {
	app := e.App()

	fnType, err := c.Infer(app.Fn)
	if err != nil {
		return nil, err
	}

	pi, err := c.ensurePi(app.Fn, fnType)
	if err != nil {
		return nil, err
	}

	arg := c.metas.Instantiate(app.Arg)

	// An unassigned metavariable in an instance-implicit position is a
	// request for instance resolution.
	if arg.Kind == term.ExprMeta && pi.Info == term.BinderInstImplicit {
		resolved, rerr := c.resolveInstanceArg(arg.Meta().ID, pi.Type)
		if rerr != nil {
			return nil, rerr
		}

		arg = resolved
	}

	argType, err := c.Infer(arg)
	if err != nil {
		return nil, err
	}

	ok, err := c.IsDefEq(argType, pi.Type)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, &kerr.TypeMismatch{Term: e, Expected: pi.Type, Actual: argType}
	}

	return pi.Body.Instantiate(arg), nil
}

func (c *Checker) resolveInstanceArg(metaID uint64, goal *term.Expr) (*term.Expr, error) {
	if c.resolver == nil {
		return nil, &kerr.UnresolvedMetavariable{MetaID: metaID}
	}

	inst, err := c.resolver.Resolve(c.metas.Instantiate(goal), c.locals)
	if err != nil {
		return nil, err
	}

	if err := c.metas.Assign(metaID, inst); err != nil {
		return nil, err
	}

	return inst, nil
}

func (c *Checker) inferLambda(e *term.Expr) (*term.Expr, error) {
	b := e.Binder()

	if _, err := c.sortOf(b.Type); err != nil {
		return nil, err
	}

	local := term.NewLocal(b.Name, b.Type)

	var bodyType *term.Expr

	err := c.pushLocal(local, func() error {
		var ierr error
		bodyType, ierr = c.Infer(b.Body.Instantiate(local))

		return ierr
	})
	if err != nil {
		return nil, err
	}

	return term.NewPi(b.Name, b.Info, b.Type, bodyType.Abstract(local)), nil
}

// inferPiLevel computes the universe of a Pi type: imax of domain and
// codomain levels, so a Prop-valued codomain makes the whole function
// type a Prop regardless of the domain.
func (c *Checker) inferPiLevel(e *term.Expr) (*term.Level, error) {
	b := e.Binder()

	domLevel, err := c.sortOf(b.Type)
	if err != nil {
		return nil, err
	}

	local := term.NewLocal(b.Name, b.Type)

	var codLevel *term.Level

	err = c.pushLocal(local, func() error {
		var ierr error
		codLevel, ierr = c.sortOf(b.Body.Instantiate(local))

		return ierr
	})
	if err != nil {
		return nil, err
	}

	return term.NewIMax(domLevel, codLevel).Normalize(), nil
}

// sortOf infers the expression's type and requires it to reduce to a
// sort, returning the level.
func (c *Checker) sortOf(e *term.Expr) (*term.Level, error) {
	typ, err := c.Infer(e)
	if err != nil {
		return nil, err
	}

	red, err := c.WHNF(typ, reduce.UnfoldAll)
	if err != nil {
		return nil, err
	}

	if red.Kind != term.ExprSort {
		return nil, &kerr.NotASort{Term: e, Type: typ}
	}

	return red.Sort().Level, nil
}

// ensurePi reduces a function's type to weak-head normal form and
// requires a Pi.
func (c *Checker) ensurePi(fn, fnType *term.Expr) (term.BinderData, error) {
	red, err := c.WHNF(fnType, reduce.UnfoldAll)
	if err != nil {
		return term.BinderData{}, err
	}

	if red.Kind != term.ExprPi {
		return term.BinderData{}, &kerr.NotAFunction{Fn: fn, FnType: fnType}
	}

	return red.Binder(), nil
}

// Check verifies that the expression has the expected type: inference
// followed by a definitional equality comparison. The mismatch error
// carries both sides.
func (c *Checker) Check(e, expected *term.Expr) error {
	actual, err := c.Infer(e)
	if err != nil {
		return err
	}

	ok, err := c.IsDefEq(actual, expected)
	if err != nil {
		return err
	}

	if !ok {
		return &kerr.TypeMismatch{Term: e, Expected: expected, Actual: actual}
	}

	return nil
}

// CheckIsSort verifies that the expression is a valid type, i.e. its
// type reduces to some sort, and returns that sort's level.
func (c *Checker) CheckIsSort(e *term.Expr) (*term.Level, error) {
	return c.sortOf(e)
}
