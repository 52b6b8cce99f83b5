package check

import (
	"math/big"

	"github.com/arbor-lang/arbor/internal/env"
	kerr "github.com/arbor-lang/arbor/internal/errors"
	"github.com/arbor-lang/arbor/internal/reduce"
	"github.com/arbor-lang/arbor/internal/term"
)

// IsDefEq decides definitional equality of two expressions: equality
// up to beta, iota, delta, literal computation, eta, and proof
// irrelevance. A false result is a definite mismatch within the
// unfolding budget; running out of budget is reported as DefEqTimeout,
// never as false.
func (c *Checker) IsDefEq(a, b *term.Expr) (bool, error) {
	a = c.metas.Instantiate(a)
	b = c.metas.Instantiate(b)

	if a.Eq(b) {
		return true, nil
	}

	// Results involving unassigned metavariables are not cached: a
	// later assignment could change them.
	cacheable := !a.HasMeta() && !b.HasMeta()
	if cacheable {
		if v, ok := c.defeqCache[defeqKey{a, b}]; ok {
			return v, nil
		}

		if v, ok := c.defeqCache[defeqKey{b, a}]; ok {
			return v, nil
		}
	}

	result, err := c.isDefEqCore(a, b)
	if err != nil {
		return false, err
	}

	if cacheable {
		c.defeqCache[defeqKey{a, b}] = result
	}

	return result, nil
}

func (c *Checker) isDefEqCore(a, b *term.Expr) (bool, error) {
	var err error

	a, err = c.WHNF(a, reduce.UnfoldNone)
	if err != nil {
		return false, err
	}

	b, err = c.WHNF(b, reduce.UnfoldNone)
	if err != nil {
		return false, err
	}

	for {
		result, decided, err := c.quickCompare(a, b)
		if err != nil {
			return false, err
		}

		if decided {
			return result, nil
		}

		// Lazy delta: unfold whichever side has an unfoldable head,
		// both when both do, and give up when neither does.
		ua, okA := c.unfoldHead(a)
		ub, okB := c.unfoldHead(b)

		switch {
		case okA && !okB:
			a, err = c.whnfNoDelta(ua)
		case okB && !okA:
			b, err = c.whnfNoDelta(ub)
		case okA && okB:
			a, err = c.whnfNoDelta(ua)
			if err == nil {
				b, err = c.whnfNoDelta(ub)
			}
		default:
			irrelevant, ierr := c.proofIrrelevant(a, b)
			if ierr != nil {
				return false, ierr
			}

			return irrelevant, nil
		}

		if err != nil {
			return false, err
		}

		if err := c.spendDefEq(a, b); err != nil {
			return false, err
		}
	}
}

func (c *Checker) whnfNoDelta(e *term.Expr) (*term.Expr, error) {
	return c.WHNF(e, reduce.UnfoldNone)
}

// quickCompare decides equality of two weak-head normal terms when no
// further unfolding is needed. The second result reports whether a
// decision was reached.
func (c *Checker) quickCompare(a, b *term.Expr) (bool, bool, error) {
	a = c.metas.Instantiate(a)
	b = c.metas.Instantiate(b)

	if a.Eq(b) {
		return true, true, nil
	}

	// Metavariable assignment, with occurs check.
	if a.Kind == term.ExprMeta {
		if err := c.metas.Assign(a.Meta().ID, b); err != nil {
			return false, false, err
		}

		return true, true, nil
	}

	if b.Kind == term.ExprMeta {
		if err := c.metas.Assign(b.Meta().ID, a); err != nil {
			return false, false, err
		}

		return true, true, nil
	}

	switch {
	case a.Kind == term.ExprSort && b.Kind == term.ExprSort:
		return a.Sort().Level.IsEquiv(b.Sort().Level), true, nil
	case a.Kind == term.ExprLit && b.Kind == term.ExprLit:
		return a.Lit().Lit.Eq(b.Lit().Lit), true, nil
	case a.Kind == term.ExprLambda && b.Kind == term.ExprLambda:
		eq, err := c.binderDefEq(a, b)

		return eq, true, err
	case a.Kind == term.ExprPi && b.Kind == term.ExprPi:
		eq, err := c.binderDefEq(a, b)

		return eq, true, err
	case a.Kind == term.ExprLambda && b.Kind != term.ExprLambda:
		eq, err := c.etaCompare(a, b)

		return eq, true, err
	case b.Kind == term.ExprLambda && a.Kind != term.ExprLambda:
		eq, err := c.etaCompare(b, a)

		return eq, true, err
	}

	// Literal against constructor-form numeral.
	if eq, decided := c.litCtorCompare(a, b); decided {
		return eq, true, nil
	}

	ha, aargs := a.GetAppArgs()
	hb, bargs := b.GetAppArgs()

	if ha.Kind == term.ExprLocal && hb.Kind == term.ExprLocal {
		if ha.Local().ID != hb.Local().ID || len(aargs) != len(bargs) {
			return false, false, nil
		}

		return c.argsDefEq(aargs, bargs)
	}

	if ha.Kind == term.ExprConst && hb.Kind == term.ExprConst {
		ca, cb := ha.Const(), hb.Const()
		if ca.Name == cb.Name && term.LevelsEquiv(ca.Levels, cb.Levels) && len(aargs) == len(bargs) {
			eq, decided, err := c.argsDefEq(aargs, bargs)
			if err != nil {
				return false, false, err
			}

			if decided && eq {
				return true, true, nil
			}
			// Mismatched arguments are not conclusive: both sides may
			// still unfold to equal normal forms.
		}
	}

	return false, false, nil
}

func (c *Checker) argsDefEq(aargs, bargs []*term.Expr) (bool, bool, error) {
	for i := range aargs {
		eq, err := c.IsDefEq(aargs[i], bargs[i])
		if err != nil {
			return false, false, err
		}

		if !eq {
			return false, false, nil
		}
	}

	return true, true, nil
}

// binderDefEq compares two binders of the same kind: equal domains, and
// equal bodies under a shared fresh local.
func (c *Checker) binderDefEq(a, b *term.Expr) (bool, error) {
	ba, bb := a.Binder(), b.Binder()

	eq, err := c.IsDefEq(ba.Type, bb.Type)
	if err != nil || !eq {
		return false, err
	}

	local := term.NewLocal(ba.Name, ba.Type)

	var result bool

	err = c.pushLocal(local, func() error {
		var ierr error
		result, ierr = c.IsDefEq(ba.Body.Instantiate(local), bb.Body.Instantiate(local))

		return ierr
	})

	return result, err
}

// etaCompare checks lambda against non-lambda by comparing the lambda
// body with the other side applied to the same fresh local:
// f == fun x => f x.
func (c *Checker) etaCompare(lam, other *term.Expr) (bool, error) {
	b := lam.Binder()
	local := term.NewLocal(b.Name, b.Type)

	var result bool

	err := c.pushLocal(local, func() error {
		var ierr error
		result, ierr = c.IsDefEq(b.Body.Instantiate(local), term.NewApp(other, local))

		return ierr
	})

	return result, err
}

// litCtorCompare bridges literal numerals and their constructor form.
// Succ layers are peeled structurally: re-folding the expanded literal
// through WHNF would undo the expansion and loop.
func (c *Checker) litCtorCompare(a, b *term.Expr) (bool, bool) {
	lit, other := a, b
	if lit.Kind != term.ExprLit {
		lit, other = b, a
	}

	if lit.Kind != term.ExprLit || lit.Lit().Lit.Kind != term.LitNat {
		return false, false
	}

	n := lit.Lit().Lit.Nat

	head, args := other.GetAppArgs()
	if head.Kind != term.ExprConst {
		return false, false
	}

	switch head.Const().Name {
	case reduce.NatZeroName:
		if len(args) != 0 {
			return false, false
		}

		return n.Sign() == 0, true
	case reduce.NatSuccName:
		if len(args) != 1 {
			return false, false
		}

		if n.Sign() == 0 {
			return false, true
		}

		pred := new(big.Int).Sub(n, big.NewInt(1))

		eq, err := c.IsDefEq(term.NewNatLit(pred), args[0])
		if err != nil {
			return false, false
		}

		return eq, true
	default:
		return false, false
	}
}

// unfoldHead returns the expression with its head constant unfolded,
// when the head is a definition not marked irreducible.
func (c *Checker) unfoldHead(e *term.Expr) (*term.Expr, bool) {
	head, args := e.GetAppArgs()
	if head.Kind != term.ExprConst {
		return nil, false
	}

	cd := head.Const()

	decl, err := c.snap.Lookup(cd.Name)
	if err != nil || decl.Value == nil || decl.Hint == env.ReducibilityIrreducible {
		return nil, false
	}

	unfolded := decl.Value.InstantiateLevelParams(decl.LevelParams, cd.Levels)

	return term.NewAppN(unfolded, args...), true
}

// proofIrrelevant reports equality of two proofs of the same
// Prop-sorted type. An inference failure just means the sides were not
// comparable proofs, so the comparison fails rather than erroring.
func (c *Checker) proofIrrelevant(a, b *term.Expr) (bool, error) {
	ta, err := c.Infer(a)
	if err != nil {
		return false, nil
	}

	level, err := c.sortOf(ta)
	if err != nil || !level.IsZero() {
		return false, nil
	}

	tb, err := c.Infer(b)
	if err != nil {
		return false, nil
	}

	return c.IsDefEq(ta, tb)
}

func (c *Checker) spendDefEq(a, b *term.Expr) error {
	if c.defeqFuel <= 0 {
		return &kerr.DefEqTimeout{Left: a, Right: b, Fuel: c.maxDefeq}
	}

	c.defeqFuel--

	return nil
}
