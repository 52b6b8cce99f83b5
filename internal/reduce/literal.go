package reduce

import (
	"math/big"

	"github.com/arbor-lang/arbor/internal/term"
)

// Builtin names recognized by the fixed literal rewrite table. The
// rules fire only when every operand is a fully concrete literal;
// symbolic operands fall through to the ordinary recursor rules.
var (
	NatName     = term.Name("Nat")
	NatZeroName = NatName.Child("zero")
	NatSuccName = NatName.Child("succ")
	NatAddName  = NatName.Child("add")
	NatSubName  = NatName.Child("sub")
	NatMulName  = NatName.Child("mul")
	NatPowName  = NatName.Child("pow")
	StrName     = term.Name("String")
	StrAppName  = StrName.Child("append")
)

// stepLiteral applies one primitive rewrite at a builtin constant head.
func (r *Reducer) stepLiteral(name term.Name, args []*term.Expr, policy UnfoldPolicy) (*term.Expr, bool, error) {
	switch name {
	case NatSuccName:
		if len(args) != 1 {
			return nil, false, nil
		}

		arg, err := r.WHNF(args[0], policy)
		if err != nil {
			return nil, false, err
		}

		if n, ok := natValue(arg); ok {
			return term.NewNatLit(new(big.Int).Add(n, big.NewInt(1))), true, nil
		}

		return nil, false, nil
	case NatAddName, NatSubName, NatMulName, NatPowName:
		if len(args) != 2 {
			return nil, false, nil
		}

		left, err := r.WHNF(args[0], policy)
		if err != nil {
			return nil, false, err
		}

		a, ok := natValue(left)
		if !ok {
			return nil, false, nil
		}

		right, err := r.WHNF(args[1], policy)
		if err != nil {
			return nil, false, err
		}

		b, ok := natValue(right)
		if !ok {
			return nil, false, nil
		}

		result, ok := natBinOp(name, a, b)
		if !ok {
			return nil, false, nil
		}

		return term.NewNatLit(result), true, nil
	case StrAppName:
		if len(args) != 2 {
			return nil, false, nil
		}

		left, err := r.WHNF(args[0], policy)
		if err != nil {
			return nil, false, err
		}

		right, err := r.WHNF(args[1], policy)
		if err != nil {
			return nil, false, err
		}

		if left.Kind == term.ExprLit && right.Kind == term.ExprLit &&
			left.Lit().Lit.Kind == term.LitStr && right.Lit().Lit.Kind == term.LitStr {
			return term.NewStrLit(left.Lit().Lit.Str + right.Lit().Lit.Str), true, nil
		}

		return nil, false, nil
	default:
		return nil, false, nil
	}
}

// natValue extracts a concrete natural from a literal or a
// constructor-form numeral with a literal tail.
func natValue(e *term.Expr) (*big.Int, bool) {
	if e.Kind == term.ExprLit && e.Lit().Lit.Kind == term.LitNat {
		return e.Lit().Lit.Nat, true
	}

	head, args := e.GetAppArgs()
	if head.Kind == term.ExprConst {
		switch head.Const().Name {
		case NatZeroName:
			if len(args) == 0 {
				return big.NewInt(0), true
			}
		case NatSuccName:
			if len(args) == 1 {
				if n, ok := natValue(args[0]); ok {
					return new(big.Int).Add(n, big.NewInt(1)), true
				}
			}
		}
	}

	return nil, false
}

func natBinOp(name term.Name, a, b *big.Int) (*big.Int, bool) {
	switch name {
	case NatAddName:
		return new(big.Int).Add(a, b), true
	case NatMulName:
		return new(big.Int).Mul(a, b), true
	case NatSubName:
		// Truncated subtraction on naturals.
		if a.Cmp(b) <= 0 {
			return big.NewInt(0), true
		}

		return new(big.Int).Sub(a, b), true
	case NatPowName:
		if !b.IsInt64() {
			// An exponent beyond the machine range would exhaust memory
			// long before it finished; leave the term symbolic.
			return nil, false
		}

		return new(big.Int).Exp(a, b, nil), true
	default:
		return nil, false
	}
}

// LitToConstructor expands a Nat literal one constructor layer so iota
// reduction can consume it: 0 becomes Nat.zero, n+1 becomes
// Nat.succ n.
func LitToConstructor(lit *term.Literal) (*term.Expr, bool) {
	if lit.Kind != term.LitNat {
		return nil, false
	}

	if lit.Nat.Sign() == 0 {
		return term.NewConst(NatZeroName), true
	}

	pred := new(big.Int).Sub(lit.Nat, big.NewInt(1))

	return term.NewApp(term.NewConst(NatSuccName), term.NewNatLit(pred)), true
}
