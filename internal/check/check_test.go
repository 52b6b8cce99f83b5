package check

import (
	"errors"
	"testing"

	"github.com/arbor-lang/arbor/internal/env"
	kerr "github.com/arbor-lang/arbor/internal/errors"
	"github.com/arbor-lang/arbor/internal/term"
)

var (
	nat  = term.NewConst("Nat")
	zero = term.NewConst("Nat.zero")
	succ = term.NewConst("Nat.succ")
)

// natEnv commits Nat with its constructors and recursor.
func natEnv(t *testing.T) *env.Environment {
	t.Helper()

	spec := &env.InductiveSpec{
		Name: "Nat",
		Type: term.TypeU(),
		Constructors: []env.ConstructorSpec{
			{Name: "Nat.zero", Type: nat},
			{Name: "Nat.succ", Type: term.NewArrow(nat, nat)},
		},
	}

	elab, err := spec.Elaborate()
	if err != nil {
		t.Fatalf("elaborate Nat: %v", err)
	}

	e := env.New()
	if err := e.DeclareBatch(elab.Decls(), nil); err != nil {
		t.Fatalf("declare Nat: %v", err)
	}

	return e
}

// addDef builds add : Nat -> Nat -> Nat via the recursor on the second
// argument.
func addDef() *env.Declaration {
	motive := term.NewLambda("t", term.BinderDefault, nat, nat)
	step := term.NewLambda("k", term.BinderDefault, nat,
		term.NewLambda("ih", term.BinderDefault, nat,
			term.NewApp(succ, term.NewBVar(0))))

	body := term.NewLambda("m", term.BinderDefault, nat,
		term.NewLambda("n", term.BinderDefault, nat,
			term.NewAppN(term.NewConst("Nat.rec", term.OneLevel),
				motive, term.NewBVar(1), step, term.NewBVar(0))))

	return &env.Declaration{
		Name:  "add",
		Kind:  env.DeclDefinition,
		Type:  term.NewArrow(nat, term.NewArrow(nat, nat)),
		Value: body,
	}
}

func TestInferSorts(t *testing.T) {
	c := New(env.New().Snapshot())

	tests := []struct {
		name string
		in   *term.Expr
		want *term.Expr
	}{
		{"prop", term.Prop(), term.TypeU()},
		{"type", term.TypeU(), term.NewSort(term.LevelOfNat(2))},
		{"nat literal", term.NewNatLitInt(42), nat},
		{"string literal", term.NewStrLit("hi"), term.NewConst("String")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Infer(tt.in)
			if err != nil {
				t.Fatalf("infer: %v", err)
			}

			if !got.Eq(tt.want) {
				t.Errorf("infer(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestInferConst(t *testing.T) {
	e := natEnv(t)
	c := New(e.Snapshot())

	got, err := c.Infer(zero)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}

	if !got.Eq(nat) {
		t.Fatalf("infer(Nat.zero) = %s, want Nat", got)
	}

	// A constant must receive exactly its declared universe arguments.
	_, err = c.Infer(term.NewConst("Nat", term.OneLevel))

	var ue *kerr.UniverseError
	if !errors.As(err, &ue) {
		t.Fatalf("error = %v, want UniverseError", err)
	}

	_, err = c.Infer(term.NewConst("ghost"))

	var unknown *kerr.UnknownConstant
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want UnknownConstant", err)
	}
}

func TestInferLambdaAndApp(t *testing.T) {
	e := natEnv(t)
	c := New(e.Snapshot())

	id := term.NewLambda("x", term.BinderDefault, nat, term.NewBVar(0))

	got, err := c.Infer(id)
	if err != nil {
		t.Fatalf("infer lambda: %v", err)
	}

	wantType := term.NewPi("x", term.BinderDefault, nat, nat)
	if !got.Eq(wantType) {
		t.Fatalf("infer(id) = %s, want %s", got, wantType)
	}

	got, err = c.Infer(term.NewApp(id, zero))
	if err != nil {
		t.Fatalf("infer app: %v", err)
	}

	if !got.Eq(nat) {
		t.Fatalf("infer(id zero) = %s, want Nat", got)
	}
}

func TestInferAppMismatch(t *testing.T) {
	e := natEnv(t)
	c := New(e.Snapshot())

	id := term.NewLambda("x", term.BinderDefault, nat, term.NewBVar(0))

	_, err := c.Infer(term.NewApp(id, term.TypeU()))

	var mismatch *kerr.TypeMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want TypeMismatch", err)
	}

	if mismatch.Expected == nil || mismatch.Actual == nil {
		t.Fatal("mismatch error must carry both sides")
	}
}

func TestInferAppNotAFunction(t *testing.T) {
	e := natEnv(t)
	c := New(e.Snapshot())

	_, err := c.Infer(term.NewApp(zero, zero))

	var nf *kerr.NotAFunction
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want NotAFunction", err)
	}
}

func TestInferPiImpredicativity(t *testing.T) {
	e := natEnv(t)
	c := New(e.Snapshot())

	tests := []struct {
		name string
		in   *term.Expr
		want *term.Level
	}{
		{
			// forall (p : Prop), p lands in Prop.
			"prop codomain collapses",
			term.NewPi("p", term.BinderDefault, term.Prop(), term.NewBVar(0)),
			term.ZeroLevel,
		},
		{
			// Nat -> Nat lives where Nat lives.
			"simple arrow",
			term.NewArrow(nat, nat),
			term.LevelOfNat(1),
		},
		{
			// The codomain is the sort Prop (living in Sort 1), not a
			// proposition, so impredicativity does not kick in.
			"predicate space",
			term.NewArrow(term.TypeU(), term.Prop()),
			term.LevelOfNat(2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Infer(tt.in)
			if err != nil {
				t.Fatalf("infer: %v", err)
			}

			if got.Kind != term.ExprSort || !got.Sort().Level.IsEquiv(tt.want) {
				t.Errorf("infer(%s) = %s, want Sort %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestCheckIsSort(t *testing.T) {
	e := natEnv(t)
	c := New(e.Snapshot())

	level, err := c.CheckIsSort(nat)
	if err != nil {
		t.Fatalf("check is sort: %v", err)
	}

	if !level.IsEquiv(term.LevelOfNat(1)) {
		t.Fatalf("Nat lives at %s, want 1", level)
	}

	_, err = c.CheckIsSort(zero)

	var ns *kerr.NotASort
	if !errors.As(err, &ns) {
		t.Fatalf("error = %v, want NotASort", err)
	}
}

func TestDefEqBasics(t *testing.T) {
	e := natEnv(t)

	if err := e.Declare(addDef()); err != nil {
		t.Fatalf("declare add: %v", err)
	}

	id := term.NewLambda("x", term.BinderDefault, nat, term.NewBVar(0))
	one := term.NewApp(succ, zero)
	two := term.NewApp(succ, one)

	tests := []struct {
		name string
		a    *term.Expr
		b    *term.Expr
		want bool
	}{
		{"reflexive", zero, zero, true},
		{"beta", term.NewApp(id, zero), zero, true},
		{"distinct constructors", zero, one, false},
		{"literal vs constructor form", term.NewNatLitInt(2), two, true},
		{"literal mismatch", term.NewNatLitInt(3), two, false},
		{"sorts up to level laws", term.NewSort(term.NewMax(term.ZeroLevel, term.OneLevel)), term.TypeU(), true},
		{"eta", term.NewLambda("x", term.BinderDefault, nat, term.NewApp(succ, term.NewBVar(0))), succ, true},
		{"delta via definition", term.NewAppN(term.NewConst("add"), one, one), two, true},
		{"delta mismatch", term.NewAppN(term.NewConst("add"), one, one), one, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(e.Snapshot())

			got, err := c.IsDefEq(tt.a, tt.b)
			if err != nil {
				t.Fatalf("defeq: %v", err)
			}

			if got != tt.want {
				t.Errorf("IsDefEq(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}

			// Definitional equality is symmetric.
			sym, err := New(e.Snapshot()).IsDefEq(tt.b, tt.a)
			if err != nil {
				t.Fatalf("defeq symmetric: %v", err)
			}

			if sym != tt.want {
				t.Errorf("IsDefEq(%s, %s) = %v, want %v", tt.b, tt.a, sym, tt.want)
			}
		})
	}
}

func TestDefEqLiteralConstructorBridge(t *testing.T) {
	e := natEnv(t)

	one := term.NewApp(succ, zero)
	stuck := term.NewLocal("x", nat)

	tests := []struct {
		name string
		a    *term.Expr
		b    *term.Expr
		want bool
	}{
		{"zero literal vs zero", term.NewNatLitInt(0), zero, true},
		{"one literal vs zero", term.NewNatLitInt(1), zero, false},
		{"zero literal vs succ", term.NewNatLitInt(0), one, false},
		{"deep match", term.NewNatLitInt(2), term.NewApp(succ, one), true},
		{"deep mismatch", term.NewNatLitInt(3), term.NewApp(succ, one), false},
		{"succ of stuck argument", term.NewNatLitInt(2), term.NewApp(succ, stuck), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(e.Snapshot()).IsDefEq(tt.a, tt.b)
			if err != nil {
				t.Fatalf("defeq: %v", err)
			}

			if got != tt.want {
				t.Errorf("IsDefEq(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}

			sym, err := New(e.Snapshot()).IsDefEq(tt.b, tt.a)
			if err != nil {
				t.Fatalf("defeq symmetric: %v", err)
			}

			if sym != tt.want {
				t.Errorf("IsDefEq(%s, %s) = %v, want %v", tt.b, tt.a, sym, tt.want)
			}
		})
	}
}

func TestDefEqProofIrrelevance(t *testing.T) {
	e := natEnv(t)

	decls := []*env.Declaration{
		{Name: "P", Kind: env.DeclAxiom, Type: term.Prop()},
		{Name: "h1", Kind: env.DeclAxiom, Type: term.NewConst("P")},
		{Name: "h2", Kind: env.DeclAxiom, Type: term.NewConst("P")},
	}

	for _, d := range decls {
		if err := e.Declare(d); err != nil {
			t.Fatalf("declare %s: %v", d.Name, err)
		}
	}

	c := New(e.Snapshot())

	got, err := c.IsDefEq(term.NewConst("h1"), term.NewConst("h2"))
	if err != nil {
		t.Fatalf("defeq: %v", err)
	}

	if !got {
		t.Fatal("two proofs of the same Prop must be equal")
	}

	// Irrelevance does not extend to data.
	got, err = c.IsDefEq(zero, term.NewApp(succ, zero))
	if err != nil {
		t.Fatalf("defeq: %v", err)
	}

	if got {
		t.Fatal("distinct naturals compared equal")
	}
}

func TestDefEqMetavariables(t *testing.T) {
	e := natEnv(t)
	c := New(e.Snapshot())

	m := term.NewMeta()

	got, err := c.IsDefEq(m, zero)
	if err != nil {
		t.Fatalf("defeq: %v", err)
	}

	if !got {
		t.Fatal("unassigned meta must unify")
	}

	// The assignment is now visible to inference.
	typ, err := c.Infer(m)
	if err != nil {
		t.Fatalf("infer assigned meta: %v", err)
	}

	if !typ.Eq(nat) {
		t.Fatalf("infer(meta) = %s, want Nat", typ)
	}

	// And it pins later comparisons.
	got, err = c.IsDefEq(m, term.NewApp(succ, zero))
	if err != nil {
		t.Fatalf("defeq: %v", err)
	}

	if got {
		t.Fatal("assigned meta compared equal to a different value")
	}
}

func TestDefEqOccursCheck(t *testing.T) {
	e := natEnv(t)
	c := New(e.Snapshot())

	m := term.NewMeta()

	_, err := c.IsDefEq(m, term.NewApp(succ, m))

	var cyclic *kerr.CyclicMetavariable
	if !errors.As(err, &cyclic) {
		t.Fatalf("error = %v, want CyclicMetavariable", err)
	}
}

func TestDefEqTimeout(t *testing.T) {
	e := natEnv(t)

	// Mutually unfolding definitions that never meet.
	if err := e.Declare(&env.Declaration{
		Name: "spin", Kind: env.DeclDefinition, Type: nat, Value: term.NewConst("spin"),
	}); err != nil {
		t.Fatalf("declare spin: %v", err)
	}

	c := New(e.Snapshot(), WithLimits(Limits{DefEqFuel: 32}))

	_, err := c.IsDefEq(term.NewConst("spin"), zero)

	var timeout *kerr.DefEqTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("error = %v, want DefEqTimeout", err)
	}
}

func TestCheck(t *testing.T) {
	e := natEnv(t)

	if err := e.Declare(addDef()); err != nil {
		t.Fatalf("declare add: %v", err)
	}

	c := New(e.Snapshot())

	// The recursive definition checks against its declared type.
	add := addDef()
	if err := c.Check(add.Value, add.Type); err != nil {
		t.Fatalf("check add: %v", err)
	}

	err := c.Check(zero, term.Prop())

	var mismatch *kerr.TypeMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want TypeMismatch", err)
	}
}

func TestInferAddScenario(t *testing.T) {
	e := natEnv(t)

	if err := e.Declare(addDef()); err != nil {
		t.Fatalf("declare add: %v", err)
	}

	c := New(e.Snapshot())

	one := term.NewApp(succ, zero)
	sum := term.NewAppN(term.NewConst("add"), one, one)

	typ, err := c.Infer(sum)
	if err != nil {
		t.Fatalf("infer add one one: %v", err)
	}

	if !typ.Eq(nat) {
		t.Fatalf("infer(add one one) = %s, want Nat", typ)
	}

	eq, err := c.IsDefEq(sum, term.NewApp(succ, one))
	if err != nil {
		t.Fatalf("defeq: %v", err)
	}

	if !eq {
		t.Fatal("add one one must reduce to two")
	}
}

func TestInstanceImplicitWithoutResolver(t *testing.T) {
	e := natEnv(t)

	// f : [inst : Nat] -> Nat, with no resolver wired.
	f := &env.Declaration{
		Name: "f",
		Kind: env.DeclAxiom,
		Type: term.NewPi("inst", term.BinderInstImplicit, nat, nat),
	}
	if err := e.Declare(f); err != nil {
		t.Fatalf("declare f: %v", err)
	}

	c := New(e.Snapshot())

	_, err := c.Infer(term.NewApp(term.NewConst("f"), term.NewMeta()))

	var unresolved *kerr.UnresolvedMetavariable
	if !errors.As(err, &unresolved) {
		t.Fatalf("error = %v, want UnresolvedMetavariable", err)
	}
}
