package kernel

import (
	"errors"
	"testing"

	"go.uber.org/goleak"

	"github.com/arbor-lang/arbor/internal/env"
	kerr "github.com/arbor-lang/arbor/internal/errors"
	"github.com/arbor-lang/arbor/internal/term"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	nat  = term.NewConst("Nat")
	zero = term.NewConst("Nat.zero")
	succ = term.NewConst("Nat.succ")
)

func natSpec() *env.InductiveSpec {
	return &env.InductiveSpec{
		Name: "Nat",
		Type: term.TypeU(),
		Constructors: []env.ConstructorSpec{
			{Name: "Nat.zero", Type: nat},
			{Name: "Nat.succ", Type: term.NewArrow(nat, nat)},
		},
	}
}

func natSession(t *testing.T) *Session {
	t.Helper()

	s := NewSession()
	if err := s.DeclareInductive(natSpec()); err != nil {
		t.Fatalf("declare Nat: %v", err)
	}

	return s
}

func TestDeclareAndInfer(t *testing.T) {
	s := natSession(t)

	// id := fun (n : Nat) => n
	id := &env.Declaration{
		Name:  "id",
		Kind:  env.DeclDefinition,
		Type:  term.NewArrow(nat, nat),
		Value: term.NewLambda("n", term.BinderDefault, nat, term.NewBVar(0)),
	}
	if err := s.Declare(id); err != nil {
		t.Fatalf("declare id: %v", err)
	}

	snap := s.Snapshot()

	typ, err := s.Infer(snap, term.NewApp(term.NewConst("id"), zero))
	if err != nil {
		t.Fatalf("infer: %v", err)
	}

	if !typ.Eq(nat) {
		t.Fatalf("id Nat.zero : %s, want Nat", typ)
	}
}

func TestDeclareRejectsBadValue(t *testing.T) {
	s := natSession(t)

	bad := &env.Declaration{
		Name:  "bad",
		Kind:  env.DeclDefinition,
		Type:  nat,
		Value: term.TypeU(),
	}

	err := s.Declare(bad)

	var mismatch *kerr.TypeMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want TypeMismatch", err)
	}

	if s.Snapshot().Contains("bad") {
		t.Fatal("rejected declaration leaked into the environment")
	}
}

func TestDeclareRejectsIllFormedType(t *testing.T) {
	s := natSession(t)

	// Nat.zero is a term, not a type.
	bad := &env.Declaration{Name: "bad", Kind: env.DeclAxiom, Type: zero}

	err := s.Declare(bad)

	var ill *kerr.IllFormedType
	if !errors.As(err, &ill) {
		t.Fatalf("error = %v, want IllFormedType", err)
	}
}

func TestDeclareNameClash(t *testing.T) {
	s := natSession(t)

	err := s.Declare(&env.Declaration{Name: "Nat", Kind: env.DeclAxiom, Type: term.TypeU()})

	var clash *kerr.NameClash
	if !errors.As(err, &clash) {
		t.Fatalf("error = %v, want NameClash", err)
	}
}

func TestDeclareInductiveCommitsGroup(t *testing.T) {
	s := natSession(t)
	snap := s.Snapshot()

	for _, name := range []term.Name{"Nat", "Nat.zero", "Nat.succ", "Nat.rec"} {
		if !snap.Contains(name) {
			t.Errorf("missing %s after inductive declaration", name)
		}
	}

	rec, err := snap.Lookup("Nat.rec")
	if err != nil {
		t.Fatalf("lookup Nat.rec: %v", err)
	}

	if rec.Recursor == nil {
		t.Fatal("Nat.rec carries no recursor info")
	}

	if got := len(rec.Recursor.Rules); got != 2 {
		t.Fatalf("Nat.rec has %d iota rules, want 2", got)
	}
}

func TestDeclareInductiveRejectsUniverseEscape(t *testing.T) {
	s := NewSession()

	// A constructor field living in Type 1 cannot fit into Type.
	spec := &env.InductiveSpec{
		Name: "Box",
		Type: term.TypeU(),
		Constructors: []env.ConstructorSpec{
			{Name: "Box.mk", Type: term.NewArrow(term.TypeU(), term.NewConst("Box"))},
		},
	}

	err := s.DeclareInductive(spec)

	var uni *kerr.UniverseError
	if !errors.As(err, &uni) {
		t.Fatalf("error = %v, want UniverseError", err)
	}

	if s.Snapshot().Contains("Box") {
		t.Fatal("rejected inductive leaked into the environment")
	}
}

func TestDeclareInductivePropFieldsUnrestricted(t *testing.T) {
	s := NewSession()

	// Prop-valued inductives may quantify over any universe.
	spec := &env.InductiveSpec{
		Name: "Squash",
		Type: term.Prop(),
		Constructors: []env.ConstructorSpec{
			{Name: "Squash.mk", Type: term.NewArrow(term.TypeU(), term.NewConst("Squash"))},
		},
	}

	if err := s.DeclareInductive(spec); err != nil {
		t.Fatalf("declare Squash: %v", err)
	}
}

func TestDeclareInstanceAndResolve(t *testing.T) {
	s := natSession(t)

	decls := []*env.Declaration{
		{Name: "Ord", Kind: env.DeclAxiom, Type: term.NewArrow(term.TypeU(), term.TypeU())},
		{Name: "ordNat", Kind: env.DeclAxiom, Type: term.NewApp(term.NewConst("Ord"), nat)},
	}

	for _, d := range decls {
		if err := s.Declare(d); err != nil {
			t.Fatalf("declare %s: %v", d.Name, err)
		}
	}

	if err := s.DeclareInstance("ordNat", 0); err != nil {
		t.Fatalf("register instance: %v", err)
	}

	got, err := s.ResolveInstance(s.Snapshot(), term.NewApp(term.NewConst("Ord"), nat), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if !got.Eq(term.NewConst("ordNat")) {
		t.Fatalf("resolved %s, want ordNat", got)
	}
}

func TestDeclareFillsInstanceHoles(t *testing.T) {
	s := natSession(t)

	ord := term.NewConst("Ord")

	decls := []*env.Declaration{
		{Name: "Ord", Kind: env.DeclAxiom, Type: term.NewArrow(term.TypeU(), term.TypeU())},
		{Name: "ordNat", Kind: env.DeclAxiom, Type: term.NewApp(ord, nat)},
		{Name: "f", Kind: env.DeclAxiom, Type: term.NewPi("inst", term.BinderInstImplicit,
			term.NewApp(ord, nat), nat)},
	}

	for _, d := range decls {
		if err := s.Declare(d); err != nil {
			t.Fatalf("declare %s: %v", d.Name, err)
		}
	}

	if err := s.DeclareInstance("ordNat", 0); err != nil {
		t.Fatalf("register instance: %v", err)
	}

	// A hole in instance-implicit position is filled by resolution and
	// the committed value is closed.
	use := &env.Declaration{
		Name:  "use",
		Kind:  env.DeclDefinition,
		Type:  nat,
		Value: term.NewApp(term.NewConst("f"), term.NewMeta()),
	}
	if err := s.Declare(use); err != nil {
		t.Fatalf("declare use: %v", err)
	}

	got, err := s.Snapshot().Lookup("use")
	if err != nil {
		t.Fatalf("lookup use: %v", err)
	}

	want := term.NewApp(term.NewConst("f"), term.NewConst("ordNat"))
	if !got.Value.Eq(want) {
		t.Fatalf("committed value = %s, want %s", got.Value, want)
	}
}

func TestDeclareInstanceUnknownName(t *testing.T) {
	s := NewSession()

	err := s.DeclareInstance("ghost", 0)

	var unknown *kerr.UnknownConstant
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want UnknownConstant", err)
	}
}

func TestSessionWHNF(t *testing.T) {
	s := natSession(t)

	one := &env.Declaration{
		Name:  "one",
		Kind:  env.DeclDefinition,
		Type:  nat,
		Value: term.NewApp(succ, zero),
	}
	if err := s.Declare(one); err != nil {
		t.Fatalf("declare one: %v", err)
	}

	got, err := s.WHNF(s.Snapshot(), term.NewConst("one"))
	if err != nil {
		t.Fatalf("whnf: %v", err)
	}

	if !got.Eq(term.NewNatLitInt(1)) {
		t.Fatalf("whnf one = %s, want the literal 1", got)
	}
}

func TestSessionIsDefEq(t *testing.T) {
	s := natSession(t)
	snap := s.Snapshot()

	eq, err := s.IsDefEq(snap, term.NewApp(succ, zero), term.NewNatLitInt(1))
	if err != nil {
		t.Fatalf("defeq: %v", err)
	}

	if !eq {
		t.Fatal("Nat.succ Nat.zero should equal the literal 1")
	}
}
