package instances

import (
	"errors"
	"testing"

	"github.com/arbor-lang/arbor/internal/env"
	kerr "github.com/arbor-lang/arbor/internal/errors"
	"github.com/arbor-lang/arbor/internal/term"
)

var (
	nat  = term.NewConst("Nat")
	ord  = term.NewConst("Ord")
	list = term.NewConst("List")
)

func ordOf(a *term.Expr) *term.Expr { return term.NewApp(ord, a) }

// classEnv declares Nat, Bool, List, and the Ord class as axioms.
// Tests add their own instances on top.
func classEnv(t *testing.T) *env.Environment {
	t.Helper()

	e := env.New()

	decls := []*env.Declaration{
		{Name: "Nat", Kind: env.DeclAxiom, Type: term.TypeU()},
		{Name: "Bool", Kind: env.DeclAxiom, Type: term.TypeU()},
		{Name: "List", Kind: env.DeclAxiom, Type: term.NewArrow(term.TypeU(), term.TypeU())},
		{Name: "Ord", Kind: env.DeclAxiom, Type: term.NewArrow(term.TypeU(), term.TypeU())},
	}

	for _, d := range decls {
		if err := e.Declare(d); err != nil {
			t.Fatalf("declare %s: %v", d.Name, err)
		}
	}

	return e
}

// addInstance declares an axiom of the given type and registers it as
// an Ord instance.
func addInstance(t *testing.T, e *env.Environment, name term.Name, typ *term.Expr, priority int) {
	t.Helper()

	decl := &env.Declaration{Name: name, Kind: env.DeclAxiom, Type: typ}
	if err := e.Declare(decl); err != nil {
		t.Fatalf("declare %s: %v", name, err)
	}

	if err := e.DeclareInstance(&env.Instance{Decl: decl, Class: "Ord", Priority: priority}); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
}

func TestResolveSimple(t *testing.T) {
	e := classEnv(t)
	addInstance(t, e, "ordNat", ordOf(nat), env.DefaultInstancePriority)

	r := New(e.Snapshot(), DefaultConfig())

	got, err := r.Resolve(ordOf(nat), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if !got.Eq(term.NewConst("ordNat")) {
		t.Fatalf("resolved %s, want ordNat", got)
	}
}

func TestResolveNested(t *testing.T) {
	e := classEnv(t)
	addInstance(t, e, "ordNat", ordOf(nat), env.DefaultInstancePriority)

	// ordList : (A : Type) -> [inst : Ord A] -> Ord (List A)
	ordListType := term.NewPi("A", term.BinderDefault, term.TypeU(),
		term.NewPi("inst", term.BinderInstImplicit, ordOf(term.NewBVar(0)),
			ordOf(term.NewApp(list, term.NewBVar(1)))))
	addInstance(t, e, "ordList", ordListType, env.DefaultInstancePriority)

	r := New(e.Snapshot(), DefaultConfig())

	got, err := r.Resolve(ordOf(term.NewApp(list, nat)), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	want := term.NewAppN(term.NewConst("ordList"), nat, term.NewConst("ordNat"))
	if !got.Eq(want) {
		t.Fatalf("resolved %s, want %s", got, want)
	}
}

func TestResolvePriority(t *testing.T) {
	e := classEnv(t)
	addInstance(t, e, "ordLow", ordOf(nat), env.DefaultInstancePriority)
	addInstance(t, e, "ordHigh", ordOf(nat), 2000)

	r := New(e.Snapshot(), DefaultConfig())

	got, err := r.Resolve(ordOf(nat), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if !got.Eq(term.NewConst("ordHigh")) {
		t.Fatalf("resolved %s, want the higher-priority ordHigh", got)
	}
}

func TestResolveTieKeepsDeclarationOrder(t *testing.T) {
	e := classEnv(t)
	addInstance(t, e, "ordFirst", ordOf(nat), env.DefaultInstancePriority)
	addInstance(t, e, "ordSecond", ordOf(nat), env.DefaultInstancePriority)

	r := New(e.Snapshot(), DefaultConfig())

	got, err := r.Resolve(ordOf(nat), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if !got.Eq(term.NewConst("ordFirst")) {
		t.Fatalf("resolved %s, want the earlier ordFirst", got)
	}
}

func TestResolveLocalHypothesisWins(t *testing.T) {
	e := classEnv(t)
	addInstance(t, e, "ordNat", ordOf(nat), env.DefaultInstancePriority)

	hyp := term.NewLocal("h", ordOf(nat))

	r := New(e.Snapshot(), DefaultConfig())

	got, err := r.Resolve(ordOf(nat), []*term.Expr{hyp})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if !got.Eq(hyp) {
		t.Fatalf("resolved %s, want the local hypothesis", got)
	}
}

func TestResolveNotFound(t *testing.T) {
	e := classEnv(t)
	addInstance(t, e, "ordNat", ordOf(nat), env.DefaultInstancePriority)

	r := New(e.Snapshot(), DefaultConfig())

	_, err := r.Resolve(ordOf(term.NewConst("Bool")), nil)

	var notFound *kerr.InstanceNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want InstanceNotFound", err)
	}
}

func TestResolveNonClassGoal(t *testing.T) {
	e := classEnv(t)

	r := New(e.Snapshot(), DefaultConfig())

	_, err := r.Resolve(term.TypeU(), nil)

	var notFound *kerr.InstanceNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want InstanceNotFound", err)
	}
}

func TestResolveCycle(t *testing.T) {
	e := classEnv(t)

	// An instance that needs exactly the goal it provides.
	loopType := term.NewPi("inst", term.BinderInstImplicit, ordOf(nat), ordOf(nat))
	addInstance(t, e, "ordLoop", loopType, env.DefaultInstancePriority)

	r := New(e.Snapshot(), DefaultConfig())

	_, err := r.Resolve(ordOf(nat), nil)

	var cycle *kerr.InstanceCycle
	if !errors.As(err, &cycle) {
		t.Fatalf("error = %v, want InstanceCycle", err)
	}
}

func TestResolveDepthBound(t *testing.T) {
	e := classEnv(t)

	// Ord A via Ord (List A): every step makes a strictly larger goal,
	// so only the depth bound stops the search.
	growType := term.NewPi("A", term.BinderDefault, term.TypeU(),
		term.NewPi("inst", term.BinderInstImplicit, ordOf(term.NewApp(list, term.NewBVar(0))),
			ordOf(term.NewBVar(1))))
	addInstance(t, e, "ordGrow", growType, env.DefaultInstancePriority)

	r := New(e.Snapshot(), Config{MaxDepth: 4, MaxIterations: 10000})

	_, err := r.Resolve(ordOf(nat), nil)

	var depth *kerr.InstanceSearchDepthExceeded
	if !errors.As(err, &depth) {
		t.Fatalf("error = %v, want InstanceSearchDepthExceeded", err)
	}
}

func TestResolveIterationBound(t *testing.T) {
	e := classEnv(t)

	growType := term.NewPi("A", term.BinderDefault, term.TypeU(),
		term.NewPi("inst", term.BinderInstImplicit, ordOf(term.NewApp(list, term.NewBVar(0))),
			ordOf(term.NewBVar(1))))
	addInstance(t, e, "ordGrow", growType, env.DefaultInstancePriority)

	r := New(e.Snapshot(), Config{MaxDepth: 1 << 20, MaxIterations: 64})

	_, err := r.Resolve(ordOf(nat), nil)

	var depth *kerr.InstanceSearchDepthExceeded
	if !errors.As(err, &depth) {
		t.Fatalf("error = %v, want InstanceSearchDepthExceeded", err)
	}
}

func TestResolveBacktracks(t *testing.T) {
	e := classEnv(t)

	// The high-priority candidate needs an unsatisfiable subgoal; the
	// search must fall back to the plain instance.
	deadEnd := term.NewPi("inst", term.BinderInstImplicit, ordOf(term.NewConst("Bool")), ordOf(nat))
	addInstance(t, e, "ordDeadEnd", deadEnd, 2000)
	addInstance(t, e, "ordNat", ordOf(nat), env.DefaultInstancePriority)

	r := New(e.Snapshot(), DefaultConfig())

	got, err := r.Resolve(ordOf(nat), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if !got.Eq(term.NewConst("ordNat")) {
		t.Fatalf("resolved %s, want ordNat after backtracking", got)
	}
}
