package term

import (
	"testing"
)

// identity: fun (A : Sort u) (a : A) => a
func identityFn() *Expr {
	u := NewLevelParam("u")

	return NewLambda("A", BinderDefault, NewSort(u),
		NewLambda("a", BinderDefault, NewBVar(0), NewBVar(0)))
}

func TestInstantiateBeta(t *testing.T) {
	// (fun (a : A) => a) applied to a constant.
	body := NewBVar(0)
	arg := NewConst("c")

	got := body.Instantiate(arg)
	if !got.Eq(arg) {
		t.Fatalf("instantiate = %s, want %s", got, arg)
	}
}

func TestInstantiateLowersLargerIndices(t *testing.T) {
	// Under one binder, index 1 refers past it; substituting index 0
	// must lower it to 0.
	e := NewApp(NewBVar(0), NewBVar(1))

	got := e.Instantiate(NewConst("c"))
	want := NewApp(NewConst("c"), NewBVar(0))

	if !got.Eq(want) {
		t.Fatalf("instantiate = %s, want %s", got, want)
	}
}

func TestInstantiateLiftsSubstituteUnderBinders(t *testing.T) {
	// fun (x : T) => #1 with substitute #0: the substitute must be
	// lifted over the lambda it is placed under.
	e := NewLambda("x", BinderDefault, NewConst("T"), NewBVar(1))

	got := e.Instantiate(NewBVar(0))
	want := NewLambda("x", BinderDefault, NewConst("T"), NewBVar(1))

	if !got.Eq(want) {
		t.Fatalf("instantiate = %s, want %s", got, want)
	}
}

func TestAbstractInstantiateRoundTrip(t *testing.T) {
	l := NewLocal("x", NewConst("T"))
	e := NewApp(NewConst("f"), l)

	abstracted := e.Abstract(l)
	want := NewApp(NewConst("f"), NewBVar(0))

	if !abstracted.Eq(want) {
		t.Fatalf("abstract = %s, want %s", abstracted, want)
	}

	back := abstracted.Instantiate(l)
	if !back.Eq(e) {
		t.Fatalf("round trip = %s, want %s", back, e)
	}
}

func TestAbstractBindsLastLocalInnermost(t *testing.T) {
	x := NewLocal("x", NewConst("T"))
	y := NewLocal("y", NewConst("T"))

	e := NewApp(x, y)

	got := e.Abstract(x, y)
	want := NewApp(NewBVar(1), NewBVar(0))

	if !got.Eq(want) {
		t.Fatalf("abstract = %s, want %s", got, want)
	}
}

func TestLooseBVarRange(t *testing.T) {
	tests := []struct {
		name string
		in   *Expr
		want int
	}{
		{"closed constant", NewConst("c"), 0},
		{"bare bvar", NewBVar(2), 3},
		{"binder closes one", NewLambda("x", BinderDefault, NewConst("T"), NewBVar(0)), 0},
		{"binder leaves outer open", NewLambda("x", BinderDefault, NewConst("T"), NewBVar(1)), 1},
		{"app takes max", NewApp(NewBVar(0), NewBVar(4)), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.LooseBVarRange(); got != tt.want {
				t.Errorf("LooseBVarRange = %d, want %d", got, tt.want)
			}

			if closed := tt.in.IsClosed(); closed != (tt.want == 0) {
				t.Errorf("IsClosed = %v with range %d", closed, tt.want)
			}
		})
	}
}

func TestLiftLooseBVars(t *testing.T) {
	e := NewApp(NewBVar(0), NewBVar(2))

	got := e.LiftLooseBVars(1, 3)
	want := NewApp(NewBVar(0), NewBVar(5))

	if !got.Eq(want) {
		t.Fatalf("lift = %s, want %s", got, want)
	}
}

func TestGetAppArgs(t *testing.T) {
	f := NewConst("f")
	e := NewAppN(f, NewConst("a"), NewConst("b"), NewConst("c"))

	head, args := e.GetAppArgs()
	if !head.Eq(f) {
		t.Fatalf("head = %s, want f", head)
	}

	if len(args) != 3 {
		t.Fatalf("got %d args, want 3", len(args))
	}

	if !args[0].Eq(NewConst("a")) || !args[2].Eq(NewConst("c")) {
		t.Fatalf("args out of order: %v", args)
	}
}

func TestInstantiateLevelParams(t *testing.T) {
	u := NewLevelParam("u")
	e := NewConst("List", u)

	got := e.InstantiateLevelParams([]Name{"u"}, []*Level{OneLevel})
	want := NewConst("List", OneLevel)

	if !got.Eq(want) {
		t.Fatalf("instantiate levels = %s, want %s", got, want)
	}

	if got.HasLevelParam() {
		t.Fatal("result still mentions level parameters")
	}
}

func TestFoldConsts(t *testing.T) {
	e := NewAppN(NewConst("f"), NewConst("a"), NewApp(NewConst("f"), NewConst("b")))

	var seen []Name

	e.FoldConsts(func(n Name) {
		seen = append(seen, n)
	})

	if len(seen) != 3 {
		t.Fatalf("visited %d constants (%v), want 3 distinct", len(seen), seen)
	}
}

func TestExprFlags(t *testing.T) {
	meta := NewMeta()
	local := NewLocal("x", NewConst("T"))

	withMeta := NewApp(NewConst("f"), meta)
	if !withMeta.HasMeta() {
		t.Error("application of a meta should report HasMeta")
	}

	withLocal := NewApp(NewConst("f"), local)
	if !withLocal.HasLocal() {
		t.Error("application of a local should report HasLocal")
	}

	plain := identityFn()
	if plain.HasMeta() || plain.HasLocal() {
		t.Error("identity function has no metas or locals")
	}

	if !plain.HasLevelParam() {
		t.Error("identity function mentions a level parameter")
	}
}

func TestLocalIDsAreUnique(t *testing.T) {
	a := NewLocal("x", NewConst("T"))
	b := NewLocal("x", NewConst("T"))

	if a.Local().ID == b.Local().ID {
		t.Fatal("two fresh locals share an ID")
	}

	if a.Eq(b) {
		t.Fatal("distinct locals compare equal")
	}
}
