package env

import (
	"fmt"

	kerr "github.com/arbor-lang/arbor/internal/errors"
	"github.com/arbor-lang/arbor/internal/term"
)

// ConstructorSpec is one constructor of an inductive declaration as
// submitted by the caller. Type is the full signature including the
// inductive's parameter telescope.
type ConstructorSpec struct {
	Type *term.Expr
	Name term.Name
}

// InductiveSpec is an inductive type declaration before elaboration:
// the type former signature, the parameter count, and the constructor
// signatures. Elaborate validates the spec, runs the strict positivity
// check, and derives the recursor.
type InductiveSpec struct {
	Type         *term.Expr
	Name         term.Name
	LevelParams  []term.Name
	Constructors []ConstructorSpec
	NumParams    int
}

// openTelescope peels up to limit Pi binders (all of them when limit is
// negative), returning one fresh local per binder and the instantiated
// remainder.
func openTelescope(t *term.Expr, limit int) ([]*term.Expr, *term.Expr) {
	var locals []*term.Expr

	for t.Kind == term.ExprPi && (limit < 0 || len(locals) < limit) {
		b := t.Binder()
		l := term.NewLocal(b.Name, b.Type)
		locals = append(locals, l)
		t = b.Body.Instantiate(l)
	}

	return locals, t
}

// closePi rebuilds a Pi telescope over the given locals.
func closePi(locals []*term.Expr, body *term.Expr) *term.Expr {
	for i := len(locals) - 1; i >= 0; i-- {
		l := locals[i].Local()
		body = term.NewPi(l.Name, term.BinderDefault, l.Type.Abstract(locals[:i]...), body.Abstract(locals[i]))
	}

	return body
}

// closeLambda rebuilds a lambda telescope over the given locals.
func closeLambda(locals []*term.Expr, body *term.Expr) *term.Expr {
	for i := len(locals) - 1; i >= 0; i-- {
		l := locals[i].Local()
		body = term.NewLambda(l.Name, term.BinderDefault, l.Type.Abstract(locals[:i]...), body.Abstract(locals[i]))
	}

	return body
}

// Elaborated is the result of elaborating an inductive spec: the full
// declaration group (type former, constructors, recursor) ready for an
// atomic environment commit.
type Elaborated struct {
	TypeFormer   *Declaration
	Recursor     *Declaration
	Constructors []*Declaration
}

// Decls returns the group in insertion order.
func (el *Elaborated) Decls() []*Declaration {
	decls := make([]*Declaration, 0, len(el.Constructors)+2)
	decls = append(decls, el.TypeFormer)
	decls = append(decls, el.Constructors...)
	decls = append(decls, el.Recursor)

	return decls
}

// Elaborate validates the inductive spec, enforces strict positivity,
// and generates the recursor declaration with its iota rules. The
// submitted types must already have been checked to sorts by the
// caller.
func (spec *InductiveSpec) Elaborate() (*Elaborated, error) {
	paramLocals, afterParams := openTelescope(spec.Type, spec.NumParams)
	if len(paramLocals) != spec.NumParams {
		return nil, &kerr.IllFormedType{
			Name: spec.Name, Type: spec.Type,
			Cause: fmt.Errorf("type former has %d parameters, %d declared", len(paramLocals), spec.NumParams),
		}
	}

	indexLocals, resultSort := openTelescope(afterParams, -1)
	if resultSort.Kind != term.ExprSort {
		return nil, &kerr.IllFormedType{
			Name: spec.Name, Type: spec.Type,
			Cause: fmt.Errorf("type former must end in a sort, got %s", resultSort),
		}
	}

	resultLevel := resultSort.Sort().Level

	if err := spec.checkPositivity(); err != nil {
		return nil, err
	}

	levels := make([]*term.Level, len(spec.LevelParams))
	for i, p := range spec.LevelParams {
		levels[i] = term.NewLevelParam(p)
	}

	ctorNames := make([]term.Name, len(spec.Constructors))
	ctorDecls := make([]*Declaration, len(spec.Constructors))

	for i, c := range spec.Constructors {
		ctorNames[i] = c.Name

		fields, err := spec.ctorFieldCount(c)
		if err != nil {
			return nil, err
		}

		ctorDecls[i] = &Declaration{
			Name:        c.Name,
			Kind:        DeclConstructor,
			LevelParams: spec.LevelParams,
			Type:        c.Type,
			Hint:        ReducibilityIrreducible,
			Constructor: &ConstructorInfo{
				Inductive: spec.Name,
				CtorIdx:   i,
				NumParams: spec.NumParams,
				NumFields: fields,
			},
		}
	}

	former := &Declaration{
		Name:        spec.Name,
		Kind:        DeclInductive,
		LevelParams: spec.LevelParams,
		Type:        spec.Type,
		Hint:        ReducibilityIrreducible,
		Inductive: &InductiveInfo{
			NumParams:    spec.NumParams,
			NumIndices:   len(indexLocals),
			ResultLevel:  resultLevel,
			Constructors: ctorNames,
		},
	}

	recursor, err := spec.generateRecursor(paramLocals, indexLocals, levels)
	if err != nil {
		return nil, err
	}

	return &Elaborated{TypeFormer: former, Constructors: ctorDecls, Recursor: recursor}, nil
}

func (spec *InductiveSpec) ctorFieldCount(c ConstructorSpec) (int, error) {
	_, rest := openTelescope(c.Type, spec.NumParams)
	fields, _ := openTelescope(rest, -1)

	return len(fields), nil
}

// freshLevelName picks a motive universe parameter name not clashing
// with the inductive's own parameters.
func (spec *InductiveSpec) freshLevelName() term.Name {
	candidate := term.Name("u")

	for i := 0; ; i++ {
		clash := false

		for _, p := range spec.LevelParams {
			if p == candidate {
				clash = true

				break
			}
		}

		if !clash {
			return candidate
		}

		candidate = term.Name(fmt.Sprintf("u_%d", i+1))
	}
}

// generateRecursor derives the eliminator for the inductive: one motive
// over the indices and the major premise, one minor premise per
// constructor (with inductive hypotheses for the recursive fields), and
// one iota rule per constructor.
func (spec *InductiveSpec) generateRecursor(paramLocals, indexLocals []*term.Expr, levels []*term.Level) (*Declaration, error) {
	elimParam := spec.freshLevelName()
	elimLevel := term.NewLevelParam(elimParam)
	recLevelParams := append([]term.Name{elimParam}, spec.LevelParams...)
	recLevels := append([]*term.Level{elimLevel}, levels...)

	indHead := term.NewAppN(term.NewConst(spec.Name, levels...), paramLocals...)

	// motive : Pi indices, Ind params indices -> Sort elim
	majorForMotive := term.NewLocal("t", term.NewAppN(indHead, indexLocals...))
	motiveType := closePi(append(append([]*term.Expr{}, indexLocals...), majorForMotive), term.NewSort(elimLevel))
	motive := term.NewLocal("motive", motiveType)

	recConst := term.NewConst(spec.Name.Child("rec"), recLevels...)

	type ctorOpen struct {
		result      *term.Expr
		minor       *term.Expr
		fieldLocals []*term.Expr
	}

	minorLocals := make([]*term.Expr, len(spec.Constructors))
	opened := make([]ctorOpen, len(spec.Constructors))

	for i, c := range spec.Constructors {
		ctorParamLocals, rest := openTelescope(c.Type, spec.NumParams)
		if len(ctorParamLocals) != spec.NumParams {
			return nil, &kerr.IllFormedType{
				Name: c.Name, Type: c.Type,
				Cause: fmt.Errorf("constructor must bind the %d inductive parameters first", spec.NumParams),
			}
		}

		// Re-express the constructor over the shared parameter locals.
		rest = rest.Abstract(ctorParamLocals...).Instantiate(reverse(paramLocals)...)

		fieldLocals, resTy := openTelescope(rest, -1)

		head, resArgs := resTy.GetAppArgs()
		if head.Kind != term.ExprConst || head.Const().Name != spec.Name {
			return nil, &kerr.IllFormedType{
				Name: c.Name, Type: c.Type,
				Cause: fmt.Errorf("constructor must produce %s, got %s", spec.Name, resTy),
			}
		}

		if len(resArgs) < spec.NumParams {
			return nil, &kerr.IllFormedType{
				Name: c.Name, Type: c.Type,
				Cause: fmt.Errorf("constructor result is missing inductive parameters"),
			}
		}

		resIndices := resArgs[spec.NumParams:]

		// Inductive hypotheses for the recursive fields.
		var ihLocals []*term.Expr

		for _, f := range fieldLocals {
			ih, recursive := spec.inductiveHypothesis(f, motive, recConst, paramLocals, minorLocals[:i])
			if recursive {
				ihLocals = append(ihLocals, ih)
			}
		}

		ctorApp := term.NewAppN(term.NewConst(c.Name, levels...), append(append([]*term.Expr{}, paramLocals...), fieldLocals...)...)
		minorResult := term.NewAppN(motive, append(append([]*term.Expr{}, resIndices...), ctorApp)...)
		minorType := closePi(append(append([]*term.Expr{}, fieldLocals...), ihLocals...), minorResult)

		minorLocals[i] = term.NewLocal(term.Name("m_"+c.Name.Base()), minorType)
		opened[i] = ctorOpen{fieldLocals: fieldLocals, result: resTy, minor: minorLocals[i]}
	}

	// rec : Pi params motive minors indices (t : Ind params indices),
	//       motive indices t
	major := term.NewLocal("t", term.NewAppN(indHead, indexLocals...))
	recResult := term.NewAppN(motive, append(append([]*term.Expr{}, indexLocals...), major)...)

	telescope := make([]*term.Expr, 0, len(paramLocals)+1+len(minorLocals)+len(indexLocals)+1)
	telescope = append(telescope, paramLocals...)
	telescope = append(telescope, motive)
	telescope = append(telescope, minorLocals...)
	telescope = append(telescope, indexLocals...)
	telescope = append(telescope, major)

	recType := closePi(telescope, recResult)

	// Iota rules: rec params motive minors (ctor params fields)
	// rewrites to minor applied to the fields and their hypotheses.
	rules := make([]RecRule, len(spec.Constructors))

	for i, c := range spec.Constructors {
		oc := opened[i]

		args := make([]*term.Expr, 0, len(oc.fieldLocals)*2)
		args = append(args, oc.fieldLocals...)

		for _, f := range oc.fieldLocals {
			ih, recursive := spec.ihValue(f, motive, recConst, paramLocals, minorLocals)
			if recursive {
				args = append(args, ih)
			}
		}

		rhsBody := term.NewAppN(oc.minor, args...)

		rhsTelescope := make([]*term.Expr, 0, len(paramLocals)+1+len(minorLocals)+len(oc.fieldLocals))
		rhsTelescope = append(rhsTelescope, paramLocals...)
		rhsTelescope = append(rhsTelescope, motive)
		rhsTelescope = append(rhsTelescope, minorLocals...)
		rhsTelescope = append(rhsTelescope, oc.fieldLocals...)

		rules[i] = RecRule{
			Ctor:      c.Name,
			NumFields: len(oc.fieldLocals),
			RHS:       closeLambda(rhsTelescope, rhsBody),
		}
	}

	return &Declaration{
		Name:        spec.Name.Child("rec"),
		Kind:        DeclRecursor,
		LevelParams: recLevelParams,
		Type:        recType,
		Hint:        ReducibilityIrreducible,
		Recursor: &RecursorInfo{
			Inductive:  spec.Name,
			NumParams:  spec.NumParams,
			NumMinors:  len(spec.Constructors),
			NumIndices: len(indexLocals),
			Rules:      rules,
		},
	}, nil
}

// inductiveHypothesis builds the IH local for a field when the field is
// recursive: for f : Pi as, Ind params idx the hypothesis has type
// Pi as, motive idx (f as).
func (spec *InductiveSpec) inductiveHypothesis(field, motive, recConst *term.Expr, paramLocals, _ []*term.Expr) (*term.Expr, bool) {
	fieldType := field.Local().Type

	argLocals, end := openTelescope(fieldType, -1)

	head, endArgs := end.GetAppArgs()
	if head.Kind != term.ExprConst || head.Const().Name != spec.Name {
		return nil, false
	}

	endIndices := endArgs[spec.NumParams:]

	applied := term.NewAppN(field, argLocals...)
	ihResult := term.NewAppN(motive, append(append([]*term.Expr{}, endIndices...), applied)...)
	ihType := closePi(argLocals, ihResult)

	return term.NewLocal(term.Name("ih_"+field.Local().Name.Base()), ihType), true
}

// ihValue builds the realizer supplied for an IH position in an iota
// rule: fun as => rec params motive minors idx (f as).
func (spec *InductiveSpec) ihValue(field, motive, recConst *term.Expr, paramLocals, minorLocals []*term.Expr) (*term.Expr, bool) {
	fieldType := field.Local().Type

	argLocals, end := openTelescope(fieldType, -1)

	head, endArgs := end.GetAppArgs()
	if head.Kind != term.ExprConst || head.Const().Name != spec.Name {
		return nil, false
	}

	endIndices := endArgs[spec.NumParams:]

	recArgs := make([]*term.Expr, 0, len(paramLocals)+1+len(minorLocals)+len(endIndices)+1)
	recArgs = append(recArgs, paramLocals...)
	recArgs = append(recArgs, motive)
	recArgs = append(recArgs, minorLocals...)
	recArgs = append(recArgs, endIndices...)
	recArgs = append(recArgs, term.NewAppN(field, argLocals...))

	return closeLambda(argLocals, term.NewAppN(recConst, recArgs...)), true
}

func reverse(locals []*term.Expr) []*term.Expr {
	out := make([]*term.Expr, len(locals))
	for i, l := range locals {
		out[len(locals)-1-i] = l
	}

	return out
}
