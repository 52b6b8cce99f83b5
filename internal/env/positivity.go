package env

import (
	kerr "github.com/arbor-lang/arbor/internal/errors"
	"github.com/arbor-lang/arbor/internal/term"
)

// mentions reports whether the named constant occurs anywhere in the
// expression.
func mentions(e *term.Expr, name term.Name) bool {
	found := false

	e.FoldConsts(func(n term.Name) {
		if n == name {
			found = true
		}
	})

	return found
}

// checkPositivity enforces strict positivity for every constructor:
// the inductive may occur in a field type only as the head of the
// field's result (possibly under a Pi telescope whose domains do not
// mention it), and never inside the arguments of its own application.
// Violations are rejected at declaration time.
func (spec *InductiveSpec) checkPositivity() error {
	for _, c := range spec.Constructors {
		_, rest := openTelescope(c.Type, spec.NumParams)

		fieldLocals, resTy := openTelescope(rest, -1)

		for _, f := range fieldLocals {
			if err := spec.checkFieldPositivity(c.Name, f.Local().Type); err != nil {
				return err
			}
		}

		// The result's own arguments may not mention the inductive.
		head, resArgs := resTy.GetAppArgs()
		if head.Kind == term.ExprConst && head.Const().Name == spec.Name {
			for _, a := range resArgs {
				if mentions(a, spec.Name) {
					return &kerr.NotPositive{Inductive: spec.Name, Constructor: c.Name, ArgType: resTy}
				}
			}
		}
	}

	return nil
}

func (spec *InductiveSpec) checkFieldPositivity(ctor term.Name, fieldType *term.Expr) error {
	if !mentions(fieldType, spec.Name) {
		return nil
	}

	argLocals, end := openTelescope(fieldType, -1)

	// A domain of the field's telescope is a negative position.
	for _, a := range argLocals {
		if mentions(a.Local().Type, spec.Name) {
			return &kerr.NotPositive{Inductive: spec.Name, Constructor: ctor, ArgType: fieldType}
		}
	}

	head, endArgs := end.GetAppArgs()
	if head.Kind == term.ExprConst && head.Const().Name == spec.Name {
		// Strictly positive occurrence; the application's arguments may
		// not mention the inductive (no nested occurrences).
		for _, a := range endArgs {
			if mentions(a, spec.Name) {
				return &kerr.NotPositive{Inductive: spec.Name, Constructor: ctor, ArgType: fieldType}
			}
		}

		return nil
	}

	// The inductive occurs somewhere other than a strictly positive
	// head position.
	return &kerr.NotPositive{Inductive: spec.Name, Constructor: ctor, ArgType: fieldType}
}
