package env

import (
	"github.com/arbor-lang/arbor/internal/term"
)

// Instance registers a declaration as a typeclass instance candidate.
// Candidates for a class are stored priority-ordered; equal priorities
// keep declaration order, and the first match wins during resolution.
type Instance struct {
	Decl     *Declaration
	Class    term.Name
	Priority int
}

// DefaultInstancePriority is the priority assigned when an instance
// declaration does not state one.
const DefaultInstancePriority = 1000

// ClassOf returns the class name heading a goal type: the constant at
// the head of the Pi-telescope result. The second result is false when
// the type does not name a class.
func ClassOf(goal *term.Expr) (term.Name, bool) {
	for goal.Kind == term.ExprPi {
		goal = goal.Binder().Body
	}

	head := goal.GetAppFn()
	if head.Kind != term.ExprConst {
		return term.Anonymous, false
	}

	return head.Const().Name, true
}
