// Package check implements the trusted judgment of the kernel: type
// inference and checking, and definitional equality. The two are
// mutually recursive (checking an application compares types, and
// proof irrelevance during comparison infers types), so they share a
// Checker over one environment snapshot.
package check

import (
	kerr "github.com/arbor-lang/arbor/internal/errors"
	"github.com/arbor-lang/arbor/internal/term"
)

// MetaState tracks metavariable assignments accumulated by unification
// during a single checking operation. Assignment is monotone: a meta is
// assigned at most once and never revoked.
type MetaState struct {
	assignments map[uint64]*term.Expr
}

// NewMetaState creates an empty assignment table.
func NewMetaState() *MetaState {
	return &MetaState{assignments: make(map[uint64]*term.Expr)}
}

// Lookup returns the assignment for the given metavariable.
func (m *MetaState) Lookup(id uint64) (*term.Expr, bool) {
	e, ok := m.assignments[id]

	return e, ok
}

// IsAssigned reports whether the metavariable has an assignment.
func (m *MetaState) IsAssigned(id uint64) bool {
	_, ok := m.assignments[id]

	return ok
}

// Assign records an assignment after the occurs check. Assigning a
// value in which the metavariable itself occurs (directly or through
// earlier assignments) fails with CyclicMetavariable.
func (m *MetaState) Assign(id uint64, value *term.Expr) error {
	resolved := m.Instantiate(value)
	if resolved.HasMetaID(id) {
		return &kerr.CyclicMetavariable{MetaID: id, Value: value}
	}

	m.assignments[id] = resolved

	return nil
}

// Instantiate replaces every assigned metavariable in the expression by
// its value, recursively.
func (m *MetaState) Instantiate(e *term.Expr) *term.Expr {
	if len(m.assignments) == 0 || !e.HasMeta() {
		return e
	}

	switch e.Kind {
	case term.ExprMeta:
		if v, ok := m.assignments[e.Meta().ID]; ok {
			return m.Instantiate(v)
		}

		return e
	case term.ExprApp:
		app := e.App()
		fn := m.Instantiate(app.Fn)
		arg := m.Instantiate(app.Arg)

		if fn == app.Fn && arg == app.Arg {
			return e
		}

		return term.NewApp(fn, arg)
	case term.ExprLambda, term.ExprPi:
		b := e.Binder()
		typ := m.Instantiate(b.Type)
		body := m.Instantiate(b.Body)

		if typ == b.Type && body == b.Body {
			return e
		}

		if e.Kind == term.ExprLambda {
			return term.NewLambda(b.Name, b.Info, typ, body)
		}

		return term.NewPi(b.Name, b.Info, typ, body)
	case term.ExprLocal:
		l := e.Local()
		if l.Type == nil {
			return e
		}

		typ := m.Instantiate(l.Type)
		if typ == l.Type {
			return e
		}

		return term.NewLocalWithID(l.ID, l.Name, typ)
	default:
		return e
	}
}
