package term

// Instantiate substitutes the loose bound variables [0, len(args)) by
// the given expressions: index i maps to args[i] (lifted past the
// binders crossed on the way down), and larger loose indices are
// lowered by len(args). Closed subtrees are returned unchanged.
func (e *Expr) Instantiate(args ...*Expr) *Expr {
	if len(args) == 0 || e.looseRange == 0 {
		return e
	}

	return instantiateCore(e, args, 0)
}

func instantiateCore(e *Expr, args []*Expr, depth int) *Expr {
	if e.looseRange <= depth {
		return e
	}

	switch e.Kind {
	case ExprBVar:
		idx := e.BVar().Idx
		if idx < depth {
			return e
		}

		rel := idx - depth
		if rel < len(args) {
			return args[rel].LiftLooseBVars(0, depth)
		}

		return NewBVar(idx - len(args))
	case ExprApp:
		app := e.App()
		fn := instantiateCore(app.Fn, args, depth)
		arg := instantiateCore(app.Arg, args, depth)

		if fn == app.Fn && arg == app.Arg {
			return e
		}

		return NewApp(fn, arg)
	case ExprLambda, ExprPi:
		b := e.Binder()
		typ := instantiateCore(b.Type, args, depth)
		body := instantiateCore(b.Body, args, depth+1)

		if typ == b.Type && body == b.Body {
			return e
		}

		return newBinder(e.Kind, b.Name, b.Info, typ, body)
	default:
		return e
	}
}

// LiftLooseBVars raises every loose bound variable with index >= start
// by amount.
func (e *Expr) LiftLooseBVars(start, amount int) *Expr {
	if amount == 0 || e.looseRange <= start {
		return e
	}

	switch e.Kind {
	case ExprBVar:
		idx := e.BVar().Idx
		if idx < start {
			return e
		}

		return NewBVar(idx + amount)
	case ExprApp:
		app := e.App()

		return NewApp(app.Fn.LiftLooseBVars(start, amount), app.Arg.LiftLooseBVars(start, amount))
	case ExprLambda, ExprPi:
		b := e.Binder()

		return newBinder(e.Kind, b.Name, b.Info,
			b.Type.LiftLooseBVars(start, amount),
			b.Body.LiftLooseBVars(start+1, amount))
	default:
		return e
	}
}

// Abstract replaces each occurrence of the given locals by bound
// variables, with locals[len-1] becoming index 0 at the top level.
// Used when closing an opened binder back up.
func (e *Expr) Abstract(locals ...*Expr) *Expr {
	if len(locals) == 0 || !e.HasLocal() {
		return e
	}

	return abstractCore(e, locals, 0)
}

func abstractCore(e *Expr, locals []*Expr, depth int) *Expr {
	if !e.HasLocal() {
		return e
	}

	switch e.Kind {
	case ExprLocal:
		id := e.Local().ID
		for i, l := range locals {
			if l.Local().ID == id {
				return NewBVar(depth + (len(locals) - 1 - i))
			}
		}

		return e
	case ExprApp:
		app := e.App()

		return NewApp(abstractCore(app.Fn, locals, depth), abstractCore(app.Arg, locals, depth))
	case ExprLambda, ExprPi:
		b := e.Binder()

		return newBinder(e.Kind, b.Name, b.Info,
			abstractCore(b.Type, locals, depth),
			abstractCore(b.Body, locals, depth+1))
	default:
		return e
	}
}

// InstantiateLevelParams substitutes universe parameters throughout the
// expression.
func (e *Expr) InstantiateLevelParams(params []Name, values []*Level) *Expr {
	if len(params) == 0 || !e.HasLevelParam() {
		return e
	}

	switch e.Kind {
	case ExprConst:
		c := e.Const()
		levels := make([]*Level, len(c.Levels))

		for i, l := range c.Levels {
			levels[i] = l.Instantiate(params, values)
		}

		return NewConst(c.Name, levels...)
	case ExprSort:
		return NewSort(e.Sort().Level.Instantiate(params, values))
	case ExprApp:
		app := e.App()

		return NewApp(app.Fn.InstantiateLevelParams(params, values),
			app.Arg.InstantiateLevelParams(params, values))
	case ExprLambda, ExprPi:
		b := e.Binder()

		return newBinder(e.Kind, b.Name, b.Info,
			b.Type.InstantiateLevelParams(params, values),
			b.Body.InstantiateLevelParams(params, values))
	case ExprLocal:
		l := e.Local()
		if l.Type == nil {
			return e
		}

		return NewLocalWithID(l.ID, l.Name, l.Type.InstantiateLevelParams(params, values))
	default:
		return e
	}
}

// Eq reports structural equality of two expressions, comparing universe
// levels structurally (not up to normalization).
func (e *Expr) Eq(other *Expr) bool {
	if e == other {
		return true
	}

	if e.Kind != other.Kind || e.looseRange != other.looseRange {
		return false
	}

	switch e.Kind {
	case ExprBVar:
		return e.BVar().Idx == other.BVar().Idx
	case ExprLocal:
		return e.Local().ID == other.Local().ID
	case ExprConst:
		a, b := e.Const(), other.Const()

		return a.Name == b.Name && LevelsEq(a.Levels, b.Levels)
	case ExprApp:
		a, b := e.App(), other.App()

		return a.Fn.Eq(b.Fn) && a.Arg.Eq(b.Arg)
	case ExprLambda, ExprPi:
		a, b := e.Binder(), other.Binder()

		return a.Type.Eq(b.Type) && a.Body.Eq(b.Body)
	case ExprSort:
		return e.Sort().Level.Eq(other.Sort().Level)
	case ExprLit:
		return e.Lit().Lit.Eq(other.Lit().Lit)
	case ExprMeta:
		return e.Meta().ID == other.Meta().ID
	default:
		return false
	}
}

// GetAppFn peels all application nodes and returns the head.
func (e *Expr) GetAppFn() *Expr {
	for e.Kind == ExprApp {
		e = e.App().Fn
	}

	return e
}

// GetAppArgs peels all application nodes and returns the head together
// with the argument list in application order.
func (e *Expr) GetAppArgs() (*Expr, []*Expr) {
	n := 0
	for cur := e; cur.Kind == ExprApp; cur = cur.App().Fn {
		n++
	}

	args := make([]*Expr, n)
	cur := e

	for i := n - 1; i >= 0; i-- {
		app := cur.App()
		args[i] = app.Arg
		cur = app.Fn
	}

	return cur, args
}

// AppArgCount returns the number of application nodes in the spine.
func (e *Expr) AppArgCount() int {
	n := 0
	for cur := e; cur.Kind == ExprApp; cur = cur.App().Fn {
		n++
	}

	return n
}

// FoldConsts invokes fn once per distinct constant name referenced by
// the expression.
func (e *Expr) FoldConsts(fn func(Name)) {
	seen := make(map[Name]struct{})
	e.foldConstsCore(fn, seen)
}

func (e *Expr) foldConstsCore(fn func(Name), seen map[Name]struct{}) {
	switch e.Kind {
	case ExprConst:
		name := e.Const().Name
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			fn(name)
		}
	case ExprApp:
		app := e.App()
		app.Fn.foldConstsCore(fn, seen)
		app.Arg.foldConstsCore(fn, seen)
	case ExprLambda, ExprPi:
		b := e.Binder()
		b.Type.foldConstsCore(fn, seen)
		b.Body.foldConstsCore(fn, seen)
	case ExprLocal:
		if t := e.Local().Type; t != nil {
			t.foldConstsCore(fn, seen)
		}
	}
}

// HasLocalID reports whether the local with the given ID occurs free in
// the expression.
func (e *Expr) HasLocalID(id uint64) bool {
	if !e.HasLocal() {
		return false
	}

	switch e.Kind {
	case ExprLocal:
		if e.Local().ID == id {
			return true
		}

		if t := e.Local().Type; t != nil {
			return t.HasLocalID(id)
		}

		return false
	case ExprApp:
		app := e.App()

		return app.Fn.HasLocalID(id) || app.Arg.HasLocalID(id)
	case ExprLambda, ExprPi:
		b := e.Binder()

		return b.Type.HasLocalID(id) || b.Body.HasLocalID(id)
	default:
		return false
	}
}

// FirstMetaID returns the ID of some metavariable occurring in the
// expression, if any.
func (e *Expr) FirstMetaID() (uint64, bool) {
	if !e.HasMeta() {
		return 0, false
	}

	switch e.Kind {
	case ExprMeta:
		return e.Meta().ID, true
	case ExprApp:
		app := e.App()

		if id, ok := app.Fn.FirstMetaID(); ok {
			return id, true
		}

		return app.Arg.FirstMetaID()
	case ExprLambda, ExprPi:
		b := e.Binder()

		if id, ok := b.Type.FirstMetaID(); ok {
			return id, true
		}

		return b.Body.FirstMetaID()
	case ExprLocal:
		if t := e.Local().Type; t != nil {
			return t.FirstMetaID()
		}

		return 0, false
	default:
		return 0, false
	}
}

// HasMetaID reports whether the metavariable with the given ID occurs
// in the expression.
func (e *Expr) HasMetaID(id uint64) bool {
	if !e.HasMeta() {
		return false
	}

	switch e.Kind {
	case ExprMeta:
		return e.Meta().ID == id
	case ExprApp:
		app := e.App()

		return app.Fn.HasMetaID(id) || app.Arg.HasMetaID(id)
	case ExprLambda, ExprPi:
		b := e.Binder()

		return b.Type.HasMetaID(id) || b.Body.HasMetaID(id)
	case ExprLocal:
		if t := e.Local().Type; t != nil {
			return t.HasMetaID(id)
		}

		return false
	default:
		return false
	}
}
