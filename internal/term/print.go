package term

import (
	"fmt"
	"strings"
)

// String renders the expression for diagnostics. Bound variables are
// shown with their binder names when reachable, falling back to the de
// Bruijn index for loose variables.
func (e *Expr) String() string {
	var sb strings.Builder

	writeExpr(&sb, e, nil, false)

	return sb.String()
}

func writeExpr(sb *strings.Builder, e *Expr, binders []Name, paren bool) {
	switch e.Kind {
	case ExprBVar:
		idx := e.BVar().Idx
		if idx < len(binders) {
			name := binders[len(binders)-1-idx]
			if !name.IsAnonymous() {
				sb.WriteString(name.String())

				return
			}
		}

		fmt.Fprintf(sb, "#%d", idx)
	case ExprLocal:
		sb.WriteString(e.Local().Name.String())
	case ExprConst:
		c := e.Const()
		sb.WriteString(c.Name.String())

		if len(c.Levels) > 0 {
			sb.WriteString(".")
			sb.WriteString(FormatLevels(c.Levels))
		}
	case ExprApp:
		if paren {
			sb.WriteString("(")
		}

		app := e.App()
		writeExpr(sb, app.Fn, binders, app.Fn.IsBinder())
		sb.WriteString(" ")
		writeExpr(sb, app.Arg, binders, app.Arg.Kind == ExprApp || app.Arg.IsBinder())

		if paren {
			sb.WriteString(")")
		}
	case ExprLambda:
		if paren {
			sb.WriteString("(")
		}

		b := e.Binder()
		sb.WriteString("fun ")
		writeBinderGroup(sb, b, binders)
		sb.WriteString(" => ")
		writeExpr(sb, b.Body, append(binders, b.Name), false)

		if paren {
			sb.WriteString(")")
		}
	case ExprPi:
		if paren {
			sb.WriteString("(")
		}

		b := e.Binder()
		if b.Name.IsAnonymous() && b.Body.LooseBVarRange() == 0 {
			// Non-dependent arrow.
			writeExpr(sb, b.Type, binders, b.Type.Kind == ExprPi || b.Type.IsBinder())
			sb.WriteString(" -> ")
			writeExpr(sb, b.Body, append(binders, b.Name), false)
		} else {
			writeBinderGroup(sb, b, binders)
			sb.WriteString(" -> ")
			writeExpr(sb, b.Body, append(binders, b.Name), false)
		}

		if paren {
			sb.WriteString(")")
		}
	case ExprSort:
		level := e.Sort().Level
		if level.Kind == LevelZero {
			sb.WriteString("Prop")
		} else if n, ok := level.ToNat(); ok {
			if n == 1 {
				sb.WriteString("Type")
			} else {
				fmt.Fprintf(sb, "Type %d", n-1)
			}
		} else {
			sb.WriteString("Sort " + level.String())
		}
	case ExprLit:
		lit := e.Lit().Lit
		if lit.Kind == LitNat {
			sb.WriteString(lit.Nat.String())
		} else {
			fmt.Fprintf(sb, "%q", lit.Str)
		}
	case ExprMeta:
		fmt.Fprintf(sb, "?m%d", e.Meta().ID)
	}
}

func writeBinderGroup(sb *strings.Builder, b BinderData, binders []Name) {
	opening, closing := "(", ")"

	switch b.Info {
	case BinderImplicit:
		opening, closing = "{", "}"
	case BinderInstImplicit:
		opening, closing = "[", "]"
	}

	sb.WriteString(opening)
	sb.WriteString(b.Name.String())
	sb.WriteString(" : ")
	writeExpr(sb, b.Type, binders, false)
	sb.WriteString(closing)
}
