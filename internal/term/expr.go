package term

import (
	"math/big"
	"sync/atomic"
)

// ExprKind discriminates the expression constructors.
type ExprKind int

const (
	ExprBVar ExprKind = iota
	ExprLocal
	ExprConst
	ExprApp
	ExprLambda
	ExprPi
	ExprSort
	ExprLit
	ExprMeta
)

func (k ExprKind) String() string {
	switch k {
	case ExprBVar:
		return "bvar"
	case ExprLocal:
		return "local"
	case ExprConst:
		return "const"
	case ExprApp:
		return "app"
	case ExprLambda:
		return "lambda"
	case ExprPi:
		return "pi"
	case ExprSort:
		return "sort"
	case ExprLit:
		return "lit"
	case ExprMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// BinderInfo records how a binder's argument is supplied at call sites.
// The kernel only consumes terms with every argument present; the info
// is retained so instance-implicit positions can be synthesized by
// instance resolution when a metavariable is left in their place.
type BinderInfo int

const (
	BinderDefault BinderInfo = iota
	BinderImplicit
	BinderInstImplicit
)

// LitKind discriminates literal values.
type LitKind int

const (
	LitNat LitKind = iota
	LitStr
)

// Literal is a builtin literal value. Nat literals carry arbitrary
// precision so primitive arithmetic never overflows.
type Literal struct {
	Nat  *big.Int
	Str  string
	Kind LitKind
}

// Eq reports equality of two literals.
func (l *Literal) Eq(other *Literal) bool {
	if l.Kind != other.Kind {
		return false
	}

	if l.Kind == LitNat {
		return l.Nat.Cmp(other.Nat) == 0
	}

	return l.Str == other.Str
}

type exprFlags uint8

const (
	flagHasMeta exprFlags = 1 << iota
	flagHasLocal
	flagHasLevelParam
)

// Expr is an immutable expression tree node. Bound variables use de
// Bruijn indices; looseRange caches one past the largest loose index so
// closed subtrees are skipped in O(1) during substitution.
type Expr struct {
	Data       any
	looseRange int
	flags      exprFlags
	Kind       ExprKind
}

// BVarData is the payload of a bound variable.
type BVarData struct {
	Idx int
}

// LocalData is the payload of a free local variable. Locals are created
// by the checker when it opens a binder; the ID is unique per process.
type LocalData struct {
	Type *Expr
	Name Name
	ID   uint64
}

// ConstData is the payload of a reference to a global declaration.
type ConstData struct {
	Name   Name
	Levels []*Level
}

// AppData is the payload of an application node.
type AppData struct {
	Fn  *Expr
	Arg *Expr
}

// BinderData is the shared payload of lambda and Pi nodes. Type is the
// binder domain; Body has one extra loose index referring to the binder.
type BinderData struct {
	Type *Expr
	Body *Expr
	Name Name
	Info BinderInfo
}

// SortData is the payload of a sort node.
type SortData struct {
	Level *Level
}

// LitData is the payload of a literal node.
type LitData struct {
	Lit *Literal
}

// MetaData is the payload of a metavariable node.
type MetaData struct {
	ID uint64
}

var localCounter atomic.Uint64

// NextLocalID issues a fresh process-unique local variable ID.
func NextLocalID() uint64 {
	return localCounter.Add(1)
}

var metaCounter atomic.Uint64

// NextMetaID issues a fresh process-unique metavariable ID.
func NextMetaID() uint64 {
	return metaCounter.Add(1)
}

// NewBVar builds a bound variable with the given de Bruijn index.
func NewBVar(idx int) *Expr {
	return &Expr{Kind: ExprBVar, Data: BVarData{Idx: idx}, looseRange: idx + 1}
}

// NewLocal builds a free local variable with a fresh ID.
func NewLocal(name Name, typ *Expr) *Expr {
	return NewLocalWithID(NextLocalID(), name, typ)
}

// NewLocalWithID builds a free local variable with an explicit ID.
func NewLocalWithID(id uint64, name Name, typ *Expr) *Expr {
	f := flagHasLocal
	if typ != nil {
		f |= typ.flags
	}

	return &Expr{Kind: ExprLocal, Data: LocalData{ID: id, Name: name, Type: typ}, flags: f}
}

// NewConst builds a reference to the named declaration at the given
// universe levels.
func NewConst(name Name, levels ...*Level) *Expr {
	var f exprFlags

	for _, l := range levels {
		if l.HasParam() {
			f |= flagHasLevelParam

			break
		}
	}

	return &Expr{Kind: ExprConst, Data: ConstData{Name: name, Levels: levels}, flags: f}
}

// NewApp builds the application of fn to arg.
func NewApp(fn, arg *Expr) *Expr {
	loose := fn.looseRange
	if arg.looseRange > loose {
		loose = arg.looseRange
	}

	return &Expr{
		Kind:       ExprApp,
		Data:       AppData{Fn: fn, Arg: arg},
		looseRange: loose,
		flags:      fn.flags | arg.flags,
	}
}

// NewAppN applies fn to each argument in order.
func NewAppN(fn *Expr, args ...*Expr) *Expr {
	for _, a := range args {
		fn = NewApp(fn, a)
	}

	return fn
}

// NewLambda builds a lambda binder. The body refers to the binder as
// bound variable 0.
func NewLambda(name Name, info BinderInfo, typ, body *Expr) *Expr {
	return newBinder(ExprLambda, name, info, typ, body)
}

// NewPi builds a dependent function type. The body refers to the binder
// as bound variable 0.
func NewPi(name Name, info BinderInfo, typ, body *Expr) *Expr {
	return newBinder(ExprPi, name, info, typ, body)
}

// NewArrow builds the non-dependent function type dom -> cod.
func NewArrow(dom, cod *Expr) *Expr {
	return NewPi(Anonymous, BinderDefault, dom, cod.LiftLooseBVars(0, 1))
}

func newBinder(kind ExprKind, name Name, info BinderInfo, typ, body *Expr) *Expr {
	loose := typ.looseRange

	if body.looseRange-1 > loose {
		loose = body.looseRange - 1
	}

	return &Expr{
		Kind:       kind,
		Data:       BinderData{Name: name, Info: info, Type: typ, Body: body},
		looseRange: loose,
		flags:      typ.flags | body.flags,
	}
}

// NewSort builds the sort at the given level.
func NewSort(level *Level) *Expr {
	var f exprFlags
	if level.HasParam() {
		f = flagHasLevelParam
	}

	return &Expr{Kind: ExprSort, Data: SortData{Level: level}, flags: f}
}

// Prop is the impredicative bottom sort, Sort 0.
func Prop() *Expr { return NewSort(ZeroLevel) }

// TypeU is Sort 1, the universe of small types.
func TypeU() *Expr { return NewSort(OneLevel) }

// NewNatLit builds a natural number literal.
func NewNatLit(n *big.Int) *Expr {
	return &Expr{Kind: ExprLit, Data: LitData{Lit: &Literal{Kind: LitNat, Nat: n}}}
}

// NewNatLitInt builds a natural number literal from a machine integer.
func NewNatLitInt(n int64) *Expr {
	return NewNatLit(big.NewInt(n))
}

// NewStrLit builds a string literal.
func NewStrLit(s string) *Expr {
	return &Expr{Kind: ExprLit, Data: LitData{Lit: &Literal{Kind: LitStr, Str: s}}}
}

// NewMeta builds a metavariable node with a fresh ID.
func NewMeta() *Expr {
	return NewMetaWithID(NextMetaID())
}

// NewMetaWithID builds a metavariable node with an explicit ID.
func NewMetaWithID(id uint64) *Expr {
	return &Expr{Kind: ExprMeta, Data: MetaData{ID: id}, flags: flagHasMeta}
}

// BVar returns the bound variable payload; the kind must match.
func (e *Expr) BVar() BVarData { return e.Data.(BVarData) }

// Local returns the local variable payload; the kind must match.
func (e *Expr) Local() LocalData { return e.Data.(LocalData) }

// Const returns the constant payload; the kind must match.
func (e *Expr) Const() ConstData { return e.Data.(ConstData) }

// App returns the application payload; the kind must match.
func (e *Expr) App() AppData { return e.Data.(AppData) }

// Binder returns the lambda or Pi payload; the kind must match.
func (e *Expr) Binder() BinderData { return e.Data.(BinderData) }

// Sort returns the sort payload; the kind must match.
func (e *Expr) Sort() SortData { return e.Data.(SortData) }

// Lit returns the literal payload; the kind must match.
func (e *Expr) Lit() LitData { return e.Data.(LitData) }

// Meta returns the metavariable payload; the kind must match.
func (e *Expr) Meta() MetaData { return e.Data.(MetaData) }

// IsBinder reports whether the node is a lambda or a Pi.
func (e *Expr) IsBinder() bool {
	return e.Kind == ExprLambda || e.Kind == ExprPi
}

// HasLooseBVars reports whether any bound variable escapes the tree.
func (e *Expr) HasLooseBVars() bool {
	return e.looseRange > 0
}

// LooseBVarRange returns one past the largest loose de Bruijn index.
func (e *Expr) LooseBVarRange() int {
	return e.looseRange
}

// HasMeta reports whether any metavariable occurs in the tree.
func (e *Expr) HasMeta() bool {
	return e.flags&flagHasMeta != 0
}

// HasLocal reports whether any free local variable occurs in the tree.
func (e *Expr) HasLocal() bool {
	return e.flags&flagHasLocal != 0
}

// HasLevelParam reports whether any universe parameter occurs in the tree.
func (e *Expr) HasLevelParam() bool {
	return e.flags&flagHasLevelParam != 0
}

// IsClosed reports whether the tree has no loose bound variables.
func (e *Expr) IsClosed() bool {
	return e.looseRange == 0
}
