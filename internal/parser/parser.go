package parser

import (
	"fmt"
	"math/big"

	"github.com/arbor-lang/arbor/internal/env"
	"github.com/arbor-lang/arbor/internal/kernel"
	"github.com/arbor-lang/arbor/internal/term"
)

// binder is one surface binder: a name, its type, and its bracket
// style. The type is parsed in the scope of all earlier binders.
type binder struct {
	typ  *term.Expr
	name term.Name
	info term.BinderInfo
}

// Parser turns a token stream into a batch of declarations.
type Parser struct {
	levels map[string]bool
	toks   []Token
	scope  []string
	pos    int
}

// Parse parses one .arb source file into declaration batch entries, in
// source order.
func Parse(src string) ([]*kernel.BatchEntry, error) {
	toks, err := NewLexer(src).Tokens()
	if err != nil {
		return nil, err
	}

	p := &Parser{toks: toks}

	var out []*kernel.BatchEntry

	for !p.atEOF() {
		entry, err := p.parseDecl()
		if err != nil {
			return nil, err
		}

		out = append(out, &entry)
	}

	return out, nil
}

func (p *Parser) peek() Token { return p.toks[p.pos] }

func (p *Parser) atEOF() bool { return p.peek().Kind == TokenEOF }

func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if t.Kind != TokenEOF {
		p.pos++
	}

	return t
}

func (p *Parser) at(kind TokenKind, text string) bool {
	t := p.peek()

	return t.Kind == kind && t.Text == text
}

func (p *Parser) accept(kind TokenKind, text string) bool {
	if p.at(kind, text) {
		p.pos++

		return true
	}

	return false
}

func (p *Parser) expect(kind TokenKind, text string) (Token, error) {
	t := p.peek()
	if t.Kind != kind || t.Text != text {
		return Token{}, fmt.Errorf("line %d:%d: expected %q, found %s", t.Line, t.Col, text, t)
	}

	return p.advance(), nil
}

func (p *Parser) expectIdent() (Token, error) {
	t := p.peek()
	if t.Kind != TokenIdent || t.Text == "_" {
		return Token{}, fmt.Errorf("line %d:%d: expected identifier, found %s", t.Line, t.Col, t)
	}

	return p.advance(), nil
}

func (p *Parser) errorf(format string, args ...any) error {
	t := p.peek()

	return fmt.Errorf("line %d:%d: %s", t.Line, t.Col, fmt.Sprintf(format, args...))
}

// parseDecl dispatches on the leading keyword.
func (p *Parser) parseDecl() (kernel.BatchEntry, error) {
	t := p.peek()
	if t.Kind != TokenKeyword {
		return kernel.BatchEntry{}, p.errorf("expected declaration keyword, found %s", t)
	}

	switch t.Text {
	case "axiom":
		return p.parseAxiom()
	case "def":
		return p.parseDef(env.DeclDefinition, false)
	case "theorem":
		return p.parseDef(env.DeclTheorem, false)
	case "instance":
		return p.parseDef(env.DeclDefinition, true)
	case "inductive":
		return p.parseInductive()
	default:
		return kernel.BatchEntry{}, p.errorf("expected declaration keyword, found %s", t)
	}
}

// header parses NAME followed by an optional .{u, v} level parameter
// list and resets the per-declaration level and binder scopes.
func (p *Parser) header() (term.Name, []term.Name, error) {
	nameTok, err := p.expectIdent()
	if err != nil {
		return "", nil, err
	}

	p.levels = map[string]bool{}
	p.scope = nil

	var params []term.Name

	if p.accept(TokenPunct, ".{") {
		for {
			u, err := p.expectIdent()
			if err != nil {
				return "", nil, err
			}

			if p.levels[u.Text] {
				return "", nil, fmt.Errorf("line %d:%d: duplicate level parameter %q", u.Line, u.Col, u.Text)
			}

			p.levels[u.Text] = true
			params = append(params, term.Name(u.Text))

			if !p.accept(TokenPunct, ",") {
				break
			}
		}

		if _, err := p.expect(TokenPunct, "}"); err != nil {
			return "", nil, err
		}
	}

	return term.Name(nameTok.Text), params, nil
}

func (p *Parser) parseAxiom() (kernel.BatchEntry, error) {
	p.advance() // axiom

	name, levelParams, err := p.header()
	if err != nil {
		return kernel.BatchEntry{}, err
	}

	if _, err := p.expect(TokenPunct, ":"); err != nil {
		return kernel.BatchEntry{}, err
	}

	typ, err := p.parseTerm()
	if err != nil {
		return kernel.BatchEntry{}, err
	}

	return kernel.BatchEntry{Decl: &env.Declaration{
		Name:        name,
		LevelParams: levelParams,
		Type:        typ,
		Kind:        env.DeclAxiom,
	}}, nil
}

// parseDef parses def, theorem, and instance declarations. An instance
// may carry an explicit priority numeral between the keyword and the
// name.
func (p *Parser) parseDef(kind env.DeclKind, instance bool) (kernel.BatchEntry, error) {
	p.advance() // def / theorem / instance

	priority := 0

	if instance && p.peek().Kind == TokenNumber {
		t := p.advance()
		if _, err := fmt.Sscan(t.Text, &priority); err != nil || priority <= 0 {
			return kernel.BatchEntry{}, fmt.Errorf("line %d:%d: bad instance priority %q", t.Line, t.Col, t.Text)
		}
	}

	name, levelParams, err := p.header()
	if err != nil {
		return kernel.BatchEntry{}, err
	}

	binders, err := p.parseBinderGroups()
	if err != nil {
		return kernel.BatchEntry{}, err
	}

	if _, err := p.expect(TokenPunct, ":"); err != nil {
		return kernel.BatchEntry{}, err
	}

	resultType, err := p.parseTerm()
	if err != nil {
		return kernel.BatchEntry{}, err
	}

	if _, err := p.expect(TokenPunct, ":="); err != nil {
		return kernel.BatchEntry{}, err
	}

	body, err := p.parseTerm()
	if err != nil {
		return kernel.BatchEntry{}, err
	}

	hint := env.ReducibilityDefault
	if kind == env.DeclTheorem {
		hint = env.ReducibilityIrreducible
	}

	return kernel.BatchEntry{
		Decl: &env.Declaration{
			Name:        name,
			LevelParams: levelParams,
			Type:        foldPis(binders, resultType),
			Value:       foldLambdas(binders, body),
			Kind:        kind,
			Hint:        hint,
		},
		Instance:         instance,
		InstancePriority: priority,
	}, nil
}

func (p *Parser) parseInductive() (kernel.BatchEntry, error) {
	p.advance() // inductive

	name, levelParams, err := p.header()
	if err != nil {
		return kernel.BatchEntry{}, err
	}

	params, err := p.parseBinderGroups()
	if err != nil {
		return kernel.BatchEntry{}, err
	}

	if _, err := p.expect(TokenPunct, ":"); err != nil {
		return kernel.BatchEntry{}, err
	}

	// The result sort, with any indices, in scope of the parameters.
	resultType, err := p.parseTerm()
	if err != nil {
		return kernel.BatchEntry{}, err
	}

	spec := &env.InductiveSpec{
		Name:        name,
		LevelParams: levelParams,
		Type:        foldPis(params, resultType),
		NumParams:   len(params),
	}

	// Constructor types are parsed with the parameters still in scope;
	// the shared parameter telescope is prepended afterwards.
	for p.accept(TokenPunct, "|") {
		ctorTok, err := p.expectIdent()
		if err != nil {
			return kernel.BatchEntry{}, err
		}

		if _, err := p.expect(TokenPunct, ":"); err != nil {
			return kernel.BatchEntry{}, err
		}

		ctorType, err := p.parseTerm()
		if err != nil {
			return kernel.BatchEntry{}, err
		}

		spec.Constructors = append(spec.Constructors, env.ConstructorSpec{
			Name: name.Child(ctorTok.Text),
			Type: foldPis(params, ctorType),
		})
	}

	return kernel.BatchEntry{Inductive: spec}, nil
}

// parseBinderGroups parses zero or more (x y : T), {x : T}, [x : T]
// groups, pushing every bound name onto the scope. The caller restores
// the scope.
func (p *Parser) parseBinderGroups() ([]binder, error) {
	var out []binder

	for {
		var closing string

		var info term.BinderInfo

		switch {
		case p.at(TokenPunct, "(") && p.binderAhead():
			closing, info = ")", term.BinderDefault
		case p.at(TokenPunct, "{"):
			closing, info = "}", term.BinderImplicit
		case p.at(TokenPunct, "["):
			closing, info = "]", term.BinderInstImplicit
		default:
			return out, nil
		}

		p.advance()

		var names []string

		for p.peek().Kind == TokenIdent {
			names = append(names, p.advance().Text)
		}

		if len(names) == 0 {
			return nil, p.errorf("expected binder name")
		}

		if _, err := p.expect(TokenPunct, ":"); err != nil {
			return nil, err
		}

		typ, err := p.parseTerm()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(TokenPunct, closing); err != nil {
			return nil, err
		}

		for i, n := range names {
			// Later names in a group share the type of the first; the
			// shared type must skip over the earlier binders.
			out = append(out, binder{
				name: term.Name(n),
				typ:  typ.LiftLooseBVars(0, i),
				info: info,
			})
			p.scope = append(p.scope, n)
		}
	}
}

// binderAhead reports whether the upcoming parenthesis opens a binder
// group rather than a parenthesized term: one or more identifiers
// followed by a colon.
func (p *Parser) binderAhead() bool {
	i := p.pos + 1
	seen := 0

	for i < len(p.toks) && p.toks[i].Kind == TokenIdent {
		i++
		seen++
	}

	return seen > 0 && i < len(p.toks) &&
		p.toks[i].Kind == TokenPunct && p.toks[i].Text == ":"
}

func foldPis(binders []binder, body *term.Expr) *term.Expr {
	for i := len(binders) - 1; i >= 0; i-- {
		body = term.NewPi(binders[i].name, binders[i].info, binders[i].typ, body)
	}

	return body
}

func foldLambdas(binders []binder, body *term.Expr) *term.Expr {
	for i := len(binders) - 1; i >= 0; i-- {
		body = term.NewLambda(binders[i].name, binders[i].info, binders[i].typ, body)
	}

	return body
}

// parseTerm parses a full term: lambdas, foralls, and arrows.
func (p *Parser) parseTerm() (*term.Expr, error) {
	switch {
	case p.at(TokenKeyword, "fun"):
		p.advance()

		return p.parseBound(foldLambdas, "=>")
	case p.at(TokenKeyword, "forall"):
		p.advance()

		return p.parseBound(foldPis, ",")
	default:
		return p.parseArrow()
	}
}

// parseBound parses the binder groups and body shared by fun and
// forall.
func (p *Parser) parseBound(fold func([]binder, *term.Expr) *term.Expr, sep string) (*term.Expr, error) {
	mark := len(p.scope)

	binders, err := p.parseBinderGroups()
	if err != nil {
		return nil, err
	}

	if len(binders) == 0 {
		return nil, p.errorf("expected at least one binder")
	}

	if _, err := p.expect(TokenPunct, sep); err != nil {
		return nil, err
	}

	body, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	p.scope = p.scope[:mark]

	return fold(binders, body), nil
}

// parseArrow parses an application chain, optionally followed by ->
// and a codomain. A leading (x : T) binder group forms a dependent
// arrow.
func (p *Parser) parseArrow() (*term.Expr, error) {
	if p.at(TokenPunct, "(") && p.binderAhead() {
		mark := len(p.scope)

		binders, err := p.parseBinderGroups()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(TokenPunct, "->"); err != nil {
			return nil, err
		}

		body, err := p.parseTerm()
		if err != nil {
			return nil, err
		}

		p.scope = p.scope[:mark]

		return foldPis(binders, body), nil
	}

	dom, err := p.parseApp()
	if err != nil {
		return nil, err
	}

	if p.accept(TokenPunct, "->") {
		cod, err := p.parseTerm()
		if err != nil {
			return nil, err
		}

		return term.NewArrow(dom, cod), nil
	}

	return dom, nil
}

func (p *Parser) parseApp() (*term.Expr, error) {
	fn, err := p.parseAtom()
	if err != nil {
		return nil, err
	}

	for p.atAtomStart() {
		arg, err := p.parseAtom()
		if err != nil {
			return nil, err
		}

		fn = term.NewApp(fn, arg)
	}

	return fn, nil
}

func (p *Parser) atAtomStart() bool {
	t := p.peek()

	switch t.Kind {
	case TokenIdent, TokenNumber, TokenString:
		return true
	case TokenKeyword:
		return t.Text == "Prop" || t.Text == "Type" || t.Text == "Sort"
	case TokenPunct:
		return t.Text == "("
	default:
		return false
	}
}

func (p *Parser) parseAtom() (*term.Expr, error) {
	t := p.peek()

	switch {
	case t.Kind == TokenIdent && t.Text == "_":
		p.advance()

		return term.NewMeta(), nil
	case t.Kind == TokenIdent:
		p.advance()

		return p.resolveIdent(t)
	case t.Kind == TokenNumber:
		p.advance()

		n, ok := new(big.Int).SetString(t.Text, 10)
		if !ok {
			return nil, fmt.Errorf("line %d:%d: bad numeral %q", t.Line, t.Col, t.Text)
		}

		return term.NewNatLit(n), nil
	case t.Kind == TokenString:
		p.advance()

		return term.NewStrLit(t.Text), nil
	case p.at(TokenKeyword, "Prop"):
		p.advance()

		return term.Prop(), nil
	case p.at(TokenKeyword, "Type"):
		p.advance()

		return p.parseTypeSort()
	case p.at(TokenKeyword, "Sort"):
		p.advance()

		l, err := p.parseLevel()
		if err != nil {
			return nil, err
		}

		return term.NewSort(l), nil
	case p.accept(TokenPunct, "("):
		inner, err := p.parseTerm()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(TokenPunct, ")"); err != nil {
			return nil, err
		}

		return inner, nil
	default:
		return nil, p.errorf("expected term, found %s", t)
	}
}

// parseTypeSort handles the Type atom. A following numeral or level
// parameter name is taken as the level; bare Type means Sort 1.
func (p *Parser) parseTypeSort() (*term.Expr, error) {
	t := p.peek()

	levelFollows := t.Kind == TokenNumber ||
		(t.Kind == TokenIdent && p.levels[t.Text])
	if !levelFollows {
		return term.TypeU(), nil
	}

	l, err := p.parseLevel()
	if err != nil {
		return nil, err
	}

	return term.NewSort(term.NewSucc(l)), nil
}

// resolveIdent maps a name either to a bound variable (innermost
// binding wins) or to a constant with optional level arguments.
func (p *Parser) resolveIdent(t Token) (*term.Expr, error) {
	for i := len(p.scope) - 1; i >= 0; i-- {
		if p.scope[i] == t.Text {
			return term.NewBVar(len(p.scope) - 1 - i), nil
		}
	}

	var levels []*term.Level

	if p.accept(TokenPunct, ".{") {
		for {
			l, err := p.parseLevel()
			if err != nil {
				return nil, err
			}

			levels = append(levels, l)

			if !p.accept(TokenPunct, ",") {
				break
			}
		}

		if _, err := p.expect(TokenPunct, "}"); err != nil {
			return nil, err
		}
	}

	return term.NewConst(term.Name(t.Text), levels...), nil
}

// parseLevel parses a universe level: a numeral, a level parameter,
// max(a, b), imax(a, b), or a parenthesized level, with an optional +n
// offset.
func (p *Parser) parseLevel() (*term.Level, error) {
	l, err := p.parseLevelAtom()
	if err != nil {
		return nil, err
	}

	if p.accept(TokenPunct, "+") {
		t := p.peek()
		if t.Kind != TokenNumber {
			return nil, p.errorf("expected numeral after +, found %s", t)
		}

		p.advance()

		var n int
		if _, err := fmt.Sscan(t.Text, &n); err != nil || n < 0 {
			return nil, fmt.Errorf("line %d:%d: bad level offset %q", t.Line, t.Col, t.Text)
		}

		for i := 0; i < n; i++ {
			l = term.NewSucc(l)
		}
	}

	return l, nil
}

func (p *Parser) parseLevelAtom() (*term.Level, error) {
	t := p.peek()

	switch {
	case t.Kind == TokenNumber:
		p.advance()

		var n int
		if _, err := fmt.Sscan(t.Text, &n); err != nil || n < 0 {
			return nil, fmt.Errorf("line %d:%d: bad level numeral %q", t.Line, t.Col, t.Text)
		}

		return term.LevelOfNat(n), nil
	case t.Kind == TokenIdent:
		p.advance()

		if !p.levels[t.Text] {
			return nil, fmt.Errorf("line %d:%d: unknown level parameter %q", t.Line, t.Col, t.Text)
		}

		return term.NewLevelParam(term.Name(t.Text)), nil
	case p.at(TokenKeyword, "max") || p.at(TokenKeyword, "imax"):
		imax := t.Text == "imax"

		p.advance()

		if _, err := p.expect(TokenPunct, "("); err != nil {
			return nil, err
		}

		a, err := p.parseLevel()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(TokenPunct, ","); err != nil {
			return nil, err
		}

		b, err := p.parseLevel()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(TokenPunct, ")"); err != nil {
			return nil, err
		}

		if imax {
			return term.NewIMax(a, b), nil
		}

		return term.NewMax(a, b), nil
	case p.accept(TokenPunct, "("):
		l, err := p.parseLevel()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(TokenPunct, ")"); err != nil {
			return nil, err
		}

		return l, nil
	default:
		return nil, p.errorf("expected universe level, found %s", t)
	}
}
