// Package export serializes a kernel environment to a line-delimited
// JSON stream and reads it back. The first line is a header carrying a
// semantic format version; readers accept any stream whose version they
// are backward compatible with. Output is deterministic: declarations
// appear in environment insertion order.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/Masterminds/semver/v3"

	"github.com/arbor-lang/arbor/internal/env"
	"github.com/arbor-lang/arbor/internal/term"
)

// FormatName identifies the stream format in the header line.
const FormatName = "arbor-env"

// FormatVersion is the version written by this package. Bump the major
// on incompatible encoding changes.
const FormatVersion = "1.0.0"

// Header is the first line of an export stream.
type Header struct {
	Format  string `json:"format"`
	Version string `json:"version"`
}

// Decl is the line form of one declaration.
type Decl struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	LevelParams []string `json:"levelParams,omitempty"`
	Type        *Node    `json:"type"`
	Value       *Node    `json:"value,omitempty"`
	Hint        string   `json:"hint,omitempty"`
	NumParams   int      `json:"numParams,omitempty"`
}

// Node is the JSON form of a term. Exactly the fields for its kind are
// set.
type Node struct {
	K      string  `json:"k"`
	Idx    *int    `json:"idx,omitempty"`
	Name   string  `json:"name,omitempty"`
	Levels []*Lvl  `json:"levels,omitempty"`
	Fn     *Node   `json:"fn,omitempty"`
	Arg    *Node   `json:"arg,omitempty"`
	Binder string  `json:"binder,omitempty"`
	Info   string  `json:"info,omitempty"`
	Type   *Node   `json:"type,omitempty"`
	Body   *Node   `json:"body,omitempty"`
	Level  *Lvl    `json:"level,omitempty"`
	Nat    string  `json:"nat,omitempty"`
	Str    *string `json:"str,omitempty"`
}

// Lvl is the JSON form of a universe level.
type Lvl struct {
	K     string `json:"k"`
	Name  string `json:"name,omitempty"`
	Left  *Lvl   `json:"left,omitempty"`
	Right *Lvl   `json:"right,omitempty"`
}

// Write dumps the snapshot to w, one JSON object per line.
func Write(w io.Writer, snap *env.Snapshot) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	if err := enc.Encode(Header{Format: FormatName, Version: FormatVersion}); err != nil {
		return err
	}

	for _, d := range snap.Declarations() {
		line, err := encodeDecl(d)
		if err != nil {
			return fmt.Errorf("export %s: %w", d.Name, err)
		}

		if err := enc.Encode(line); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Read parses an export stream into declaration lines, verifying the
// header first.
func Read(r io.Reader) ([]Decl, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}

		return nil, fmt.Errorf("empty export stream")
	}

	var hdr Header
	if err := json.Unmarshal(sc.Bytes(), &hdr); err != nil {
		return nil, fmt.Errorf("bad export header: %w", err)
	}

	if err := CheckVersion(hdr); err != nil {
		return nil, err
	}

	var out []Decl

	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}

		var d Decl
		if err := json.Unmarshal(sc.Bytes(), &d); err != nil {
			return nil, fmt.Errorf("bad export line: %w", err)
		}

		out = append(out, d)
	}

	return out, sc.Err()
}

// CheckVersion verifies that a header names this format at a version
// this reader understands: same major, not newer than FormatVersion.
func CheckVersion(hdr Header) error {
	if hdr.Format != FormatName {
		return fmt.Errorf("unknown export format %q", hdr.Format)
	}

	v, err := semver.NewVersion(hdr.Version)
	if err != nil {
		return fmt.Errorf("bad export version %q: %w", hdr.Version, err)
	}

	supported := semver.MustParse(FormatVersion)

	if v.Major() != supported.Major() || v.GreaterThan(supported) {
		return fmt.Errorf("unsupported export version %s (reader supports %s)", v, supported)
	}

	return nil
}

func encodeDecl(d *env.Declaration) (Decl, error) {
	typ, err := encodeExpr(d.Type)
	if err != nil {
		return Decl{}, err
	}

	out := Decl{
		Name: string(d.Name),
		Kind: d.Kind.String(),
		Type: typ,
	}

	for _, p := range d.LevelParams {
		out.LevelParams = append(out.LevelParams, string(p))
	}

	if d.Value != nil {
		v, err := encodeExpr(d.Value)
		if err != nil {
			return Decl{}, err
		}

		out.Value = v
	}

	if d.Hint != env.ReducibilityDefault {
		out.Hint = d.Hint.String()
	}

	if d.Inductive != nil {
		out.NumParams = d.Inductive.NumParams
	}

	return out, nil
}

func encodeExpr(e *term.Expr) (*Node, error) {
	switch e.Kind {
	case term.ExprBVar:
		idx := e.BVar().Idx

		return &Node{K: "bvar", Idx: &idx}, nil
	case term.ExprConst:
		c := e.Const()
		n := &Node{K: "const", Name: string(c.Name)}

		for _, l := range c.Levels {
			n.Levels = append(n.Levels, encodeLevel(l))
		}

		return n, nil
	case term.ExprApp:
		a := e.App()

		fn, err := encodeExpr(a.Fn)
		if err != nil {
			return nil, err
		}

		arg, err := encodeExpr(a.Arg)
		if err != nil {
			return nil, err
		}

		return &Node{K: "app", Fn: fn, Arg: arg}, nil
	case term.ExprLambda, term.ExprPi:
		b := e.Binder()

		typ, err := encodeExpr(b.Type)
		if err != nil {
			return nil, err
		}

		body, err := encodeExpr(b.Body)
		if err != nil {
			return nil, err
		}

		k := "lam"
		if e.Kind == term.ExprPi {
			k = "pi"
		}

		return &Node{
			K:      k,
			Binder: string(b.Name),
			Info:   binderInfoString(b.Info),
			Type:   typ,
			Body:   body,
		}, nil
	case term.ExprSort:
		return &Node{K: "sort", Level: encodeLevel(e.Sort().Level)}, nil
	case term.ExprLit:
		lit := e.Lit().Lit
		if lit.Kind == term.LitNat {
			return &Node{K: "lit", Nat: lit.Nat.String()}, nil
		}

		s := lit.Str

		return &Node{K: "lit", Str: &s}, nil
	case term.ExprLocal, term.ExprMeta:
		// Committed declarations are closed; these never appear.
		return nil, fmt.Errorf("cannot export open term node %v", e.Kind)
	default:
		return nil, fmt.Errorf("cannot export term node %v", e.Kind)
	}
}

func encodeLevel(l *term.Level) *Lvl {
	switch l.Kind {
	case term.LevelZero:
		return &Lvl{K: "zero"}
	case term.LevelSucc:
		return &Lvl{K: "succ", Left: encodeLevel(l.Left)}
	case term.LevelMax:
		return &Lvl{K: "max", Left: encodeLevel(l.Left), Right: encodeLevel(l.Right)}
	case term.LevelIMax:
		return &Lvl{K: "imax", Left: encodeLevel(l.Left), Right: encodeLevel(l.Right)}
	default:
		return &Lvl{K: "param", Name: string(l.Name)}
	}
}

func binderInfoString(info term.BinderInfo) string {
	switch info {
	case term.BinderImplicit:
		return "implicit"
	case term.BinderInstImplicit:
		return "inst"
	default:
		return "default"
	}
}

// DecodeExpr rebuilds a term from its JSON node form.
func DecodeExpr(n *Node) (*term.Expr, error) {
	if n == nil {
		return nil, fmt.Errorf("missing term node")
	}

	switch n.K {
	case "bvar":
		if n.Idx == nil {
			return nil, fmt.Errorf("bvar node without idx")
		}

		return term.NewBVar(*n.Idx), nil
	case "const":
		levels := make([]*term.Level, 0, len(n.Levels))

		for _, l := range n.Levels {
			dl, err := decodeLevel(l)
			if err != nil {
				return nil, err
			}

			levels = append(levels, dl)
		}

		return term.NewConst(term.Name(n.Name), levels...), nil
	case "app":
		fn, err := DecodeExpr(n.Fn)
		if err != nil {
			return nil, err
		}

		arg, err := DecodeExpr(n.Arg)
		if err != nil {
			return nil, err
		}

		return term.NewApp(fn, arg), nil
	case "lam", "pi":
		typ, err := DecodeExpr(n.Type)
		if err != nil {
			return nil, err
		}

		body, err := DecodeExpr(n.Body)
		if err != nil {
			return nil, err
		}

		info, err := decodeBinderInfo(n.Info)
		if err != nil {
			return nil, err
		}

		if n.K == "lam" {
			return term.NewLambda(term.Name(n.Binder), info, typ, body), nil
		}

		return term.NewPi(term.Name(n.Binder), info, typ, body), nil
	case "sort":
		l, err := decodeLevel(n.Level)
		if err != nil {
			return nil, err
		}

		return term.NewSort(l), nil
	case "lit":
		if n.Str != nil {
			return term.NewStrLit(*n.Str), nil
		}

		v, ok := new(big.Int).SetString(n.Nat, 10)
		if !ok {
			return nil, fmt.Errorf("bad nat literal %q", n.Nat)
		}

		return term.NewNatLit(v), nil
	default:
		return nil, fmt.Errorf("unknown term node kind %q", n.K)
	}
}

func decodeLevel(l *Lvl) (*term.Level, error) {
	if l == nil {
		return nil, fmt.Errorf("missing level node")
	}

	switch l.K {
	case "zero":
		return term.ZeroLevel, nil
	case "succ":
		inner, err := decodeLevel(l.Left)
		if err != nil {
			return nil, err
		}

		return term.NewSucc(inner), nil
	case "max", "imax":
		left, err := decodeLevel(l.Left)
		if err != nil {
			return nil, err
		}

		right, err := decodeLevel(l.Right)
		if err != nil {
			return nil, err
		}

		if l.K == "imax" {
			return term.NewIMax(left, right), nil
		}

		return term.NewMax(left, right), nil
	case "param":
		return term.NewLevelParam(term.Name(l.Name)), nil
	default:
		return nil, fmt.Errorf("unknown level node kind %q", l.K)
	}
}

func decodeBinderInfo(s string) (term.BinderInfo, error) {
	switch s {
	case "", "default":
		return term.BinderDefault, nil
	case "implicit":
		return term.BinderImplicit, nil
	case "inst":
		return term.BinderInstImplicit, nil
	default:
		return 0, fmt.Errorf("unknown binder info %q", s)
	}
}
