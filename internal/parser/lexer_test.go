package parser

import (
	"testing"
)

func lex(t *testing.T, src string) []Token {
	t.Helper()

	toks, err := NewLexer(src).Tokens()
	if err != nil {
		t.Fatalf("lex %q: %v", src, err)
	}

	return toks
}

func TestLexerKinds(t *testing.T) {
	toks := lex(t, `def one : Nat := Nat.succ 0`)

	want := []struct {
		text string
		kind TokenKind
	}{
		{"def", TokenKeyword},
		{"one", TokenIdent},
		{":", TokenPunct},
		{"Nat", TokenIdent},
		{":=", TokenPunct},
		{"Nat.succ", TokenIdent},
		{"0", TokenNumber},
		{"", TokenEOF},
	}

	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}

	for i, w := range want {
		if toks[i].Kind != w.kind || toks[i].Text != w.text {
			t.Errorf("token %d = %v %q, want %v %q", i, toks[i].Kind, toks[i].Text, w.kind, w.text)
		}
	}
}

func TestLexerDottedIdentStopsBeforeLevelList(t *testing.T) {
	// List.{u} must lex as an identifier followed by the .{ punct, while
	// List.nil stays one dotted identifier.
	toks := lex(t, "List.{u} List.nil")

	if toks[0].Text != "List" || toks[0].Kind != TokenIdent {
		t.Fatalf("token 0 = %q, want List", toks[0].Text)
	}

	if toks[1].Text != ".{" || toks[1].Kind != TokenPunct {
		t.Fatalf("token 1 = %q, want .{", toks[1].Text)
	}

	if toks[4].Text != "List.nil" || toks[4].Kind != TokenIdent {
		t.Fatalf("token 4 = %q, want List.nil", toks[4].Text)
	}
}

func TestLexerSkipsComments(t *testing.T) {
	toks := lex(t, "-- leading comment\naxiom -- trailing\nx")

	if len(toks) != 3 {
		t.Fatalf("got %d tokens, want 3: %v", len(toks), toks)
	}

	if toks[0].Text != "axiom" || toks[1].Text != "x" {
		t.Fatalf("tokens = %v, want axiom x", toks)
	}
}

func TestLexerPositions(t *testing.T) {
	toks := lex(t, "axiom\n  x")

	if toks[0].Line != 1 || toks[0].Col != 1 {
		t.Errorf("axiom at %d:%d, want 1:1", toks[0].Line, toks[0].Col)
	}

	if toks[1].Line != 2 || toks[1].Col != 3 {
		t.Errorf("x at %d:%d, want 2:3", toks[1].Line, toks[1].Col)
	}
}

func TestLexerStringEscapes(t *testing.T) {
	toks := lex(t, `"a\nb\t\"\\"`)

	if toks[0].Kind != TokenString {
		t.Fatalf("kind = %v, want string", toks[0].Kind)
	}

	if want := "a\nb\t\"\\"; toks[0].Text != want {
		t.Fatalf("text = %q, want %q", toks[0].Text, want)
	}
}

func TestLexerErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"unterminated string", `"abc`},
		{"unknown escape", `"\q"`},
		{"unexpected character", "axiom @"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewLexer(tc.src).Tokens(); err == nil {
				t.Fatalf("lex %q succeeded, want error", tc.src)
			}
		})
	}
}
