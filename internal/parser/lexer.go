// Package parser reads .arb declaration files: a small surface syntax
// for axioms, definitions, inductive types, and instances over a
// lambda-calculus term language. The parser is untrusted; everything
// it produces goes through the kernel session like any other input.
package parser

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenKind discriminates lexical tokens.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenNumber
	TokenString
	TokenKeyword
	TokenPunct
)

// Token is one lexical token with its source position.
type Token struct {
	Text string
	Kind TokenKind
	Line int
	Col  int
}

func (t Token) String() string {
	if t.Kind == TokenEOF {
		return "end of input"
	}

	return fmt.Sprintf("%q", t.Text)
}

var keywords = map[string]bool{
	"axiom":     true,
	"def":       true,
	"theorem":   true,
	"inductive": true,
	"instance":  true,
	"fun":       true,
	"forall":    true,
	"Prop":      true,
	"Type":      true,
	"Sort":      true,
	"max":       true,
	"imax":      true,
}

// Multi-rune punctuation must come before its prefixes.
var puncts = []string{":=", "=>", "->", ".{", "(", ")", "{", "}", "[", "]", ":", ",", "|", "+"}

// Lexer splits source text into tokens.
type Lexer struct {
	src  []rune
	pos  int
	line int
	col  int
}

// NewLexer creates a lexer over the source text.
func NewLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), line: 1, col: 1}
}

// Tokens lexes the whole input. The returned slice always ends with a
// TokenEOF token.
func (l *Lexer) Tokens() ([]Token, error) {
	var out []Token

	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}

		out = append(out, tok)

		if tok.Kind == TokenEOF {
			return out, nil
		}
	}
}

func (l *Lexer) peekRune() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}

	return l.src[l.pos], true
}

func (l *Lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}

	return r
}

func (l *Lexer) skipSpaceAndComments() {
	for {
		r, ok := l.peekRune()
		if !ok {
			return
		}

		if unicode.IsSpace(r) {
			l.advance()

			continue
		}

		// Line comments start with --.
		if r == '-' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '-' {
			for {
				r, ok := l.peekRune()
				if !ok || r == '\n' {
					break
				}

				l.advance()
			}

			continue
		}

		return
	}
}

func (l *Lexer) next() (Token, error) {
	l.skipSpaceAndComments()

	line, col := l.line, l.col

	r, ok := l.peekRune()
	if !ok {
		return Token{Kind: TokenEOF, Line: line, Col: col}, nil
	}

	switch {
	case isIdentStart(r):
		text := l.lexIdent()
		kind := TokenIdent

		if keywords[text] {
			kind = TokenKeyword
		}

		return Token{Kind: kind, Text: text, Line: line, Col: col}, nil
	case unicode.IsDigit(r):
		var sb strings.Builder

		for {
			r, ok := l.peekRune()
			if !ok || !unicode.IsDigit(r) {
				break
			}

			sb.WriteRune(l.advance())
		}

		return Token{Kind: TokenNumber, Text: sb.String(), Line: line, Col: col}, nil
	case r == '"':
		text, err := l.lexString()
		if err != nil {
			return Token{}, err
		}

		return Token{Kind: TokenString, Text: text, Line: line, Col: col}, nil
	default:
		for _, p := range puncts {
			if l.hasPrefix(p) {
				for range p {
					l.advance()
				}

				return Token{Kind: TokenPunct, Text: p, Line: line, Col: col}, nil
			}
		}

		return Token{}, fmt.Errorf("line %d:%d: unexpected character %q", line, col, r)
	}
}

// lexIdent consumes a possibly dotted identifier. A dot continues the
// identifier only when followed by another identifier character, so a
// trailing ".{" level-argument list is left for the punctuation rules.
func (l *Lexer) lexIdent() string {
	var sb strings.Builder

	sb.WriteRune(l.advance())

	for {
		r, ok := l.peekRune()
		if !ok {
			break
		}

		if isIdentPart(r) {
			sb.WriteRune(l.advance())

			continue
		}

		if r == '.' && l.pos+1 < len(l.src) && isIdentStart(l.src[l.pos+1]) {
			sb.WriteRune(l.advance())

			continue
		}

		break
	}

	return sb.String()
}

func (l *Lexer) lexString() (string, error) {
	line, col := l.line, l.col
	l.advance() // opening quote

	var sb strings.Builder

	for {
		r, ok := l.peekRune()
		if !ok {
			return "", fmt.Errorf("line %d:%d: unterminated string literal", line, col)
		}

		l.advance()

		switch r {
		case '"':
			return sb.String(), nil
		case '\\':
			esc, ok := l.peekRune()
			if !ok {
				return "", fmt.Errorf("line %d:%d: unterminated string literal", line, col)
			}

			l.advance()

			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case '"', '\\':
				sb.WriteRune(esc)
			default:
				return "", fmt.Errorf("line %d:%d: unknown escape \\%c", line, col, esc)
			}
		default:
			sb.WriteRune(r)
		}
	}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '\''
}

func (l *Lexer) hasPrefix(p string) bool {
	for i, r := range p {
		if l.pos+i >= len(l.src) || l.src[l.pos+i] != r {
			return false
		}
	}

	return true
}
