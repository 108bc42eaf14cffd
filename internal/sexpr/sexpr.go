// Package sexpr implements the reader (spec.md §4.B): tokens to an untyped
// tree of atoms and lists. Brackets and parens are interchangeable except
// that an opening delimiter must be closed by its own kind.
package sexpr

import (
	"strings"

	"github.com/sunholo/kvasir/internal/kerrors"
	"github.com/sunholo/kvasir/internal/token"
)

// Sexpr is either an Atom or a List.
type Sexpr interface {
	Span() token.Span
	String() string
}

// Atom wraps a single literal/symbol token.
type Atom struct {
	Tok token.Token
}

func (a *Atom) Span() token.Span { return a.Tok.Span }
func (a *Atom) String() string   { return a.Tok.String() }

// List is a parenthesized sequence of child Sexprs.
type List struct {
	Children []Sexpr
	Sp       token.Span
	Bracket  token.Kind // token.LParen or token.LBracket: the opening delimiter used
}

func (l *List) Span() token.Span { return l.Sp }
func (l *List) String() string {
	parts := make([]string, len(l.Children))
	for i, c := range l.Children {
		parts[i] = c.String()
	}
	open, close := "(", ")"
	if l.Bracket == token.LBracket {
		open, close = "[", "]"
	}
	return open + strings.Join(parts, " ") + close
}

// Reader consumes a pre-lexed token stream and produces top-level Sexprs.
type Reader struct {
	toks []token.Token
	pos  int
}

// New creates a Reader over a complete token stream (as produced by lexer.Lex).
func New(toks []token.Token) *Reader {
	return &Reader{toks: toks}
}

// ReadAll reads every top-level form until EOF.
func ReadAll(toks []token.Token) ([]Sexpr, error) {
	r := New(toks)
	var forms []Sexpr
	for !r.atEOF() {
		s, err := r.readOne()
		if err != nil {
			return nil, err
		}
		forms = append(forms, s)
	}
	return forms, nil
}

func (r *Reader) atEOF() bool {
	return r.pos >= len(r.toks) || r.toks[r.pos].Kind == token.EOF
}

func (r *Reader) peek() token.Token { return r.toks[r.pos] }

func (r *Reader) advance() token.Token {
	t := r.toks[r.pos]
	if r.pos < len(r.toks)-1 {
		r.pos++
	}
	return t
}

func (r *Reader) readOne() (Sexpr, error) {
	if r.atEOF() {
		span := r.peek().Span
		return nil, kerrors.New(kerrors.PhaseRead, kerrors.RD002, span, "unexpected EOF")
	}
	tok := r.peek()
	switch tok.Kind {
	case token.LParen, token.LBracket:
		return r.readList(tok.Kind)
	case token.RParen, token.RBracket:
		return nil, kerrors.New(kerrors.PhaseRead, kerrors.RD001, tok.Span,
			"unexpected closing delimiter %q", tok.Kind.String())
	default:
		r.advance()
		return &Atom{Tok: tok}, nil
	}
}

func (r *Reader) readList(open token.Kind) (Sexpr, error) {
	start := r.advance() // consume opening delimiter
	wantClose := token.RParen
	if open == token.LBracket {
		wantClose = token.RBracket
	}
	var children []Sexpr
	for {
		if r.atEOF() {
			return nil, kerrors.New(kerrors.PhaseRead, kerrors.RD002, start.Span,
				"unexpected EOF: unclosed %q", open.String())
		}
		tok := r.peek()
		if tok.Kind == token.RParen || tok.Kind == token.RBracket {
			if tok.Kind != wantClose {
				return nil, kerrors.New(kerrors.PhaseRead, kerrors.RD001, tok.Span,
					"bracket mismatch: opened with %q, closed with %q", open.String(), tok.Kind.String())
			}
			end := r.advance()
			return &List{Children: children, Sp: start.Span.Merge(end.Span), Bracket: open}, nil
		}
		child, err := r.readOne()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
}

// AsList type-asserts s as a *List, reporting ok=false otherwise; used
// throughout the expander, which expects list-shaped forms.
func AsList(s Sexpr) (*List, bool) {
	l, ok := s.(*List)
	return l, ok
}

// AsSymbol returns the atom's symbol name, if s is a bare Symbol atom.
func AsSymbol(s Sexpr) (string, bool) {
	a, ok := s.(*Atom)
	if !ok || a.Tok.Kind != token.Symbol {
		return "", false
	}
	return a.Tok.Sym, true
}
