// Package lexer turns a kvasir source buffer into a token stream, per
// spec.md §4.A.
package lexer

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"

	"github.com/sunholo/kvasir/internal/kerrors"
	"github.com/sunholo/kvasir/internal/token"
)

// Lexer tokenizes kvasir source code one byte-buffer at a time.
type Lexer struct {
	input        string
	file         string
	position     int
	readPosition int
	ch           rune
	line         int
	column       int
}

// New creates a Lexer over input, attributing spans to file. input is
// normalized (BOM stripped, NFC-applied) before lexing begins.
func New(input string, file string) *Lexer {
	normalized := string(Normalize([]byte(input)))
	l := &Lexer{input: normalized, file: file, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		return
	}
	ch, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.position = l.readPosition
	l.readPosition += size
	l.column += runeColumns(l.ch)
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	l.ch = ch
}

// runeColumns reports how many terminal columns r occupies, so that a
// diagnostic's `:line:col:` prefix lands under the right character even
// when the source contains East Asian wide or fullwidth runes (identifiers
// are otherwise unrestricted Unicode at the lexical level).
func runeColumns(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	ch, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return ch
}

func (l *Lexer) span(start int, line, col int) token.Span {
	return token.Span{File: l.file, Start: start, End: l.position, Line: line, Col: col}
}

// Lex runs the lexer to completion, returning every token including a
// trailing EOF, or the first LexError encountered.
func Lex(input string, file string) ([]token.Token, error) {
	l := New(input, file)
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks, nil
		}
	}
}

// Next returns the next token, or a kerrors LexError-tagged error.
func (l *Lexer) Next() (token.Token, error) {
	l.skipWhitespaceAndComments()

	startPos, line, col := l.position, l.line, l.column

	switch {
	case l.ch == 0:
		return token.Token{Kind: token.EOF, Span: l.span(startPos, line, col)}, nil
	case l.ch == '(':
		l.readChar()
		return token.Token{Kind: token.LParen, Span: l.span(startPos, line, col)}, nil
	case l.ch == ')':
		l.readChar()
		return token.Token{Kind: token.RParen, Span: l.span(startPos, line, col)}, nil
	case l.ch == '[':
		l.readChar()
		return token.Token{Kind: token.LBracket, Span: l.span(startPos, line, col)}, nil
	case l.ch == ']':
		l.readChar()
		return token.Token{Kind: token.RBracket, Span: l.span(startPos, line, col)}, nil
	case l.ch == '"':
		return l.readString(startPos, line, col)
	case isDigit(l.ch) || (isSign(l.ch) && isDigit(l.peekChar())):
		return l.readNumber(startPos, line, col)
	case isSymbolStart(l.ch):
		return l.readSymbol(startPos, line, col)
	default:
		span := l.span(startPos, line, col)
		return token.Token{}, kerrors.New(kerrors.PhaseLex, kerrors.LEX004, span,
			"unexpected byte %q", l.ch)
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == ';' {
			// ";" through ";;;;" are equivalent line comments.
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		return
	}
}

func (l *Lexer) readString(startPos, line, col int) (token.Token, error) {
	l.readChar() // consume opening quote
	var sb strings.Builder
	for {
		if l.ch == 0 {
			span := l.span(startPos, line, col)
			return token.Token{}, kerrors.New(kerrors.PhaseLex, kerrors.LEX001, span,
				"unterminated string literal")
		}
		if l.ch == '"' {
			l.readChar()
			break
		}
		if l.ch == '\\' {
			switch l.peekChar() {
			case '"':
				sb.WriteRune('"')
			case '\\':
				sb.WriteRune('\\')
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			default:
				span := l.span(startPos, line, col)
				return token.Token{}, kerrors.New(kerrors.PhaseLex, kerrors.LEX002, span,
					"unknown escape sequence \\%c", l.peekChar())
			}
			l.readChar()
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	return token.Token{Kind: token.String, Span: l.span(startPos, line, col), StrVal: sb.String()}, nil
}

func (l *Lexer) readNumber(startPos, line, col int) (token.Token, error) {
	var sb strings.Builder
	if isSign(l.ch) {
		sb.WriteRune(l.ch)
		l.readChar()
	}
	for isDigit(l.ch) {
		sb.WriteRune(l.ch)
		l.readChar()
	}
	isFloat := false
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		sb.WriteRune(l.ch)
		l.readChar()
		for isDigit(l.ch) {
			sb.WriteRune(l.ch)
			l.readChar()
		}
	} else if l.ch == '.' {
		// Trailing '.' with no digits after is malformed, not a field access
		// (this language has no field syntax at the lexical level).
		span := l.span(startPos, line, col)
		return token.Token{}, kerrors.New(kerrors.PhaseLex, kerrors.LEX003, span,
			"malformed numeric literal %q", sb.String()+".")
	}
	span := l.span(startPos, line, col)
	lit := sb.String()
	if isFloat {
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return token.Token{}, kerrors.New(kerrors.PhaseLex, kerrors.LEX003, span,
				"malformed numeric literal %q", lit)
		}
		return token.Token{Kind: token.Float, Span: span, FloatVal: f}, nil
	}
	n, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		return token.Token{}, kerrors.New(kerrors.PhaseLex, kerrors.LEX003, span,
			"malformed numeric literal %q", lit)
	}
	return token.Token{Kind: token.Int, Span: span, IntVal: n}, nil
}

func (l *Lexer) readSymbol(startPos, line, col int) (token.Token, error) {
	var sb strings.Builder
	for isSymbolStart(l.ch) || isDigit(l.ch) {
		sb.WriteRune(l.ch)
		l.readChar()
	}
	lit := sb.String()
	span := l.span(startPos, line, col)
	switch lit {
	case "true":
		return token.Token{Kind: token.Bool, Span: span, BoolVal: true}, nil
	case "false":
		return token.Token{Kind: token.Bool, Span: span, BoolVal: false}, nil
	case "nil":
		return token.Token{Kind: token.Nil, Span: span}, nil
	default:
		return token.Token{Kind: token.Symbol, Span: span, Sym: lit}, nil
	}
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }
func isSign(ch rune) bool  { return ch == '+' || ch == '-' }

func isSymbolStart(ch rune) bool {
	switch ch {
	case '(', ')', '[', ']', '"', 0, ' ', '\t', '\n', '\r', ';':
		return false
	default:
		return ch > ' '
	}
}
