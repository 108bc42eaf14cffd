// Package expand implements the AST builder / macro expander (spec.md
// §4.C): it walks the reader's untyped Sexpr forms, rewrites surface sugar
// (`cond`, `case`, `define`, `define:`, multi-arm `let`, `import`) into the
// small core AST of internal/ast, and resolves every Var to its defining
// site in the same pass.
package expand

import (
	"github.com/sunholo/kvasir/internal/ast"
	"github.com/sunholo/kvasir/internal/kerrors"
	"github.com/sunholo/kvasir/internal/lexer"
	"github.com/sunholo/kvasir/internal/sexpr"
	"github.com/sunholo/kvasir/internal/token"
)

type rawDefine struct {
	name    string
	sig     sexpr.Sexpr // non-nil only for `define:`
	value   sexpr.Sexpr
	span    token.Span
	sources string // originating file, for duplicate-definition diagnostics
}

// Expander accumulates top-level declarations while walking a file and any
// files it transitively imports.
type Expander struct {
	loader Loader

	datas     []*ast.DataDecl
	externs   []*ast.Extern
	defines   []rawDefine
	globals   map[string]token.Span // name -> defining span, for EXP007
	ctorArity map[string]int        // ctor name -> field count
	ctorOf    map[string]string     // ctor name -> owning data type name
	ctorIndex map[string]int        // ctor name -> tag index within its data type
	imported  map[string]bool       // resolved import paths already processed
}

// New creates an Expander that resolves imports through loader.
func New(loader Loader) *Expander {
	return &Expander{
		loader:    loader,
		globals:   map[string]token.Span{},
		ctorArity: map[string]int{},
		ctorOf:    map[string]string{},
		ctorIndex: map[string]int{},
		imported:  map[string]bool{},
	}
}

// ExpandFile lexes, reads, and expands the named file and everything it
// imports, returning the fully expanded Program.
func (e *Expander) ExpandFile(source, file string) (*ast.Program, error) {
	forms, err := lexAndRead(source, file)
	if err != nil {
		return nil, err
	}
	if err := e.collectTopLevel(forms, file); err != nil {
		return nil, err
	}
	return e.finish()
}

func lexAndRead(source, file string) ([]sexpr.Sexpr, error) {
	toks, err := lexer.Lex(source, file)
	if err != nil {
		return nil, err
	}
	return sexpr.ReadAll(toks)
}

// collectTopLevel walks forms, splicing fully-expanded imports in place
// (spec.md §4.C: "Imports are fully expanded before their caller continues,
// avoiding order sensitivity across files").
func (e *Expander) collectTopLevel(forms []sexpr.Sexpr, file string) error {
	for _, f := range forms {
		list, ok := sexpr.AsList(f)
		if !ok || len(list.Children) == 0 {
			return kerrors.New(kerrors.PhaseExpand, kerrors.EXP003, f.Span(),
				"expected a top-level form")
		}
		head, ok := sexpr.AsSymbol(list.Children[0])
		if !ok {
			return kerrors.New(kerrors.PhaseExpand, kerrors.EXP003, list.Span(),
				"top-level form must begin with a symbol")
		}
		switch head {
		case "import":
			if err := e.handleImport(list, file); err != nil {
				return err
			}
		case "define":
			if err := e.handleDefine(list, file); err != nil {
				return err
			}
		case "define:":
			if err := e.handleDefineTyped(list, file); err != nil {
				return err
			}
		case "extern":
			if err := e.handleExtern(list); err != nil {
				return err
			}
		case "data":
			if err := e.handleData(list); err != nil {
				return err
			}
		default:
			return kerrors.New(kerrors.PhaseExpand, kerrors.EXP003, list.Span(),
				"unknown top-level form %q", head)
		}
	}
	return nil
}

func (e *Expander) handleImport(list *sexpr.List, file string) error {
	if len(list.Children) != 2 {
		return kerrors.New(kerrors.PhaseExpand, kerrors.EXP006, list.Span(), "import expects exactly one library name")
	}
	name, ok := sexpr.AsSymbol(list.Children[1])
	if a, isAtom := list.Children[1].(*sexpr.Atom); !ok && isAtom && a.Tok.Kind == token.String {
		name, ok = a.Tok.StrVal, true
	}
	if !ok {
		return kerrors.New(kerrors.PhaseExpand, kerrors.EXP006, list.Span(), "import name must be a symbol or string")
	}
	source, resolved, err := e.loader.Load(file, name)
	if err != nil {
		return kerrors.New(kerrors.PhaseExpand, kerrors.EXP006, list.Span(), "import %q: %v", name, err)
	}
	if e.imported[resolved] {
		return nil // already fully expanded; textual inclusion is idempotent
	}
	e.imported[resolved] = true
	forms, err := lexAndRead(source, resolved)
	if err != nil {
		return err
	}
	return e.collectTopLevel(forms, resolved)
}

func (e *Expander) recordGlobal(name string, span token.Span) error {
	if prev, dup := e.globals[name]; dup {
		return kerrors.New(kerrors.PhaseExpand, kerrors.EXP007, span,
			"duplicate top-level definition of %q (first defined at %s)", name, prev.String())
	}
	e.globals[name] = span
	return nil
}

func (e *Expander) handleDefine(list *sexpr.List, file string) error {
	if len(list.Children) < 3 {
		return kerrors.New(kerrors.PhaseExpand, kerrors.EXP004, list.Span(), "malformed define")
	}
	name, value, span, err := splitDefineHead(list.Children[1], list.Children[2:], list.Span())
	if err != nil {
		return err
	}
	if err := e.recordGlobal(name, span); err != nil {
		return err
	}
	e.defines = append(e.defines, rawDefine{name: name, value: value, span: span, sources: file})
	return nil
}

func (e *Expander) handleDefineTyped(list *sexpr.List, file string) error {
	if len(list.Children) < 4 {
		return kerrors.New(kerrors.PhaseExpand, kerrors.EXP004, list.Span(), "malformed define:")
	}
	name, value, span, err := splitDefineHead(list.Children[1], list.Children[3:], list.Span())
	if err != nil {
		return err
	}
	if err := e.recordGlobal(name, span); err != nil {
		return err
	}
	e.defines = append(e.defines, rawDefine{name: name, sig: list.Children[2], value: value, span: span, sources: file})
	return nil
}

// splitDefineHead handles both `(define name expr)` and the function-sugar
// `(define (f a b...) body...)`, which desugars to
// `(define f (lambda (a b...) body...))`.
func splitDefineHead(head sexpr.Sexpr, rest []sexpr.Sexpr, span token.Span) (name string, value sexpr.Sexpr, valueSpan token.Span, err error) {
	if sym, ok := sexpr.AsSymbol(head); ok {
		if len(rest) != 1 {
			return "", nil, span, kerrors.New(kerrors.PhaseExpand, kerrors.EXP004, span,
				"define %s expects exactly one value expression", sym)
		}
		return sym, rest[0], span, nil
	}
	headList, ok := sexpr.AsList(head)
	if !ok || len(headList.Children) == 0 {
		return "", nil, span, kerrors.New(kerrors.PhaseExpand, kerrors.EXP004, span, "malformed define head")
	}
	fname, ok := sexpr.AsSymbol(headList.Children[0])
	if !ok {
		return "", nil, span, kerrors.New(kerrors.PhaseExpand, kerrors.EXP004, span, "define function name must be a symbol")
	}
	lambdaBody := synthList(synthSymbol("lambda", span), headList.Children[1:], rest, span)
	return fname, lambdaBody, span, nil
}

// synthSymbol builds a synthetic Symbol atom for expander-generated forms
// (e.g. the `lambda` head of desugared `define` function-shorthand).
func synthSymbol(name string, span token.Span) sexpr.Sexpr {
	return &sexpr.Atom{Tok: token.Token{Kind: token.Symbol, Sym: name, Span: span}}
}

// synthList builds `(lambda (params...) body...)` as a Sexpr list, so the
// ordinary lambda-expander handles function-define sugar uniformly.
func synthList(lambdaSym sexpr.Sexpr, params []sexpr.Sexpr, body []sexpr.Sexpr, span token.Span) sexpr.Sexpr {
	paramList := &sexpr.List{Children: params, Sp: span, Bracket: token.LParen}
	children := append([]sexpr.Sexpr{lambdaSym, paramList}, body...)
	return &sexpr.List{Children: children, Sp: span, Bracket: token.LParen}
}

func (e *Expander) handleExtern(list *sexpr.List) error {
	if len(list.Children) != 3 {
		return kerrors.New(kerrors.PhaseExpand, kerrors.EXP004, list.Span(), "malformed extern")
	}
	name, ok := sexpr.AsSymbol(list.Children[1])
	if !ok {
		return kerrors.New(kerrors.PhaseExpand, kerrors.EXP004, list.Span(), "extern name must be a symbol")
	}
	if err := e.recordGlobal(name, list.Span()); err != nil {
		return err
	}
	te, err := parseTypeExpr(list.Children[2])
	if err != nil {
		return err
	}
	e.externs = append(e.externs, &ast.Extern{Sp: list.Span(), Name: name, TypeExpr: te})
	return nil
}

func (e *Expander) handleData(list *sexpr.List) error {
	if len(list.Children) < 2 {
		return kerrors.New(kerrors.PhaseExpand, kerrors.EXP002, list.Span(), "malformed data declaration")
	}
	dataName, ok := sexpr.AsSymbol(list.Children[1])
	if !ok {
		return kerrors.New(kerrors.PhaseExpand, kerrors.EXP002, list.Span(), "data type name must be a symbol")
	}
	var ctors []ast.CtorSig
	for idx, c := range list.Children[2:] {
		if sym, ok := sexpr.AsSymbol(c); ok {
			ctors = append(ctors, ast.CtorSig{Name: sym})
			if err := e.recordGlobal(sym, c.Span()); err != nil {
				return err
			}
			e.ctorArity[sym] = 0
			e.ctorOf[sym] = dataName
			e.ctorIndex[sym] = idx
			continue
		}
		cl, ok := sexpr.AsList(c)
		if !ok || len(cl.Children) == 0 {
			return kerrors.New(kerrors.PhaseExpand, kerrors.EXP002, c.Span(), "malformed constructor")
		}
		cname, ok := sexpr.AsSymbol(cl.Children[0])
		if !ok {
			return kerrors.New(kerrors.PhaseExpand, kerrors.EXP002, c.Span(), "constructor name must be a symbol")
		}
		fields := make([]ast.TypeExpr, 0, len(cl.Children)-1)
		for _, ft := range cl.Children[1:] {
			parsed, err := parseTypeExpr(ft)
			if err != nil {
				return err
			}
			fields = append(fields, parsed)
		}
		ctors = append(ctors, ast.CtorSig{Name: cname, Fields: fields})
		if err := e.recordGlobal(cname, c.Span()); err != nil {
			return err
		}
		e.ctorArity[cname] = len(fields)
		e.ctorOf[cname] = dataName
		e.ctorIndex[cname] = idx
	}
	e.datas = append(e.datas, &ast.DataDecl{Sp: list.Span(), Name: dataName, Ctors: ctors})
	return nil
}

// finish expands every collected define's value expression with no local
// frame, so every top-level name resolves through e.globals as a VarGlobal
// (letrec: all are mutually visible), and assembles the final Program.
func (e *Expander) finish() (*ast.Program, error) {
	x := &exprExpander{e: e, ctorArity: e.ctorArity, ctorOf: e.ctorOf, ctorIndex: e.ctorIndex}

	bindings := make([]ast.Binding, 0, len(e.defines))
	for _, d := range e.defines {
		val, err := x.expand(d.value, nil)
		if err != nil {
			return nil, err
		}
		if d.sig != nil {
			te, err := parseTypeExpr(d.sig)
			if err != nil {
				return nil, err
			}
			val = &ast.Ascribe{Base: ast.Base{Sp: d.span}, Expr: val, TypeExpr: te}
		}
		bindings = append(bindings, ast.Binding{Name: d.name, Value: val})
	}

	if _, ok := e.globals["main"]; !ok {
		return nil, kerrors.New(kerrors.PhaseExpand, kerrors.EXP004, token.Span{File: "<program>"},
			"no top-level definition of %q", "main")
	}

	top := &ast.Let{
		Bindings: bindings,
		Body:     &ast.Var{Name: "main", Kind: ast.VarGlobal},
	}
	return &ast.Program{Datas: e.datas, Externs: e.externs, Top: top}, nil
}
