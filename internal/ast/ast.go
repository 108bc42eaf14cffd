// Package ast defines kvasir's core AST (spec.md §3): the small set of
// node kinds the expander (internal/expand) lowers all surface sugar into,
// each carrying a span and a mutable type slot annotated in place by
// internal/infer.
package ast

import (
	"fmt"
	"strings"

	"github.com/sunholo/kvasir/internal/token"
	"github.com/sunholo/kvasir/internal/types"
)

// Expr is any core-AST expression node.
type Expr interface {
	Span() token.Span
	Type() types.Type
	SetType(types.Type)
	String() string
	exprNode()
}

// Base implements the common span/type-slot bookkeeping every Expr
// embeds; its fields are exported so other packages (expand, infer) can
// construct and mutate nodes with plain composite literals.
type Base struct {
	Sp token.Span
	Ty types.Type
}

func (b *Base) Span() token.Span     { return b.Sp }
func (b *Base) Type() types.Type     { return b.Ty }
func (b *Base) SetType(t types.Type) { b.Ty = t }

// LitKind distinguishes the literal value kinds of spec.md §3.
type LitKind int

const (
	LitInt LitKind = iota
	LitUInt
	LitFloat
	LitBool
	LitString
	LitNil
)

// Lit is a literal integer, unsigned, float, bool, string, or nil.
type Lit struct {
	Base
	Kind     LitKind
	IntVal   int64
	UIntVal  uint64
	FloatVal float64
	BoolVal  bool
	StrVal   string
}

func (*Lit) exprNode() {}
func (l *Lit) String() string {
	switch l.Kind {
	case LitInt:
		return fmt.Sprintf("%d", l.IntVal)
	case LitUInt:
		return fmt.Sprintf("%du", l.UIntVal)
	case LitFloat:
		return fmt.Sprintf("%g", l.FloatVal)
	case LitBool:
		return fmt.Sprintf("%t", l.BoolVal)
	case LitString:
		return fmt.Sprintf("%q", l.StrVal)
	default:
		return "nil"
	}
}

// VarKind classifies a resolved Var reference.
type VarKind int

const (
	VarUnresolved VarKind = iota
	VarLocal              // a Lam parameter or Let binding
	VarGlobal             // a top-level define
	VarExtern             // a declared extern symbol
	VarCtor               // a data constructor
	VarBuiltin            // cons/car/cdr or an arithmetic/comparison intrinsic
)

// Var is a name reference. Before name resolution only Name is set; after,
// Kind/Depth/Index locate the binding site.
type Var struct {
	Base
	Name  string
	Kind  VarKind
	Depth int // lexical frame depth (0 = innermost)
	Index int // slot index within that frame
}

func (*Var) exprNode() {}
func (v *Var) String() string { return v.Name }

// Param is a single (name, type slot) lambda parameter.
type Param struct {
	Name string
	Slot types.Type
}

// Lam is a unary lambda. The expander fully curries multi-argument surface
// lambdas into nested unary Lams at expansion time (spec.md §4.C/§9: a
// multi-arg lambda is "curried at the call site by App chaining" — this
// repository realizes that by currying once, during expansion, rather than
// carrying multi-arity Lam nodes through the rest of the pipeline). Free
// is never set by the expander; the lowerer's closure conversion computes
// captured names itself.
type Lam struct {
	Base
	Param Param
	Body  Expr
	Free  []string
}

func (*Lam) exprNode() {}
func (l *Lam) String() string {
	return fmt.Sprintf("(lambda (%s) %s)", l.Param.Name, l.Body.String())
}

// App is unary application: multi-argument surface calls are curried by
// the expander into chains of App nodes.
type App struct {
	Base
	Callee Expr
	Arg    Expr
}

func (*App) exprNode() {}
func (a *App) String() string { return fmt.Sprintf("(%s %s)", a.Callee.String(), a.Arg.String()) }

// Binding is one (name, value) pair within a Let group; every binding in a
// group is mutually recursive with every other binding in the same group.
type Binding struct {
	Name  string
	Value Expr
}

// Let is a recursive binding group followed by a body.
type Let struct {
	Base
	Bindings []Binding
	Body     Expr
}

func (*Let) exprNode() {}
func (l *Let) String() string {
	parts := make([]string, len(l.Bindings))
	for i, b := range l.Bindings {
		parts[i] = fmt.Sprintf("(%s %s)", b.Name, b.Value.String())
	}
	return fmt.Sprintf("(let (%s) %s)", strings.Join(parts, " "), l.Body.String())
}

// If is the sole conditional form; cond/case are rewritten into nested Ifs
// (or Match trees) by the expander.
type If struct {
	Base
	Cond, Then, Else Expr
}

func (*If) exprNode() {}
func (i *If) String() string {
	return fmt.Sprintf("(if %s %s %s)", i.Cond.String(), i.Then.String(), i.Else.String())
}

// Ascribe is the `:` form: an inferencer hint unifying Expr's type with
// TypeExpr, after instantiating TypeExpr's free type parameters fresh.
type Ascribe struct {
	Base
	Expr     Expr
	TypeExpr TypeExpr
}

func (*Ascribe) exprNode() {}
func (a *Ascribe) String() string {
	return fmt.Sprintf("(: %s %s)", a.Expr.String(), a.TypeExpr.String())
}

// Ctor references a data constructor as a callable value.
type Ctor struct {
	Base
	Name      string
	DataName  string
	CtorIndex int
}

func (*Ctor) exprNode() {}
func (c *Ctor) String() string { return c.Name }

// MatchArm destructures one constructor case of a Match.
type MatchArm struct {
	CtorName string
	Vars     []string // field binders, in declaration order
	Body     Expr
}

// Match destructures a sum-type value built by DataDecl constructors.
type Match struct {
	Base
	Scrutinee Expr
	Arms      []MatchArm
}

func (*Match) exprNode() {}
func (m *Match) String() string {
	parts := make([]string, len(m.Arms))
	for i, a := range m.Arms {
		parts[i] = fmt.Sprintf("(%s (%s) %s)", a.CtorName, strings.Join(a.Vars, " "), a.Body.String())
	}
	return fmt.Sprintf("(case %s %s)", m.Scrutinee.String(), strings.Join(parts, " "))
}

// TypeExpr is the small surface-syntax type grammar used by ascriptions,
// `extern` declarations, `define:` signatures, and `data` field types,
// resolved to a types.Type during inference.
type TypeExpr interface {
	String() string
	typeExprNode()
}

// TypeName is a (possibly applied) type constructor or bound type
// parameter reference, e.g. `Int64`, `(Ptr T)`, `(-> A B)`.
type TypeName struct {
	Name string
	Args []TypeExpr
}

func (*TypeName) typeExprNode() {}
func (t *TypeName) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("(%s %s)", t.Name, strings.Join(parts, " "))
}

// CtorSig declares one `data` constructor: a bare symbol (nullary) or
// (CName field-type...).
type CtorSig struct {
	Name   string
	Fields []TypeExpr
}

// DataDecl registers a sum type and its constructors (spec.md §3/§4.C).
// It is not itself an Expr: data declarations are processed before the
// top-level Let is typed, seeding the environment with each constructor's
// function type.
type DataDecl struct {
	Sp    token.Span
	Name  string
	Ctors []CtorSig
}

func (d *DataDecl) Span() token.Span { return d.Sp }

// Extern declares a symbol resolved by the linker, with a fully ground
// monomorphic type (spec.md §4.E: externs are never monomorphized).
type Extern struct {
	Sp       token.Span
	Name     string
	TypeExpr TypeExpr
}

func (e *Extern) Span() token.Span { return e.Sp }

// Program is the fully expanded unit: data/extern declarations plus one
// recursive top-level Let wrapping `main` (spec.md §4.C: "define-at-top-level
// becomes a single recursive Let wrapping main").
type Program struct {
	Datas   []*DataDecl
	Externs []*Extern
	Top     *Let
}
