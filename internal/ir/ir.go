// Package ir defines kvasir's closure-converted intermediate
// representation (spec.md §4.F): every top-level function has a fixed,
// fully monomorphic arity of exactly one parameter, free variables are
// captured explicitly through MakeClosure, and data values are plain
// tagged heap allocations.
package ir

import "github.com/sunholo/kvasir/internal/types"

// Node is any IR expression node.
type Node interface {
	Type() types.Type
	irNode()
}

// Base carries the common type-slot every Node embeds; exported so
// internal/lower can construct nodes with plain composite literals.
type Base struct{ Ty types.Type }

func (b Base) Type() types.Type { return b.Ty }
func (Base) irNode()            {}

// Const is a fully ground literal value.
type Const struct {
	Base
	Kind     ConstKind
	IntVal   int64
	UIntVal  uint64
	FloatVal float64
	BoolVal  bool
	StrVal   string
}

// ConstKind mirrors ast.LitKind; ConstNil is the Nil type's sole value,
// which the backend emits as the word 0.
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstUInt
	ConstFloat
	ConstBool
	ConstString
	ConstNil
)

// LocalRef reads a value already bound in the current function: a
// parameter, a closure capture slot, or a let-bound local.
type LocalRef struct {
	Base
	Name string
}

// GlobalRef reads a top-level function or a fully-applied (zero-closure)
// global by its monomorphized symbol name.
type GlobalRef struct {
	Base
	Symbol string
}

// ExternRef reads a linker-resolved external symbol.
type ExternRef struct {
	Base
	Symbol string
}

// Call invokes Fn (already specialized to one argument) with Arg.
type Call struct {
	Base
	Fn  Node
	Arg Node
}

// If is the sole conditional form surviving into IR.
type If struct {
	Base
	Cond, Then, Else Node
}

// LetBinding is one non-recursive local binding introduced by lowering
// (e.g. the expander's synthetic bodies, or a flattened surface `let`).
type LetBinding struct {
	Name  string
	Value Node
}

// Let sequences Bindings before Body; unlike the surface language's
// mutually recursive `let`, IR Let bindings are evaluated strictly in
// order (recursion only happens through top-level functions after closure
// conversion).
type Let struct {
	Base
	Bindings []LetBinding
	Body     Node
}

// MakeClosure allocates a closure value: a pointer to TargetFn plus the
// captured environment values, in Captures order (closure conversion's
// output, spec.md §4.F).
type MakeClosure struct {
	Base
	TargetFn string
	Captures []Node
}

// Alloc allocates one tagged heap cell for a data constructor application,
// DataModel's runtime representation of a `data` value.
type Alloc struct {
	Base
	Tag      int32
	DataName string
	Fields   []Node
}

// GetTag reads the constructor tag of a heap-allocated data value.
type GetTag struct {
	Base
	Value Node
}

// TagEquals tests whether Value's constructor tag equals Tag, the
// condition a lowered `case` arm branches on.
type TagEquals struct {
	Base
	Tag   int32
	Value Node
}

// GetPayload reads field Index out of a heap-allocated data value.
type GetPayload struct {
	Base
	Value Node
	Index int
}

// Func is one top-level, closure-converted function: at most one
// parameter (spec.md's unary-App invariant; Param is empty for a
// non-function top-level value), plus the names of values it
// captures from its defining scope (empty for functions lifted from
// top-level source lambdas with no free variables).
type Func struct {
	Name      string
	Param     string
	ParamType types.Type
	Captures  []string
	CaptureTy []types.Type
	RetType   types.Type
	Body      Node
}

// Program is the fully lowered compilation unit handed to the backend.
type Program struct {
	Funcs []*Func
	// Entry is the symbol of the zero-argument `main` thunk; the
	// runtime's entry point calls it with the RealWorld token.
	Entry string
}

func NewConst(ty types.Type, kind ConstKind) *Const { return &Const{Base: Base{Ty: ty}, Kind: kind} }
