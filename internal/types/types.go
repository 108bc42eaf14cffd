// Package types implements kvasir's type representations and unification
// (spec.md §3, §4.D): unification type variables with rank-based
// generalization, applied type constructors, and generalized schemes.
package types

import (
	"fmt"
	"strings"
)

// Type is any kvasir type: a unification variable, an applied constructor,
// or (only at binding sites) a generalized scheme.
type Type interface {
	String() string
	typeNode()
}

// TVar is a fresh unification variable. Rank records the nesting depth of
// the let-group that introduced it (spec.md §4.D "Rank-based
// generalization"); Unify lowers a variable's rank whenever it is bound to
// something introduced at a shallower rank.
type TVar struct {
	ID   int
	Rank int
}

func (t *TVar) typeNode()     {}
func (t *TVar) String() string { return fmt.Sprintf("t%d", t.ID) }

// TCon is a (possibly applied) type constructor: Int64, Bool, `Ptr T`,
// `Cons A B`, `-> A B`, or a user `data` name.
type TCon struct {
	Name string
	Args []Type
}

func (t *TCon) typeNode() {}
func (t *TCon) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("(%s %s)", t.Name, strings.Join(parts, " "))
}

// Built-in type constructor names.
const (
	Int8    = "Int8"
	Int16   = "Int16"
	Int32   = "Int32"
	Int64   = "Int64"
	UInt8   = "UInt8"
	UInt16  = "UInt16"
	UInt32  = "UInt32"
	UInt64  = "UInt64"
	Float32 = "Float32"
	Float64 = "Float64"
	BoolCon = "Bool"
	NilCon  = "Nil"
	PtrCon  = "Ptr"
	ConsCon = "Cons"
	ArrowCon = "->"
	RealWorldCon = "RealWorld"
	// KStringCon is the backing type of literal string tokens: a pointer
	// to an immutable, NUL-terminated byte buffer. Distinct from the
	// standard library's `String = Empty | Cons UInt8 String` data type;
	// see DESIGN.md.
	KStringCon = "KString"
)

// Con builds a nullary or applied TCon.
func Con(name string, args ...Type) *TCon { return &TCon{Name: name, Args: args} }

// Arrow builds the unary function type `-> A B`; always arity 2, matching
// unary application at the value level (spec.md §3 invariant).
func Arrow(param, result Type) *TCon { return &TCon{Name: ArrowCon, Args: []Type{param, result}} }

// Cons builds the primitive pair type `Cons A B`.
func Cons(a, b Type) *TCon { return &TCon{Name: ConsCon, Args: []Type{a, b}} }

// IsArrow reports whether t is a `-> A B` constructor and returns its parts.
func IsArrow(t Type) (param, result Type, ok bool) {
	c, isCon := t.(*TCon)
	if !isCon || c.Name != ArrowCon {
		return nil, nil, false
	}
	return c.Args[0], c.Args[1], true
}

// Scheme is a generalized type ∀vars. Body (spec.md's TPoly). It appears
// only at binding sites, never nested inside another Type.
type Scheme struct {
	Vars []int
	Body Type
}

func (s *Scheme) typeNode() {}
func (s *Scheme) String() string {
	if len(s.Vars) == 0 {
		return s.Body.String()
	}
	parts := make([]string, len(s.Vars))
	for i, v := range s.Vars {
		parts[i] = fmt.Sprintf("t%d", v)
	}
	return fmt.Sprintf("forall %s. %s", strings.Join(parts, " "), s.Body.String())
}

// Mono wraps a ground/unquantified type as a trivial Scheme, for uniform
// storage in an Env.
func Mono(t Type) *Scheme { return &Scheme{Body: t} }
