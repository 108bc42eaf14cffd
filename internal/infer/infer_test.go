package infer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunholo/kvasir/internal/ast"
	"github.com/sunholo/kvasir/internal/expand"
	"github.com/sunholo/kvasir/internal/kerrors"
	"github.com/sunholo/kvasir/internal/types"
)

type noImportLoader struct{}

func (noImportLoader) Load(importingFile, name string) (string, string, error) {
	return "", "", errNoImports
}

type noImportsErr struct{}

func (*noImportsErr) Error() string { return "imports unavailable in this test" }

var errNoImports error = &noImportsErr{}

func infer(t *testing.T, src string) *Result {
	t.Helper()
	prog, err := expand.New(noImportLoader{}).ExpandFile(src, "t.kvs")
	require.NoError(t, err)
	res, err := Run(prog)
	require.NoError(t, err)
	return res
}

func inferErr(t *testing.T, src string) error {
	t.Helper()
	prog, err := expand.New(noImportLoader{}).ExpandFile(src, "t.kvs")
	require.NoError(t, err)
	_, err = Run(prog)
	require.Error(t, err)
	return err
}

// A polymorphic function in its own SCC keeps its quantified scheme even
// when a binding outside that SCC calls it at two different concrete
// types, each call instantiating it independently (spec.md §8 invariant:
// independent generalization of unrelated bindings).
func TestIndependentGeneralizationOfUnrelatedBindings(t *testing.T) {
	res := infer(t, `
(define (identity x) x)
(define main (let ((a (identity 1)) (b (identity true))) a))
`)
	scheme, _, ok := res.Env.Lookup("identity")
	require.True(t, ok)
	require.NotEmpty(t, scheme.Vars, "identity should remain polymorphic at its own definition site")
}

// A numeric literal with no other constraint defaults to Int64 rather
// than surfacing as an ambiguous ad-hoc ground type (spec.md §4.D
// "Numeric-literal defaulting").
func TestNumericLiteralDefaultsToInt64(t *testing.T) {
	res := infer(t, `(define main 42)`)
	scheme, _, ok := res.Env.Lookup("main")
	require.True(t, ok)
	require.Equal(t, "Int64", scheme.Body.String())
}

// A float literal defaults to Float64.
func TestNumericLiteralDefaultsToFloat64(t *testing.T) {
	res := infer(t, `(define main 3.14)`)
	scheme, _, ok := res.Env.Lookup("main")
	require.True(t, ok)
	require.Equal(t, "Float64", scheme.Body.String())
}

// An extern whose declared type still carries a free variable after
// whole-program inference is rejected (TYP005 "ambiguous"), since the
// runtime ABI has no way to dispatch on it.
func TestNonGroundExternIsAmbiguityError(t *testing.T) {
	err := inferErr(t, `
(extern mystery (-> a a))
(define main 1)
`)
	rep, ok := kerrors.AsReport(err)
	require.True(t, ok)
	require.Equal(t, kerrors.TYP005, rep.Code)
}

// A straightforward type mismatch (an if whose branches are an Int64 and a
// Bool) is reported as TYP001.
func TestUnificationMismatchIsReported(t *testing.T) {
	err := inferErr(t, `(define main (if true (: 1 Int64) false))`)
	rep, ok := kerrors.AsReport(err)
	require.True(t, ok)
	require.Equal(t, kerrors.TYP001, rep.Code)
}

// After a successful run, every node in the program carries a fully
// substituted type whose only variables are those quantified by its
// top-level binding's scheme (spec.md §8 invariant: "no free unification
// variables survive inference").
func TestResolvedProgramHasNoFreeUnificationVariables(t *testing.T) {
	prog, err := expand.New(noImportLoader{}).ExpandFile(`
(define (compose f g x) (f (g x)))
(define (inc x) (add x 1))
(define main (compose inc inc 1))
`, "t.kvs")
	require.NoError(t, err)
	res, err := Run(prog)
	require.NoError(t, err)

	var walk func(ast.Expr, map[int]bool)
	walk = func(e ast.Expr, quantified map[int]bool) {
		if e == nil {
			return
		}
		for id := range types.FreeVars(res.Sub, e.Type()) {
			require.True(t, quantified[id], "node %s has free type variable t%d not quantified by its binding's scheme", e.String(), id)
		}
		switch n := e.(type) {
		case *ast.Lam:
			walk(n.Body, quantified)
		case *ast.App:
			walk(n.Callee, quantified)
			walk(n.Arg, quantified)
		case *ast.Let:
			for _, b := range n.Bindings {
				walk(b.Value, quantified)
			}
			walk(n.Body, quantified)
		case *ast.If:
			walk(n.Cond, quantified)
			walk(n.Then, quantified)
			walk(n.Else, quantified)
		case *ast.Ascribe:
			walk(n.Expr, quantified)
		case *ast.Match:
			walk(n.Scrutinee, quantified)
			for _, a := range n.Arms {
				walk(a.Body, quantified)
			}
		}
	}
	quantifiedBy := func(name string) map[int]bool {
		scheme, _, ok := res.Env.Lookup(name)
		require.True(t, ok)
		set := map[int]bool{}
		for _, v := range scheme.Vars {
			set[v] = true
		}
		return set
	}
	for _, b := range prog.Top.Bindings {
		walk(b.Value, quantifiedBy(b.Name))
	}
	walk(prog.Top.Body, quantifiedBy("main"))
}

// An ascription drives a concrete instantiation of a polymorphic
// definition without forcing the definition's own scheme to narrow.
func TestAscriptionInstantiatesWithoutNarrowingScheme(t *testing.T) {
	res := infer(t, `
(define (identity x) x)
(define main (: (identity 1) Int64))
`)
	scheme, _, ok := res.Env.Lookup("identity")
	require.True(t, ok)
	require.NotEmpty(t, scheme.Vars)
}

// A recursive data type (spec.md's String = Empty | Cons UInt8 String)
// is accepted and its constructors typed as ordinary curried functions
// ending in the data type itself.
func TestRecursiveDataTypeConstructorIsTyped(t *testing.T) {
	res := infer(t, `
(data String (Empty) (Cons UInt8 String))
(define main (Cons 1 Empty))
`)
	scheme, _, ok := res.Env.Lookup("main")
	require.True(t, ok)
	require.Equal(t, "String", scheme.Body.String())
}
