package expand

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunholo/kvasir/internal/ast"
)

// loaderStub resolves no imports; only needed to satisfy New's signature
// for tests that never hit `(import ...)`.
type loaderStub struct{}

func (loaderStub) Load(importingFile, name string) (string, string, error) {
	return "", "", errNotFound
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "no such import in test" }

func expandSource(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := New(loaderStub{}).ExpandFile(src, "t.kvs")
	require.NoError(t, err)
	return prog
}

// A two-argument call to an arithmetic intrinsic expands into one
// application of the intrinsic to a synthesized (cons lhs rhs) pair,
// not a curried chain of two unary applications.
func TestExpandApplicationRewritesIntrinsicToConsPair(t *testing.T) {
	prog := expandSource(t, `(define main (add 1 2))`)
	require.Len(t, prog.Top.Bindings, 1)

	outer, ok := prog.Top.Bindings[0].Value.(*ast.App)
	require.True(t, ok, "expected main's body to be an App")

	callee, ok := outer.Callee.(*ast.Var)
	require.True(t, ok)
	require.Equal(t, "add", callee.Name)
	require.Equal(t, ast.VarBuiltin, callee.Kind)

	pair, ok := outer.Arg.(*ast.App)
	require.True(t, ok, "expected the single argument to be the synthesized cons application")
	inner, ok := pair.Callee.(*ast.App)
	require.True(t, ok)
	consVar, ok := inner.Callee.(*ast.Var)
	require.True(t, ok)
	require.Equal(t, "cons", consVar.Name)

	lhs, ok := inner.Arg.(*ast.Lit)
	require.True(t, ok)
	require.Equal(t, int64(1), lhs.IntVal)
	rhs, ok := pair.Arg.(*ast.Lit)
	require.True(t, ok)
	require.Equal(t, int64(2), rhs.IntVal)
}

// Every arithmetic and comparison intrinsic gets the same rewrite, not
// just `add`.
func TestExpandApplicationRewritesAllIntrinsics(t *testing.T) {
	for _, op := range []string{"add", "sub", "mul", "div", "eq", "neq", "gt", "gteq", "lt", "lteq"} {
		prog := expandSource(t, "(define main ("+op+" 1 2))")
		outer, ok := prog.Top.Bindings[0].Value.(*ast.App)
		require.True(t, ok, op)
		callee, ok := outer.Callee.(*ast.Var)
		require.True(t, ok, op)
		require.Equal(t, op, callee.Name)
		_, ok = outer.Arg.(*ast.App)
		require.True(t, ok, "%s: argument should be the synthesized cons pair", op)
	}
}

// A local binding that shadows an intrinsic's name resolves to an
// ordinary local variable, so calls through it take the normal curried
// path instead of the Cons-pair rewrite.
func TestExpandApplicationShadowedIntrinsicIsOrdinaryCurriedCall(t *testing.T) {
	prog := expandSource(t, `(define main (let ((add (lambda (a b) a))) (add 1 2)))`)
	letExpr, ok := prog.Top.Bindings[0].Value.(*ast.Let)
	require.True(t, ok)

	outer, ok := letExpr.Body.(*ast.App)
	require.True(t, ok)
	require.Equal(t, int64(2), outer.Arg.(*ast.Lit).IntVal)

	inner, ok := outer.Callee.(*ast.App)
	require.True(t, ok, "shadowed add should curry like any ordinary call")
	calleeVar, ok := inner.Callee.(*ast.Var)
	require.True(t, ok)
	require.Equal(t, ast.VarLocal, calleeVar.Kind)
	require.Equal(t, int64(1), inner.Arg.(*ast.Lit).IntVal)
}

// A call to an intrinsic with the wrong arity is rejected at expansion
// time rather than surfacing as a confusing downstream unification
// failure.
func TestExpandApplicationIntrinsicWrongArity(t *testing.T) {
	_, err := New(loaderStub{}).ExpandFile(`(define main (add 1 2 3))`, "t.kvs")
	require.Error(t, err)
}

func TestExpandDuplicateTopLevelDefinitionIsRejected(t *testing.T) {
	_, err := New(loaderStub{}).ExpandFile(`
(define (f x) x)
(define (f y) y)
(define main (f 1))
`, "t.kvs")
	require.Error(t, err)
}

func TestExpandUnboundIdentifierIsRejected(t *testing.T) {
	_, err := New(loaderStub{}).ExpandFile(`(define main nope)`, "t.kvs")
	require.Error(t, err)
}

func TestExpandRequiresMain(t *testing.T) {
	_, err := New(loaderStub{}).ExpandFile(`(define (f x) x)`, "t.kvs")
	require.Error(t, err)
}

// Constructing a data value applies the constructor curried, the same
// as an ordinary function -- constructors never go through the
// intrinsic Cons-pair rewrite even though the primitive pair type is
// also (confusingly) named "Cons".
func TestExpandDataConstructorApplicationIsOrdinaryCurriedCall(t *testing.T) {
	prog := expandSource(t, `
(data String (Empty) (Cons UInt8 String))
(define main (Cons 1 Empty))
`)
	outer, ok := prog.Top.Bindings[0].Value.(*ast.App)
	require.True(t, ok)
	inner, ok := outer.Callee.(*ast.App)
	require.True(t, ok)
	ctor, ok := inner.Callee.(*ast.Ctor)
	require.True(t, ok)
	require.Equal(t, "Cons", ctor.Name)
	require.Equal(t, "String", ctor.DataName)
}

// Expansion is deterministic: expanding the same source twice produces
// identical textual ASTs.
func TestExpandIsDeterministic(t *testing.T) {
	src := `(define main (add (mul 2 3) (sub 10 4)))`
	p1 := expandSource(t, src)
	p2 := expandSource(t, src)
	require.Equal(t, p1.Top.Bindings[0].Value.String(), p2.Top.Bindings[0].Value.String())
}
