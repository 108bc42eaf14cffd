package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunholo/kvasir/internal/expand"
	"github.com/sunholo/kvasir/internal/infer"
	"github.com/sunholo/kvasir/internal/ir"
	"github.com/sunholo/kvasir/internal/mono"
)

type noImportLoader struct{}

func (noImportLoader) Load(importingFile, name string) (string, string, error) {
	return "", "", errNoImports
}

type noImportsErr struct{}

func (*noImportsErr) Error() string { return "imports unavailable in this test" }

var errNoImports error = &noImportsErr{}

func runLower(t *testing.T, src string) *ir.Program {
	t.Helper()
	prog, err := expand.New(noImportLoader{}).ExpandFile(src, "t.kvs")
	require.NoError(t, err)
	infRes, err := infer.Run(prog)
	require.NoError(t, err)
	specialized, _, err := mono.Monomorphize(prog, infRes)
	require.NoError(t, err)
	lowered, err := Lower(specialized, infRes.DataOf)
	require.NoError(t, err)
	return lowered
}

func findFunc(t *testing.T, prog *ir.Program, name string) *ir.Func {
	t.Helper()
	for _, f := range prog.Funcs {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("no lowered function named %q among %d funcs", name, len(prog.Funcs))
	return nil
}

// A top-level function whose body closes over nothing is lifted directly
// to an ir.Func with no captures.
func TestLowerTopLevelFunctionHasNoCaptures(t *testing.T) {
	prog := runLower(t, `
(define (inc x) (add x 1))
(define main (inc 1))
`)
	fn := findFunc(t, prog, "inc")
	require.Empty(t, fn.Captures)
	require.Equal(t, "x", fn.Param)
}

// A nested lambda that references its enclosing parameter is lifted to
// its own top-level Func and captures exactly that name; the call site
// becomes a MakeClosure (spec.md §4.F).
func TestLowerNestedLambdaCapturesEnclosingParam(t *testing.T) {
	prog := runLower(t, `
(define (adder n) (lambda (x) (add x n)))
(define main ((adder 1) 2))
`)
	var lifted *ir.Func
	for _, f := range prog.Funcs {
		if len(f.Captures) > 0 {
			lifted = f
		}
	}
	require.NotNil(t, lifted, "expected some lifted lambda to capture its enclosing parameter")
	require.Contains(t, lifted.Captures, "n")
}

// A fully saturated call to the `cons` builtin lowers directly to an
// Alloc, not a Call -- the intrinsic arithmetic rewrite from
// internal/expand produces exactly this shape for `(add a b)`.
func TestLowerIntrinsicCallProducesCallOverAllocPair(t *testing.T) {
	prog := runLower(t, `(define main (add 1 2))`)
	fn := findFunc(t, prog, "main")
	call, ok := fn.Body.(*ir.Call)
	require.True(t, ok, "expected main's body to be a Call into the add-int64 extern")
	ext, ok := call.Fn.(*ir.ExternRef)
	require.True(t, ok)
	require.Equal(t, "add-int64", ext.Symbol)
	alloc, ok := call.Arg.(*ir.Alloc)
	require.True(t, ok, "expected the call argument to be the boxed Cons pair")
	require.Equal(t, "Cons", alloc.DataName)
	require.Len(t, alloc.Fields, 2)
}

// A saturated data-constructor application lowers directly to an Alloc
// tagged with the constructor's declared index, not a chain of Calls.
func TestLowerSaturatedConstructorProducesAlloc(t *testing.T) {
	prog := runLower(t, `
(data String (Empty) (Cons UInt8 String))
(define main (Cons 1 Empty))
`)
	fn := findFunc(t, prog, "main")
	alloc, ok := fn.Body.(*ir.Alloc)
	require.True(t, ok)
	require.Equal(t, int32(1), alloc.Tag)
	require.Equal(t, "String", alloc.DataName)
	require.Len(t, alloc.Fields, 2)
}

// A `case` expression lowers to a right-leaning If chain comparing the
// scrutinee's tag, with each arm's field binders materialized via
// GetPayload.
func TestLowerMatchProducesTagChain(t *testing.T) {
	prog := runLower(t, `
(data String (Empty) (Cons UInt8 String))
(define (len s) (case s (Empty 0) (Cons (h t) (add 1 (len t)))))
(define main (len Empty))
`)
	fn := findFunc(t, prog, "len")
	outerLet, ok := fn.Body.(*ir.Let)
	require.True(t, ok, "match lowers to a Let binding the scrutinee once")
	_, ok = outerLet.Body.(*ir.If)
	require.True(t, ok, "arms lower to an If chain over tag comparisons")
}
