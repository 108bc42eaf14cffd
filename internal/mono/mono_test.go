package mono

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunholo/kvasir/internal/ast"
	"github.com/sunholo/kvasir/internal/expand"
	"github.com/sunholo/kvasir/internal/infer"
)

type noImportLoader struct{}

func (noImportLoader) Load(importingFile, name string) (string, string, error) {
	return "", "", errNoImports
}

type noImportsErr struct{}

func (*noImportsErr) Error() string { return "imports unavailable in this test" }

var errNoImports error = &noImportsErr{}

func runMono(t *testing.T, src string) (*ast.Program, []string) {
	t.Helper()
	prog, err := expand.New(noImportLoader{}).ExpandFile(src, "t.kvs")
	require.NoError(t, err)
	res, err := infer.Run(prog)
	require.NoError(t, err)
	specialized, keys, err := Monomorphize(prog, res)
	require.NoError(t, err)
	return specialized, keys
}

// A polymorphic function applied at two different concrete types is
// specialized into two distinct top-level bindings (spec.md §8 invariant:
// monomorphization reaches a fixpoint with one specialization per
// concrete instantiation).
func TestMonomorphizeProducesDistinctInstancesPerType(t *testing.T) {
	_, keys := runMono(t, `
(define (identity x) x)
(define main (let ((a (identity 1)) (b (identity true))) a))
`)
	var identityInstances int
	for _, k := range keys {
		if strings.HasPrefix(k, "identity@") {
			identityInstances++
		}
	}
	require.Equal(t, 2, identityInstances, "expected one specialization per concrete call site: %v", keys)
}

// A monomorphic (never-generalized) binding like main is emitted exactly
// once no matter how many times ensureSpecialization revisits it.
func TestMonomorphizeEmitsMonomorphicBindingOnce(t *testing.T) {
	specialized, _ := runMono(t, `(define main 42)`)
	var count int
	for _, b := range specialized.Top.Bindings {
		if b.Name == "main" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

// An arithmetic intrinsic used only at Int64 is resolved to the concrete
// "add-int64" extern symbol; the builtin Var node is rewritten to
// VarExtern so lowering never has to guess a runtime symbol.
func TestMonomorphizeResolvesIntrinsicToConcreteExtern(t *testing.T) {
	specialized, _ := runMono(t, `(define main (add 1 2))`)
	outer, ok := specialized.Top.Bindings[0].Value.(*ast.App)
	require.True(t, ok)
	callee, ok := outer.Callee.(*ast.Var)
	require.True(t, ok)
	require.Equal(t, ast.VarExtern, callee.Kind)
	require.Equal(t, "add-int64", callee.Name)
}

// The same intrinsic used at two different concrete numeric types within
// one program resolves to two distinct extern symbols (dual specialization
// driven by Int64 and Float64 literal defaulting).
func TestMonomorphizeResolvesIntrinsicDifferentlyPerType(t *testing.T) {
	specialized, _ := runMono(t, `
(define (double x) (add x x))
(define main (let ((a (double 1)) (b (double 1.5))) a))
`)
	var symbols []string
	var walk func(ast.Expr)
	walk = func(e ast.Expr) {
		if e == nil {
			return
		}
		switch n := e.(type) {
		case *ast.Var:
			if n.Kind == ast.VarExtern {
				symbols = append(symbols, n.Name)
			}
		case *ast.App:
			walk(n.Callee)
			walk(n.Arg)
		case *ast.Lam:
			walk(n.Body)
		case *ast.Let:
			for _, b := range n.Bindings {
				walk(b.Value)
			}
			walk(n.Body)
		}
	}
	for _, b := range specialized.Top.Bindings {
		walk(b.Value)
	}
	require.Contains(t, symbols, "add-int64")
	require.Contains(t, symbols, "add-float64")
}
