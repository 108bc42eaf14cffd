package backend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunholo/kvasir/internal/ir"
	"github.com/sunholo/kvasir/internal/types"
)

var (
	int64T = types.Con(types.Int64)
	boolT  = types.Con(types.BoolCon)
)

func int64Const(v int64) *ir.Const {
	return &ir.Const{Base: ir.Base{Ty: int64T}, Kind: ir.ConstInt, IntVal: v}
}

// A function name carrying a hyphen -- the surface language's own
// kebab-case convention (e.g. `string-append`) -- must still produce
// syntactically valid LLVM identifiers at every site the symbol is
// referenced: the `define`, its closure constant, and any call site.
func TestEmitSanitizesHyphenatedFunctionNames(t *testing.T) {
	prog := &ir.Program{
		Entry: "main",
		Funcs: []*ir.Func{
			{
				Name:      "string-append",
				Param:     "x",
				ParamType: int64T,
				RetType:   int64T,
				Body:      &ir.LocalRef{Base: ir.Base{Ty: int64T}, Name: "x"},
			},
			{
				Name:    "main",
				RetType: int64T,
				Body: &ir.Call{
					Base: ir.Base{Ty: int64T},
					Fn:   &ir.GlobalRef{Base: ir.Base{Ty: int64T}, Symbol: "string-append"},
					Arg:  int64Const(1),
				},
			},
		},
	}
	text, ext, err := NewLLVMBackend().Emit(prog)
	require.NoError(t, err)
	require.Equal(t, "ll", ext)
	require.NotContains(t, text, "@string-append", "the unsanitized kebab-case form must never reach an LLVM identifier")
	require.Contains(t, text, "define i64 @string_append.worker(")
	require.Contains(t, text, "@string_append.closure")
}

// The worker/closure split: every lifted function gets a ".worker" define,
// and a captureless, single-parameter one additionally gets a static
// ".closure" global pairing its worker pointer with a null environment.
func TestEmitWorkerAndClosureShapeForTopLevelFunction(t *testing.T) {
	prog := &ir.Program{
		Entry: "main",
		Funcs: []*ir.Func{
			{
				Name:      "inc",
				Param:     "x",
				ParamType: int64T,
				RetType:   int64T,
				Body:      &ir.LocalRef{Base: ir.Base{Ty: int64T}, Name: "x"},
			},
		},
	}
	text, _, err := NewLLVMBackend().Emit(prog)
	require.NoError(t, err)
	require.Contains(t, text, "define i64 @inc.worker(i64 %env, i64 %arg)")
	require.Contains(t, text, "@inc.closure = private unnamed_addr constant [2 x i64] [i64 ptrtoint (i64 (i64, i64)* @inc.worker to i64), i64 0]")
}

// A call into an ExternRef is emitted as a direct `call` against the
// declared symbol, with the kebab-case name underscored (spec.md's
// runtime ABI boundary).
func TestEmitCallToExternUsesUnderscoredSymbol(t *testing.T) {
	prog := &ir.Program{
		Entry: "main",
		Funcs: []*ir.Func{
			{
				Name:    "main",
				RetType: int64T,
				Body: &ir.Call{
					Base: ir.Base{Ty: int64T},
					Fn:   &ir.ExternRef{Base: ir.Base{Ty: int64T}, Symbol: "add-int64"},
					Arg:  int64Const(1),
				},
			},
		},
	}
	text, _, err := NewLLVMBackend().Emit(prog)
	require.NoError(t, err)
	require.Contains(t, text, "declare i64 @add_int64(i64)")
	require.Contains(t, text, "call i64 @add_int64(i64 1)")
}

// The entry point calls Entry's own worker with a null env/arg pair --
// Program.Entry is a plain value binding, not a closure invocation.
func TestEmitEntryPointCallsEntryWorker(t *testing.T) {
	prog := &ir.Program{
		Entry: "main",
		Funcs: []*ir.Func{
			{Name: "main", RetType: int64T, Body: int64Const(42)},
		},
	}
	text, _, err := NewLLVMBackend().Emit(prog)
	require.NoError(t, err)
	require.Contains(t, text, "define i32 @main() {\nentry:")
	require.Contains(t, text, "call i64 @main.worker(i64 0, i64 0)")
}

// A MakeClosure allocates an environment block sized to its capture count
// plus a {fnptr,env} pair pointing at TargetFn's worker.
func TestEmitMakeClosureAllocatesEnvAndPair(t *testing.T) {
	prog := &ir.Program{
		Entry: "main",
		Funcs: []*ir.Func{
			{
				Name:      "adder$1",
				Param:     "x",
				ParamType: int64T,
				Captures:  []string{"n"},
				RetType:   int64T,
				Body:      &ir.LocalRef{Base: ir.Base{Ty: int64T}, Name: "x"},
			},
			{
				Name:      "adder",
				Param:     "n",
				ParamType: int64T,
				RetType:   int64T,
				Body: &ir.MakeClosure{
					Base:     ir.Base{Ty: int64T},
					TargetFn: "adder$1",
					Captures: []ir.Node{&ir.LocalRef{Base: ir.Base{Ty: int64T}, Name: "n"}},
				},
			},
		},
	}
	text, _, err := NewLLVMBackend().Emit(prog)
	require.NoError(t, err)
	require.Contains(t, text, "call i8* @malloc(i64 8)")
	require.Contains(t, text, "call i8* @malloc(i64 16)")
	require.Contains(t, text, "ptrtoint (i64 (i64, i64)* @adder$1.worker to i64)")
}

// A case arm's tag check and a data constructor's Alloc both round-trip
// through the uniform tagged-heap-cell representation.
func TestEmitAllocAndTagEquals(t *testing.T) {
	prog := &ir.Program{
		Entry: "main",
		Funcs: []*ir.Func{
			{
				Name:    "main",
				RetType: int64T,
				Body: &ir.Let{
					Base:     ir.Base{Ty: int64T},
					Bindings: []ir.LetBinding{{Name: "v", Value: &ir.Alloc{Base: ir.Base{Ty: int64T}, Tag: 1, DataName: "String", Fields: []ir.Node{int64Const(7)}}}},
					Body:     &ir.TagEquals{Base: ir.Base{Ty: boolT}, Tag: 1, Value: &ir.LocalRef{Base: ir.Base{Ty: int64T}, Name: "v"}},
				},
			},
		},
	}
	text, _, err := NewLLVMBackend().Emit(prog)
	require.NoError(t, err)
	require.Contains(t, text, "call i8* @malloc(i64 16)")
	require.Contains(t, text, "store i64 1, i64* ")
	require.Contains(t, text, "icmp eq i64")
}

// String literals are hoisted into module-level private constants and
// referenced by a ptrtoint of their array global, never inlined in place.
func TestEmitStringConstantHoistedToModuleScope(t *testing.T) {
	prog := &ir.Program{
		Entry: "main",
		Funcs: []*ir.Func{
			{Name: "main", RetType: int64T, Body: &ir.Const{Base: ir.Base{Ty: int64T}, Kind: ir.ConstString, StrVal: "hi"}},
		},
	}
	text, _, err := NewLLVMBackend().Emit(prog)
	require.NoError(t, err)
	require.True(t, strings.Contains(text, `c"hi\00"`))
	require.Contains(t, text, "private unnamed_addr constant [3 x i8]")
}
