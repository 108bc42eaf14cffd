package backend

import (
	"fmt"
	"strings"

	"github.com/sunholo/kvasir/internal/ir"
)

// LLVMBackend emits textual LLVM IR (spec.md §6: "intermediate IR ...
// placed in a temporary directory"). Every kvasir value — integer, float,
// bool, closure, or heap-allocated data value — is represented uniformly
// as a single i64 word: scalars carry their bit pattern directly, and
// everything else carries a pointer (via ptrtoint/inttoptr) to a heap
// block whose first word is either a constructor tag or a worker function
// pointer. This is a deliberate simplification over spec.md §6's literal
// unboxed-struct-by-value runtime ABI description — see DESIGN.md — kept
// consistent end to end, including at the extern call boundary, so
// internal/runtime's C shim can define its own matching representation
// rather than the backend needing to reproduce native calling-convention
// struct-passing rules.
type LLVMBackend struct{}

func NewLLVMBackend() *LLVMBackend { return &LLVMBackend{} }

func (b *LLVMBackend) Emit(prog *ir.Program) (string, string, error) {
	e := &emitter{strings: map[string]string{}}
	var out strings.Builder
	out.WriteString("; generated by kvasir; do not edit\n")
	out.WriteString("target datalayout = \"e-m:e-i64:64-f80:128-n8:16:32:64-S128\"\n\n")
	out.WriteString(externDecls())

	var bodies strings.Builder
	for _, fn := range prog.Funcs {
		if err := e.emitFunc(&bodies, fn); err != nil {
			return "", "", err
		}
	}

	for name, lit := range e.strings {
		fmt.Fprintf(&out, "@%s = private unnamed_addr constant [%d x i8] c\"%s\\00\"\n", name, len(litRaw(lit))+1, escapeString(lit))
	}
	out.WriteString("\n")
	for _, fn := range prog.Funcs {
		if len(fn.Captures) == 0 && fn.Param != "" {
			sym := llvmSym(fn.Name)
			fmt.Fprintf(&out, "@%s.closure = private unnamed_addr constant [2 x i64] [i64 ptrtoint (i64 (i64, i64)* @%s.worker to i64), i64 0]\n", sym, sym)
		}
	}
	out.WriteString("\n")
	out.WriteString(bodies.String())

	out.WriteString("\ndefine i32 @main() {\nentry:\n")
	fmt.Fprintf(&out, "  %%rw = call i64 @%s.worker(i64 0, i64 0)\n", llvmSym(prog.Entry))
	out.WriteString("  ret i32 0\n}\n")
	return out.String(), "ll", nil
}

func externDecls() string {
	var s strings.Builder
	for _, name := range []string{
		"add-int64", "sub-int64", "mul-int64", "div-int64",
		"eq-int64", "neq-int64", "gt-int64", "gteq-int64", "lt-int64", "lteq-int64",
		"add-float64", "sub-float64", "mul-float64", "div-float64",
		"eq-float64", "neq-float64", "gt-float64", "gteq-float64", "lt-float64", "lteq-float64",
		"print_int64", "print_uint64", "print_float64", "read_int64", "read_uint64",
		"c_display", "pcg32_srandom", "pcg32_random", "_clock",
	} {
		fmt.Fprintf(&s, "declare i64 @%s(i64)\n", llvmSym(name))
	}
	s.WriteString("declare i8* @malloc(i64)\n\n")
	return s.String()
}

func llvmSym(name string) string { return strings.ReplaceAll(name, "-", "_") }

type emitter struct {
	strings map[string]string
	tmp     int
}

func (e *emitter) fresh() string {
	e.tmp++
	return fmt.Sprintf("%%t%d", e.tmp)
}

// emitFunc renders one ir.Func as one LLVM worker function (taking the env
// pointer and the argument); for captureful lifted lambdas MakeClosure
// builds the {fnptr,env} pair at the call site instead of via a static
// global.
func (e *emitter) emitFunc(out *strings.Builder, fn *ir.Func) error {
	fmt.Fprintf(out, "define i64 @%s.worker(i64 %%env, i64 %%arg) {\nentry:\n", llvmSym(fn.Name))
	if fn.Param != "" {
		fmt.Fprintf(out, "  %%%s = bitcast i64 %%arg to i64\n", fn.Param)
	}
	for i, cap := range fn.Captures {
		fmt.Fprintf(out, "  %%envptr%d = inttoptr i64 %%env to i64*\n", i)
		fmt.Fprintf(out, "  %%envslot%d = getelementptr i64, i64* %%envptr%d, i64 %d\n", i, i, i)
		fmt.Fprintf(out, "  %%%s = load i64, i64* %%envslot%d\n", cap, i)
	}
	v, err := e.emitNode(out, fn.Body)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  ret i64 %s\n}\n\n", v)
	return nil
}

func (e *emitter) emitNode(out *strings.Builder, n ir.Node) (string, error) {
	switch n := n.(type) {
	case *ir.Const:
		return e.emitConst(n)

	case *ir.LocalRef:
		return "%" + n.Name, nil

	case *ir.GlobalRef:
		t := e.fresh()
		fmt.Fprintf(out, "  %s = ptrtoint [2 x i64]* @%s.closure to i64\n", t, llvmSym(n.Symbol))
		return t, nil

	case *ir.ExternRef:
		return "@" + llvmSym(n.Symbol), nil

	case *ir.MakeClosure:
		capCount := len(n.Captures)
		envRaw := e.fresh()
		fmt.Fprintf(out, "  %s = call i8* @malloc(i64 %d)\n", envRaw, 8*capCount)
		envPtr := e.fresh()
		fmt.Fprintf(out, "  %s = bitcast i8* %s to i64*\n", envPtr, envRaw)
		for i, c := range n.Captures {
			cv, err := e.emitNode(out, c)
			if err != nil {
				return "", err
			}
			slot := e.fresh()
			fmt.Fprintf(out, "  %s = getelementptr i64, i64* %s, i64 %d\n", slot, envPtr, i)
			fmt.Fprintf(out, "  store i64 %s, i64* %s\n", cv, slot)
		}
		envInt := e.fresh()
		fmt.Fprintf(out, "  %s = ptrtoint i64* %s to i64\n", envInt, envPtr)

		pairRaw := e.fresh()
		fmt.Fprintf(out, "  %s = call i8* @malloc(i64 16)\n", pairRaw)
		pairPtr := e.fresh()
		fmt.Fprintf(out, "  %s = bitcast i8* %s to i64*\n", pairPtr, pairRaw)
		fnSlot := e.fresh()
		fmt.Fprintf(out, "  %s = getelementptr i64, i64* %s, i64 0\n", fnSlot, pairPtr)
		fmt.Fprintf(out, "  store i64 ptrtoint (i64 (i64, i64)* @%s.worker to i64), i64* %s\n", llvmSym(n.TargetFn), fnSlot)
		envSlot := e.fresh()
		fmt.Fprintf(out, "  %s = getelementptr i64, i64* %s, i64 1\n", envSlot, pairPtr)
		fmt.Fprintf(out, "  store i64 %s, i64* %s\n", envInt, envSlot)
		result := e.fresh()
		fmt.Fprintf(out, "  %s = ptrtoint i64* %s to i64\n", result, pairPtr)
		return result, nil

	case *ir.Call:
		fnVal, err := e.emitNode(out, n.Fn)
		if err != nil {
			return "", err
		}
		argVal, err := e.emitNode(out, n.Arg)
		if err != nil {
			return "", err
		}
		if ext, ok := n.Fn.(*ir.ExternRef); ok {
			result := e.fresh()
			fmt.Fprintf(out, "  %s = call i64 @%s(i64 %s)\n", result, llvmSym(ext.Symbol), argVal)
			return result, nil
		}
		pairPtr := e.fresh()
		fmt.Fprintf(out, "  %s = inttoptr i64 %s to i64*\n", pairPtr, fnVal)
		fnSlot := e.fresh()
		fmt.Fprintf(out, "  %s = getelementptr i64, i64* %s, i64 0\n", fnSlot, pairPtr)
		fnWord := e.fresh()
		fmt.Fprintf(out, "  %s = load i64, i64* %s\n", fnWord, fnSlot)
		fnPtr := e.fresh()
		fmt.Fprintf(out, "  %s = inttoptr i64 %s to i64 (i64, i64)*\n", fnPtr, fnWord)
		envSlot := e.fresh()
		fmt.Fprintf(out, "  %s = getelementptr i64, i64* %s, i64 1\n", envSlot, pairPtr)
		envWord := e.fresh()
		fmt.Fprintf(out, "  %s = load i64, i64* %s\n", envWord, envSlot)
		result := e.fresh()
		fmt.Fprintf(out, "  %s = call i64 %s(i64 %s, i64 %s)\n", result, fnPtr, envWord, argVal)
		return result, nil

	case *ir.If:
		cond, err := e.emitNode(out, n.Cond)
		if err != nil {
			return "", err
		}
		condBit := e.fresh()
		fmt.Fprintf(out, "  %s = icmp ne i64 %s, 0\n", condBit, cond)
		id := e.tmp
		e.tmp++
		fmt.Fprintf(out, "  br i1 %s, label %%then%d, label %%else%d\n", condBit, id, id)
		fmt.Fprintf(out, "then%d:\n", id)
		thenV, err := e.emitNode(out, n.Then)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(out, "  br label %%merge%d\n", id)
		fmt.Fprintf(out, "else%d:\n", id)
		elseV, err := e.emitNode(out, n.Else)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(out, "  br label %%merge%d\n", id)
		fmt.Fprintf(out, "merge%d:\n", id)
		result := e.fresh()
		fmt.Fprintf(out, "  %s = phi i64 [ %s, %%then%d ], [ %s, %%else%d ]\n", result, thenV, id, elseV, id)
		return result, nil

	case *ir.Let:
		for _, bnd := range n.Bindings {
			v, err := e.emitNode(out, bnd.Value)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(out, "  %%%s = bitcast i64 %s to i64\n", bnd.Name, v)
		}
		return e.emitNode(out, n.Body)

	case *ir.Alloc:
		raw := e.fresh()
		fmt.Fprintf(out, "  %s = call i8* @malloc(i64 %d)\n", raw, 8*(len(n.Fields)+1))
		ptr := e.fresh()
		fmt.Fprintf(out, "  %s = bitcast i8* %s to i64*\n", ptr, raw)
		tagSlot := e.fresh()
		fmt.Fprintf(out, "  %s = getelementptr i64, i64* %s, i64 0\n", tagSlot, ptr)
		fmt.Fprintf(out, "  store i64 %d, i64* %s\n", n.Tag, tagSlot)
		for i, f := range n.Fields {
			fv, err := e.emitNode(out, f)
			if err != nil {
				return "", err
			}
			slot := e.fresh()
			fmt.Fprintf(out, "  %s = getelementptr i64, i64* %s, i64 %d\n", slot, ptr, i+1)
			fmt.Fprintf(out, "  store i64 %s, i64* %s\n", fv, slot)
		}
		result := e.fresh()
		fmt.Fprintf(out, "  %s = ptrtoint i64* %s to i64\n", result, ptr)
		return result, nil

	case *ir.GetTag:
		v, err := e.emitNode(out, n.Value)
		if err != nil {
			return "", err
		}
		ptr := e.fresh()
		fmt.Fprintf(out, "  %s = inttoptr i64 %s to i64*\n", ptr, v)
		result := e.fresh()
		fmt.Fprintf(out, "  %s = load i64, i64* %s\n", result, ptr)
		return result, nil

	case *ir.TagEquals:
		v, err := e.emitNode(out, n.Value)
		if err != nil {
			return "", err
		}
		ptr := e.fresh()
		fmt.Fprintf(out, "  %s = inttoptr i64 %s to i64*\n", ptr, v)
		tag := e.fresh()
		fmt.Fprintf(out, "  %s = load i64, i64* %s\n", tag, ptr)
		cmp := e.fresh()
		fmt.Fprintf(out, "  %s = icmp eq i64 %s, %d\n", cmp, tag, n.Tag)
		result := e.fresh()
		fmt.Fprintf(out, "  %s = zext i1 %s to i64\n", result, cmp)
		return result, nil

	case *ir.GetPayload:
		v, err := e.emitNode(out, n.Value)
		if err != nil {
			return "", err
		}
		ptr := e.fresh()
		fmt.Fprintf(out, "  %s = inttoptr i64 %s to i64*\n", ptr, v)
		slot := e.fresh()
		fmt.Fprintf(out, "  %s = getelementptr i64, i64* %s, i64 %d\n", slot, ptr, n.Index+1)
		result := e.fresh()
		fmt.Fprintf(out, "  %s = load i64, i64* %s\n", result, slot)
		return result, nil

	default:
		return "", fmt.Errorf("backend: unhandled IR node %T", n)
	}
}

func (e *emitter) emitConst(n *ir.Const) (string, error) {
	switch n.Kind {
	case ir.ConstInt:
		return fmt.Sprintf("%d", n.IntVal), nil
	case ir.ConstUInt:
		return fmt.Sprintf("%d", n.UIntVal), nil
	case ir.ConstBool:
		if n.BoolVal {
			return "1", nil
		}
		return "0", nil
	case ir.ConstFloat:
		return fmt.Sprintf("bitcast (double %g to i64)", n.FloatVal), nil
	case ir.ConstString:
		name := fmt.Sprintf("str.%d", len(e.strings))
		e.strings[name] = n.StrVal
		return fmt.Sprintf("ptrtoint ([%d x i8]* @%s to i64)", len(n.StrVal)+1, name), nil
	default:
		return "0", nil
	}
}

func litRaw(s string) string { return s }

func escapeString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' || c < 0x20 || c > 0x7e {
			fmt.Fprintf(&b, "\\%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
