// Package pipeline wires the compiler's phases together end to end (the
// lexer through the external toolchain), matching the ambient
// config/result shape the teacher's own driver uses: a Config in, a
// Result out, with per-phase timings for `-trace`.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sunholo/kvasir/internal/ast"
	"github.com/sunholo/kvasir/internal/backend"
	"github.com/sunholo/kvasir/internal/expand"
	"github.com/sunholo/kvasir/internal/infer"
	"github.com/sunholo/kvasir/internal/ir"
	"github.com/sunholo/kvasir/internal/lower"
	"github.com/sunholo/kvasir/internal/mono"
	"github.com/sunholo/kvasir/internal/runtime"
	"github.com/sunholo/kvasir/internal/toolchain"
)

func writeRuntimeSource(keep bool) (string, error) {
	dir, err := os.MkdirTemp("", "kvasir-runtime-")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "core.c")
	if err := os.WriteFile(path, []byte(runtime.CoreC), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Config assembles one compilation request (spec.md §6's CLI surface,
// plus the additive developer flags of SPEC_FULL.md §6).
type Config struct {
	InputFile string
	Source    string // if set, used instead of reading InputFile (tests)
	Output    string
	Libs      []string

	Loader expand.Loader

	EmitLLVM   bool
	KeepTemp   bool
	Trace      bool
	TraceMono  bool
	DumpSexpr  bool
	DumpAST    bool
	DumpTyped  bool
	DumpIR     bool
	JSONErrors bool

	LLC, Clang string
}

// PhaseTiming records one phase's wall-clock duration for `-trace`.
type PhaseTiming struct {
	Phase    string
	Duration time.Duration
}

// Result is the outcome of a full (or partially short-circuited, for
// `-emit-llvm`) pipeline run.
type Result struct {
	Program      *ast.Program
	InferRes     *infer.Result
	Specialized  *ast.Program
	InstanceKeys []string
	IR           *ir.Program
	ModuleText   string
	ModuleExt    string
	Executable   string
	Timings      []PhaseTiming
}

// Run executes every phase in order, short-circuiting after backend
// emission when cfg.EmitLLVM is set.
func Run(cfg Config) (*Result, error) {
	res := &Result{}
	source := cfg.Source
	if source == "" {
		b, err := os.ReadFile(cfg.InputFile)
		if err != nil {
			return nil, fmt.Errorf("pipeline: reading %s: %w", cfg.InputFile, err)
		}
		source = string(b)
	}

	timed := func(phase string, fn func() error) error {
		start := time.Now()
		err := fn()
		res.Timings = append(res.Timings, PhaseTiming{Phase: phase, Duration: time.Since(start)})
		return err
	}

	if err := timed("expand", func() error {
		prog, err := expand.New(cfg.Loader).ExpandFile(source, cfg.InputFile)
		if err != nil {
			return err
		}
		res.Program = prog
		return nil
	}); err != nil {
		return res, err
	}

	var inferRes *infer.Result
	if err := timed("infer", func() error {
		r, err := infer.Run(res.Program)
		if err != nil {
			return err
		}
		inferRes = r
		res.InferRes = r
		return nil
	}); err != nil {
		return res, err
	}

	if err := timed("mono", func() error {
		specialized, keys, err := mono.Monomorphize(res.Program, inferRes)
		if err != nil {
			return err
		}
		res.Specialized = specialized
		res.InstanceKeys = keys
		return nil
	}); err != nil {
		return res, err
	}

	if err := timed("lower", func() error {
		lowered, err := lower.Lower(res.Specialized, inferRes.DataOf)
		if err != nil {
			return err
		}
		res.IR = lowered
		return nil
	}); err != nil {
		return res, err
	}

	if err := timed("backend", func() error {
		text, ext, err := backend.NewLLVMBackend().Emit(res.IR)
		if err != nil {
			return err
		}
		res.ModuleText, res.ModuleExt = text, ext
		return nil
	}); err != nil {
		return res, err
	}

	if cfg.EmitLLVM {
		return res, nil
	}

	if err := timed("toolchain", func() error {
		runtimeSrc, err := writeRuntimeSource(cfg.KeepTemp)
		if err != nil {
			return err
		}
		result, err := toolchain.Build(toolchain.Options{
			ModuleText:     res.ModuleText,
			ModuleExt:      res.ModuleExt,
			RuntimeSources: []string{runtimeSrc},
			Libs:           cfg.Libs,
			Output:         cfg.Output,
			KeepTemp:       cfg.KeepTemp,
			LLC:            cfg.LLC,
			Clang:          cfg.Clang,
		})
		if err != nil {
			return err
		}
		res.Executable = result.Executable
		return nil
	}); err != nil {
		return res, err
	}

	return res, nil
}
