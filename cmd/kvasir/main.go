// Command kvasir is the ahead-of-time compiler's CLI entry point
// (spec.md §6: `kvasir [-l <lib>]… [-o <out>] <input.kvs>`).
package main

import (
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/peterh/liner"

	"github.com/sunholo/kvasir/internal/config"
	"github.com/sunholo/kvasir/internal/expand"
	"github.com/sunholo/kvasir/internal/infer"
	"github.com/sunholo/kvasir/internal/kerrors"
	"github.com/sunholo/kvasir/internal/pipeline"
	"github.com/sunholo/kvasir/internal/stdlib"
)

var errColor = color.New(color.FgRed, color.Bold)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	manifest, err := config.LoadManifest(".")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if len(argv) == 1 && argv[0] == "-repl" {
		return runRepl()
	}

	cfg, err := config.FromArgs(argv, manifest)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	result, err := pipeline.Run(cfg)
	if err != nil {
		reportError(err, cfg.JSONErrors)
		return 1
	}

	if cfg.Trace {
		for _, t := range result.Timings {
			fmt.Fprintf(os.Stderr, "trace: %-10s %s\n", t.Phase, t.Duration)
		}
	}
	if cfg.TraceMono {
		diff := cmp.Diff([]string(nil), result.InstanceKeys)
		fmt.Fprintf(os.Stderr, "trace-mono: instance set (pre-fixpoint empty -> post-fixpoint):\n%s", diff)
	}
	if cfg.DumpAST && result.Program != nil {
		spew.Fdump(os.Stderr, result.Program)
	}
	if cfg.DumpTyped && result.Specialized != nil {
		spew.Fdump(os.Stderr, result.Specialized)
	}
	if cfg.DumpIR && result.IR != nil {
		spew.Fdump(os.Stderr, result.IR)
	}
	if cfg.EmitLLVM {
		fmt.Println(result.ModuleText)
		return 0
	}

	fmt.Fprintf(os.Stderr, "%s %s\n", color.GreenString("built"), result.Executable)
	return 0
}

func reportError(err error, asJSON bool) {
	if rep, ok := kerrors.AsReport(err); ok {
		if asJSON {
			text, _ := rep.ToJSON(true)
			fmt.Fprintln(os.Stderr, text)
			return
		}
		fmt.Fprintln(os.Stderr, errColor.Sprint(kerrors.Diagnostic(err)))
		return
	}
	fmt.Fprintln(os.Stderr, errColor.Sprint(err.Error()))
}

// runRepl starts an interactive read-eval-infer loop (SPEC_FULL.md §4.I:
// github.com/peterh/liner). Each line is wrapped as a fresh `main` against
// the standard library and lexed/read/expanded/inferred, but not lowered
// or compiled to a native binary -- this is an exploratory aid for poking
// at the standard library's types, not a second execution mode. The loop
// prints the inferred type of main.
func runRepl() int {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("kvasir repl -- each line's inferred type is printed; Ctrl-D to exit")
	for {
		text, err := line.Prompt("kvasir> ")
		if err != nil {
			break
		}
		line.AppendHistory(text)
		source := fmt.Sprintf("(import \"std\")\n(define main %s)\n", text)

		prog, err := expand.New(stdlib.Loader{}).ExpandFile(source, "<repl>")
		if err != nil {
			reportError(err, false)
			continue
		}
		res, err := infer.Run(prog)
		if err != nil {
			reportError(err, false)
			continue
		}
		scheme, _, ok := res.Env.Lookup("main")
		if !ok {
			fmt.Fprintln(os.Stderr, errColor.Sprint("internal error: main not found after inference"))
			continue
		}
		fmt.Println(color.CyanString(scheme.String()))
	}
	return 0
}

var _ expand.Loader = stdlib.Loader{}
