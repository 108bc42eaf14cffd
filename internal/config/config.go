// Package config assembles a pipeline.Config from CLI flags and an
// optional kvasir.yaml manifest (SPEC_FULL.md §4.I: gopkg.in/yaml.v3).
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sunholo/kvasir/internal/pipeline"
	"github.com/sunholo/kvasir/internal/stdlib"
)

// Manifest is kvasir.yaml's shape: project-level defaults that CLI flags
// override.
type Manifest struct {
	Output string   `yaml:"output"`
	Libs   []string `yaml:"libs"`
	Clang  string   `yaml:"clang"`
	LLC    string   `yaml:"llc"`
}

// LoadManifest reads kvasir.yaml from dir, if present; a missing file is
// not an error (an empty Manifest is returned).
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "kvasir.yaml")
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &m, nil
}

// libList accumulates repeated `-l` flags (spec.md: `kvasir [-l <lib>]… …`).
type libList []string

func (l *libList) String() string { return fmt.Sprint([]string(*l)) }
func (l *libList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// FromArgs parses argv (excluding the program name) into a pipeline.Config,
// applying manifest defaults first.
func FromArgs(argv []string, manifest *Manifest) (pipeline.Config, error) {
	fs := flag.NewFlagSet("kvasir", flag.ContinueOnError)

	var libs libList
	fs.Var(&libs, "l", "link an additional library (repeatable)")
	output := fs.String("o", "a.out", "output executable path")
	emitLLVM := fs.Bool("emit-llvm", false, "stop after backend emission and print the LLVM IR module")
	keepTemp := fs.Bool("keep-temp", false, "do not remove the toolchain's temp directory")
	trace := fs.Bool("trace", false, "print phase timings to stderr")
	traceMono := fs.Bool("trace-mono", false, "print each monomorphization specialization to stderr")
	dumpSexpr := fs.Bool("dump-sexpr", false, "accepted but has no effect: reader forms are not printed")
	dumpAST := fs.Bool("dump-ast", false, "print the expanded core AST (github.com/davecgh/go-spew)")
	dumpTyped := fs.Bool("dump-typed", false, "print the type-annotated AST")
	dumpIR := fs.Bool("dump-ir", false, "print the lowered IR")
	jsonErrors := fs.Bool("json-errors", false, "emit a single kvasir.error/v1 JSON object on failure")
	repl := fs.Bool("repl", false, "start an interactive REPL instead of compiling a file")
	clang := fs.String("clang", "", "override the clang binary")
	llc := fs.String("llc", "", "override the llc binary")
	_ = repl

	if manifest != nil {
		if manifest.Output != "" {
			*output = manifest.Output
		}
		if manifest.Clang != "" {
			*clang = manifest.Clang
		}
		if manifest.LLC != "" {
			*llc = manifest.LLC
		}
	}

	if err := fs.Parse(argv); err != nil {
		return pipeline.Config{}, err
	}
	if fs.NArg() != 1 {
		return pipeline.Config{}, fmt.Errorf("usage: kvasir [-l <lib>]... [-o <out>] <input.kvs>")
	}

	allLibs := append([]string{}, manifest.libsOrNil()...)
	allLibs = append(allLibs, libs...)

	return pipeline.Config{
		InputFile:  fs.Arg(0),
		Output:     *output,
		Libs:       allLibs,
		Loader:     stdlib.Loader{},
		EmitLLVM:   *emitLLVM,
		KeepTemp:   *keepTemp,
		Trace:      *trace,
		TraceMono:  *traceMono,
		DumpSexpr:  *dumpSexpr,
		DumpAST:    *dumpAST,
		DumpTyped:  *dumpTyped,
		DumpIR:     *dumpIR,
		JSONErrors: *jsonErrors,
		Clang:      *clang,
		LLC:        *llc,
	}, nil
}

func (m *Manifest) libsOrNil() []string {
	if m == nil {
		return nil
	}
	return m.Libs
}
