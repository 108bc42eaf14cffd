// Package toolchain drives the external native toolchain (spec.md §6):
// kvasir itself never generates machine code; it hands the backend's
// textual module to `llc`, then links the resulting object file against
// internal/runtime's C shim and any `-l` libraries via `clang`.
package toolchain

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Options configures one native-executable build.
type Options struct {
	// ModuleText is the backend's emitted textual IR.
	ModuleText string
	// ModuleExt is that text's file extension (e.g. "ll").
	ModuleExt string
	// RuntimeSources are extra C sources to link in (internal/runtime's
	// core.c, typically written to a temp file by the caller).
	RuntimeSources []string
	// Libs are additional `-l<name>` link libraries (spec.md's `-l <lib>`
	// CLI flag).
	Libs []string
	// Output is the final executable path.
	Output string
	// KeepTemp skips removing the working temp directory.
	KeepTemp bool
	// LLC and Clang override the external binaries' names/paths.
	LLC, Clang string
}

// Result reports the paths produced.
type Result struct {
	ModulePath string
	ObjectPath string
	Executable string
}

// Build compiles opts.ModuleText to a native executable, returning the
// intermediate/final paths produced.
func Build(opts Options) (*Result, error) {
	llc := opts.LLC
	if llc == "" {
		llc = "llc"
	}
	clang := opts.Clang
	if clang == "" {
		clang = "clang"
	}

	dir, err := os.MkdirTemp("", "kvasir-build-")
	if err != nil {
		return nil, fmt.Errorf("toolchain: creating temp dir: %w", err)
	}
	if !opts.KeepTemp {
		defer os.RemoveAll(dir)
	}

	modulePath := filepath.Join(dir, "kvasir_out."+opts.ModuleExt)
	if err := os.WriteFile(modulePath, []byte(opts.ModuleText), 0o644); err != nil {
		return nil, fmt.Errorf("toolchain: writing module: %w", err)
	}

	objectPath := filepath.Join(dir, "kvasir_out.o")
	llcCmd := exec.Command(llc, "-filetype=obj", "-o", objectPath, modulePath)
	if out, err := llcCmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("toolchain: llc failed: %w\n%s", err, out)
	}

	args := []string{"-o", opts.Output, objectPath}
	args = append(args, opts.RuntimeSources...)
	for _, lib := range opts.Libs {
		args = append(args, "-l"+lib)
	}
	clangCmd := exec.Command(clang, args...)
	if out, err := clangCmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("toolchain: clang link failed: %w\n%s", err, out)
	}

	return &Result{ModulePath: modulePath, ObjectPath: objectPath, Executable: opts.Output}, nil
}
