// Package backend defines the code-generation adapter boundary (spec.md
// §4.G: "the lowerer targets an interface; a concrete LLVM backend is
// assumed but not mandated"), plus a concrete textual LLVM IR emitter.
package backend

import "github.com/sunholo/kvasir/internal/ir"

// Backend turns a lowered ir.Program into one or more textual module
// files ready for the external toolchain (spec.md §6).
type Backend interface {
	// Emit returns the backend's module text and its preferred file
	// extension (e.g. "ll" for textual LLVM IR).
	Emit(prog *ir.Program) (text string, ext string, err error)
}
