// Package stdlib embeds kvasir's standard library sources (GLOSSARY
// "standard library") and exposes them through the internal/expand.Loader
// interface for `(import ...)`; `-l <lib>` flags go to the linker instead.
package stdlib

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed std.kvs sicp.kvs
var embedded embed.FS

// Loader resolves `(import "name")` against the importing file's
// directory first, falling back to the embedded standard library.
type Loader struct{}

func (Loader) Load(importingFile, name string) (string, string, error) {
	dir := filepath.Dir(importingFile)
	path := filepath.Join(dir, name+".kvs")
	if b, err := os.ReadFile(path); err == nil {
		return string(b), path, nil
	}
	b, err := embedded.ReadFile(name + ".kvs")
	if err != nil {
		return "", "", fmt.Errorf("stdlib: cannot resolve import %q: not found in %s or the standard library", name, dir)
	}
	return string(b), "<stdlib>/" + name + ".kvs", nil
}
