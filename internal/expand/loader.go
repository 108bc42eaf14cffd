package expand

// Loader resolves the textual contents of an `(import <name>)` form,
// searching first the directory of the importing file, then a
// compiler-internal directory containing std.kvs (spec.md §6 "Import
// lookup path"). It returns the source text and a stable identifier used
// for spans and duplicate-import detection.
type Loader interface {
	Load(importingFile, name string) (source string, resolvedPath string, err error)
}
