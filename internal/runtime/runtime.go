// Package runtime embeds kvasir's C runtime shim (spec.md §6's ABI
// surface), linked into every native executable by internal/toolchain.
package runtime

import _ "embed"

//go:embed core.c
var CoreC string
