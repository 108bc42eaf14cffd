package testutil

import (
	"testing"

	"github.com/sunholo/kvasir/internal/expand"
	"github.com/sunholo/kvasir/internal/pipeline"
	"github.com/sunholo/kvasir/internal/stdlib"
)

// RunSource drives the whole pipeline from a literal source string, the way
// the teacher's own pipeline_test drives its phases end to end. Imports
// resolve against the embedded standard library. It stops after backend
// emission (EmitLLVM) so tests don't depend on clang/llc being installed.
func RunSource(t *testing.T, src string) (*pipeline.Result, error) {
	t.Helper()
	return pipeline.Run(pipeline.Config{
		Source:    src,
		InputFile: "<test>",
		Loader:    stdlib.Loader{},
		EmitLLVM:  true,
	})
}

var _ expand.Loader = stdlib.Loader{}
