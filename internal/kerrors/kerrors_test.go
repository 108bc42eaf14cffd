package kerrors

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunholo/kvasir/internal/token"
)

func span() token.Span {
	return token.Span{File: "t.kvs", Start: 10, End: 14, Line: 2, Col: 5}
}

// New wraps the report in the single fail-fast *Error shape spec.md §7
// requires, with a stable versioned schema string.
func TestNewProducesVersionedSchema(t *testing.T) {
	err := New(PhaseType, TYP001, span(), "expected %s, got %s", "Int64", "Bool")
	rep, ok := AsReport(err)
	require.True(t, ok)
	require.Equal(t, "kvasir.error/v1", rep.Schema)
	require.Equal(t, TYP001, rep.Code)
	require.Equal(t, PhaseType, rep.Phase)
	require.Equal(t, "expected Int64, got Bool", rep.Message)
}

// AsReport returns false for a plain (non-kvasir) error, never panicking.
func TestAsReportFalseForForeignError(t *testing.T) {
	_, ok := AsReport(errPlain("boom"))
	require.False(t, ok)
}

type errPlain string

func (e errPlain) Error() string { return string(e) }

// WithData attaches structured data without mutating the original error.
func TestWithDataLeavesOriginalUntouched(t *testing.T) {
	orig := New(PhaseMono, MONO002, span(), "non-ground extern %q", "mystery")
	withData := WithData(orig, map[string]any{"symbol": "mystery"})

	origRep, _ := AsReport(orig)
	require.Nil(t, origRep.Data)

	newRep, _ := AsReport(withData)
	require.Equal(t, "mystery", newRep.Data["symbol"])
}

// Diagnostic renders the exact "<file>:<line>:<col>: <code>: <message>"
// shape spec.md §6 requires for the default (non-JSON) error surface.
func TestDiagnosticFormatsFileLineColCodeMessage(t *testing.T) {
	err := New(PhaseRead, RD001, span(), "unmatched %s", ")")
	require.Equal(t, "t.kvs:2:5: RD001: unmatched )", Diagnostic(err))
}

// Diagnostic falls back to Error() for an error with no span (or not a
// kvasir Report at all), rather than panicking on a nil dereference.
func TestDiagnosticFallsBackForSpanlessOrForeignError(t *testing.T) {
	require.Equal(t, "boom", Diagnostic(errPlain("boom")))
	require.Equal(t, "RD002: eof", Diagnostic(&Error{Rep: &Report{Code: RD002, Message: "eof"}}))
}

// ToJSON round-trips every field through encoding/json, matching the
// report's own struct tags (the `-json-errors` surface's contract with
// editor tooling).
func TestToJSONRoundTripsReportFields(t *testing.T) {
	err := New(PhaseName, NAM001, span(), "unbound identifier %q", "frobnicate")
	rep, _ := AsReport(err)
	text, jerr := rep.ToJSON(true)
	require.NoError(t, jerr)

	var decoded Report
	require.NoError(t, json.Unmarshal([]byte(text), &decoded))
	require.Equal(t, rep.Code, decoded.Code)
	require.Equal(t, rep.Phase, decoded.Phase)
	require.Equal(t, rep.Message, decoded.Message)
	require.Equal(t, rep.Span.Line, decoded.Span.Line)
}
