// Package kerrors provides the flat, phase-indexed error taxonomy described
// in spec.md §7: every phase fails fast with a single structured report.
package kerrors

import (
	"encoding/json"
	"fmt"

	"github.com/sunholo/kvasir/internal/token"
)

// Phase identifies which compiler stage raised a Report.
type Phase string

const (
	PhaseLex    Phase = "lex"
	PhaseRead   Phase = "read"
	PhaseExpand Phase = "expand"
	PhaseName   Phase = "name"
	PhaseType   Phase = "type"
	PhaseMono   Phase = "mono"
	PhaseLower  Phase = "lower"
)

// Error code taxonomy. Codes are stable identifiers, not prose; the
// human-readable text lives in Report.Message.
const (
	// Lexer errors (LEX###)
	LEX001 = "LEX001" // unterminated string literal
	LEX002 = "LEX002" // unknown escape sequence
	LEX003 = "LEX003" // malformed numeric literal
	LEX004 = "LEX004" // unexpected byte

	// Reader errors (RD###)
	RD001 = "RD001" // bracket mismatch
	RD002 = "RD002" // unexpected EOF

	// Expander errors (EXP###)
	EXP001 = "EXP001" // malformed let binding
	EXP002 = "EXP002" // malformed data declaration
	EXP003 = "EXP003" // unknown special form
	EXP004 = "EXP004" // malformed define
	EXP005 = "EXP005" // malformed lambda
	EXP006 = "EXP006" // import not found
	EXP007 = "EXP007" // duplicate top-level definition

	// Name resolution errors (NAM###)
	NAM001 = "NAM001" // unbound identifier

	// Type errors (TYP###)
	TYP001 = "TYP001" // mismatch
	TYP002 = "TYP002" // occurs check
	TYP003 = "TYP003" // arity mismatch
	TYP004 = "TYP004" // unbound
	TYP005 = "TYP005" // ambiguous

	// Monomorphization errors (MONO###)
	MONO001 = "MONO001" // unreachable defaulting
	MONO002 = "MONO002" // non-ground extern

	// Lowering errors (LOW###) - should be unreachable; a compiler bug
	LOW001 = "LOW001"
)

// Report is the canonical structured error kvasir produces. It survives
// errors.As unwrapping via *Error so callers can recover the code/phase/span
// without parsing Error's text.
type Report struct {
	Schema  string         `json:"schema"`
	Code    string         `json:"code"`
	Phase   Phase          `json:"phase"`
	Message string         `json:"message"`
	Span    *token.Span    `json:"span,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Error wraps a Report as a Go error.
type Error struct {
	Rep *Report
}

func (e *Error) Error() string {
	if e.Rep == nil {
		return "unknown kvasir error"
	}
	if e.Rep.Span != nil {
		return fmt.Sprintf("%s: %s: %s", e.Rep.Span.String(), e.Rep.Code, e.Rep.Message)
	}
	return fmt.Sprintf("%s: %s", e.Rep.Code, e.Rep.Message)
}

// New builds a Report-backed error for the given phase/code/span.
func New(phase Phase, code string, span token.Span, format string, args ...any) error {
	return &Error{Rep: &Report{
		Schema:  "kvasir.error/v1",
		Code:    code,
		Phase:   phase,
		Message: fmt.Sprintf(format, args...),
		Span:    &span,
	}}
}

// WithData attaches structured data to an already-built error, returning a
// new error (the original is left untouched).
func WithData(err error, data map[string]any) error {
	e, ok := err.(*Error)
	if !ok || e.Rep == nil {
		return err
	}
	cp := *e.Rep
	cp.Data = data
	return &Error{Rep: &cp}
}

// AsReport extracts the Report carried by err, if any.
func AsReport(err error) (*Report, bool) {
	e, ok := err.(*Error)
	if !ok {
		return nil, false
	}
	return e.Rep, true
}

// ToJSON renders the report deterministically for editor tooling
// (`-json-errors`, per SPEC_FULL.md §6).
func (r *Report) ToJSON(compact bool) (string, error) {
	if compact {
		b, err := json.Marshal(r)
		return string(b), err
	}
	b, err := json.MarshalIndent(r, "", "  ")
	return string(b), err
}

// Diagnostic renders the single fail-fast line required by spec.md §6:
// "<file>:<line>:<col>: <kind>: <message>".
func Diagnostic(err error) string {
	rep, ok := AsReport(err)
	if !ok || rep.Span == nil {
		return err.Error()
	}
	return fmt.Sprintf("%s: %s: %s", rep.Span.String(), rep.Code, rep.Message)
}
