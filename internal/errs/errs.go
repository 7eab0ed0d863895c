// Package errs defines the closed error taxonomy shared by every Core
// component: the parser, the analyzer, the compiler, and the VM all report
// through the same Span/Diagnostic/RuntimeError shapes.
package errs

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Span locates a range of a Source Module's text.
type Span struct {
	ModuleID string
	Start    int // byte offset, inclusive
	End      int // byte offset, exclusive
	Line     int // 1-based line of Start
	Column   int // 1-based column of Start
}

func (s Span) String() string {
	if s.ModuleID == "" {
		return fmt.Sprintf("%d:%d", s.Line, s.Column)
	}
	return fmt.Sprintf("%s:%d:%d", s.ModuleID, s.Line, s.Column)
}

// Severity is the reporting level of a Diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
	SeverityHint
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// Depth is the analyzer's diagnostic band, spec.md §4.5.
type Depth int

const (
	DepthSyntax Depth = iota + 1
	DepthLocalSemantic
	DepthDeepSemantic
)

// Edit is a single text replacement, used as a quick-fix.
type Edit struct {
	Span        Span
	Replacement string
}

// Diagnostic is a single reportable finding: syntax error, semantic error or
// warning. It never aborts analysis (spec.md §7 "Propagation").
type Diagnostic struct {
	Severity  Severity
	Depth     Depth
	Span      Span
	Code      string
	Message   string
	QuickFix  []Edit
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s [%s] at %s", d.Severity, d.Message, d.Code, d.Span)
}

// Kind is the closed taxonomy of spec.md §7.
type Kind string

const (
	KindSyntax              Kind = "SyntaxError"
	KindSemantic            Kind = "SemanticError"
	KindCompile             Kind = "CompileError"
	KindRuntime             Kind = "RuntimeError"
	KindInterruptedAnalysis Kind = "InterruptedAnalysis"
	KindInterruptedExecution Kind = "InterruptedExecution"
)

// RuntimeKind enumerates the VM's sub-kinds of RuntimeError.
type RuntimeKind string

const (
	RuntimeTypeMismatch      RuntimeKind = "TypeMismatch"
	RuntimeMissingOperator   RuntimeKind = "MissingOperator"
	RuntimeMissingField      RuntimeKind = "MissingField"
	RuntimeMissingMethod     RuntimeKind = "MissingMethod"
	RuntimeBadIndex          RuntimeKind = "BadIndex"
	RuntimeBadRange          RuntimeKind = "BadRange"
	RuntimeBorrowViolation   RuntimeKind = "BorrowViolation"
	RuntimeDivisionByZero    RuntimeKind = "DivisionByZero"
	RuntimeArity             RuntimeKind = "Arity"
	RuntimeCastFailure       RuntimeKind = "CastFailure"
	RuntimeNilAccess         RuntimeKind = "NilAccess"
	RuntimeHostCallbackFailure RuntimeKind = "HostCallbackFailure"
	RuntimeInterrupted       RuntimeKind = "Interrupted"
)

// Error is the engine-wide reportable error: it carries everything spec.md
// §7 requires (kind, severity, span, message, code, optional quick-fixes)
// plus a runtime sub-kind and an optional wrapped host error for
// HostCallbackFailure.
type Error struct {
	Kind        Kind
	RuntimeKind RuntimeKind // only meaningful when Kind == KindRuntime
	Severity    Severity
	Span        Span
	Message     string
	Code        string
	QuickFix    []Edit
	HostErr     error // wrapped host error, HostCallbackFailure only
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.RuntimeKind != "" {
		fmt.Fprintf(&sb, "%s.%s: %s", e.Kind, e.RuntimeKind, e.Message)
	} else {
		fmt.Fprintf(&sb, "%s: %s", e.Kind, e.Message)
	}
	if e.Span.ModuleID != "" || e.Span.Line != 0 {
		fmt.Fprintf(&sb, " at %s", e.Span)
	}
	if e.HostErr != nil {
		fmt.Fprintf(&sb, ": %v", e.HostErr)
	}
	return sb.String()
}

// Unwrap exposes the wrapped host error so callers can errors.As/Is through
// a HostCallbackFailure to the original host-side cause.
func (e *Error) Unwrap() error { return e.HostErr }

func newRuntime(kind RuntimeKind, span Span, format string, args ...interface{}) *Error {
	return &Error{
		Kind:        KindRuntime,
		RuntimeKind: kind,
		Severity:    SeverityError,
		Span:        span,
		Message:     fmt.Sprintf(format, args...),
	}
}

func NewTypeMismatch(span Span, format string, args ...interface{}) *Error {
	return newRuntime(RuntimeTypeMismatch, span, format, args...)
}

func NewMissingOperator(span Span, op string, typeName string) *Error {
	return newRuntime(RuntimeMissingOperator, span, "type %q does not implement operator %q", typeName, op)
}

func NewMissingField(span Span, field, typeName string) *Error {
	return newRuntime(RuntimeMissingField, span, "type %q has no field %q", typeName, field)
}

func NewMissingMethod(span Span, method, typeName string) *Error {
	return newRuntime(RuntimeMissingMethod, span, "type %q has no method %q", typeName, method)
}

func NewBadIndex(span Span, index, length int) *Error {
	return newRuntime(RuntimeBadIndex, span, "index %d out of range for length %d", index, length)
}

func NewBadRange(span Span, start, end int) *Error {
	return newRuntime(RuntimeBadRange, span, "invalid range %d..%d (end < start)", start, end)
}

func NewBorrowViolation(span Span, format string, args ...interface{}) *Error {
	return newRuntime(RuntimeBorrowViolation, span, format, args...)
}

func NewDivisionByZero(span Span) *Error {
	return newRuntime(RuntimeDivisionByZero, span, "division by zero")
}

func NewArity(span Span, want, got int) *Error {
	return newRuntime(RuntimeArity, span, "expected %d argument(s), got %d", want, got)
}

func NewCastFailure(span Span, format string, args ...interface{}) *Error {
	return newRuntime(RuntimeCastFailure, span, format, args...)
}

func NewNilAccess(span Span, format string, args ...interface{}) *Error {
	return newRuntime(RuntimeNilAccess, span, format, args...)
}

// NewHostCallbackFailure wraps a host-side error with a stack via
// github.com/pkg/errors, so the host's own failure site survives alongside
// the script span that invoked it.
func NewHostCallbackFailure(span Span, host error) *Error {
	return &Error{
		Kind:        KindRuntime,
		RuntimeKind: RuntimeHostCallbackFailure,
		Severity:    SeverityError,
		Span:        span,
		Message:     host.Error(),
		HostErr:     errors.WithStack(host),
	}
}

func NewInterrupted(span Span) *Error {
	return newRuntime(RuntimeInterrupted, span, "execution interrupted by hook")
}

// NewInterruptedAnalysis signals a guard revocation observed by an analyzer
// or compiler operation at a suspension point (spec.md §5).
func NewInterruptedAnalysis(span Span) *Error {
	return &Error{
		Kind:     KindInterruptedAnalysis,
		Severity: SeverityError,
		Span:     span,
		Message:  "analysis interrupted: guard revoked",
	}
}

// NewInterruptedExecution signals the VM's per-instruction hook returning
// false.
func NewInterruptedExecution(span Span) *Error {
	return &Error{
		Kind:     KindInterruptedExecution,
		Severity: SeverityError,
		Span:     span,
		Message:  "execution interrupted by hook",
	}
}

// NewCompileError builds the KindCompile *Error a chunk raises at runtime
// for a statement the analyzer could not fully resolve (spec.md §7 — a
// program with unresolved names still compiles and runs up to the point
// that actually needs the missing name).
func NewCompileError(span Span, code, message string) *Error {
	return &Error{Kind: KindCompile, Severity: SeverityError, Span: span, Message: message, Code: code}
}

// NewSyntax builds a SyntaxError diagnostic (always depth 1, always
// recoverable — the parser continues past it).
func NewSyntax(span Span, code, message string) Diagnostic {
	return Diagnostic{Severity: SeverityError, Depth: DepthSyntax, Span: span, Code: code, Message: message}
}

// NewSemanticError builds a depth-2 SemanticError diagnostic.
func NewSemanticError(span Span, code, message string) Diagnostic {
	return Diagnostic{Severity: SeverityError, Depth: DepthLocalSemantic, Span: span, Code: code, Message: message}
}

// NewSemanticWarning builds a depth-3 SemanticError-kind warning (dynamic
// type mismatch, shadowing, unreachable code).
func NewSemanticWarning(span Span, code, message string) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Depth: DepthDeepSemantic, Span: span, Code: code, Message: message}
}
