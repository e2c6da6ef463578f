package qc

import "fmt"

// ErrorKind enumerates the taxonomy of errors a qc operation can surface.
type ErrorKind int

const (
	// KindInput covers bad files, unsupported revisions, unknown product
	// types — anything a loader rejects before the store is touched.
	KindInput ErrorKind = iota
	// KindMerge covers incompatible datasets sharing an IndexKey.
	KindMerge
	// KindResource covers allocation, thread, or system-time failures.
	KindResource
	// KindAnalysis covers an algorithmic precondition violated at runtime,
	// e.g. PVT requested without a navigation-compatible dataset.
	KindAnalysis
	// KindCancelled marks a cooperative-cancellation abort.
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindMerge:
		return "merge"
	case KindResource:
		return "resource"
	case KindAnalysis:
		return "analysis"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the qc package's typed error: a Kind plus a wrapped cause and a
// human-readable message, so callers can use errors.Is/errors.As instead
// of matching on strings.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("qc: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("qc: %s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a sentinel of the same Kind, so callers can
// write errors.Is(err, qc.ErrMerge) without a type assertion.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors, one per Kind, for errors.Is comparisons.
var (
	ErrInput     = &Error{Kind: KindInput, Message: "input error"}
	ErrMerge     = &Error{Kind: KindMerge, Message: "merge error"}
	ErrResource  = &Error{Kind: KindResource, Message: "resource error"}
	ErrAnalysis  = &Error{Kind: KindAnalysis, Message: "analysis error"}
	ErrCancelled = &Error{Kind: KindCancelled, Message: "cancelled"}
)

// newError builds an *Error of the given kind, wrapping cause.
func newError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}
