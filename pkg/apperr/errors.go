// Package apperr defines the error taxonomy shared across the service.
// Every fault surfaced to a client maps to exactly one Kind; the API
// layer renders kinds as HTTP statuses or terminal SSE error events.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies a fault category. The string values are part of the
// wire contract: clients receive them verbatim in error payloads.
type Kind string

const (
	// KindConfig — missing or malformed startup input. Fatal at startup,
	// never surfaced in-stream.
	KindConfig Kind = "ConfigError"

	// KindUnknownProduct — a product id not present in the catalog.
	KindUnknownProduct Kind = "UnknownProduct"

	// KindArtifactUnavailable — artifact file missing or malformed.
	KindArtifactUnavailable Kind = "ArtifactUnavailable"

	// KindPlanningFailed — the planner produced zero valid entries.
	KindPlanningFailed Kind = "PlanningFailed"

	// KindLLMParse — the LLM returned non-JSON twice (after one repair).
	KindLLMParse Kind = "LLMParseError"

	// KindLLMTransient — LLM timeout or rate limit. Retried once locally;
	// if it escapes the retry it is terminal.
	KindLLMTransient Kind = "LLMTransient"

	// KindDimension — embedding dimension does not match the index.
	KindDimension Kind = "DimensionError"

	// KindUnsupportedFormat — audio format outside {wav, pcm, opus}.
	KindUnsupportedFormat Kind = "UnsupportedFormat"
)

// Error carries a Kind plus a human-readable message. It wraps an
// optional cause for errors.Is/As chains.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around a cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf extracts the Kind from err, or "" if err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// MessageOf returns the taxonomy message for err, falling back to
// err.Error() for errors outside the taxonomy.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
