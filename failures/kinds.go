package failures

import (
	"errors"
	"fmt"
)

// Kind is a stable, documented error identifier. Callers render messages by
// kind and never depend on backend text.
type Kind string

const (
	KindEngineNotReady   Kind = "engine_not_ready"
	KindEngineLoadFailed Kind = "engine_load_failed"
	KindInvalidInput     Kind = "invalid_input"
	KindInputTooLarge    Kind = "input_too_large"
	KindJobNotFound      Kind = "job_not_found"
	KindBackendError     Kind = "backend_error"
	KindTimeout          Kind = "timeout"
	KindCancelled        Kind = "cancelled"
	KindNotReady         Kind = "not_ready"
)

var descriptions = map[Kind]string{
	KindEngineNotReady:   "The conversion engine is not ready yet.",
	KindEngineLoadFailed: "The conversion engine failed to load.",
	KindInvalidInput:     "The file or options are not valid for the requested format.",
	KindInputTooLarge:    "The file exceeds the maximum allowed size.",
	KindJobNotFound:      "No job exists with that id.",
	KindBackendError:     "The encoder failed to convert the file.",
	KindTimeout:          "The conversion took longer than the allowed time.",
	KindCancelled:        "The conversion was cancelled.",
	KindNotReady:         "The converted file is not available.",
}

// Describe returns a user-facing sentence for k.
func (k Kind) Describe() string {
	if d, ok := descriptions[k]; ok {
		return d
	}
	return "Unknown error."
}

// Error carries a Kind plus detail. Two Errors match under errors.Is when
// their kinds match. Detail takes precedence over Err in the message.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrEngineNotReady   = &Error{Kind: KindEngineNotReady}
	ErrEngineLoadFailed = &Error{Kind: KindEngineLoadFailed}
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrInputTooLarge    = &Error{Kind: KindInputTooLarge}
	ErrJobNotFound      = &Error{Kind: KindJobNotFound}
	ErrBackend          = &Error{Kind: KindBackendError}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrCancelled        = &Error{Kind: KindCancelled}
	ErrNotReady         = &Error{Kind: KindNotReady}
)

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind to err. The detail is err's text so it survives serialization.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return &Error{Kind: kind}
	}
	return &Error{Kind: kind, Detail: err.Error(), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// DetailOf returns the detail of the first *Error in err's chain, falling back to err's text.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Detail != "" {
		return e.Detail
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
