package apperr

import "fmt"

// Kind classifies an error for the wire: it is the only part of an error
// that ever reaches a client verbatim.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindForbidden      Kind = "forbidden"
	KindNotFound       Kind = "notFound"
	KindAuthentication Kind = "authentication"
	KindInternal       Kind = "internal"
)

// Error is a client-safe error with a classification.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Authentication(format string, args ...any) *Error {
	return &Error{Kind: KindAuthentication, Message: fmt.Sprintf(format, args...)}
}

// Internal is what clients see when the real cause must stay server-side.
func Internal() *Error {
	return &Error{Kind: KindInternal, Message: "internal error"}
}
