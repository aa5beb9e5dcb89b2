// Package apperr defines the coded errors the bot surfaces to users.
//
// Each Error carries a Kind for the caller's branching, a short
// user-facing message suitable for an ephemeral reply, and the wrapped
// cause for logs. Technical detail never goes into Message.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// KindConfig: a required channel, category or role is missing.
	KindConfig Kind = "config"
	// KindConflict: duplicate creation or a request that was already decided.
	KindConflict Kind = "conflict"
	// KindNotFound: a stale reference to a promo, identification or member.
	KindNotFound Kind = "not_found"
	// KindValidation: bad user input.
	KindValidation Kind = "validation"
	// KindExpired: the multi-step selection is no longer available.
	KindExpired Kind = "expired"
	// KindTransition: the promo lifecycle does not allow the operation.
	KindTransition Kind = "transition"
	// KindInternal: anything else.
	KindInternal Kind = "internal"
)

// Error is a coded application error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by kind so errors.Is(err, apperr.NotFound("")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error that wraps cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Config(message string) *Error     { return New(KindConfig, message) }
func Conflict(message string) *Error   { return New(KindConflict, message) }
func NotFound(message string) *Error   { return New(KindNotFound, message) }
func Validation(message string) *Error { return New(KindValidation, message) }
func Expired(message string) *Error    { return New(KindExpired, message) }
func Transition(message string) *Error { return New(KindTransition, message) }

// KindOf returns the kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UserMessage returns the text to show an end user for err.
// Errors without a code get a generic message.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return GenericMessage
}

// GenericMessage is shown for failures that carry no user-facing text.
const GenericMessage = "❌ Une erreur est survenue. Réessayez plus tard."
