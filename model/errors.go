package model

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindConfig
	KindPermissionDenied
	KindNotFound
	KindPlatform
	KindTransientStore
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotFound:
		return "not_found"
	case KindPlatform:
		return "platform"
	case KindTransientStore:
		return "transient_store"
	default:
		return "internal"
	}
}

// Error carries a taxonomy kind and the short message shown to users.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func ConfigError(message string, err error) *Error {
	return &Error{Kind: KindConfig, Message: message, Err: err}
}

func PermissionDenied(message string) *Error {
	return &Error{Kind: KindPermissionDenied, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func PlatformError(message string, err error) *Error {
	return &Error{Kind: KindPlatform, Message: message, Err: err}
}

func TransientStoreError(message string, err error) *Error {
	return &Error{Kind: KindTransientStore, Message: message, Err: err}
}

// KindOf returns the taxonomy kind of err, KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k ErrorKind) bool {
	return err != nil && KindOf(err) == k
}

// UserMessage is the short reply shown for err. Internal and store failures
// collapse to a generic message.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindTransientStore, KindInternal:
			return GenericFailureText
		case KindPlatform:
			if e.Err != nil {
				return e.Message + ": " + e.Err.Error()
			}
		}
		return e.Message
	}
	return GenericFailureText
}

// GenericFailureText is shown when an internal failure cannot be described.
const GenericFailureText = "❌ Something went wrong, please try again later."

var (
	// ErrGone means the target message or member no longer exists on the platform.
	ErrGone = errors.New("target no longer exists")

	// ErrAlreadyApplied means the platform already holds the requested state.
	ErrAlreadyApplied = errors.New("action already applied")

	// ErrDuplicateEvent means the event was already processed.
	ErrDuplicateEvent = errors.New("duplicate event")
)
