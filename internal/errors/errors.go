package errors

import (
	stderrors "errors"
	"fmt"
)

type ErrorType string

const (
	ErrorTypeRepositoryNotFound      ErrorType = "REPOSITORY_NOT_FOUND"
	ErrorTypeRepositoryAlreadyExists ErrorType = "REPOSITORY_ALREADY_EXISTS"
	ErrorTypePatchAlreadyExists      ErrorType = "PATCH_ALREADY_EXISTS"
	ErrorTypePatchNotFound           ErrorType = "PATCH_NOT_FOUND"
	ErrorTypeCannotDropCurrentPatch  ErrorType = "CANNOT_DROP_CURRENT_PATCH"
	ErrorTypeUnknownFingerprint      ErrorType = "UNKNOWN_FINGERPRINT"
	ErrorTypeOperationCancelled      ErrorType = "OPERATION_CANCELLED"
	ErrorTypeInvalidTag              ErrorType = "INVALID_TAG"
	ErrorTypeIO                      ErrorType = "IO"
)

// Error is the error kind surfaced to callers of the repository.
// Two errors match under errors.Is when their types are equal.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// Sentinels for errors.Is checks.
var (
	ErrRepositoryNotFound      = &Error{Type: ErrorTypeRepositoryNotFound, Message: "repository not found"}
	ErrRepositoryAlreadyExists = &Error{Type: ErrorTypeRepositoryAlreadyExists, Message: "repository already exists"}
	ErrPatchAlreadyExists      = &Error{Type: ErrorTypePatchAlreadyExists, Message: "patch already exists"}
	ErrPatchNotFound           = &Error{Type: ErrorTypePatchNotFound, Message: "patch not found"}
	ErrCannotDropCurrentPatch  = &Error{Type: ErrorTypeCannotDropCurrentPatch, Message: "cannot drop current patch"}
	ErrUnknownFingerprint      = &Error{Type: ErrorTypeUnknownFingerprint, Message: "unknown fingerprint"}
	ErrOperationCancelled      = &Error{Type: ErrorTypeOperationCancelled, Message: "operation cancelled"}
	ErrInvalidTag              = &Error{Type: ErrorTypeInvalidTag, Message: "invalid tag"}
)

func RepositoryNotFound(root string) *Error {
	return &Error{
		Type:    ErrorTypeRepositoryNotFound,
		Message: fmt.Sprintf("no repository at %s", root),
		Details: root,
	}
}

func RepositoryAlreadyExists(root string) *Error {
	return &Error{
		Type:    ErrorTypeRepositoryAlreadyExists,
		Message: fmt.Sprintf("repository already exists at %s", root),
		Details: root,
	}
}

func PatchAlreadyExists(tag string) *Error {
	return &Error{
		Type:    ErrorTypePatchAlreadyExists,
		Message: fmt.Sprintf("patch %s already exists", tag),
		Details: tag,
	}
}

func PatchNotFound(tag string) *Error {
	return &Error{
		Type:    ErrorTypePatchNotFound,
		Message: fmt.Sprintf("patch %s does not exist", tag),
		Details: tag,
	}
}

func CannotDropCurrentPatch(tag string) *Error {
	return &Error{
		Type:    ErrorTypeCannotDropCurrentPatch,
		Message: fmt.Sprintf("can't drop patch %s as it's the current one", tag),
		Details: tag,
	}
}

func UnknownFingerprint(fingerprint string) *Error {
	return &Error{
		Type:    ErrorTypeUnknownFingerprint,
		Message: fmt.Sprintf("object %s is not in the store", fingerprint),
		Details: fingerprint,
	}
}

// Cancelled wraps the context error that stopped an operation.
func Cancelled(cause error) *Error {
	return &Error{
		Type:    ErrorTypeOperationCancelled,
		Message: "operation cancelled",
		Err:     cause,
	}
}

func InvalidTag(tag, reason string) *Error {
	return &Error{
		Type:    ErrorTypeInvalidTag,
		Message: fmt.Sprintf("invalid tag %q: %s", tag, reason),
		Details: tag,
	}
}

// IO wraps a filesystem failure with the path it happened on.
func IO(path string, err error) *Error {
	return &Error{
		Type:    ErrorTypeIO,
		Message: fmt.Sprintf("i/o failure on %s", path),
		Details: path,
		Err:     err,
	}
}

// TypeOf returns the type of the first *Error in err's chain, or "" if none.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ""
}
