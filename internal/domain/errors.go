package domain

import "errors"

var (
	ErrValidation        = errors.New("validation error")   // 400
	ErrNotFound          = errors.New("not found")          // 404
	ErrInsufficientStock = errors.New("insufficient stock") // 409
	ErrInvalidState      = errors.New("invalid state")      // 422
	ErrConflict          = errors.New("conflict")           // 409, retryable
	ErrTimeout           = errors.New("timeout")            // 504, retryable
	ErrInternal          = errors.New("internal error")     // 500
)

const (
	KindValidation        = "ValidationError"
	KindNotFound          = "NotFound"
	KindInsufficientStock = "InsufficientStock"
	KindInvalidState      = "InvalidState"
	KindConflict          = "Conflict"
	KindTimeout           = "Timeout"
	KindInternal          = "Internal"
)

// Order matters: an adjustment that would go negative matches both
// ErrInvalidState and ErrInsufficientStock and reports InvalidState.
var kinds = []struct {
	err  error
	kind string
}{
	{ErrValidation, KindValidation},
	{ErrNotFound, KindNotFound},
	{ErrInvalidState, KindInvalidState},
	{ErrInsufficientStock, KindInsufficientStock},
	{ErrConflict, KindConflict},
	{ErrTimeout, KindTimeout},
	{ErrInternal, KindInternal},
}

// KindOf returns the wire name of the error kind carried by err.
// Errors without a known kind are reported as Internal.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// HasKind reports whether err already carries one of the sentinel kinds.
func HasKind(err error) bool {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return true
		}
	}
	return false
}

// Retryable reports whether a failed transaction attempt may be repeated.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrTimeout)
}
