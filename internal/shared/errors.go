package shared

import "errors"

// Error taxonomy shared by every domain package. Domain packages wrap these
// with their own prefix so errors.Is keeps working across the boundary.
var (
	// ErrValidation indicates invalid caller input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState occurs when an action violates a status workflow.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrNotFound indicates a referenced record is missing.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a concurrent-write conflict; callers may retry
	// the whole operation.
	ErrConflict = errors.New("transaction conflict")
)

// UserSafeMessage returns an error string suitable for API consumers,
// hiding internals behind a generic message.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict):
		return err.Error()
	default:
		return "internal error"
	}
}
