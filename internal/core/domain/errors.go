package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUserInput marks caller-caused failures whose message is safe to
	// return verbatim.
	ErrUserInput = errors.New("user input error")
	// ErrApplication marks system-caused failures; only a generic message
	// ever reaches the caller.
	ErrApplication = errors.New("application error")
)

// UserError carries a caller-safe message plus machine-readable detail,
// for example the moderation categories that flagged a query.
type UserError struct {
	Message string
	Data    map[string]any
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return ErrUserInput }

func NewUserError(message string, data map[string]any) *UserError {
	return &UserError{Message: message, Data: data}
}

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
