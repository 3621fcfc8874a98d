package shift

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Tiliavir/shift-clock/internal/model"
)

var (
	// ErrInvalidTransition is returned for an event the current status
	// does not accept, e.g. cancel while no clock-out is pending.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConfirmationRequired is matched by *ConfirmationError.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrNotFound is returned when a record id is unknown.
	ErrNotFound = errors.New("record not found")
)

// ErrMissingUserName is the validation failure for actions that label a
// record with the user name.
var ErrMissingUserName = &model.ValidationError{Field: "user", Msg: "missing user name"}

// ConfirmationError lists why an action needs explicit confirmation.
type ConfirmationError struct {
	Reasons []string
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("confirmation required: %s", strings.Join(e.Reasons, "; "))
}

func (e *ConfirmationError) Unwrap() error { return ErrConfirmationRequired }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidTransition}, args...)...)
}
