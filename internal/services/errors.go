package services

import (
	"errors"
	"fmt"

	"github.com/Folexy13/scholarhunter-sub001/internal/database"
)

// Domain errors returned by every service. Handlers classify them with
// errors.Is and map them onto HTTP status codes.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrForbidden          = errors.New("access to resource is forbidden")
	ErrConflict           = errors.New("resource conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactiveUser       = errors.New("user account is deactivated")
	ErrUnavailable        = errors.New("upstream service unavailable")
)

// translate maps repository errors onto domain errors. Anything it does not
// recognise is wrapped with op and surfaces as an internal error.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, database.ErrDuplicate), errors.Is(err, database.ErrStale):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	case errors.Is(err, database.ErrInvalidReference):
		return fmt.Errorf("%s: referenced record does not exist: %w", op, ErrInvalidInput)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidInput)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, database.ErrNotFound)
}
