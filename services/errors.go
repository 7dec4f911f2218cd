package services

import "errors"

// Error kinds. Match with errors.Is; the human-readable reason is the error text.
var (
	ErrValidation = errors.New("validation error")
	ErrForbidden  = errors.New("not authorized")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// ServiceError carries a caller-facing reason for one of the error kinds above.
type ServiceError struct {
	Kind   error
	Reason string
}

func (e *ServiceError) Error() string { return e.Reason }

func (e *ServiceError) Unwrap() error { return e.Kind }

func validationError(reason string) error {
	return &ServiceError{Kind: ErrValidation, Reason: reason}
}

func forbiddenError(reason string) error {
	return &ServiceError{Kind: ErrForbidden, Reason: reason}
}

func notFoundError(reason string) error {
	return &ServiceError{Kind: ErrNotFound, Reason: reason}
}

func conflictError(reason string) error {
	return &ServiceError{Kind: ErrConflict, Reason: reason}
}
