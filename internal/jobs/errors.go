package jobs

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrJobClosed         = errors.New("job is closed")
	ErrTerminalStatus    = errors.New("application status is terminal")
	ErrInvalidTransition = errors.New("invalid application status transition")
	ErrVersionConflict   = errors.New("version conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrRoleMismatch      = errors.New("phone number already registered with another role")
)
