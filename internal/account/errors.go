package account

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDisabled           = errors.New("account disabled")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrNotFound           = errors.New("user not found")
	ErrForbidden          = errors.New("admin privileges required")
	ErrSelfDelete         = errors.New("cannot delete yourself")
	ErrInvalidStatus      = errors.New("invalid status")
)
