package auth

import "errors"

var (
	// ErrEmailExists indicates a duplicate email address.
	ErrEmailExists = errors.New("email already exists")
	// ErrRecordNotFound indicates the durable store holds no such user.
	ErrRecordNotFound = errors.New("user record not found")
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidSession indicates a token that is not live.
	ErrInvalidSession = errors.New("invalid session")
	// ErrPasswordPolicy indicates a password rejected before hashing.
	ErrPasswordPolicy = errors.New("password does not satisfy policy")
)

// Error codes carried by apperrors.AppError values returned from Service.
const (
	CodeInvalidInput       = "invalid_input"
	CodeEmailExists        = "email_exists"
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidSession     = "invalid_session"
	CodeUserNotFound       = "user_not_found"
	CodeInternal           = "auth_error"
)
