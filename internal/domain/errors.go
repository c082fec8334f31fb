package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailAlreadyInUse   = errors.New("email already in use")
	ErrWeakPassword        = errors.New("password is too weak")
	ErrRequiresRecentLogin = errors.New("recent login required")
	ErrNetwork             = errors.New("network error")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrNotSignedIn         = errors.New("no signed-in identity")
)

// NetworkError wraps a transport failure reported by a backend client.
// errors.Is(err, ErrNetwork) matches it.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}
