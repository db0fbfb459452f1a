package sessionguard

import "fmt"

// Error codes as constants
const (
	ErrorCodeNoPrincipal       = "no_principal"
	ErrorCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrorCodeSessionNotFound   = "session_not_found"
	ErrorCodeStorageFailure    = "storage_failure"
	ErrorCodeInvalidConfig     = "invalid_config"
)

// GuardError represents an error surfaced by this library's operations
type GuardError struct {
	Code        string // machine-readable error code
	Description string // human-readable error description
	Err         error  // underlying cause, if any
}

// Error implements the error interface
func (e *GuardError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains
func (e *GuardError) Unwrap() error {
	return e.Err
}

// NewGuardError creates a new guard error
func NewGuardError(code, description string, err error) *GuardError {
	return &GuardError{
		Code:        code,
		Description: description,
		Err:         err,
	}
}

// Common errors as reusable constructors
var (
	// ErrNoPrincipalContext indicates an operation that requires an
	// authenticated principal was called while signed out
	ErrNoPrincipalContext = func(desc string) *GuardError {
		return NewGuardError(ErrorCodeNoPrincipal, desc, nil)
	}

	// ErrStorageFailure indicates the persistence collaborator failed
	ErrStorageFailure = func(desc string, err error) *GuardError {
		return NewGuardError(ErrorCodeStorageFailure, desc, err)
	}

	// ErrInvalidConfig indicates required dependencies or configuration are missing
	ErrInvalidConfig = func(desc string) *GuardError {
		return NewGuardError(ErrorCodeInvalidConfig, desc, nil)
	}
)
