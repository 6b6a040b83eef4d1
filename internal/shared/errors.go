package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig  = fmt.Errorf("configuration not found")
	ErrInvalidConfig  = fmt.Errorf("invalid configuration")
	ErrUnknownAccount = fmt.Errorf("unknown account")

	// Remote transport error kinds. The transport wraps every failure in
	// exactly one of these so callers can route on errors.Is.
	ErrTransient         = fmt.Errorf("transient remote failure")
	ErrQuotaExhausted    = fmt.Errorf("remote quota exhausted")
	ErrCredentialExpired = fmt.Errorf("credential expired")
	ErrValidation        = fmt.Errorf("validation failed")

	// Transfer errors
	ErrSessionExpired   = fmt.Errorf("upload session expired")
	ErrSessionAbandoned = fmt.Errorf("upload session abandoned")

	// Store errors
	ErrFileNotFound    = fmt.Errorf("file not found")
	ErrAccountNotFound = fmt.Errorf("account not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
