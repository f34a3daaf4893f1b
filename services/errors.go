package services

import "errors"

// Error taxonomy of the messaging core. Validation and credential failures
// are terminal and mapped to 4xx; anything else surfacing from a service is
// a persistence failure and maps to 500. Broadcast failures never reach the
// caller, a durable append already succeeded by then.
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
