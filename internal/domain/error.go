package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidState    = errors.New("operation not allowed in current state")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrRateLimited     = errors.New("too many requests")

	// Captive-portal gateway
	ErrGateway              = errors.New("captive portal gateway error")
	ErrGatewayTimeout       = errors.New("captive portal gateway timeout")
	ErrGatewayNotConfigured = errors.New("captive portal gateway not configured")

	// Storage plumbing
	ErrOperationFailed    = errors.New("database operation failed")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
