package common

import "errors"

var (
	// startup and lifecycle errors
	ErrConfiguration  = errors.New("configuration error")
	ErrNotInitialized = errors.New("database is not initialized, call Initialize first")

	// repository specific errors
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// request errors
	ErrAuthenticationRejected = errors.New("missing or invalid API key")
	ErrAuthorizationRejected  = errors.New("user not in whitelist")

	// extraction errors
	ErrIncompleteExtraction = errors.New("incomplete expense query")
	ErrInvalidExtraction    = errors.New("invalid expense query")
	ErrExtractionEngine     = errors.New("extraction engine error")
)
