package main

import (
	"errors"

	"github.com/starford/axanet/internal/apperr"
)

// Exit codes.
const (
	ExitSuccess     = 0 // Success, including a declined delete confirmation
	ExitError       = 1 // General error (bad arguments, git or runtime failure)
	ExitConfigError = 2 // Configuration error (unreadable or invalid config)
	ExitValidation  = 3 // Invalid input (name, service, empty query)
	ExitNotFound    = 4 // Client does not exist
	ExitConflict    = 5 // Client already exists
	ExitStorage     = 6 // Record or index could not be read or written
)

// errConfig marks configuration failures.
var errConfig = errors.New("configuration error")

// exitCode maps err to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, errConfig) {
		return ExitConfigError
	}
	switch apperr.Kind(err) {
	case apperr.ErrValidation:
		return ExitValidation
	case apperr.ErrNotFound:
		return ExitNotFound
	case apperr.ErrConflict:
		return ExitConflict
	case apperr.ErrStorage, apperr.ErrIndexCorrupt:
		return ExitStorage
	}
	return ExitError
}
