// Package apperr defines the failure taxonomy shared by the store, the index
// and the manager. Callers match with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrStorage      = errors.New("storage error")
	ErrIndexCorrupt = errors.New("index corrupt")
	ErrValidation   = errors.New("validation error")
)

// Kind returns the sentinel err wraps, or nil when err is not classified.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrConflict, ErrValidation, ErrIndexCorrupt, ErrStorage} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
