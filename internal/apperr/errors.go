// Package apperr defines the sentinel errors shared across layers.
package apperr

import "errors"

var (
	// ErrNotFound indicates the referenced document, annotation, or collection is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation, e.g. a duplicate collection name.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates a caller-supplied value was rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrAlreadyExists indicates an attempt to create something that exists.
	ErrAlreadyExists = errors.New("already exists")
)
