// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the request conflicts with the entity's current state.
var ErrConflict = errors.New("conflict")

// ErrValidation indicates the caller supplied invalid input.
// Wrap it with the human-readable reason: fmt.Errorf("%w: domain list is empty", ErrValidation).
var ErrValidation = errors.New("validation failed")
