// Package apperr holds sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnknownLayout = errors.New("unknown layout")
	ErrLayoutCycle   = errors.New("layout cycle")
	ErrLintFailed    = errors.New("lint found errors")
)
