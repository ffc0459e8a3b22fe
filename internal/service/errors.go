package service

import "errors"

// Error kinds. Handlers map these to HTTP statuses exactly once; the
// wrapped message is what the caller sees.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func notFound(msg string) error  { return &kindError{ErrNotFound, msg} }
func forbidden(msg string) error { return &kindError{ErrForbidden, msg} }
func conflict(msg string) error  { return &kindError{ErrConflict, msg} }
func invalid(msg string) error   { return &kindError{ErrInvalid, msg} }
