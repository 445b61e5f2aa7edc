package models

import "errors"

// Sentinel errors shared by the services. Handlers map them to HTTP status
// codes; wrap them with fmt.Errorf("...: %w", ErrX) to add context.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid request")
	ErrConflict     = errors.New("conflict")
	ErrUpstream     = errors.New("upstream provider error")
	ErrUnauthorized = errors.New("unauthorized")
)
