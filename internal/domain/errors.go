package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidURL      = errors.New("invalid url")
	ErrUnreachableURL  = errors.New("url unreachable")
	ErrInvalidState    = errors.New("invalid job state")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrProviderFailure = errors.New("provider failure")
)
