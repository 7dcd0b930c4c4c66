package domain

import "errors"

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrUnknownTopic       = errors.New("unknown topic")
	ErrAlertNotFound      = errors.New("alert not found")
	ErrRegistryFull       = errors.New("connection limit reached")
	ErrUnknownDirection   = errors.New("unknown mover direction")
)
