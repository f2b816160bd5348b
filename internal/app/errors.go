package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrUnknownEntity = errors.New("entity has no profile")
	ErrUnknownCheck  = errors.New("check not registered")
)
