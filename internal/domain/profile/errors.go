package profile

import "errors"

var (
	ErrNilCheck       = errors.New("nil check")
	ErrDuplicateCheck = errors.New("check category already registered")
	ErrCatalogueFull  = errors.New("profile already holds every catalogue category")
)
