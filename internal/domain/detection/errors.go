package detection

import "errors"

var (
	ErrNilVersion       = errors.New("nil check version")
	ErrDuplicateVersion = errors.New("check version already registered")
	ErrUnknownCheckType = errors.New("unknown check type")
)
