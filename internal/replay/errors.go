package replay

import "errors"

// Sentinel kinds for replay errors.
var (
	ErrInvalidScenario = errors.New("invalid scenario")
	ErrStep            = errors.New("step failed")
)
