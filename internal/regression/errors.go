package regression

import (
	"errors"
	"fmt"
)

// ErrPrecondition is the parent of every error returned for unusable input.
// The window is left untouched when one of these is returned.
var ErrPrecondition = errors.New("regression precondition violated")

var (
	ErrEmptyBatch          = fmt.Errorf("%w: empty initial batch", ErrPrecondition)
	ErrEmptyWindow         = fmt.Errorf("%w: empty window", ErrPrecondition)
	ErrInvalidWindowLength = fmt.Errorf("%w: window length must be positive", ErrPrecondition)
	ErrOutOfOrderTick      = fmt.Errorf("%w: tick out of order", ErrPrecondition)
)

// ErrInvariantViolation signals an internal consistency failure during Advance.
// It never wraps ErrPrecondition. The window must be discarded after it is returned.
var ErrInvariantViolation = errors.New("regression invariant violated")
