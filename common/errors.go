package common

import "errors"

// ErrIO wraps a disk scheduler completion that reported failure.
var ErrIO = errors.New("disk i/o operation failed")
