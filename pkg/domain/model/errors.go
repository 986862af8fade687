package model

import "errors"

// ErrInvalidState marks programmer errors such as a missing credential. These are never
// reported through a Success flag; they are returned as errors so the run fails fast.
var ErrInvalidState = errors.New("invalid state")
