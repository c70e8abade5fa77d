package led

import "errors"

// ErrInvalidHeartSlot is returned for heart color slots other than 1 and 2.
var ErrInvalidHeartSlot = errors.New("led: heart color slot must be 1 or 2")
