package monitor

import "errors"

// ErrUnknownAccount is returned when a start request names an account
// that is not registered.
var ErrUnknownAccount = errors.New("account not registered")
