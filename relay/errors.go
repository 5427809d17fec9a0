package relay

import "errors"

// ErrSessionNotFound is returned when an operation references a session id
// with no live entry in the registry.
var ErrSessionNotFound = errors.New("session not found")
