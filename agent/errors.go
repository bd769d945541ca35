package agent

import "errors"

// ErrIterationLimit means the model kept calling tools without confirming
// and the loop gave up. Collected calls are not applied.
var ErrIterationLimit = errors.New("analysis iteration limit reached")

// ErrUnknownDomain means the requested domain name is not registered
var ErrUnknownDomain = errors.New("unknown analysis domain")
