package messagebus

import "sync/atomic"

// AbortFlag is the cooperative request_to_abort mechanism named in spec
// §5: a flag a loop can inspect at its own boundaries, never a forced
// preemption. No loop in this module inspects it.
type AbortFlag struct {
	flag atomic.Bool
}

// Request sets the flag; the next boundary check observes it.
func (a *AbortFlag) Request() {
	a.flag.Store(true)
}

// Requested reports whether abort has been requested.
func (a *AbortFlag) Requested() bool {
	return a.flag.Load()
}

// Clear resets the flag, e.g. before starting a new operation.
func (a *AbortFlag) Clear() {
	a.flag.Store(false)
}
