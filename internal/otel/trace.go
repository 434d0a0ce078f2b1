package otel

import (
	"os"
	"sync/atomic"
)

// traceEnabled is set once at package init. Atomic because the UI goroutine
// reads it while tests flip it.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("FREAD_TRACE") != "")
}

// TraceEnabled reports whether FREAD_TRACE is set. Per-frame gesture events
// are only emitted when it is.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

// setTraceEnabled overrides the flag in tests.
func setTraceEnabled(v bool) {
	traceEnabled.Store(v)
}
