// Package safego provides panic-recovering wrappers for concurrent work.
package safego

import (
	"fmt"
	"log/slog"
)

// Go launches fn in a new goroutine. If fn panics, the panic is recovered and
// logged rather than crashing the process. Use it for fire-and-forget
// goroutines such as the metrics listener or the config watcher.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}

// PanicError is returned by Do when the wrapped function panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("recovered panic: %v", e.Value)
}

// Do runs fn on the calling goroutine and converts a panic into a
// *PanicError. It is meant for errgroup branches, where a panic would
// otherwise take the whole process down with it.
func Do(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic in concurrent task", "panic", r)
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}
