// Package monitoring holds the process wide error reporter. Components
// report through the package functions, which are no-ops until Init installs
// a Monitor.
package monitoring

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	// ReportPanic records a recovered panic value. The caller re-panics.
	ReportPanic(v any)
	Flush(timeout time.Duration)
}

// NopMonitor discards everything.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) ReportPanic(any)                           {}
func (NopMonitor) Flush(time.Duration)                       {}

type holder struct{ m Monitor }

var current atomic.Pointer[holder]

// Init sets the global monitor. A nil monitor restores the no-op one.
func Init(m Monitor) {
	if m == nil {
		m = NopMonitor{}
	}
	current.Store(&holder{m: m})
}

func get() Monitor {
	if h := current.Load(); h != nil {
		return h.m
	}
	return NopMonitor{}
}

// CaptureException records err with optional tags. Nil errors and context
// cancellations are not reported.
func CaptureException(err error, tags map[string]string) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	get().CaptureException(err, tags)
}

// Go runs fn on a new goroutine. A panic in fn is reported and flushed before
// it crashes the process.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				m := get()
				m.ReportPanic(r)
				m.Flush(2 * time.Second)
				panic(r)
			}
		}()
		fn()
	}()
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	get().Flush(d)
}
