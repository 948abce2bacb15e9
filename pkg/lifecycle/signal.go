// Package lifecycle defines the activation signals that scene objects expose
// and that the pool relies on to decide when an object may be recycled.
//
// A Signal is a one-shot completion: it fires at most once and any number of
// goroutines may wait on it. Each object exposes two of them, one for entering
// the active state and one for leaving it. The owner of the object (normally a
// scene tree) regenerates both signals on every transition, so a waiter always
// observes the transition belonging to the activation it captured.
//
// A freshly constructed object has a pending entered signal and an already
// fired left signal. Waiting on LeftActive alone is therefore never a reliable
// way to detect a detachment; wait on EnteredActive first.
package lifecycle

import (
	"context"
	"sync"
)

// Signal is a one-shot, multi-waitable completion signal.
// The zero value is not usable; create signals with NewSignal or Resolved.
type Signal struct {
	once sync.Once
	done chan struct{}
}

// NewSignal returns a pending signal.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Resolved returns a signal that has already fired.
func Resolved() *Signal {
	s := NewSignal()
	s.Fire()
	return s
}

// Fire completes the signal. It reports true only for the call that actually
// fired it; subsequent calls are no-ops.
func (s *Signal) Fire() bool {
	fired := false
	s.once.Do(func() {
		close(s.done)
		fired = true
	})
	return fired
}

// Fired reports whether the signal has completed.
func (s *Signal) Fired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed when the signal fires.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the signal fires or ctx is done.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
