// Package sync_ has small synchronisation helpers used by the job registry and event fan-out.
package sync_

import "sync"

// Event is a one-shot flag that goroutines can wait on. The zero value is an unset Event.
type Event struct {
	once sync.Once
	mu   sync.Mutex
	ch   chan struct{}
}

func (e *Event) channel() chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ch == nil {
		e.ch = make(chan struct{})
	}
	return e.ch
}

// Set marks the Event as happened, releasing all waiters. Later calls do nothing.
func (e *Event) Set() {
	e.once.Do(func() {
		close(e.channel())
	})
}

// Wait returns a channel that is closed once the Event is set.
func (e *Event) Wait() <-chan struct{} {
	return e.channel()
}
