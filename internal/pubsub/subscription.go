package pubsub

import (
	"sync"

	"github.com/alanbriolat/mediagrab/internal/sync_"
)

// A Subscription queues published messages and hands them to its receiver one at a time from its own goroutine.
type Subscription[T any] struct {
	publisher  *Publisher[T]
	filter     func(T) bool
	maxPending int

	mu        sync.Mutex
	pending   []T
	dropped   int
	finishing bool

	wake    chan struct{}
	out     chan T
	stopped sync_.Event
	done    sync_.Event
}

func newSubscription[T any](p *Publisher[T], filter func(T) bool, maxPending int) *Subscription[T] {
	s := &Subscription[T]{
		publisher:  p,
		filter:     filter,
		maxPending: maxPending,
		wake:       make(chan struct{}, 1),
		out:        make(chan T),
	}
	go s.run()
	return s
}

// Receive returns the delivery channel. It is closed by Close, or after the publisher closes and everything queued
// has been received.
func (s *Subscription[T]) Receive() <-chan T {
	return s.out
}

// Dropped returns how many messages were discarded because the subscription had too many pending.
func (s *Subscription[T]) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close unsubscribes, discarding anything not yet received, and waits for the delivery channel to close.
func (s *Subscription[T]) Close() {
	s.publisher.remove(s)
	s.stopped.Set()
	<-s.done.Wait()
}

func (s *Subscription[T]) push(msg T) {
	if s.filter != nil && !s.filter(msg) {
		return
	}
	s.mu.Lock()
	if s.maxPending > 0 && len(s.pending) >= s.maxPending {
		s.dropped++
	} else {
		s.pending = append(s.pending, msg)
	}
	s.mu.Unlock()
	s.signal()
}

// finish lets the subscription end once its queue is empty.
func (s *Subscription[T]) finish() {
	s.mu.Lock()
	s.finishing = true
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription[T]) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) next() (msg T, ok bool, finishing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return msg, false, s.finishing
	}
	msg = s.pending[0]
	var zero T
	s.pending[0] = zero
	s.pending = s.pending[1:]
	return msg, true, false
}

func (s *Subscription[T]) run() {
	defer s.done.Set()
	defer close(s.out)
	for {
		msg, ok, finishing := s.next()
		if !ok {
			if finishing {
				return
			}
			select {
			case <-s.wake:
				continue
			case <-s.stopped.Wait():
				return
			}
		}
		select {
		case s.out <- msg:
		case <-s.stopped.Wait():
			return
		}
	}
}
