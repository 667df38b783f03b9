// Package pubsub fans messages out to subscribers without ever making the publisher wait for them.
package pubsub

import (
	"errors"
	"sync"
)

var (
	ErrPublisherClosed = errors.New("publisher closed")
)

// A Publisher delivers each message to every current Subscription, in publish order.
type Publisher[T any] struct {
	mu            sync.Mutex
	subscriptions map[*Subscription[T]]struct{}
	closed        bool
}

func NewPublisher[T any]() *Publisher[T] {
	return &Publisher[T]{subscriptions: make(map[*Subscription[T]]struct{})}
}

// Publish queues msg for every subscription, returning false if the publisher is closed. It never waits for a
// subscriber to receive.
func (p *Publisher[T]) Publish(msg T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	for s := range p.subscriptions {
		s.push(msg)
	}
	return true
}

// Subscribe starts a Subscription to the messages accepted by filter (nil accepts everything). Once maxPending
// messages are waiting to be received, further messages are dropped for that subscription; 0 means no limit.
func (p *Publisher[T]) Subscribe(filter func(T) bool, maxPending int) (*Subscription[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPublisherClosed
	}
	s := newSubscription(p, filter, maxPending)
	p.subscriptions[s] = struct{}{}
	return s, nil
}

func (p *Publisher[T]) remove(s *Subscription[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subscriptions, s)
}

// Close stops publishing. Each subscription still delivers what it has queued, then closes its channel.
func (p *Publisher[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for s := range p.subscriptions {
		s.finish()
		delete(p.subscriptions, s)
	}
}
