// Package events broadcasts ceremony outcomes to UI collaborators without
// coupling the orchestrator to any particular presentation.
package events

import "sync"

// OutcomeKind discriminates ceremony outcomes.
type OutcomeKind string

const (
	// OutcomeSignedIn reports a completed, server-verified sign-in or
	// registration.
	OutcomeSignedIn OutcomeKind = "signed_in"
	// OutcomeLoggedOut reports a completed local sign-out.
	OutcomeLoggedOut OutcomeKind = "logged_out"
	// OutcomeFailed reports a terminal ceremony failure.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is one broadcast ceremony result. Message is populated for
// failures.
type Outcome struct {
	Kind    OutcomeKind
	Message string
}

const subscriptionBuffer = 16

// Subscription receives outcomes in publish order until canceled.
type Subscription struct {
	bus    *Bus
	id     int
	events chan Outcome
}

// Events returns the outcome channel. It is closed when the subscription is
// canceled.
func (s *Subscription) Events() <-chan Outcome {
	return s.events
}

// Cancel removes the subscription from the bus and closes its channel.
// Cancel is idempotent.
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.unsubscribe(s.id)
}

// Bus fans outcomes out to any number of subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses that outcome while
// everyone else still receives it.
type Bus struct {
	mu          sync.Mutex
	nextID      int
	subscribers map[int]*Subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[int]*Subscription)}
}

// Subscribe registers a new subscriber.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &Subscription{
		bus:    b,
		id:     b.nextID,
		events: make(chan Outcome, subscriptionBuffer),
	}
	b.subscribers[sub.id] = sub
	b.nextID++
	return sub
}

func (b *Bus) unsubscribe(subID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(sub.events)
}

// Publish delivers outcome to every current subscriber without blocking.
func (b *Bus) Publish(outcome Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers {
		select {
		case sub.events <- outcome:
		default:
		}
	}
}
