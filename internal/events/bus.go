// Package events fans out per-user change notifications inside the process.
// Subscriptions are explicit handles tied to a session: whoever subscribes
// must Close, and Close is always safe to call again.
package events

import (
	"sync"
	"time"
)

// Event kinds published by the services.
const (
	KindTransactionCreated = "transaction.created"
	KindTransactionUpdated = "transaction.updated"
	KindTransactionDeleted = "transaction.deleted"
	KindConfigSaved        = "config.saved"
	KindGoalChanged        = "goal.changed"
	KindResetCompleted     = "reset.completed"
)

// Event is one change notification for a user's data.
type Event struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
}

// subscriptionBuffer bounds each subscriber channel. Slow consumers lose
// events rather than blocking publishers.
const subscriptionBuffer = 16

// Bus routes events to the active subscriptions of each user.
type Bus struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

// Subscription is one live listener. Events arrive on C until Close.
type Subscription struct {
	C chan Event

	bus    *Bus
	userID string
	once   sync.Once
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a listener for one user's events. The caller owns the
// returned handle and must Close it when the session ends.
func (b *Bus) Subscribe(userID string) *Subscription {
	sub := &Subscription{
		C:      make(chan Event, subscriptionBuffer),
		bus:    b,
		userID: userID,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[*Subscription]struct{})
	}
	b.subs[userID][sub] = struct{}{}
	return sub
}

// Publish delivers an event to every live subscription of the user. Full
// subscriber buffers are skipped, never waited on.
func (b *Bus) Publish(userID string, e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[userID] {
		select {
		case sub.C <- e:
		default:
		}
	}
}

// SubscriberCount reports the live subscriptions for a user.
func (b *Bus) SubscriberCount(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[userID])
}

// Close unregisters the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		if set := s.bus.subs[s.userID]; set != nil {
			delete(set, s)
			if len(set) == 0 {
				delete(s.bus.subs, s.userID)
			}
		}
		s.bus.mu.Unlock()
		close(s.C)
	})
}
