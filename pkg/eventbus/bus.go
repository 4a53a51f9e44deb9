// Package eventbus fans out per-document workflow/node/content/metrics/
// error events to subscribed clients in publish order, over a transport
// supplied by the caller (typically a WebSocket connection in pkg/api).
package eventbus

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// subscriptionBuffer bounds how many undelivered events a slow
// subscriber can accumulate before it is dropped.
const subscriptionBuffer = 64

// Subscription is a stable handle a caller holds to receive events and
// later unsubscribe.
type Subscription struct {
	ID         string
	DocumentID string
	events     chan Event
}

// Events returns the channel events are delivered on, in publish order.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Bus is a per-document pub/sub registry.
type Bus struct {
	log  *logrus.Logger
	mu   sync.RWMutex
	subs map[string]map[string]*Subscription // documentID -> subscriptionID -> sub
}

func NewBus(log *logrus.Logger) *Bus {
	if log == nil {
		log = logrus.New()
	}
	return &Bus{log: log, subs: make(map[string]map[string]*Subscription)}
}

func (b *Bus) Subscribe(documentID string) *Subscription {
	sub := &Subscription{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		events:     make(chan Event, subscriptionBuffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[documentID] == nil {
		b.subs[documentID] = make(map[string]*Subscription)
	}
	b.subs[documentID][sub.ID] = sub

	sub.events <- NewEvent(documentID, KindConnectionEstablished, map[string]any{"connection_id": sub.ID})
	return sub
}

func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if docSubs, ok := b.subs[sub.DocumentID]; ok {
		delete(docSubs, sub.ID)
		if len(docSubs) == 0 {
			delete(b.subs, sub.DocumentID)
		}
	}
	close(sub.events)
}

// Publish broadcasts event to every current subscriber of documentID.
// A subscriber whose buffer is full is dropped rather than blocking the
// publisher, matching the "failed deliveries drop the subscription" rule.
func (b *Bus) Publish(documentID string, kind Kind, payload map[string]any) {
	event := NewEvent(documentID, kind, payload)

	b.mu.RLock()
	docSubs := make([]*Subscription, 0, len(b.subs[documentID]))
	for _, sub := range b.subs[documentID] {
		docSubs = append(docSubs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range docSubs {
		select {
		case sub.events <- event:
		default:
			b.log.WithField("subscription_id", sub.ID).Warn("subscriber buffer full, dropping subscription")
			b.Unsubscribe(sub)
		}
	}
}
