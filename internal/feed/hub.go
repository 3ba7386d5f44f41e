// Package feed delivers live expense snapshots to dashboard views. A view
// subscribes to an owner's feed and receives the full current record set
// on every change; unsubscribing guarantees no further delivery.
package feed

import (
	"sync"

	"github.com/karansanghvi/spendly/internal/core"
)

// Subscription is one view's handle on an owner's feed. Read snapshots
// from C; call Unsubscribe on every exit path of the consuming view.
// C is closed by Unsubscribe.
type Subscription struct {
	C <-chan []core.ExpenseRecord

	hub     *Hub
	ownerID string
	ch      chan []core.ExpenseRecord
	once    sync.Once
}

// Unsubscribe detaches the subscription and closes C. Safe to call more
// than once; after it returns no further snapshot is delivered.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.drop(s)
		close(s.ch)
	})
}

// Hub fans expense snapshots out to the subscribers of each owner.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a new consumer of ownerID's snapshots.
func (h *Hub) Subscribe(ownerID string) *Subscription {
	sub := &Subscription{
		hub:     h,
		ownerID: ownerID,
		ch:      make(chan []core.ExpenseRecord, 1),
	}
	sub.C = sub.ch

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[*Subscription]struct{})
	}
	h.subs[ownerID][sub] = struct{}{}
	return sub
}

// Publish delivers the full current snapshot to every subscriber of
// ownerID. Snapshots are coalesced per subscriber: a consumer that has
// not drained the previous snapshot gets only the latest one, and a slow
// consumer never blocks the publisher.
func (h *Hub) Publish(ownerID string, records []core.ExpenseRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[ownerID] {
		select {
		case sub.ch <- records:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- records
		}
	}
}

// Subscribers reports how many consumers are attached to ownerID's feed.
func (h *Hub) Subscribers(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ownerID])
}

func (h *Hub) drop(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.subs[sub.ownerID]; set != nil {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.ownerID)
		}
	}
}
