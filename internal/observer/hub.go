// Package observer implements the bounded broadcast fan-out shared by
// both backend implementations' SubscribeReadings: a per-device set of
// subscriber channels, most-recent-wins under backpressure, with a gap
// indicator so a subscriber can distinguish "no new readings" from
// "readings were dropped."
package observer

import (
	"sync"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/value"
)

// defaultBufferSize is the recommended per-subscriber buffer from the
// spec's ephemeral backend description.
const defaultBufferSize = 16

// Hub fans reading updates out to subscribers, grouped by device name.
// Safe for concurrent use.
type Hub struct {
	mu   sync.RWMutex
	subs map[value.Name]map[*subscription]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[value.Name]map[*subscription]struct{})}
}

// subscription is the Hub's concrete backend.Subscription implementation.
type subscription struct {
	hub  *Hub
	name value.Name
	ch   chan backend.Item
	once sync.Once
}

func (s *subscription) C() <-chan backend.Item { return s.ch }

func (s *subscription) Close() {
	s.once.Do(func() {
		s.hub.unregister(s)
		close(s.ch)
	})
}

// Subscribe opens a subscription for name. If latest is non-nil it is
// delivered immediately as the first item, per the spec's "starting with
// the current latest" contract.
func (h *Hub) Subscribe(name value.Name, latest *backend.Reading) backend.Subscription {
	sub := &subscription{
		hub:  h,
		name: name,
		ch:   make(chan backend.Item, defaultBufferSize),
	}

	h.mu.Lock()
	set, ok := h.subs[name]
	if !ok {
		set = make(map[*subscription]struct{})
		h.subs[name] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	if latest != nil {
		sub.ch <- backend.Item{Reading: *latest}
	}

	return sub
}

func (h *Hub) unregister(s *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[s.name]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.name)
	}
}

// Publish delivers r to every subscriber of name. A subscriber whose
// buffer is full has its oldest buffered item dropped and r queued at
// the back with its gap indicator set (most-recent-wins).
func (h *Hub) Publish(name value.Name, r backend.Reading) {
	h.mu.RLock()
	set := h.subs[name]
	subs := make([]*subscription, 0, len(set))
	for s := range set {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		trySend(s.ch, backend.Item{Reading: r})
	}
}

// trySend delivers item to ch without blocking. If the channel is full,
// it drains the oldest queued item (marking the replacement as a gap)
// and retries once, implementing most-recent-wins coalescing.
func trySend(ch chan backend.Item, item backend.Item) {
	select {
	case ch <- item:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}
	item.Gap = true
	select {
	case ch <- item:
	default:
		// Another goroutine drained concurrently; drop silently rather
		// than block the publisher.
	}
}

// CloseAll closes every outstanding subscription. Used during backend
// shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := make([]*subscription, 0)
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.subs = make(map[value.Name]map[*subscription]struct{})
	h.mu.Unlock()

	for _, s := range all {
		close(s.ch)
	}
}
