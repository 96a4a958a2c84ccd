// Package memory is an in-process note service. Several clients can share
// one Hub, which makes it the backend of choice for tests and for notesd
// runs that do not need persistence.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Makepad-fr/notes/internal/gateway"
	"github.com/Makepad-fr/notes/internal/model"
)

// Hub keeps notes newest first and publishes every change on its feed.
// Feed handlers must not create or delete notes through the same hub.
type Hub struct {
	// writes is held from mutation through publish so subscribers see
	// creations and deletions in commit order.
	writes sync.Mutex
	mu     sync.RWMutex
	notes  []model.Note
	feed   *gateway.Feed
}

var _ gateway.Gateway = (*Hub)(nil)

// NewHub returns a hub seeded with notes (newest first).
func NewHub(seed ...model.Note) *Hub {
	return &Hub{notes: slices.Clone(seed), feed: gateway.NewFeed()}
}

func (h *Hub) ListAll(ctx context.Context) ([]model.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.notes), nil
}

func (h *Hub) Create(ctx context.Context, note model.Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.writes.Lock()
	defer h.writes.Unlock()
	h.mu.Lock()
	if h.index(note.ID) >= 0 {
		h.mu.Unlock()
		return fmt.Errorf("create %s: %w", note.ID, gateway.ErrConflict)
	}
	h.notes = slices.Insert(h.notes, 0, note)
	h.mu.Unlock()

	h.feed.PublishCreated(note)
	return nil
}

func (h *Hub) Update(ctx context.Context, id string, patch model.NotePatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.index(id)
	if i < 0 {
		return fmt.Errorf("update %s: %w", id, gateway.ErrNotFound)
	}
	h.notes[i] = patch.Apply(h.notes[i])
	return nil
}

func (h *Hub) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.writes.Lock()
	defer h.writes.Unlock()
	h.mu.Lock()
	i := h.index(id)
	if i < 0 {
		h.mu.Unlock()
		return fmt.Errorf("delete %s: %w", id, gateway.ErrNotFound)
	}
	h.notes = slices.Delete(h.notes, i, i+1)
	h.mu.Unlock()

	h.feed.PublishDeleted(id)
	return nil
}

func (h *Hub) SubscribeCreations(ctx context.Context, handler func(model.Note)) (gateway.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.feed.SubscribeCreations(handler)
}

func (h *Hub) SubscribeDeletions(ctx context.Context, handler func(string)) (gateway.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.feed.SubscribeDeletions(handler)
}

// Subscribers reports live feed listeners.
func (h *Hub) Subscribers() (creations, deletions int) { return h.feed.Subscribers() }

// Close drops all feed subscribers.
func (h *Hub) Close() error {
	h.feed.Close()
	return nil
}

// index must be called with mu held.
func (h *Hub) index(id string) int {
	return slices.IndexFunc(h.notes, func(n model.Note) bool { return n.ID == id })
}
