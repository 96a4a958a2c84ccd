package gateway

import (
	"sort"
	"sync"

	"github.com/Makepad-fr/notes/internal/model"
)

// Feed fans change events out to subscribers. Handlers run on the
// publishing goroutine, outside the feed's lock, in subscription order.
type Feed struct {
	mu        sync.Mutex
	next      int
	creations map[int]func(model.Note)
	deletions map[int]func(string)
	closed    bool
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{
		creations: map[int]func(model.Note){},
		deletions: map[int]func(string){},
	}
}

func (f *Feed) SubscribeCreations(handler func(model.Note)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	id := f.next
	f.next++
	f.creations[id] = handler
	return f.canceler(func() { delete(f.creations, id) }), nil
}

func (f *Feed) SubscribeDeletions(handler func(string)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	id := f.next
	f.next++
	f.deletions[id] = handler
	return f.canceler(func() { delete(f.deletions, id) }), nil
}

func (f *Feed) canceler(remove func()) Subscription {
	var once sync.Once
	return CancelFunc(func() error {
		once.Do(func() {
			f.mu.Lock()
			remove()
			f.mu.Unlock()
		})
		return nil
	})
}

// PublishCreated delivers n to every creation subscriber.
func (f *Feed) PublishCreated(n model.Note) {
	f.mu.Lock()
	handlers := make([]func(model.Note), 0, len(f.creations))
	for _, k := range sortedKeys(f.creations) {
		handlers = append(handlers, f.creations[k])
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(n)
	}
}

// PublishDeleted delivers id to every deletion subscriber.
func (f *Feed) PublishDeleted(id string) {
	f.mu.Lock()
	handlers := make([]func(string), 0, len(f.deletions))
	for _, k := range sortedKeys(f.deletions) {
		handlers = append(handlers, f.deletions[k])
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(id)
	}
}

// Subscribers returns the number of live creation and deletion listeners.
func (f *Feed) Subscribers() (creations, deletions int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creations), len(f.deletions)
}

// Close drops every subscriber and refuses new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	clear(f.creations)
	clear(f.deletions)
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
