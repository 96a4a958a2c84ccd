package synchronizer

import (
	"context"
	"sync"

	"github.com/Makepad-fr/notes/internal/gateway"
	"github.com/Makepad-fr/notes/internal/model"
)

type update struct {
	ID        string
	Completed bool
}

// fakeGateway records calls and lets a test hold mutations until it
// releases them, to observe state while a call is in flight.
type fakeGateway struct {
	mu sync.Mutex

	list    []model.Note
	listErr error

	createErr, updateErr, deleteErr error
	subscribeDeletionsErr           error

	gate chan struct{} // mutations block until closed, when set

	creates []model.Note
	updates []update
	deletes []string

	onCreate func(model.Note)
	onDelete func(string)

	cancelled int
}

var _ gateway.Gateway = (*fakeGateway)(nil)

func (f *fakeGateway) wait(ctx context.Context) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeGateway) ListAll(ctx context.Context) ([]model.Note, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list, f.listErr
}

func (f *fakeGateway) Create(ctx context.Context, n model.Note) error {
	f.mu.Lock()
	f.creates = append(f.creates, n)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return err
	}
	return f.createErr
}

func (f *fakeGateway) Update(ctx context.Context, id string, p model.NotePatch) error {
	f.mu.Lock()
	f.updates = append(f.updates, update{ID: id, Completed: *p.Completed})
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return err
	}
	return f.updateErr
}

func (f *fakeGateway) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	f.deletes = append(f.deletes, id)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return err
	}
	return f.deleteErr
}

func (f *fakeGateway) SubscribeCreations(_ context.Context, h func(model.Note)) (gateway.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onCreate = h
	return f.subscription(), nil
}

func (f *fakeGateway) SubscribeDeletions(_ context.Context, h func(string)) (gateway.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeDeletionsErr != nil {
		return nil, f.subscribeDeletionsErr
	}
	f.onDelete = h
	return f.subscription(), nil
}

func (f *fakeGateway) subscription() gateway.Subscription {
	var once sync.Once
	return gateway.CancelFunc(func() error {
		once.Do(func() {
			f.mu.Lock()
			f.cancelled++
			f.mu.Unlock()
		})
		return nil
	})
}

// pushCreated simulates the service pushing a creation event.
func (f *fakeGateway) pushCreated(n model.Note) {
	f.mu.Lock()
	h := f.onCreate
	f.mu.Unlock()
	h(n)
}

func (f *fakeGateway) pushDeleted(id string) {
	f.mu.Lock()
	h := f.onDelete
	f.mu.Unlock()
	h(id)
}

func (f *fakeGateway) calls() (creates []model.Note, updates []update, deletes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Note(nil), f.creates...), append([]update(nil), f.updates...), append([]string(nil), f.deletes...)
}

func (f *fakeGateway) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}
