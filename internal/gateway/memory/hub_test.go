package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/notes/internal/gateway"
	"github.com/Makepad-fr/notes/internal/model"
)

func TestHub_CRUD(t *testing.T) {
	ctx := context.Background()
	h := NewHub(model.Note{ID: "1", Name: "A", Description: "d"})

	require.NoError(t, h.Create(ctx, model.Note{ID: "2", Name: "B", Description: "e"}))
	require.ErrorIs(t, h.Create(ctx, model.Note{ID: "2"}), gateway.ErrConflict)

	notes, err := h.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "2", notes[0].ID, "newest first")

	require.NoError(t, h.Update(ctx, "1", model.CompletedPatch(true)))
	notes, _ = h.ListAll(ctx)
	assert.True(t, notes[1].Completed)
	assert.ErrorIs(t, h.Update(ctx, "x", model.CompletedPatch(true)), gateway.ErrNotFound)

	require.NoError(t, h.Delete(ctx, "1"))
	assert.ErrorIs(t, h.Delete(ctx, "1"), gateway.ErrNotFound)
	notes, _ = h.ListAll(ctx)
	assert.Len(t, notes, 1)
}

func TestHub_ListAllReturnsCopy(t *testing.T) {
	ctx := context.Background()
	h := NewHub(model.Note{ID: "1", Name: "A"})
	notes, _ := h.ListAll(ctx)
	notes[0].Name = "changed"

	again, _ := h.ListAll(ctx)
	assert.Equal(t, "A", again[0].Name)
}

func TestHub_Feeds(t *testing.T) {
	ctx := context.Background()
	h := NewHub()

	var created []model.Note
	var deleted []string
	cs, err := h.SubscribeCreations(ctx, func(n model.Note) { created = append(created, n) })
	require.NoError(t, err)
	ds, err := h.SubscribeDeletions(ctx, func(id string) { deleted = append(deleted, id) })
	require.NoError(t, err)

	n := model.Note{ID: "1", Name: "A", Description: "d", OriginID: "o"}
	require.NoError(t, h.Create(ctx, n))
	require.NoError(t, h.Update(ctx, "1", model.CompletedPatch(true)))
	require.NoError(t, h.Delete(ctx, "1"))
	_ = h.Delete(ctx, "1") // failed deletes publish nothing

	assert.Equal(t, []model.Note{n}, created)
	assert.Equal(t, []string{"1"}, deleted)

	require.NoError(t, cs.Cancel())
	require.NoError(t, ds.Cancel())
	c, d := h.Subscribers()
	assert.Zero(t, c)
	assert.Zero(t, d)
}

func TestHub_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := NewHub()

	_, err := h.ListAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, h.Create(ctx, model.Note{ID: "1"}), context.Canceled)
	_, err = h.SubscribeCreations(ctx, func(model.Note) {})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHub_FeedFollowsCommitOrder(t *testing.T) {
	ctx := context.Background()
	h := NewHub()

	entered := make(chan struct{})
	release := make(chan struct{})
	_, err := h.SubscribeCreations(ctx, func(model.Note) {
		close(entered)
		<-release
	})
	require.NoError(t, err)

	var mu sync.Mutex
	var events []string
	record := func(ev string) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}
	_, err = h.SubscribeCreations(ctx, func(n model.Note) { record("+" + n.ID) })
	require.NoError(t, err)
	_, err = h.SubscribeDeletions(ctx, func(id string) { record("-" + id) })
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, h.Create(ctx, model.Note{ID: "n1", Name: "x", Description: "y"}))
	}()
	<-entered

	var deleted atomic.Bool
	go func() {
		defer wg.Done()
		assert.NoError(t, h.Delete(ctx, "n1"))
		deleted.Store(true)
	}()
	assert.Never(t, deleted.Load, 50*time.Millisecond, 5*time.Millisecond)

	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"+n1", "-n1"}, events)
	notes, _ := h.ListAll(ctx)
	assert.Empty(t, notes)
}
