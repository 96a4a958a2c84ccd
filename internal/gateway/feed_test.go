package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/notes/internal/model"
)

func TestFeed_FanOutAndCancel(t *testing.T) {
	f := NewFeed()

	var a, b []string
	subA, err := f.SubscribeCreations(func(n model.Note) { a = append(a, n.ID) })
	require.NoError(t, err)
	_, err = f.SubscribeCreations(func(n model.Note) { b = append(b, n.ID) })
	require.NoError(t, err)

	f.PublishCreated(model.Note{ID: "1"})
	require.NoError(t, subA.Cancel())
	require.NoError(t, subA.Cancel())
	f.PublishCreated(model.Note{ID: "2"})

	assert.Equal(t, []string{"1"}, a)
	assert.Equal(t, []string{"1", "2"}, b)

	c, d := f.Subscribers()
	assert.Equal(t, 1, c)
	assert.Equal(t, 0, d)
}

func TestFeed_Deletions(t *testing.T) {
	f := NewFeed()
	var got []string
	_, err := f.SubscribeDeletions(func(id string) { got = append(got, id) })
	require.NoError(t, err)

	f.PublishDeleted("1")
	f.PublishDeleted("1")
	assert.Equal(t, []string{"1", "1"}, got)
}

func TestFeed_Close(t *testing.T) {
	f := NewFeed()
	called := false
	_, err := f.SubscribeDeletions(func(string) { called = true })
	require.NoError(t, err)

	f.Close()
	f.PublishDeleted("x")
	assert.False(t, called)

	_, err = f.SubscribeCreations(func(model.Note) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFeed_HandlerMaySubscribe(t *testing.T) {
	// handlers run outside the lock, so re-entrant calls must not deadlock
	f := NewFeed()
	_, err := f.SubscribeCreations(func(model.Note) {
		_, _ = f.SubscribeDeletions(func(string) {})
	})
	require.NoError(t, err)
	f.PublishCreated(model.Note{ID: "1"})

	_, d := f.Subscribers()
	assert.Equal(t, 1, d)
}
