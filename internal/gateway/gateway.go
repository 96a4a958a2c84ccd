// Package gateway describes the remote note service the client talks to.
package gateway

import (
	"context"
	"errors"

	"github.com/Makepad-fr/notes/internal/model"
)

var (
	ErrNotFound = errors.New("note not found")
	ErrConflict = errors.New("note already exists")
	ErrClosed   = errors.New("gateway closed")
)

// Gateway is the backing note service: CRUD plus two change feeds.
type Gateway interface {
	ListAll(ctx context.Context) ([]model.Note, error)
	Create(ctx context.Context, note model.Note) error
	Update(ctx context.Context, id string, patch model.NotePatch) error
	Delete(ctx context.Context, id string) error

	// SubscribeCreations delivers every created note, including the
	// caller's own, until the subscription is cancelled.
	SubscribeCreations(ctx context.Context, handler func(model.Note)) (Subscription, error)
	// SubscribeDeletions delivers the id of every deleted note.
	SubscribeDeletions(ctx context.Context, handler func(id string)) (Subscription, error)
}

// Subscription is a live change-feed listener. Cancel is idempotent.
type Subscription interface {
	Cancel() error
}

// CancelFunc adapts a function to Subscription.
type CancelFunc func() error

func (f CancelFunc) Cancel() error { return f() }
