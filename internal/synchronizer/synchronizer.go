// Package synchronizer keeps a client's note store in step with the remote
// service: it applies local edits optimistically, forwards them to the
// gateway and folds in changes pushed by other clients, ignoring echoes of
// its own creations.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Makepad-fr/notes/internal/gateway"
	"github.com/Makepad-fr/notes/internal/model"
	"github.com/Makepad-fr/notes/internal/origin"
	"github.com/Makepad-fr/notes/internal/store"
	"github.com/Makepad-fr/notes/internal/validation"
)

const defaultCallTimeout = 10 * time.Second

// Option configures a Synchronizer.
type Option func(*Synchronizer)

func WithLogger(l *zap.Logger) Option { return func(s *Synchronizer) { s.log = l } }

func WithStore(st *store.Store) Option { return func(s *Synchronizer) { s.store = st } }

// WithIDFunc replaces the note id generator (uuid.NewString by default).
func WithIDFunc(fn func() string) Option { return func(s *Synchronizer) { s.newID = fn } }

// WithCallTimeout bounds every gateway call.
func WithCallTimeout(d time.Duration) Option { return func(s *Synchronizer) { s.timeout = d } }

// WithFailureHandler is told about every failed mutation after it is logged.
func WithFailureHandler(fn func(*MutationError)) Option {
	return func(s *Synchronizer) { s.onFailure = fn }
}

// Synchronizer bridges a gateway and a store. All transitions go through
// emit, which serializes them and drops them once the synchronizer is closed.
type Synchronizer struct {
	gw        gateway.Gateway
	tagger    *origin.Tagger
	store     *store.Store
	log       *zap.Logger
	newID     func() string
	timeout   time.Duration
	onFailure func(*MutationError)

	mu     sync.Mutex // guards closed, subs and every emit
	closed bool
	subs   []gateway.Subscription

	inflight  sync.WaitGroup
	ready     chan struct{}
	readyOnce sync.Once
}

// New builds a synchronizer over gw that tags creations with tagger.
func New(gw gateway.Gateway, tagger *origin.Tagger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		gw:      gw,
		tagger:  tagger,
		log:     zap.NewNop(),
		newID:   uuid.NewString,
		timeout: defaultCallTimeout,
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = store.New()
	}
	s.log = s.log.With(zap.String("origin", tagger.Current()))
	return s
}

func (s *Synchronizer) State() store.State { return s.store.State() }
func (s *Synchronizer) Store() *store.Store { return s.store }

// Ready is closed once the initial fetch has resolved, successfully or not.
func (s *Synchronizer) Ready() <-chan struct{} { return s.ready }

// Initialize opens the creation and deletion feeds and starts the initial
// fetch. The feeds are acquired together: if either cannot be opened,
// neither stays open.
func (s *Synchronizer) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return gateway.ErrClosed
	}
	s.mu.Unlock()

	creations, err := s.gw.SubscribeCreations(ctx, s.onCreated)
	if err != nil {
		s.log.Error("subscribe_creations_failed", zap.Error(err))
		return fmt.Errorf("subscribe creations: %w", err)
	}
	deletions, err := s.gw.SubscribeDeletions(ctx, s.onDeleted)
	if err != nil {
		s.log.Error("subscribe_deletions_failed", zap.Error(err))
		if cerr := creations.Cancel(); cerr != nil {
			s.log.Warn("cancel_creations_failed", zap.Error(cerr))
		}
		return fmt.Errorf("subscribe deletions: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.Join(gateway.ErrClosed, creations.Cancel(), deletions.Cancel())
	}
	s.subs = append(s.subs, creations, deletions)
	s.mu.Unlock()

	s.async(func(ctx context.Context) {
		defer s.readyOnce.Do(func() { close(s.ready) })
		notes, err := s.gw.ListAll(ctx)
		if err != nil {
			s.log.Error("load_notes_failed", zap.Error(err))
			s.emit(store.LoadFailed{})
			return
		}
		s.log.Info("notes_loaded", zap.Int("count", len(notes)))
		s.emit(store.NotesLoaded{Notes: notes})
	})
	return nil
}

// CreateNote adds a note built from draft to the list right away, clears
// the form, and only then sends it to the gateway. An incomplete draft is
// rejected with a *validation.ValidationError and changes nothing. After
// Close it returns gateway.ErrClosed and makes no call.
func (s *Synchronizer) CreateNote(draft model.Draft) (model.Note, error) {
	if err := validation.Draft(draft); err != nil {
		return model.Note{}, err
	}
	note := s.tagger.Tag(model.Note{
		ID:          s.newID(),
		Name:        draft.Name,
		Description: draft.Description,
		Completed:   false,
	})

	if !s.emit(store.NoteAdded{Note: note}) {
		return model.Note{}, gateway.ErrClosed
	}
	s.emit(store.DraftReset{})

	s.async(func(ctx context.Context) {
		if err := s.gw.Create(ctx, note); err != nil {
			s.fail(OpCreate, note.ID, err)
			return
		}
		s.log.Debug("note_created", zap.String("note_id", note.ID))
	})
	return note, nil
}

// DeleteNote asks the gateway to delete id. The note stays in the list
// until the deletion comes back on the feed.
func (s *Synchronizer) DeleteNote(id string) error {
	if s.isClosed() {
		return gateway.ErrClosed
	}
	s.async(func(ctx context.Context) {
		if err := s.gw.Delete(ctx, id); err != nil {
			s.fail(OpDelete, id, err)
			return
		}
		s.log.Debug("note_deleted", zap.String("note_id", id))
	})
	return nil
}

// ToggleCompleted flips the completed flag of the note with note.ID as it
// stands in the current list, then sends the new value to the gateway.
func (s *Synchronizer) ToggleCompleted(note model.Note) error {
	var (
		completed bool
		found     bool
	)
	applied := s.emitFunc(func(st store.State) store.Event {
		i := st.Find(note.ID)
		if i < 0 {
			return nil
		}
		found = true
		notes := slices.Clone(st.Notes)
		notes[i].Completed = !notes[i].Completed
		completed = notes[i].Completed
		return store.NoteReplaced{Notes: notes}
	})
	if !applied {
		return gateway.ErrClosed
	}
	if !found {
		return fmt.Errorf("toggle %s: %w", note.ID, ErrUnknownNote)
	}

	s.async(func(ctx context.Context) {
		if err := s.gw.Update(ctx, note.ID, model.CompletedPatch(completed)); err != nil {
			s.fail(OpUpdate, note.ID, err)
			return
		}
		s.log.Debug("note_updated", zap.String("note_id", note.ID), zap.Bool("completed", completed))
	})
	return nil
}

// SetDraftField records an edit of the create form.
func (s *Synchronizer) SetDraftField(field model.Field, value string) {
	s.emit(store.DraftFieldSet{Field: field, Value: value})
}

// ResetDraft clears the create form.
func (s *Synchronizer) ResetDraft() { s.emit(store.DraftReset{}) }

// Wait blocks until every gateway call started so far has returned.
func (s *Synchronizer) Wait() { s.inflight.Wait() }

// Close cancels both feed subscriptions. Calls already in flight keep
// running but their results are discarded. Close is idempotent.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Cancel(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Warn("unsubscribe_failed", zap.Error(err))
		return err
	}
	s.log.Debug("synchronizer_closed")
	return nil
}

func (s *Synchronizer) onCreated(note model.Note) {
	if s.tagger.Owns(note) {
		s.log.Debug("echo_ignored", zap.String("note_id", note.ID))
		return
	}
	s.emit(store.NoteAdded{Note: note})
}

func (s *Synchronizer) onDeleted(id string) {
	s.emit(store.NoteRemoved{ID: id})
}

func (s *Synchronizer) emit(ev store.Event) bool {
	return s.emitFunc(func(store.State) store.Event { return ev })
}

// emitFunc applies the event fn computes, unless the synchronizer is closed.
func (s *Synchronizer) emitFunc(fn func(store.State) store.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.store.DispatchFunc(fn)
	return true
}

// async runs fn on its own goroutine with a context that outlives Close.
func (s *Synchronizer) async(fn func(ctx context.Context)) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		fn(ctx)
	}()
}

func (s *Synchronizer) fail(op Op, id string, err error) {
	merr := &MutationError{Op: op, NoteID: id, Err: err}
	s.log.Error("mutation_failed",
		zap.String("op", string(op)),
		zap.String("note_id", id),
		zap.Error(err),
	)
	if s.onFailure != nil && !s.isClosed() {
		s.onFailure(merr)
	}
}

func (s *Synchronizer) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
