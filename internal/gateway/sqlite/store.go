// Package sqlite persists notes in a SQLite database and publishes changes
// to in-process feed subscribers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/Makepad-fr/notes/internal/gateway"
	"github.com/Makepad-fr/notes/internal/model"
)

// Store is a gateway.Gateway over a SQLite database. Feed handlers must
// not create or delete notes through the same store.
type Store struct {
	db   *sql.DB
	feed *gateway.Feed
	// writes spans insert or delete plus publish, keeping feed order equal
	// to commit order.
	writes sync.Mutex
}

var _ gateway.Gateway = (*Store)(nil)

// Open opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	s := &Store{db: db, feed: gateway.NewFeed()}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS notes (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT    NOT NULL UNIQUE,
		name        TEXT    NOT NULL,
		description TEXT    NOT NULL,
		completed   INTEGER NOT NULL DEFAULT 0,
		origin_id   TEXT    NOT NULL DEFAULT ''
		)`,
	); err != nil {
		return fmt.Errorf("create notes table: %w", err)
	}
	return nil
}

func (s *Store) ListAll(ctx context.Context) ([]model.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, completed, origin_id FROM notes ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	notes := []model.Note{}
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.Name, &n.Description, &n.Completed, &n.OriginID); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

func (s *Store) Create(ctx context.Context, note model.Note) error {
	s.writes.Lock()
	defer s.writes.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, name, description, completed, origin_id) VALUES (?, ?, ?, ?, ?)`,
		note.ID, note.Name, note.Description, note.Completed, note.OriginID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create %s: %w", note.ID, gateway.ErrConflict)
		}
		return fmt.Errorf("insert note %s: %w", note.ID, err)
	}
	s.feed.PublishCreated(note)
	return nil
}

func (s *Store) Update(ctx context.Context, id string, patch model.NotePatch) error {
	if patch.Completed == nil {
		return s.mustExist(ctx, id)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE notes SET completed = ? WHERE id = ?`, *patch.Completed, id)
	if err != nil {
		return fmt.Errorf("update note %s: %w", id, err)
	}
	return affected(res, "update", id)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.writes.Lock()
	defer s.writes.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	if err := affected(res, "delete", id); err != nil {
		return err
	}
	s.feed.PublishDeleted(id)
	return nil
}

func (s *Store) SubscribeCreations(ctx context.Context, handler func(model.Note)) (gateway.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.feed.SubscribeCreations(handler)
}

func (s *Store) SubscribeDeletions(ctx context.Context, handler func(string)) (gateway.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.feed.SubscribeDeletions(handler)
}

// Close drops feed subscribers and closes the database.
func (s *Store) Close() error {
	s.feed.Close()
	return s.db.Close()
}

func (s *Store) mustExist(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM notes WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %s: %w", id, gateway.ErrNotFound)
	}
	return err
}

func affected(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: rows affected: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, gateway.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
