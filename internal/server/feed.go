package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Makepad-fr/notes/internal/api"
	"github.com/Makepad-fr/notes/internal/gateway"
	"github.com/Makepad-fr/notes/internal/model"
)

const (
	feedBuffer   = 64
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

func (s *Server) feedCreations(w http.ResponseWriter, r *http.Request) {
	s.serveFeed(w, r, api.PathFeedCreations, func(ctx context.Context, send func(any)) (gateway.Subscription, error) {
		return s.gw.SubscribeCreations(ctx, func(n model.Note) { send(n) })
	})
}

func (s *Server) feedDeletions(w http.ResponseWriter, r *http.Request) {
	s.serveFeed(w, r, api.PathFeedDeletions, func(ctx context.Context, send func(any)) (gateway.Subscription, error) {
		return s.gw.SubscribeDeletions(ctx, func(id string) { send(api.Deleted{ID: id}) })
	})
}

// serveFeed upgrades the request and streams every event the subscription
// delivers as a JSON text frame. A client that falls feedBuffer events
// behind is disconnected rather than allowed to stall publishers.
func (s *Server) serveFeed(
	w http.ResponseWriter,
	r *http.Request,
	feed string,
	subscribe func(ctx context.Context, send func(any)) (gateway.Subscription, error),
) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("feed_upgrade_failed", zap.String("feed", feed), zap.Error(err))
		return
	}
	if !s.track(conn) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeTimeout))
		_ = conn.Close()
		return
	}
	defer s.untrack(conn)

	log := s.log.With(zap.String("feed", feed), zap.String("remote", r.RemoteAddr))
	out := make(chan any, feedBuffer)
	overflow := make(chan struct{})
	var overflowOnce sync.Once
	send := func(v any) {
		select {
		case out <- v:
		default:
			overflowOnce.Do(func() { close(overflow) })
		}
	}

	sub, err := subscribe(r.Context(), send)
	if err != nil {
		log.Error("feed_subscribe_failed", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(writeTimeout))
		return
	}
	defer func() {
		if err := sub.Cancel(); err != nil {
			log.Warn("feed_unsubscribe_failed", zap.Error(err))
		}
	}()
	log.Info("feed_connected")

	// the reader only exists to notice the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case v := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(v); err != nil {
				log.Warn("feed_write_failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				log.Warn("feed_ping_failed", zap.Error(err))
				return
			}
		case <-overflow:
			log.Warn("feed_client_too_slow")
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"),
				time.Now().Add(writeTimeout))
			return
		case <-gone:
			log.Info("feed_disconnected")
			return
		}
	}
}

// track reports false once Close has run.
func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}
