package wsgateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Makepad-fr/notes/internal/gateway"
)

const closeGrace = time.Second

// subscription owns one feed websocket and the goroutine reading it.
type subscription struct {
	conn    *websocket.Conn
	done    chan struct{}
	closing atomic.Bool
	once    sync.Once
	err     error
}

func (c *Client) subscribe(ctx context.Context, path string, onFrame func([]byte) error) (gateway.Subscription, error) {
	u := *c.base.JoinPath(path)
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), c.header())
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if serr := statusError(resp); serr != nil {
				return nil, fmt.Errorf("dial %s: %w", path, serr)
			}
		}
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}

	s := &subscription{conn: conn, done: make(chan struct{})}
	log := c.log.With(zap.String("feed", path))
	go s.read(log, onFrame)
	log.Debug("feed_subscribed")
	return s, nil
}

func (s *subscription) read(log *zap.Logger, onFrame func([]byte) error) {
	defer close(s.done)
	for {
		mt, p, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closing.Load() {
				log.Warn("feed_disconnected", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if err := onFrame(p); err != nil {
			log.Warn("feed_frame_invalid", zap.Error(err))
		}
	}
}

// Cancel closes the websocket and waits for the reader to stop.
func (s *subscription) Cancel() error {
	s.once.Do(func() {
		s.closing.Store(true)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		s.err = s.conn.Close()
		<-s.done
	})
	return s.err
}
