package webclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/raysh454/convotap/internal/logging"
	"github.com/raysh454/convotap/internal/model"
)

// maxMessageBytes bounds a single websocket message; snapshots carry whole
// response bodies.
const maxMessageBytes = 16 << 20

// Subscription is a live websocket to the daemon. Broadcasts and replies to
// Send arrive on Messages in the order the daemon wrote them.
type Subscription struct {
	conn   *websocket.Conn
	msgs   chan model.Message
	cancel context.CancelFunc
	logger logging.Logger

	once sync.Once
	mu   sync.Mutex
	err  error
}

// Subscribe opens the daemon's /ws channel. The subscription ends when ctx is
// cancelled, Close is called or the daemon goes away; Messages is then closed.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/ws"

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	conn.SetReadLimit(maxMessageBytes)

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		conn:   conn,
		msgs:   make(chan model.Message, 16),
		cancel: cancel,
		logger: c.logger,
	}
	go s.readLoop(ctx)
	c.logger.Debug("subscribed", logging.Field{Key: "url", Value: u.String()})
	return s, nil
}

// Messages returns the stream of messages from the daemon.
func (s *Subscription) Messages() <-chan model.Message { return s.msgs }

// Send writes a typed message; its reply arrives on Messages.
func (s *Subscription) Send(ctx context.Context, msg model.Message) error {
	if err := wsjson.Write(ctx, s.conn, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// Err reports why the stream ended. It is nil while the stream is open and
// after a normal close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the subscription. The read loop is stopped first so the
// closing handshake is not recorded as a stream failure.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.conn.Close(websocket.StatusNormalClosure, "popup closed")
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	})
	return err
}

func (s *Subscription) readLoop(ctx context.Context) {
	defer close(s.msgs)
	defer s.cancel()

	for {
		var msg model.Message
		if err := wsjson.Read(ctx, s.conn, &msg); err != nil {
			s.finish(ctx, err)
			return
		}
		select {
		case s.msgs <- msg:
		case <-ctx.Done():
			s.finish(ctx, ctx.Err())
			return
		}
	}
}

func (s *Subscription) finish(ctx context.Context, err error) {
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure || ctx.Err() != nil {
		err = nil
	}
	if err != nil {
		s.logger.Warn("subscription ended", logging.Field{Key: "error", Value: err.Error()})
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	_ = s.conn.CloseNow()
}
