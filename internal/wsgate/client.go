package wsgate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-relay/internal/match"
	"github.com/park285/cheese-relay/internal/obslog"
	"github.com/park285/cheese-relay/pkg/relaydto"
)

type client struct {
	id   match.ParticipantID
	conn *websocket.Conn
	send chan relaydto.Envelope

	done      chan struct{}
	gone      chan struct{}
	closeOnce sync.Once
}

func newClient(id match.ParticipantID, conn *websocket.Conn, buffer int) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan relaydto.Envelope, buffer),
		done: make(chan struct{}),
		gone: make(chan struct{}),
	}
}

// enqueue never blocks; false means the buffer is full.
func (c *client) enqueue(env relaydto.Envelope) bool {
	if c.closed() {
		return true
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

func (c *client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// close marks the client closed at once and runs the close handshake in the
// background; a peer that stops reading can hold the handshake for seconds.
// gone is closed when the handshake has finished.
func (c *client) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		go func() {
			defer close(c.gone)
			_ = c.conn.Close(code, reason)
		}()
	})
}

// writeLoop drains the send buffer and pings on an interval. Two consecutive
// ping failures close the connection.
func (c *client) writeLoop(ctx context.Context, pingInterval, writeTimeout time.Duration) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	pingFailures := 0
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			c.close(websocket.StatusGoingAway, "shutdown")
			return
		case env := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, env)
			cancel()
			if err != nil {
				obslog.L().Debug("ws_write_error", zap.String("participant_id", string(c.id)), zap.Error(err))
				c.close(websocket.StatusInternalError, "write failure")
				return
			}
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err == nil {
				pingFailures = 0
				continue
			}
			pingFailures++
			if pingFailures >= 2 {
				c.close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}
