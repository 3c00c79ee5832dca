package wsgate

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/cheese-relay/internal/match"
	"github.com/park285/cheese-relay/internal/obslog"
	"github.com/park285/cheese-relay/internal/relay"
	"github.com/park285/cheese-relay/pkg/relaydto"
)

// Hub tracks open connections by participant token.
type Hub struct {
	mu    sync.RWMutex
	conns map[match.ParticipantID]*client
}

func NewHub() *Hub {
	return &Hub{conns: make(map[match.ParticipantID]*client)}
}

// IsLive reports whether p still has an open connection. It is the queue's
// liveness check and never calls back into the dispatcher.
func (h *Hub) IsLive(p match.ParticipantID) bool {
	h.mu.RLock()
	c, ok := h.conns[p]
	h.mu.RUnlock()
	return ok && !c.closed()
}

// Len is the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Deliver enqueues each message on its addressee's writer. Messages for
// participants that are gone are dropped. A participant whose buffer is full
// is disconnected without waiting for its close handshake.
func (h *Hub) Deliver(out []relay.Outbound) {
	var slow []*client
	h.mu.RLock()
	for _, o := range out {
		c, ok := h.conns[o.To]
		if !ok {
			continue
		}
		env, err := encode(o)
		if err != nil {
			obslog.L().Error("ws_encode_error", zap.String("event", o.Event), zap.Error(err))
			continue
		}
		if !c.enqueue(env) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		obslog.L().Warn("ws_slow_consumer", zap.String("participant_id", string(c.id)))
		c.close(websocket.StatusPolicyViolation, "slow consumer")
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) remove(id match.ParticipantID) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

func (h *Hub) snapshot() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	return out
}

func encode(o relay.Outbound) (relaydto.Envelope, error) {
	env := relaydto.Envelope{Event: o.Event}
	if o.Payload == nil {
		return env, nil
	}
	b, err := json.Marshal(o.Payload)
	if err != nil {
		return relaydto.Envelope{}, err
	}
	env.Data = b
	return env, nil
}
