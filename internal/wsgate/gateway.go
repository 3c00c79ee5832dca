package wsgate

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/cheese-relay/internal/match"
	"github.com/park285/cheese-relay/internal/obslog"
	"github.com/park285/cheese-relay/internal/relay"
	"github.com/park285/cheese-relay/pkg/relaydto"
)

// Dispatcher is the part of *relay.Dispatcher the gateway drives.
type Dispatcher interface {
	Handle(ctx context.Context, in relay.Inbound) []relay.Outbound
	Sweep(ctx context.Context) []relay.Outbound
}

type Options struct {
	OriginPatterns []string
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	ReadLimit      int64
}

func (o *Options) withDefaults() {
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 16 << 10
	}
}

// Gateway accepts WebSocket connections, issues participant tokens and feeds
// frames to the dispatcher.
type Gateway struct {
	hub  *Hub
	d    Dispatcher
	opts Options

	// order makes delivery order follow dispatch order across connections.
	order sync.Mutex

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
}

func New(hub *Hub, d Dispatcher, opts Options) *Gateway {
	opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{hub: hub, d: d, opts: opts, rootCtx: ctx, rootCancel: cancel}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  g.opts.OriginPatterns,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	conn.SetReadLimit(g.opts.ReadLimit)

	id := match.ParticipantID(uuid.NewString())
	c := newClient(id, conn, g.opts.SendBuffer)
	g.hub.add(c)
	obslog.L().Info("ws_connected", zap.String("participant_id", string(id)), zap.String("remote", r.RemoteAddr))

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		c.writeLoop(g.rootCtx, g.opts.PingInterval, g.opts.WriteTimeout)
	}()
	g.hub.Deliver([]relay.Outbound{{To: id, Event: relaydto.EventConnected, Payload: relaydto.Connected{ParticipantID: string(id)}}})

	g.readLoop(c)

	g.hub.remove(id)
	c.close(websocket.StatusNormalClosure, "")
	g.dispatch(relay.Inbound{From: id, Kind: relay.KindDisconnect})
	obslog.L().Info("ws_disconnected", zap.String("participant_id", string(id)))
}

func (g *Gateway) readLoop(c *client) {
	for {
		typ, frame, err := c.conn.Read(g.rootCtx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && !errors.Is(err, context.Canceled) {
				obslog.L().Debug("ws_read_error", zap.String("participant_id", string(c.id)), zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			g.dispatch(relay.Inbound{From: c.id, Kind: relay.KindMalformed})
			continue
		}
		g.dispatch(decode(c.id, frame))
	}
}

func (g *Gateway) dispatch(in relay.Inbound) {
	g.order.Lock()
	defer g.order.Unlock()
	g.hub.Deliver(g.d.Handle(g.rootCtx, in))
}

// Sweep runs the dispatcher's timeout sweep and delivers the results.
func (g *Gateway) Sweep(ctx context.Context) {
	g.order.Lock()
	defer g.order.Unlock()
	g.hub.Deliver(g.d.Sweep(ctx))
}

// RunSweeper sweeps on every tick until ctx is done. A non-positive interval
// returns at once.
func (g *Gateway) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			g.Sweep(ctx)
		}
	}
}

// Shutdown closes every connection and waits for the writers and the close
// handshakes to finish.
func (g *Gateway) Shutdown(ctx context.Context) error {
	clients := g.hub.snapshot()
	for _, c := range clients {
		c.close(websocket.StatusGoingAway, "server shutdown")
	}
	g.rootCancel()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		for _, c := range clients {
			<-c.gone
		}
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
