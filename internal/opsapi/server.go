package opsapi

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/cheese-relay/internal/archive"
	"github.com/park285/cheese-relay/internal/obslog"
	"github.com/park285/cheese-relay/internal/relay"
)

const maxRecent = 100

type StatsSource interface {
	Stats() relay.Stats
}

// ResultReader is the read side of the archive. It may be nil when Redis is
// not configured.
type ResultReader interface {
	Load(ctx context.Context, room string) (*archive.Record, error)
	Recent(ctx context.Context, limit int) ([]archive.Record, error)
}

type ConnCounter interface {
	Len() int
}

// StatsResponse is the /stats body.
type StatsResponse struct {
	relay.Stats
	Connections int   `json:"connections"`
	UptimeSec   int64 `json:"uptimeSec"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Server exposes health, relay statistics and archived results.
type Server struct {
	stats   StatsSource
	results ResultReader
	conns   ConnCounter
	started time.Time
	timeout time.Duration
	srv     *fasthttp.Server
}

func NewServer(stats StatsSource, results ResultReader, conns ConnCounter) *Server {
	s := &Server{stats: stats, results: results, conns: conns, started: time.Now(), timeout: 3 * time.Second}
	s.srv = &fasthttp.Server{
		Handler:      s.Handler,
		Name:         "cheese-relay-ops",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	obslog.L().Info("ops_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

// Handler routes a request. Only GET is served.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() {
		writeJSON(ctx, fasthttp.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
		return
	}
	path := string(ctx.Path())
	switch {
	case path == "/healthz":
		writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
	case path == "/stats":
		s.handleStats(ctx)
	case path == "/results/recent":
		s.handleRecent(ctx)
	case strings.HasPrefix(path, "/results/"):
		s.handleResult(ctx, strings.TrimPrefix(path, "/results/"))
	default:
		writeJSON(ctx, fasthttp.StatusNotFound, errorBody{Error: "not found"})
	}
}

func (s *Server) handleStats(ctx *fasthttp.RequestCtx) {
	resp := StatsResponse{Stats: s.stats.Stats(), UptimeSec: int64(time.Since(s.started).Seconds())}
	if s.conns != nil {
		resp.Connections = s.conns.Len()
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (s *Server) handleRecent(ctx *fasthttp.RequestCtx) {
	if s.results == nil {
		writeJSON(ctx, fasthttp.StatusServiceUnavailable, errorBody{Error: "archive disabled"})
		return
	}
	limit := 20
	if raw := ctx.QueryArgs().Peek("limit"); len(raw) > 0 {
		n, err := fasthttp.ParseUint(raw)
		if err != nil || n == 0 {
			writeJSON(ctx, fasthttp.StatusBadRequest, errorBody{Error: "invalid limit"})
			return
		}
		limit = min(n, maxRecent)
	}
	rctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	recs, err := s.results.Recent(rctx, limit)
	if err != nil {
		obslog.L().Warn("ops_recent_error", zap.Error(err))
		writeJSON(ctx, fasthttp.StatusBadGateway, errorBody{Error: "archive unavailable"})
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, recs)
}

func (s *Server) handleResult(ctx *fasthttp.RequestCtx, room string) {
	if s.results == nil {
		writeJSON(ctx, fasthttp.StatusServiceUnavailable, errorBody{Error: "archive disabled"})
		return
	}
	room = strings.TrimSpace(room)
	if room == "" || strings.Contains(room, "/") {
		writeJSON(ctx, fasthttp.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	rctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	rec, err := s.results.Load(rctx, room)
	if err != nil {
		obslog.L().Warn("ops_result_error", zap.String("room_id", room), zap.Error(err))
		writeJSON(ctx, fasthttp.StatusBadGateway, errorBody{Error: "archive unavailable"})
		return
	}
	if rec == nil {
		writeJSON(ctx, fasthttp.StatusNotFound, errorBody{Error: "no such result"})
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, rec)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
