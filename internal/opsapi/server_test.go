package opsapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/cheese-relay/internal/archive"
	"github.com/park285/cheese-relay/internal/relay"
)

type fixedStats relay.Stats

func (f fixedStats) Stats() relay.Stats { return relay.Stats(f) }

type fixedConns int

func (f fixedConns) Len() int { return int(f) }

type memResults struct {
	recs      map[string]archive.Record
	err       error
	lastLimit int
}

func (m *memResults) Load(_ context.Context, room string) (*archive.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.recs[room]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memResults) Recent(_ context.Context, limit int) ([]archive.Record, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	out := []archive.Record{}
	for _, r := range m.recs {
		out = append(out, r)
	}
	return out, nil
}

func do(s *Server, method, uri string) (int, []byte) {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	s.Handler(&ctx)
	return ctx.Response.StatusCode(), append([]byte(nil), ctx.Response.Body()...)
}

func newTestServer(results ResultReader) *Server {
	return NewServer(fixedStats{Queued: 1, ActiveRooms: 2, GamesStarted: 3}, results, fixedConns(5))
}

func TestHealthAndStats(t *testing.T) {
	s := newTestServer(nil)
	if code, body := do(s, "GET", "/healthz"); code != 200 || !strings.Contains(string(body), "ok") {
		t.Fatalf("healthz: %d %s", code, body)
	}
	code, body := do(s, "GET", "/stats")
	if code != 200 {
		t.Fatalf("stats: %d", code)
	}
	var st StatsResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Queued != 1 || st.ActiveRooms != 2 || st.GamesStarted != 3 || st.Connections != 5 {
		t.Fatalf("stats: %+v", st)
	}
	if code, _ := do(s, "POST", "/stats"); code != 405 {
		t.Fatalf("post should be rejected: %d", code)
	}
	if code, _ := do(s, "GET", "/nope"); code != 404 {
		t.Fatalf("unknown path: %d", code)
	}
}

func TestResults(t *testing.T) {
	res := &memResults{recs: map[string]archive.Record{"room_1": {RoomID: "room_1", Result: "checkmate", Winner: "White"}}}
	s := newTestServer(res)

	code, body := do(s, "GET", "/results/room_1")
	if code != 200 {
		t.Fatalf("result: %d %s", code, body)
	}
	var rec archive.Record
	if err := json.Unmarshal(body, &rec); err != nil || rec.Winner != "White" {
		t.Fatalf("record: %+v %v", rec, err)
	}
	if code, _ := do(s, "GET", "/results/room_9"); code != 404 {
		t.Fatalf("missing room: %d", code)
	}

	if code, _ := do(s, "GET", "/results/recent?limit=500"); code != 200 || res.lastLimit != maxRecent {
		t.Fatalf("recent: %d limit=%d", code, res.lastLimit)
	}
	if code, _ := do(s, "GET", "/results/recent?limit=abc"); code != 400 {
		t.Fatalf("bad limit: %d", code)
	}

	res.err = errors.New("redis down")
	if code, _ := do(s, "GET", "/results/room_1"); code != 502 {
		t.Fatalf("backend error: %d", code)
	}
}

func TestResultsDisabled(t *testing.T) {
	s := newTestServer(nil)
	if code, _ := do(s, "GET", "/results/recent"); code != 503 {
		t.Fatalf("recent without archive: %d", code)
	}
}

func TestClientAgainstServer(t *testing.T) {
	res := &memResults{recs: map[string]archive.Record{"room_1": {RoomID: "room_1", Result: "draw"}}}
	s := newTestServer(res)
	ln := fasthttputil.NewInmemoryListener()
	defer ln.Close()
	go func() { _ = fasthttp.Serve(ln, s.Handler) }()

	c := NewClient("http://relay.local", WithDial(func(string) (net.Conn, error) { return ln.Dial() }), WithRetry(1))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}
	st, err := c.Stats(ctx)
	if err != nil || st.ActiveRooms != 2 {
		t.Fatalf("stats: %+v %v", st, err)
	}
	recs, err := c.Recent(ctx, 5)
	if err != nil || len(recs) != 1 {
		t.Fatalf("recent: %+v %v", recs, err)
	}
	if _, err := c.Result(ctx, "room_404"); err == nil {
		t.Fatalf("expected 404 error")
	}
}
