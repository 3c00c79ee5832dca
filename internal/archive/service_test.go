package archive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/park285/cheese-relay/internal/match"
)

type memSaver struct {
	mu   sync.Mutex
	recs []Record
	err  error
}

func (m *memSaver) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, rec)
	return nil
}

func concluded(t *testing.T, room string) match.Summary {
	t.Helper()
	s, err := match.NewGameSession(room, "w", "b", match.DefaultTimeControl, t0)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if _, err := s.Resign("w", t0.Add(time.Second)); err != nil {
		t.Fatalf("resign: %v", err)
	}
	return s.Summary()
}

func TestArchiverDrainsOnClose(t *testing.T) {
	good, bad := &memSaver{}, &memSaver{err: errors.New("db down")}
	a := NewArchiver(8, time.Second, bad, good, nil)
	a.Start()
	ctx := context.Background()
	for _, room := range []string{"room_1", "room_2", "room_3"} {
		a.Record(ctx, concluded(t, room))
	}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(good.recs) != 3 {
		t.Fatalf("saved %d records, want 3", len(good.recs))
	}
	if good.recs[0].Winner != "Black" || good.recs[0].Result != match.ResultResignation {
		t.Fatalf("record: %+v", good.recs[0])
	}

	a.Record(ctx, concluded(t, "room_4"))
	if len(good.recs) != 3 {
		t.Fatalf("record accepted after close")
	}
	if err := a.Close(ctx); !errors.Is(err, ErrArchiverClosed) {
		t.Fatalf("second close: %v", err)
	}
}

func TestArchiverDropsWhenFull(t *testing.T) {
	saver := &memSaver{}
	a := NewArchiver(1, time.Second, saver)
	ctx := context.Background()
	// Worker not started: the second game overflows the buffer.
	a.Record(ctx, concluded(t, "room_1"))
	a.Record(ctx, concluded(t, "room_2"))
	a.Start()
	if err := a.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(saver.recs) != 1 || saver.recs[0].RoomID != "room_1" {
		t.Fatalf("recs: %+v", saver.recs)
	}
}
