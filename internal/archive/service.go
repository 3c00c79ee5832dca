package archive

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-relay/internal/match"
	"github.com/park285/cheese-relay/internal/obslog"
)

var ErrArchiverClosed = errors.New("archiver closed")

// Saver is one archive destination.
type Saver interface {
	Save(ctx context.Context, rec Record) error
}

// Archiver converts concluded games to records and hands them to every saver
// on a background worker. Record never blocks; a full buffer drops the game.
type Archiver struct {
	savers      []Saver
	ch          chan match.Summary
	saveTimeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewArchiver(buffer int, saveTimeout time.Duration, savers ...Saver) *Archiver {
	if buffer <= 0 {
		buffer = 256
	}
	if saveTimeout <= 0 {
		saveTimeout = 5 * time.Second
	}
	live := make([]Saver, 0, len(savers))
	for _, s := range savers {
		if s != nil {
			live = append(live, s)
		}
	}
	return &Archiver{savers: live, ch: make(chan match.Summary, buffer), saveTimeout: saveTimeout}
}

// Record queues a concluded game.
func (a *Archiver) Record(_ context.Context, sum match.Summary) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.ch <- sum:
	default:
		obslog.L().Warn("archive_drop", zap.String("room_id", sum.RoomID), zap.Int("buffer", cap(a.ch)))
	}
}

// Start runs the worker until Close.
func (a *Archiver) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for sum := range a.ch {
			a.persist(sum)
		}
	}()
}

// Close stops accepting games and waits for the queue to drain.
func (a *Archiver) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrArchiverClosed
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (a *Archiver) persist(sum match.Summary) {
	rec := FromSummary(sum)
	for _, s := range a.savers {
		ctx, cancel := context.WithTimeout(context.Background(), a.saveTimeout)
		err := s.Save(ctx, rec)
		cancel()
		if err != nil {
			obslog.L().Error("archive_persist_error", zap.String("room_id", rec.RoomID), zap.String("result", rec.Result), zap.Error(err))
		}
	}
	obslog.L().Info("archive_persist", zap.String("room_id", rec.RoomID), zap.String("result", rec.Result), zap.Int("plies", rec.Plies))
}
