package match

import (
	"fmt"
	"time"
)

// EnqueueStatus tells the caller what Enqueue did.
type EnqueueStatus int

const (
	Queued EnqueueStatus = iota + 1
	Paired
	AlreadyQueued
	AlreadyInGame
)

// EnqueueResult carries the new session when Status is Paired, and any stale
// waiters that were skipped on the way.
type EnqueueResult struct {
	Status  EnqueueStatus
	Session *GameSession
	Stale   []ParticipantID
}

// Liveness reports whether a participant's connection is still open.
type Liveness func(p ParticipantID) bool

// Matchmaker pairs arrivals with the head of the queue and registers the session.
type Matchmaker struct {
	queue    *Queue
	registry *Registry
	live     Liveness
	roomID   func() string
	coin     func() bool
	tc       TimeControl
}

type MatchmakerOption func(*Matchmaker)

func WithLiveness(fn Liveness) MatchmakerOption {
	return func(m *Matchmaker) {
		if fn != nil {
			m.live = fn
		}
	}
}

func WithRoomIDs(fn func() string) MatchmakerOption {
	return func(m *Matchmaker) {
		if fn != nil {
			m.roomID = fn
		}
	}
}

// WithCoin replaces the color draw; true means the arrival plays White.
func WithCoin(fn func() bool) MatchmakerOption {
	return func(m *Matchmaker) {
		if fn != nil {
			m.coin = fn
		}
	}
}

func WithTimeControl(tc TimeControl) MatchmakerOption {
	return func(m *Matchmaker) {
		if tc.Initial > 0 {
			m.tc = tc
		}
	}
}

func NewMatchmaker(q *Queue, r *Registry, opts ...MatchmakerOption) *Matchmaker {
	m := &Matchmaker{
		queue:    q,
		registry: r,
		live:     func(ParticipantID) bool { return true },
		roomID:   NewRoomID,
		coin:     CoinFlip,
		tc:       DefaultTimeControl,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TimeControl returns the clock settings applied to new sessions.
func (m *Matchmaker) TimeControl() TimeControl { return m.tc }

// Enqueue pairs p with the longest waiter, or queues p when nobody is waiting.
// A waiter whose connection has gone is discarded and the attempt repeats.
func (m *Matchmaker) Enqueue(p ParticipantID, now time.Time) (EnqueueResult, error) {
	if m.queue.Contains(p) {
		return EnqueueResult{Status: AlreadyQueued}, nil
	}
	if _, busy := m.registry.RoomFor(p); busy {
		return EnqueueResult{Status: AlreadyInGame}, nil
	}

	var stale []ParticipantID
	for {
		waiter, ok := m.queue.PopHead()
		if !ok {
			m.queue.Push(p)
			return EnqueueResult{Status: Queued, Stale: stale}, nil
		}
		if !m.live(waiter) {
			stale = append(stale, waiter)
			continue
		}
		white, black := waiter, p
		if m.coin() {
			white, black = p, waiter
		}
		s, err := NewGameSession(m.roomID(), white, black, m.tc, now)
		if err != nil {
			m.requeueHead(waiter)
			return EnqueueResult{Stale: stale}, fmt.Errorf("new session: %w", err)
		}
		if err := m.registry.Create(s); err != nil {
			m.requeueHead(waiter)
			return EnqueueResult{Stale: stale}, fmt.Errorf("register session: %w", err)
		}
		return EnqueueResult{Status: Paired, Session: s, Stale: stale}, nil
	}
}

// DequeueIfPresent removes p from the queue. Idempotent.
func (m *Matchmaker) DequeueIfPresent(p ParticipantID) bool {
	return m.queue.Remove(p)
}

func (m *Matchmaker) requeueHead(p ParticipantID) {
	m.queue.Remove(p)
	m.queue.waiting = append([]ParticipantID{p}, m.queue.waiting...)
	m.queue.index[p] = struct{}{}
}
