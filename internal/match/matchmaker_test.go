package match

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func sequentialRooms() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("room_%d", n)
	}
}

func newTestMatchmaker(opts ...MatchmakerOption) (*Matchmaker, *Queue, *Registry) {
	q, r := NewQueue(), NewRegistry()
	base := []MatchmakerOption{WithRoomIDs(sequentialRooms()), WithCoin(func() bool { return false })}
	return NewMatchmaker(q, r, append(base, opts...)...), q, r
}

func TestEnqueueQueuesThenPairs(t *testing.T) {
	m, q, r := newTestMatchmaker()

	res, err := m.Enqueue("alice", t0)
	require.NoError(t, err)
	assert.Equal(t, Queued, res.Status)
	assert.Equal(t, 1, q.Len())

	res, err = m.Enqueue("bob", t0.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, Paired, res.Status)
	require.NotNil(t, res.Session)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 1, r.Len())

	s := res.Session
	assert.Equal(t, "room_1", s.RoomID)
	assert.Equal(t, ParticipantID("alice"), s.PlayerFor(White))
	assert.Equal(t, ParticipantID("bob"), s.PlayerFor(Black))
	assert.Equal(t, White, s.CurrentPlayer)

	room, ok := r.RoomFor("alice")
	assert.True(t, ok)
	assert.Equal(t, "room_1", room)
	room, ok = r.RoomFor("bob")
	assert.True(t, ok)
	assert.Equal(t, "room_1", room)
}

func TestEnqueueCoinGivesArrivalWhite(t *testing.T) {
	m, _, _ := newTestMatchmaker(WithCoin(func() bool { return true }))
	_, err := m.Enqueue("alice", t0)
	require.NoError(t, err)
	res, err := m.Enqueue("bob", t0)
	require.NoError(t, err)
	assert.Equal(t, ParticipantID("bob"), res.Session.PlayerFor(White))
}

func TestEnqueueIsFIFO(t *testing.T) {
	m, q, _ := newTestMatchmaker()
	for _, p := range []ParticipantID{"a", "b"} {
		_, err := m.Enqueue(p, t0)
		require.NoError(t, err)
	}
	// a and b paired; c and d queue behind each other.
	_, err := m.Enqueue("c", t0)
	require.NoError(t, err)
	res, err := m.Enqueue("d", t0)
	require.NoError(t, err)
	require.Equal(t, Paired, res.Status)
	_, inGame := res.Session.ColorOf("c")
	assert.True(t, inGame)
	assert.Equal(t, 0, q.Len())
}

func TestEnqueueDuplicates(t *testing.T) {
	m, q, _ := newTestMatchmaker()
	_, err := m.Enqueue("alice", t0)
	require.NoError(t, err)
	res, err := m.Enqueue("alice", t0)
	require.NoError(t, err)
	assert.Equal(t, AlreadyQueued, res.Status)
	assert.Equal(t, 1, q.Len())

	_, err = m.Enqueue("bob", t0)
	require.NoError(t, err)
	res, err = m.Enqueue("bob", t0)
	require.NoError(t, err)
	assert.Equal(t, AlreadyInGame, res.Status)
	assert.Equal(t, 0, q.Len())
}

func TestEnqueueSkipsStaleWaiters(t *testing.T) {
	dead := map[ParticipantID]bool{"ghost": true}
	m, q, _ := newTestMatchmaker(WithLiveness(func(p ParticipantID) bool { return !dead[p] }))
	q.Push("ghost")
	q.Push("alice")

	res, err := m.Enqueue("bob", t0)
	require.NoError(t, err)
	require.Equal(t, Paired, res.Status)
	assert.Equal(t, []ParticipantID{"ghost"}, res.Stale)
	_, ok := res.Session.ColorOf("alice")
	assert.True(t, ok)
	assert.False(t, q.Contains("ghost"))
}

func TestEnqueueRequeuesWaiterOnRegistryFailure(t *testing.T) {
	m, q, r := newTestMatchmaker(WithRoomIDs(func() string { return "taken" }))
	other, err := NewGameSession("taken", "x", "y", DefaultTimeControl, t0)
	require.NoError(t, err)
	require.NoError(t, r.Create(other))

	q.Push("alice")
	q.Push("carol")
	_, err = m.Enqueue("bob", t0)
	require.ErrorIs(t, err, ErrRoomExists)
	assert.Equal(t, []ParticipantID{"alice", "carol"}, q.Snapshot())
	_, busy := r.RoomFor("bob")
	assert.False(t, busy)
}

func TestDequeueIfPresent(t *testing.T) {
	m, q, _ := newTestMatchmaker()
	q.Push("alice")
	assert.True(t, m.DequeueIfPresent("alice"))
	assert.False(t, m.DequeueIfPresent("alice"))
	assert.Equal(t, 0, q.Len())
}

func TestRegistryEvictClearsReverseIndex(t *testing.T) {
	r := NewRegistry()
	s, err := NewGameSession("room_x", "w", "b", DefaultTimeControl, t0)
	require.NoError(t, err)
	require.NoError(t, r.Create(s))
	assert.ErrorIs(t, r.Create(s), ErrRoomExists)

	got, ok := r.SessionFor("b")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = r.Evict("room_x")
	require.True(t, ok)
	_, ok = r.RoomFor("w")
	assert.False(t, ok)
	_, ok = r.RoomFor("b")
	assert.False(t, ok)
	_, ok = r.Evict("room_x")
	assert.False(t, ok)
}

func TestRegistryCreateIsAllOrNothing(t *testing.T) {
	r := NewRegistry()
	a, _ := NewGameSession("room_a", "w", "b", DefaultTimeControl, t0)
	require.NoError(t, r.Create(a))
	clash, _ := NewGameSession("room_b", "c", "b", DefaultTimeControl, t0)
	assert.ErrorIs(t, r.Create(clash), ErrParticipantBusy)
	_, ok := r.RoomFor("c")
	assert.False(t, ok)
	_, ok = r.Get("room_b")
	assert.False(t, ok)
}

func TestQueueOperations(t *testing.T) {
	q := NewQueue()
	assert.True(t, q.Push("a"))
	assert.False(t, q.Push("a"))
	q.Push("b")
	q.Push("c")
	assert.True(t, q.Remove("b"))
	assert.Equal(t, []ParticipantID{"a", "c"}, q.Snapshot())
	p, ok := q.PopHead()
	assert.True(t, ok)
	assert.Equal(t, ParticipantID("a"), p)
	q.PopHead()
	_, ok = q.PopHead()
	assert.False(t, ok)
}

func TestMatchmakingProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		m, q, r := newTestMatchmaker()
		ids := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,6}`), 1, 30, rapid.ID[string]).Draw(rt, "ids")
		seen := map[ParticipantID]int{}
		for _, id := range ids {
			p := ParticipantID(id)
			if _, err := m.Enqueue(p, t0); err != nil {
				rt.Fatalf("enqueue %s: %v", p, err)
			}
			seen[p]++
		}
		if q.Len() > 1 {
			rt.Fatalf("queue should hold at most one waiter, has %d", q.Len())
		}
		if r.Len()*2+q.Len() != len(ids) {
			rt.Fatalf("participants lost: rooms=%d queue=%d ids=%d", r.Len(), q.Len(), len(ids))
		}
		for _, s := range r.Sessions() {
			w, b := s.PlayerFor(White), s.PlayerFor(Black)
			if w == "" || b == "" || w == b {
				rt.Fatalf("bad pairing in %s", s.RoomID)
			}
			if q.Contains(w) || q.Contains(b) {
				rt.Fatalf("participant both queued and playing")
			}
		}
	})
}
