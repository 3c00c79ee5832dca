package match

import (
	"errors"
	"sort"
)

var (
	ErrRoomExists      = errors.New("room already registered")
	ErrParticipantBusy = errors.New("participant already in a room")
)

// Registry maps rooms to sessions and participants to rooms.
// Not safe for concurrent use; the dispatcher serializes access.
type Registry struct {
	rooms  map[string]*GameSession
	byUser map[ParticipantID]string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]*GameSession),
		byUser: make(map[ParticipantID]string),
	}
}

// Get returns the session for a room.
func (r *Registry) Get(roomID string) (*GameSession, bool) {
	s, ok := r.rooms[roomID]
	return s, ok
}

// RoomFor returns the room a participant currently plays in.
func (r *Registry) RoomFor(p ParticipantID) (string, bool) {
	id, ok := r.byUser[p]
	return id, ok
}

// SessionFor resolves participant -> room -> session.
func (r *Registry) SessionFor(p ParticipantID) (*GameSession, bool) {
	id, ok := r.byUser[p]
	if !ok {
		return nil, false
	}
	return r.Get(id)
}

// Create registers a session and both reverse-index entries, or nothing at all.
func (r *Registry) Create(s *GameSession) error {
	if s == nil || s.RoomID == "" {
		return ErrEmptyRoomID
	}
	if _, exists := r.rooms[s.RoomID]; exists {
		return ErrRoomExists
	}
	for p := range s.Players {
		if _, busy := r.byUser[p]; busy {
			return ErrParticipantBusy
		}
	}
	r.rooms[s.RoomID] = s
	for p := range s.Players {
		r.byUser[p] = s.RoomID
	}
	return nil
}

// Evict removes a room and its participants' reverse entries.
func (r *Registry) Evict(roomID string) (*GameSession, bool) {
	s, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	delete(r.rooms, roomID)
	for p := range s.Players {
		if r.byUser[p] == roomID {
			delete(r.byUser, p)
		}
	}
	return s, true
}

// Len is the number of live rooms.
func (r *Registry) Len() int { return len(r.rooms) }

// Sessions lists live sessions ordered by room id.
func (r *Registry) Sessions() []*GameSession {
	out := make([]*GameSession, 0, len(r.rooms))
	for _, s := range r.rooms {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}
