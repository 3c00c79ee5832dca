package relay

import (
	"github.com/park285/cheese-relay/internal/match"
	"github.com/park285/cheese-relay/pkg/relaydto"
)

// Kind names an inbound event.
type Kind string

const (
	KindJoinQueue  Kind = relaydto.EventJoinQueue
	KindLeaveQueue Kind = relaydto.EventLeaveQueue
	KindMakeMove   Kind = relaydto.EventMakeMove
	KindGetTime    Kind = relaydto.EventGetTime
	KindResign     Kind = relaydto.EventResign
	// KindDisconnect is raised by the transport when a connection closes.
	KindDisconnect Kind = "disconnect"
	// KindMalformed marks a frame that could not be decoded.
	KindMalformed Kind = "malformed"
	// KindUnknown is any event name the relay does not serve.
	KindUnknown Kind = "unknown"
)

// Inbound is one event from a participant, already decoded by the transport.
type Inbound struct {
	From match.ParticipantID
	Kind Kind
	Move *match.MoveAssertion
}

// Outbound is a message addressed to one participant. Payload is nil for
// events without data.
type Outbound struct {
	To      match.ParticipantID
	Event   string
	Payload any
}
