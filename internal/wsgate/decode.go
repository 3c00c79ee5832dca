package wsgate

import (
	"encoding/json"

	"github.com/park285/cheese-relay/internal/match"
	"github.com/park285/cheese-relay/internal/relay"
	"github.com/park285/cheese-relay/pkg/relaydto"
)

// decode turns one text frame into an inbound event. It never fails: bad
// frames become KindMalformed and unserved names become KindUnknown.
func decode(from match.ParticipantID, frame []byte) relay.Inbound {
	in := relay.Inbound{From: from, Kind: relay.KindMalformed}
	var env relaydto.Envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Event == "" {
		return in
	}
	switch env.Event {
	case relaydto.EventJoinQueue, relaydto.EventLeaveQueue, relaydto.EventGetTime, relaydto.EventResign:
		in.Kind = relay.Kind(env.Event)
	case relaydto.EventMakeMove:
		var req relaydto.MakeMoveRequest
		if len(env.Data) == 0 || json.Unmarshal(env.Data, &req) != nil {
			return in
		}
		in.Kind = relay.KindMakeMove
		in.Move = &match.MoveAssertion{
			Move:          req.Move,
			CapturedPiece: req.CapturedPiece,
			Promotion:     req.Promotion,
			IsCheckmate:   req.IsCheckmate,
			IsStalemate:   req.IsStalemate,
			GameStatus:    req.GameStatus,
			UCI:           req.UCI,
		}
	default:
		in.Kind = relay.KindUnknown
	}
	return in
}
