package relaydto

import "encoding/json"

// Inbound event names.
const (
	EventJoinQueue  = "join-queue"
	EventLeaveQueue = "leave-queue"
	EventMakeMove   = "make-move"
	EventGetTime    = "get-time"
	EventResign     = "resign"
)

// Outbound event names.
const (
	EventConnected            = "connected"
	EventWaitingForOpponent   = "waiting-for-opponent"
	EventAlreadyInQueue       = "already-in-queue"
	EventAlreadyInGame        = "already-in-game"
	EventLeftQueue            = "left-queue"
	EventGameStart            = "game-start"
	EventOpponentMove         = "opponent-move"
	EventMoveConfirmed        = "move-confirmed"
	EventTimeUpdate           = "time-update"
	EventGameOver             = "game-over"
	EventOpponentDisconnected = "opponent-disconnected"
	EventError                = "error"
)

// Envelope is the frame shape in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
