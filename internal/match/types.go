package match

import (
	"encoding/json"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
)

// ParticipantID is the opaque token issued to a live connection.
type ParticipantID string

// Color identifies a chess side.
type Color string

const (
	White Color = "White"
	Black Color = "Black"
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Status represents the session lifecycle. Transitions are one-way.
type Status string

const (
	StatusActive    Status = "active"
	StatusConcluded Status = "concluded"
)

// Result tokens carried by game-over events.
const (
	ResultCheckmate   = "checkmate"
	ResultStalemate   = "stalemate"
	ResultTimeout     = "timeout"
	ResultResignation = "resignation"
	ResultDraw        = "draw"
	ResultDisconnect  = "disconnect"
)

// Reason tokens carried by game-over events.
const (
	ReasonCheckmate            = "checkmate"
	ReasonStalemate            = "stalemate"
	ReasonTimeout              = "timeout"
	ReasonTimeoutInsufficient  = "timeout-insufficient-material"
	ReasonInsufficientMaterial = "insufficient-material"
	ReasonResignation          = "resignation"
	ReasonDisconnect           = "disconnect"
)

// Outcome describes how a session concluded. Winner is empty for draws.
type Outcome struct {
	Result string
	Reason string
	Winner Color
}

// IsDraw reports whether nobody won.
func (o Outcome) IsDraw() bool { return o.Winner == "" }

// TimeControl is the initial clock allotment and per-move increment.
type TimeControl struct {
	Initial   time.Duration
	Increment time.Duration
}

// DefaultTimeControl is 10 minutes, no increment.
var DefaultTimeControl = TimeControl{Initial: 10 * time.Minute}

// MoveAssertion is the mover's claim about a move. The relay trusts it.
type MoveAssertion struct {
	Move          json.RawMessage
	CapturedPiece string
	Promotion     string
	IsCheckmate   bool
	IsStalemate   bool
	GameStatus    string
	UCI           string
}

func (a MoveAssertion) checkmate() bool {
	return a.IsCheckmate || strings.EqualFold(strings.TrimSpace(a.GameStatus), "checkmate")
}

func (a MoveAssertion) stalemate() bool {
	return a.IsStalemate || strings.EqualFold(strings.TrimSpace(a.GameStatus), "stalemate")
}

// MoveRecord is one accepted entry of the move history.
type MoveRecord struct {
	Ply       int
	Color     Color
	Move      json.RawMessage
	UCI       string
	Captured  nchess.PieceType
	Promotion nchess.PieceType
	TimeLeft  time.Duration
	At        time.Time
}

// Summary is a detached snapshot of a session, safe to hand to other goroutines.
type Summary struct {
	RoomID      string
	White       ParticipantID
	Black       ParticipantID
	TimeControl TimeControl
	Moves       []MoveRecord
	Captured    map[Color][]nchess.PieceType
	Clock       map[Color]time.Duration
	Outcome     Outcome
	StartedAt   time.Time
	EndedAt     time.Time
}
