package match

import (
	"errors"
	"fmt"
	"time"

	nchess "github.com/corentings/chess/v2"
)

var (
	ErrNotPlayer    = errors.New("participant is not a player of this room")
	ErrNotYourTurn  = errors.New("not your turn")
	ErrConcluded    = errors.New("game already concluded")
	ErrInvalidPiece = errors.New("invalid piece kind")
	ErrSamePlayer   = errors.New("a participant cannot play against itself")
	ErrEmptyRoomID  = errors.New("room id required")
	ErrEmptyMove    = errors.New("move payload required")
)

// GameSession is the authoritative record of one paired match.
// It is not safe for concurrent use; callers serialize access.
type GameSession struct {
	RoomID        string
	Players       map[ParticipantID]Color
	CurrentPlayer Color
	Clock         map[Color]time.Duration
	TimeControl   TimeControl
	LastMoveAt    time.Time
	StartedAt     time.Time
	EndedAt       time.Time
	Moves         []MoveRecord
	Captured      map[Color][]nchess.PieceType
	Promotions    map[Color][]nchess.PieceType
	Status        Status
	Outcome       *Outcome
}

// MoveResult reports what ApplyMove did. Accepted is false when the mover flagged
// before the move could be processed; Outcome is then the timeout conclusion.
type MoveResult struct {
	Accepted bool
	Mover    Color
	Record   MoveRecord
	Outcome  *Outcome
}

// TimeReport is the clock view returned to a time query.
type TimeReport struct {
	YourTime      time.Duration
	OpponentTime  time.Duration
	CurrentPlayer Color
}

// NewGameSession starts a session with White to move and both clocks full.
func NewGameSession(roomID string, white, black ParticipantID, tc TimeControl, now time.Time) (*GameSession, error) {
	if roomID == "" {
		return nil, ErrEmptyRoomID
	}
	if white == black {
		return nil, ErrSamePlayer
	}
	if tc.Initial <= 0 {
		tc = DefaultTimeControl
	}
	return &GameSession{
		RoomID:        roomID,
		Players:       map[ParticipantID]Color{white: White, black: Black},
		CurrentPlayer: White,
		Clock:         map[Color]time.Duration{White: tc.Initial, Black: tc.Initial},
		TimeControl:   tc,
		LastMoveAt:    now,
		StartedAt:     now,
		Moves:         []MoveRecord{},
		Captured:      map[Color][]nchess.PieceType{White: {}, Black: {}},
		Promotions:    map[Color][]nchess.PieceType{White: {}, Black: {}},
		Status:        StatusActive,
	}, nil
}

// ColorOf returns the participant's color in this session.
func (s *GameSession) ColorOf(p ParticipantID) (Color, bool) {
	c, ok := s.Players[p]
	return c, ok
}

// PlayerFor returns the participant playing color c.
func (s *GameSession) PlayerFor(c Color) ParticipantID {
	for p, pc := range s.Players {
		if pc == c {
			return p
		}
	}
	return ""
}

// Opponent returns the other participant of the room.
func (s *GameSession) Opponent(p ParticipantID) (ParticipantID, bool) {
	c, ok := s.Players[p]
	if !ok {
		return "", false
	}
	return s.PlayerFor(c.Opponent()), true
}

// Active reports whether the session still accepts mutations.
func (s *GameSession) Active() bool { return s.Status == StatusActive }

// ApplyMove validates and records a move for participant p. A mover whose
// clock has run out gets the timeout conclusion whatever the payload holds.
// A capture that leaves the opponent unable to mate ends the game drawn.
func (s *GameSession) ApplyMove(p ParticipantID, a MoveAssertion, now time.Time) (MoveResult, error) {
	if !s.Active() {
		return MoveResult{}, ErrConcluded
	}
	color, ok := s.Players[p]
	if !ok {
		return MoveResult{}, ErrNotPlayer
	}
	if color != s.CurrentPlayer {
		return MoveResult{}, ErrNotYourTurn
	}
	if s.Flagged(now) {
		s.charge(now)
		o := s.timeoutOutcome(color)
		s.conclude(o, now)
		return MoveResult{Mover: color, Outcome: &o}, nil
	}
	if len(a.Move) == 0 {
		return MoveResult{}, ErrEmptyMove
	}
	captured, err := parseOptionalPiece(a.CapturedPiece)
	if err != nil {
		return MoveResult{}, err
	}
	promotion, err := parseOptionalPiece(a.Promotion)
	if err != nil {
		return MoveResult{}, err
	}
	if captured == nchess.King || promotion == nchess.King || promotion == nchess.Pawn {
		return MoveResult{}, ErrInvalidPiece
	}

	s.charge(now)
	s.Clock[color] += s.TimeControl.Increment
	s.CurrentPlayer = color.Opponent()
	s.LastMoveAt = now
	rec := MoveRecord{
		Ply:       len(s.Moves) + 1,
		Color:     color,
		Move:      append([]byte(nil), a.Move...),
		UCI:       a.UCI,
		Captured:  captured,
		Promotion: promotion,
		TimeLeft:  s.Clock[color],
		At:        now,
	}
	s.Moves = append(s.Moves, rec)
	if captured != nchess.NoPieceType {
		s.Captured[color] = append(s.Captured[color], captured)
	}
	if promotion != nchess.NoPieceType {
		s.Promotions[color] = append(s.Promotions[color], promotion)
	}

	res := MoveResult{Accepted: true, Mover: color, Record: rec}
	switch {
	case a.checkmate():
		o := Outcome{Result: ResultCheckmate, Reason: ReasonCheckmate, Winner: color}
		s.conclude(o, now)
		res.Outcome = &o
	case a.stalemate():
		o := Outcome{Result: ResultStalemate, Reason: ReasonStalemate}
		s.conclude(o, now)
		res.Outcome = &o
	case captured != nchess.NoPieceType && Insufficient(s.material(color.Opponent())):
		o := Outcome{Result: ResultDraw, Reason: ReasonInsufficientMaterial}
		s.conclude(o, now)
		res.Outcome = &o
	}
	return res, nil
}

// Resign concludes the session in favour of p's opponent.
func (s *GameSession) Resign(p ParticipantID, now time.Time) (Outcome, error) {
	if !s.Active() {
		return Outcome{}, ErrConcluded
	}
	color, ok := s.Players[p]
	if !ok {
		return Outcome{}, ErrNotPlayer
	}
	o := Outcome{Result: ResultResignation, Reason: ReasonResignation, Winner: color.Opponent()}
	s.conclude(o, now)
	return o, nil
}

// Abandon concludes the session because p's connection went away.
func (s *GameSession) Abandon(p ParticipantID, now time.Time) (Outcome, error) {
	if !s.Active() {
		return Outcome{}, ErrConcluded
	}
	color, ok := s.Players[p]
	if !ok {
		return Outcome{}, ErrNotPlayer
	}
	o := Outcome{Result: ResultDisconnect, Reason: ReasonDisconnect, Winner: color.Opponent()}
	s.conclude(o, now)
	return o, nil
}

// QueryTime charges elapsed time to the side to move and reports both clocks
// from p's point of view. A flagged mover concludes the session as a timeout.
func (s *GameSession) QueryTime(p ParticipantID, now time.Time) (TimeReport, *Outcome, error) {
	if !s.Active() {
		return TimeReport{}, nil, ErrConcluded
	}
	color, ok := s.Players[p]
	if !ok {
		return TimeReport{}, nil, ErrNotPlayer
	}
	var out *Outcome
	if s.charge(now) == 0 {
		o := s.timeoutOutcome(s.CurrentPlayer)
		s.conclude(o, now)
		out = &o
	}
	return TimeReport{
		YourTime:      s.Clock[color],
		OpponentTime:  s.Clock[color.Opponent()],
		CurrentPlayer: s.CurrentPlayer,
	}, out, nil
}

// Flagged reports, without mutating, whether the side to move has run out of time.
func (s *GameSession) Flagged(now time.Time) bool {
	if !s.Active() {
		return false
	}
	return s.Clock[s.CurrentPlayer]-elapsedSince(s.LastMoveAt, now) <= 0
}

// Expire concludes a flagged session as a timeout. It is a no-op otherwise.
func (s *GameSession) Expire(now time.Time) (Outcome, bool) {
	if !s.Flagged(now) {
		return Outcome{}, false
	}
	s.charge(now)
	o := s.timeoutOutcome(s.CurrentPlayer)
	s.conclude(o, now)
	return o, true
}

// Summary returns a deep copy suitable for archiving.
func (s *GameSession) Summary() Summary {
	moves := make([]MoveRecord, len(s.Moves))
	for i, m := range s.Moves {
		m.Move = append([]byte(nil), m.Move...)
		moves[i] = m
	}
	sum := Summary{
		RoomID:      s.RoomID,
		White:       s.PlayerFor(White),
		Black:       s.PlayerFor(Black),
		TimeControl: s.TimeControl,
		Moves:       moves,
		Captured: map[Color][]nchess.PieceType{
			White: append([]nchess.PieceType(nil), s.Captured[White]...),
			Black: append([]nchess.PieceType(nil), s.Captured[Black]...),
		},
		Clock:     map[Color]time.Duration{White: s.Clock[White], Black: s.Clock[Black]},
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
	}
	if s.Outcome != nil {
		sum.Outcome = *s.Outcome
	}
	return sum
}

// charge debits elapsed time from the side to move and re-baselines the clock.
func (s *GameSession) charge(now time.Time) time.Duration {
	c := s.CurrentPlayer
	left := s.Clock[c] - elapsedSince(s.LastMoveAt, now)
	if left < 0 {
		left = 0
	}
	s.Clock[c] = left
	if now.After(s.LastMoveAt) {
		s.LastMoveAt = now
	}
	return left
}

// timeoutOutcome decides a flag fall: the opponent wins unless it cannot mate.
func (s *GameSession) timeoutOutcome(loser Color) Outcome {
	winner := loser.Opponent()
	if Insufficient(s.material(winner)) {
		return Outcome{Result: ResultDraw, Reason: ReasonTimeoutInsufficient}
	}
	return Outcome{Result: ResultTimeout, Reason: ReasonTimeout, Winner: winner}
}

// material is what color c still holds: its set minus what the other side took.
func (s *GameSession) material(c Color) map[nchess.PieceType]int {
	return Remaining(s.Captured[c.Opponent()], s.Promotions[c])
}

func (s *GameSession) conclude(o Outcome, now time.Time) {
	s.Status = StatusConcluded
	s.Outcome = &o
	s.EndedAt = now
}

func elapsedSince(from, now time.Time) time.Duration {
	d := now.Sub(from)
	if d < 0 {
		return 0
	}
	return d
}

func parseOptionalPiece(s string) (nchess.PieceType, error) {
	if s == "" {
		return nchess.NoPieceType, nil
	}
	pt, ok := ParsePiece(s)
	if !ok {
		return nchess.NoPieceType, fmt.Errorf("%w: %q", ErrInvalidPiece, s)
	}
	return pt, nil
}
