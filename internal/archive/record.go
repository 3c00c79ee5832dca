package archive

import (
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-relay/internal/match"
)

// Record is the archived form of a concluded game.
type Record struct {
	RoomID      string              `json:"roomId"`
	White       string              `json:"white"`
	Black       string              `json:"black"`
	Result      string              `json:"result"`
	Reason      string              `json:"reason"`
	Winner      string              `json:"winner,omitempty"`
	MovesUCI    []string            `json:"movesUci,omitempty"`
	MovesSAN    []string            `json:"movesSan,omitempty"`
	Plies       int                 `json:"plies"`
	FinalFEN    string              `json:"finalFen,omitempty"`
	PGN         string              `json:"pgn"`
	Captured    map[string][]string `json:"captured"`
	Clocks      map[string]int64    `json:"clocks"`
	InitialMs   int64               `json:"initialMs"`
	IncrementMs int64               `json:"incrementMs"`
	StartedAt   time.Time           `json:"startedAt"`
	EndedAt     time.Time           `json:"endedAt"`
	DurationMs  int64               `json:"durationMs"`
}

// FromSummary converts a session snapshot. When every move carries UCI text
// the history is replayed to recover SAN and the final position; otherwise the
// record keeps whatever UCI it has and no SAN.
func FromSummary(sum match.Summary) Record {
	rec := Record{
		RoomID:      sum.RoomID,
		White:       string(sum.White),
		Black:       string(sum.Black),
		Result:      sum.Outcome.Result,
		Reason:      sum.Outcome.Reason,
		Winner:      string(sum.Outcome.Winner),
		Plies:       len(sum.Moves),
		Captured:    map[string][]string{},
		Clocks:      map[string]int64{},
		InitialMs:   sum.TimeControl.Initial.Milliseconds(),
		IncrementMs: sum.TimeControl.Increment.Milliseconds(),
		StartedAt:   sum.StartedAt,
		EndedAt:     sum.EndedAt,
	}
	if d := sum.EndedAt.Sub(sum.StartedAt); d > 0 {
		rec.DurationMs = d.Milliseconds()
	}
	for _, c := range []match.Color{match.White, match.Black} {
		rec.Captured[string(c)] = pieceNames(sum.Captured[c])
		rec.Clocks[string(c)] = sum.Clock[c].Milliseconds()
	}

	complete := len(sum.Moves) > 0
	for _, m := range sum.Moves {
		if m.UCI == "" {
			complete = false
			continue
		}
		rec.MovesUCI = append(rec.MovesUCI, m.UCI)
	}
	if complete {
		if rp, err := ReplayUCI(rec.MovesUCI); err == nil {
			rec.MovesSAN = rp.SAN
			rec.FinalFEN = rp.FEN
		}
	}
	rec.PGN = BuildPGN(rec)
	return rec
}

func pieceNames(pts []nchess.PieceType) []string {
	out := make([]string, 0, len(pts))
	for _, pt := range pts {
		out = append(out, match.PieceName(pt))
	}
	return out
}
