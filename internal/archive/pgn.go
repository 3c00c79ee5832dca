package archive

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-relay/internal/match"
)

// Replay is the result of playing a UCI history from the initial position.
type Replay struct {
	SAN      []string
	FEN      string
	Turn     match.Color
	Captured map[match.Color][]nchess.PieceType
}

// ReplayUCI applies moves in order and fails on the first illegal one.
func ReplayUCI(moves []string) (Replay, error) {
	game := nchess.NewGame()
	rp := Replay{Captured: map[match.Color][]nchess.PieceType{match.White: {}, match.Black: {}}}
	notation := nchess.UCINotation{}
	for i, raw := range moves {
		pos := game.Position()
		mover := colorFrom(pos.Turn())
		mv, err := notation.Decode(pos, strings.ToLower(strings.TrimSpace(raw)))
		if err != nil {
			return Replay{}, fmt.Errorf("ply %d %q: %w", i+1, raw, err)
		}
		if pt := capturedBy(pos, mv); pt != nchess.NoPieceType {
			rp.Captured[mover] = append(rp.Captured[mover], pt)
		}
		rp.SAN = append(rp.SAN, nchess.AlgebraicNotation{}.Encode(pos, mv))
		if err := game.Move(mv, nil); err != nil {
			return Replay{}, fmt.Errorf("ply %d %q: %w", i+1, raw, err)
		}
	}
	rp.FEN = game.FEN()
	rp.Turn = colorFrom(game.Position().Turn())
	return rp, nil
}

func capturedBy(pos *nchess.Position, mv *nchess.Move) nchess.PieceType {
	if mv.HasTag(nchess.EnPassant) {
		return nchess.Pawn
	}
	if !mv.HasTag(nchess.Capture) {
		return nchess.NoPieceType
	}
	return pos.Board().Piece(mv.S2()).Type()
}

func colorFrom(c nchess.Color) match.Color {
	if c == nchess.White {
		return match.White
	}
	return match.Black
}

// BuildPGN renders headers and numbered moves. SAN is used when available,
// UCI otherwise.
func BuildPGN(rec Record) string {
	result := mapResultToPGN(rec)
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	b.WriteString("[Event \"Relay Game\"]\n")
	b.WriteString("[Site \"cheese-relay\"]\n")
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	b.WriteString("[Round \"-\"]\n")
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(rec.White))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(rec.Black))
	fmt.Fprintf(&b, "[Result \"%s\"]\n", result)
	fmt.Fprintf(&b, "[RoomId \"%s\"]\n", sanitizePGN(rec.RoomID))
	if rec.InitialMs > 0 {
		fmt.Fprintf(&b, "[TimeControl \"%d+%d\"]\n", rec.InitialMs/1000, rec.IncrementMs/1000)
	}
	if rec.Reason != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(rec.Reason))
	}
	b.WriteString("\n")

	moves := rec.MovesSAN
	if len(moves) == 0 {
		moves = rec.MovesUCI
	}
	for i := 0; i < len(moves); i += 2 {
		fmt.Fprintf(&b, "%d. %s", i/2+1, strings.TrimSpace(moves[i]))
		if i+1 < len(moves) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(moves[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func mapResultToPGN(rec Record) string {
	switch {
	case rec.Result == "":
		return "*"
	case rec.Winner == string(match.White):
		return "1-0"
	case rec.Winner == string(match.Black):
		return "0-1"
	default:
		return "1/2-1/2"
	}
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
