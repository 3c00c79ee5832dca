package match

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var initialPieceCounts = map[nchess.PieceType]int{
	nchess.Pawn:   8,
	nchess.Knight: 2,
	nchess.Bishop: 2,
	nchess.Rook:   2,
	nchess.Queen:  1,
}

var pieceNames = map[nchess.PieceType]string{
	nchess.Pawn:   "Pawn",
	nchess.Knight: "Knight",
	nchess.Bishop: "Bishop",
	nchess.Rook:   "Rook",
	nchess.Queen:  "Queen",
	nchess.King:   "King",
}

// ParsePiece accepts piece names ("Knight") and FEN letters ("n"), case-insensitively.
func ParsePiece(s string) (nchess.PieceType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pawn", "p":
		return nchess.Pawn, true
	case "knight", "n":
		return nchess.Knight, true
	case "bishop", "b":
		return nchess.Bishop, true
	case "rook", "r":
		return nchess.Rook, true
	case "queen", "q":
		return nchess.Queen, true
	case "king", "k":
		return nchess.King, true
	default:
		return nchess.NoPieceType, false
	}
}

// PieceName returns the protocol name of a piece type, or "" for NoPieceType.
func PieceName(pt nchess.PieceType) string { return pieceNames[pt] }

// Remaining derives a side's non-king material from its starting set, the pieces
// taken from it and the promotions it made. Counts never go below zero.
func Remaining(capturedFrom, promotions []nchess.PieceType) map[nchess.PieceType]int {
	counts := make(map[nchess.PieceType]int, len(initialPieceCounts))
	for pt, n := range initialPieceCounts {
		counts[pt] = n
	}
	for _, pt := range promotions {
		counts[nchess.Pawn]--
		counts[pt]++
	}
	for _, pt := range capturedFrom {
		if pt == nchess.King {
			continue
		}
		counts[pt]--
	}
	for pt, n := range counts {
		if n < 0 {
			counts[pt] = 0
		}
	}
	return counts
}

// Insufficient reports whether the given material can never force checkmate:
// a bare king, a single minor piece, or two knights.
func Insufficient(remaining map[nchess.PieceType]int) bool {
	if remaining[nchess.Pawn] > 0 || remaining[nchess.Rook] > 0 || remaining[nchess.Queen] > 0 {
		return false
	}
	bishops, knights := remaining[nchess.Bishop], remaining[nchess.Knight]
	switch {
	case bishops == 0 && knights <= 2:
		return true
	case bishops == 1 && knights == 0:
		return true
	default:
		return false
	}
}
