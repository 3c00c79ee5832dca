package match

import (
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func TestParsePiece(t *testing.T) {
	cases := map[string]nchess.PieceType{
		"Knight": nchess.Knight,
		"n":      nchess.Knight,
		" QUEEN": nchess.Queen,
		"p":      nchess.Pawn,
		"King":   nchess.King,
	}
	for in, want := range cases {
		got, ok := ParsePiece(in)
		if !ok || got != want {
			t.Fatalf("ParsePiece(%q) = %v,%v; want %v", in, got, ok, want)
		}
	}
	if _, ok := ParsePiece("castle"); ok {
		t.Fatalf("unknown piece accepted")
	}
}

func TestInsufficient(t *testing.T) {
	cases := []struct {
		name string
		in   map[nchess.PieceType]int
		want bool
	}{
		{"bare king", map[nchess.PieceType]int{}, true},
		{"single knight", map[nchess.PieceType]int{nchess.Knight: 1}, true},
		{"two knights", map[nchess.PieceType]int{nchess.Knight: 2}, true},
		{"single bishop", map[nchess.PieceType]int{nchess.Bishop: 1}, true},
		{"bishop and knight", map[nchess.PieceType]int{nchess.Bishop: 1, nchess.Knight: 1}, false},
		{"two bishops", map[nchess.PieceType]int{nchess.Bishop: 2}, false},
		{"lone pawn", map[nchess.PieceType]int{nchess.Pawn: 1}, false},
		{"lone rook", map[nchess.PieceType]int{nchess.Rook: 1}, false},
		{"lone queen", map[nchess.PieceType]int{nchess.Queen: 1}, false},
	}
	for _, tc := range cases {
		if got := Insufficient(tc.in); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestRemainingAppliesPromotionsAndCaptures(t *testing.T) {
	// One pawn promoted to a queen, then that queen and two pawns were taken.
	got := Remaining(
		[]nchess.PieceType{nchess.Queen, nchess.Pawn, nchess.Pawn, nchess.King},
		[]nchess.PieceType{nchess.Queen},
	)
	if got[nchess.Pawn] != 5 {
		t.Fatalf("pawns: got %d want 5", got[nchess.Pawn])
	}
	if got[nchess.Queen] != 1 {
		t.Fatalf("queens: got %d want 1", got[nchess.Queen])
	}
	if got[nchess.Rook] != 2 || got[nchess.Knight] != 2 || got[nchess.Bishop] != 2 {
		t.Fatalf("untouched pieces changed: %v", got)
	}
}

func TestRemainingClampsAtZero(t *testing.T) {
	got := Remaining([]nchess.PieceType{nchess.Queen, nchess.Queen, nchess.Queen}, nil)
	if got[nchess.Queen] != 0 {
		t.Fatalf("queens: got %d want 0", got[nchess.Queen])
	}
}

func TestPieceName(t *testing.T) {
	if PieceName(nchess.Rook) != "Rook" {
		t.Fatalf("rook name: %q", PieceName(nchess.Rook))
	}
	if PieceName(nchess.NoPieceType) != "" {
		t.Fatalf("no piece should have no name")
	}
}
