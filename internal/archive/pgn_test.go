package archive

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-relay/internal/match"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type ply struct {
	uci, captured, promotion string
}

// playSession feeds scripted moves through a session the way clients report them.
func playSession(t *testing.T, plies []ply) *match.GameSession {
	t.Helper()
	s, err := match.NewGameSession("room_pgn", "w", "b", match.DefaultTimeControl, t0)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	now := t0
	for i, p := range plies {
		now = now.Add(time.Second)
		mover := s.PlayerFor(s.CurrentPlayer)
		raw, _ := json.Marshal(map[string]string{"uci": p.uci})
		res, err := s.ApplyMove(mover, match.MoveAssertion{Move: raw, UCI: p.uci, CapturedPiece: p.captured, Promotion: p.promotion}, now)
		if err != nil || !res.Accepted {
			t.Fatalf("ply %d %s: accepted=%v err=%v", i+1, p.uci, res.Accepted, err)
		}
	}
	return s
}

func uciOf(plies []ply) []string {
	out := make([]string, len(plies))
	for i, p := range plies {
		out[i] = p.uci
	}
	return out
}

func TestReplayMatchesSessionState(t *testing.T) {
	games := map[string][]ply{
		"scandinavian": {
			{uci: "e2e4"}, {uci: "d7d5"}, {uci: "e4d5", captured: "Pawn"},
			{uci: "d8d5", captured: "Pawn"}, {uci: "b1c3"}, {uci: "d5a5"},
		},
		"en passant": {
			{uci: "e2e4"}, {uci: "a7a6"}, {uci: "e4e5"}, {uci: "d7d5"},
			{uci: "e5d6", captured: "Pawn"}, {uci: "c7d6", captured: "Pawn"},
		},
		"promotion": {
			{uci: "e2e4"}, {uci: "d7d5"}, {uci: "e4d5", captured: "Pawn"}, {uci: "c7c6"},
			{uci: "d5c6", captured: "Pawn"}, {uci: "g8f6"}, {uci: "c6b7", captured: "Pawn"},
			{uci: "b8d7"}, {uci: "b7a8q", captured: "Rook", promotion: "Queen"},
		},
	}
	for name, plies := range games {
		s := playSession(t, plies)
		rp, err := ReplayUCI(uciOf(plies))
		if err != nil {
			t.Fatalf("%s: replay: %v", name, err)
		}
		if rp.Turn != s.CurrentPlayer {
			t.Fatalf("%s: replay turn %s, session turn %s", name, rp.Turn, s.CurrentPlayer)
		}
		for _, c := range []match.Color{match.White, match.Black} {
			if !reflect.DeepEqual(rp.Captured[c], s.Captured[c]) {
				t.Fatalf("%s: %s captures replay=%v session=%v", name, c, rp.Captured[c], s.Captured[c])
			}
		}
	}
}

func TestReplaySAN(t *testing.T) {
	rp, err := ReplayUCI([]string{"e2e4", "d7d5", "e4d5", "d8d5", "b1c3", "d5a5"})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	want := []string{"e4", "d5", "exd5", "Qxd5", "Nc3", "Qa5"}
	if !reflect.DeepEqual(rp.SAN, want) {
		t.Fatalf("san = %v, want %v", rp.SAN, want)
	}
	if !strings.HasPrefix(rp.FEN, "rnb1kbnr/ppp1pppp/8/q7/8/2N5/PPPP1PPP/R1BQKBNR w") {
		t.Fatalf("fen = %s", rp.FEN)
	}
}

func TestReplayRejectsIllegalMove(t *testing.T) {
	if _, err := ReplayUCI([]string{"e2e5"}); err == nil {
		t.Fatalf("expected error for illegal move")
	}
}

func TestFromSummaryBuildsPGN(t *testing.T) {
	s := playSession(t, []ply{{uci: "e2e4"}, {uci: "e7e5"}})
	if _, err := s.Resign("b", t0.Add(time.Minute)); err != nil {
		t.Fatalf("resign: %v", err)
	}
	rec := FromSummary(s.Summary())
	if rec.Result != match.ResultResignation || rec.Winner != "White" {
		t.Fatalf("outcome: %+v", rec)
	}
	if !reflect.DeepEqual(rec.MovesSAN, []string{"e4", "e5"}) {
		t.Fatalf("san: %v", rec.MovesSAN)
	}
	if rec.DurationMs != time.Minute.Milliseconds() {
		t.Fatalf("duration: %d", rec.DurationMs)
	}
	for _, want := range []string{`[White "w"]`, `[Result "1-0"]`, `[TimeControl "600+0"]`, "1. e4 e5 1-0"} {
		if !strings.Contains(rec.PGN, want) {
			t.Fatalf("pgn missing %q:\n%s", want, rec.PGN)
		}
	}
}

func TestFromSummaryWithoutUCI(t *testing.T) {
	s, _ := match.NewGameSession("room_raw", "w", "b", match.DefaultTimeControl, t0)
	if _, err := s.ApplyMove("w", match.MoveAssertion{Move: json.RawMessage(`{"san":"e4"}`)}, t0); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := s.Abandon("w", t0); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	rec := FromSummary(s.Summary())
	if len(rec.MovesSAN) != 0 || rec.FinalFEN != "" {
		t.Fatalf("nothing should be replayed: %+v", rec)
	}
	if rec.Plies != 1 || !strings.Contains(rec.PGN, `[Result "0-1"]`) {
		t.Fatalf("record: %+v", rec)
	}
}

func TestMapResultToPGN(t *testing.T) {
	cases := []struct {
		rec  Record
		want string
	}{
		{Record{Result: "checkmate", Winner: "White"}, "1-0"},
		{Record{Result: "timeout", Winner: "Black"}, "0-1"},
		{Record{Result: "stalemate"}, "1/2-1/2"},
		{Record{}, "*"},
	}
	for _, tc := range cases {
		if got := mapResultToPGN(tc.rec); got != tc.want {
			t.Fatalf("%+v: got %s want %s", tc.rec, got, tc.want)
		}
	}
}

func TestCapturedByEnPassant(t *testing.T) {
	game := nchess.NewGame()
	for _, m := range []string{"e2e4", "a7a6", "e4e5", "d7d5"} {
		if err := game.PushNotationMove(m, nchess.UCINotation{}, nil); err != nil {
			t.Fatalf("push %s: %v", m, err)
		}
	}
	pos := game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, "e5d6")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := capturedBy(pos, mv); got != nchess.Pawn {
		t.Fatalf("captured = %v", got)
	}
}

func TestPGNHeadersKeepRoomOutOfRound(t *testing.T) {
	s := playSession(t, []ply{{uci: "e2e4"}})
	if _, err := s.Resign("w", t0.Add(time.Second)); err != nil {
		t.Fatalf("resign: %v", err)
	}
	pgn := FromSummary(s.Summary()).PGN
	if !strings.Contains(pgn, `[Round "-"]`) || !strings.Contains(pgn, `[RoomId "room_pgn"]`) {
		t.Fatalf("room id should live in its own tag:\n%s", pgn)
	}
	if strings.Contains(pgn, `[Round "room_pgn"]`) {
		t.Fatalf("room id leaked into Round:\n%s", pgn)
	}

	roster := []string{"[Event ", "[Site ", "[Date ", "[Round ", "[White ", "[Black ", "[Result ", "[RoomId "}
	last := -1
	for _, tag := range roster {
		at := strings.Index(pgn, tag)
		if at <= last {
			t.Fatalf("tag %s out of order:\n%s", tag, pgn)
		}
		last = at
	}
}
