package relaydto

import "encoding/json"

// Clocks maps a color name to its remaining milliseconds.
type Clocks map[string]int64

type MakeMoveRequest struct {
	Move          json.RawMessage `json:"move"`
	CapturedPiece string          `json:"capturedPiece,omitempty"`
	Promotion     string          `json:"promotion,omitempty"`
	IsCheckmate   bool            `json:"isCheckmate,omitempty"`
	IsStalemate   bool            `json:"isStalemate,omitempty"`
	GameStatus    string          `json:"gameStatus,omitempty"`
	UCI           string          `json:"uci,omitempty"`
}

type Connected struct {
	ParticipantID string `json:"participantId"`
}

type TimeControl struct {
	Initial   int64 `json:"initial"`
	Increment int64 `json:"increment"`
}

type GameStart struct {
	RoomID      string      `json:"roomId"`
	YourColor   string      `json:"yourColor"`
	OpponentID  string      `json:"opponentId"`
	TimeControl TimeControl `json:"timeControl"`
}

type OpponentMove struct {
	Move     json.RawMessage `json:"move"`
	TimeLeft int64           `json:"timeLeft"`
	Clocks   Clocks          `json:"clocks"`
}

type MoveConfirmed struct {
	TimeLeft int64  `json:"timeLeft"`
	Clocks   Clocks `json:"clocks"`
}

type TimeUpdate struct {
	YourTime      int64  `json:"yourTime"`
	OpponentTime  int64  `json:"opponentTime"`
	CurrentPlayer string `json:"currentPlayer"`
}

// GameOver carries a nil Winner for draws, which encodes as JSON null.
type GameOver struct {
	Result string  `json:"result"`
	Reason string  `json:"reason"`
	Winner *string `json:"winner"`
}

type OpponentDisconnected struct {
	Winner string `json:"winner"`
}

type Error struct {
	Message string `json:"message"`
}
