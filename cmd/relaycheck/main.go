package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-relay/internal/msgcat"
	"github.com/park285/cheese-relay/internal/opsapi"
	"github.com/park285/cheese-relay/pkg/relaydto"
)

// relaycheck connects two players to a running relay, queues them and prints
// the pairing. With RELAY_OPS_URL set it also reads the ops API.
func main() {
	wsURL := os.Getenv("RELAY_WS_URL")
	opsURL := os.Getenv("RELAY_OPS_URL")
	if wsURL == "" {
		wsURL = "ws://127.0.0.1:8080/ws"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	a, aID, err := connect(ctx, wsURL)
	if err != nil {
		log.Fatalf("player A: %v", err)
	}
	defer a.Close(websocket.StatusNormalClosure, "done")
	b, bID, err := connect(ctx, wsURL)
	if err != nil {
		log.Fatalf("player B: %v", err)
	}
	defer b.Close(websocket.StatusNormalClosure, "done")
	log.Printf("connected: A=%s B=%s", aID, bID)

	for _, c := range []*websocket.Conn{a, b} {
		if err := wsjson.Write(ctx, c, relaydto.Envelope{Event: relaydto.EventJoinQueue}); err != nil {
			log.Fatalf("join-queue: %v", err)
		}
	}

	start, err := waitFor(ctx, a, relaydto.EventGameStart)
	if err != nil {
		log.Fatalf("waiting for game-start: %v", err)
	}
	var gs relaydto.GameStart
	if err := json.Unmarshal(start.Data, &gs); err != nil {
		log.Fatalf("decode game-start: %v", err)
	}
	white, black := aID, bID
	if gs.YourColor == "Black" {
		white, black = bID, aID
	}

	line := fmt.Sprintf("paired in %s", gs.RoomID)
	if cat, err := msgcat.New(""); err == nil {
		if s, err := cat.Render("relaycheck.paired", map[string]string{"Room": gs.RoomID, "White": white, "Black": black}); err == nil {
			line = s
		}
	}
	fmt.Println(line)

	if opsURL == "" {
		log.Println("RELAY_OPS_URL not set; skipping ops check")
		return
	}
	client := opsapi.NewClient(opsURL, opsapi.WithTimeout(5*time.Second))
	if err := client.Health(ctx); err != nil {
		log.Printf("/healthz error: %v", err)
		return
	}
	st, err := client.Stats(ctx)
	if err != nil {
		log.Printf("/stats error: %v", err)
		return
	}
	log.Printf("/stats ok: queued=%d rooms=%d connections=%d started=%d finished=%d",
		st.Queued, st.ActiveRooms, st.Connections, st.GamesStarted, st.GamesFinished)
}

func connect(ctx context.Context, url string) (*websocket.Conn, string, error) {
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{CompressionMode: websocket.CompressionNoContextTakeover})
	if err != nil {
		return nil, "", err
	}
	env, err := waitFor(ctx, c, relaydto.EventConnected)
	if err != nil {
		c.Close(websocket.StatusInternalError, "no token")
		return nil, "", err
	}
	var hello relaydto.Connected
	if err := json.Unmarshal(env.Data, &hello); err != nil {
		return nil, "", err
	}
	return c, hello.ParticipantID, nil
}

// waitFor reads frames until one with the given event arrives.
func waitFor(ctx context.Context, c *websocket.Conn, event string) (relaydto.Envelope, error) {
	for {
		var env relaydto.Envelope
		if err := wsjson.Read(ctx, c, &env); err != nil {
			return relaydto.Envelope{}, err
		}
		if env.Event == event {
			return env, nil
		}
		if env.Event == relaydto.EventError {
			return env, fmt.Errorf("relay error: %s", env.Data)
		}
	}
}
