package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const schema = `CREATE TABLE IF NOT EXISTS relay_games (
    room_id      TEXT PRIMARY KEY,
    white_id     TEXT NOT NULL,
    black_id     TEXT NOT NULL,
    result       TEXT NOT NULL,
    reason       TEXT NOT NULL,
    winner       TEXT,
    moves_uci    JSONB NOT NULL DEFAULT '[]',
    moves_san    JSONB NOT NULL DEFAULT '[]',
    final_fen    TEXT,
    pgn          TEXT NOT NULL,
    initial_ms   BIGINT NOT NULL,
    increment_ms BIGINT NOT NULL,
    started_at   TIMESTAMPTZ NOT NULL,
    ended_at     TIMESTAMPTZ NOT NULL,
    duration_ms  BIGINT NOT NULL
)`

// Repository persists final results to Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

// EnsureSchema creates the results table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Save upserts a final result keyed by room id.
func (r *Repository) Save(ctx context.Context, rec Record) error {
	if r == nil || r.db == nil {
		return nil
	}
	movesUCI, _ := json.Marshal(nonNil(rec.MovesUCI))
	movesSAN, _ := json.Marshal(nonNil(rec.MovesSAN))

	q := `INSERT INTO relay_games (
        room_id, white_id, black_id, result, reason, winner,
        moves_uci, moves_san, final_fen, pgn,
        initial_ms, increment_ms, started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
      ) ON CONFLICT (room_id) DO UPDATE SET
        result=EXCLUDED.result,
        reason=EXCLUDED.reason,
        winner=EXCLUDED.winner,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        final_fen=EXCLUDED.final_fen,
        pgn=EXCLUDED.pgn,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		rec.RoomID, rec.White, rec.Black, rec.Result, rec.Reason, nullable(rec.Winner),
		string(movesUCI), string(movesSAN), nullable(rec.FinalFEN), rec.PGN,
		rec.InitialMs, rec.IncrementMs, rec.StartedAt, rec.EndedAt, rec.DurationMs,
	)
	return err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
