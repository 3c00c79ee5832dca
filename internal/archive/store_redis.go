package archive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultResultTTL = 24 * time.Hour
	defaultRecentCap = 100
)

// Store keeps concluded games in Redis: one JSON value per room, a set of
// rooms per participant and a capped list of the most recent rooms.
type Store struct {
	rdb       *redis.Client
	ttl       time.Duration
	recentCap int64
}

func NewStore(rdb *redis.Client, ttl time.Duration, recentCap int) *Store {
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	if recentCap <= 0 {
		recentCap = defaultRecentCap
	}
	return &Store{rdb: rdb, ttl: ttl, recentCap: int64(recentCap)}
}

func (s *Store) keyResult(room string) string { return "relay:result:" + strings.TrimSpace(room) }
func (s *Store) keyParticipant(p string) string {
	return "relay:index:participant:" + strings.TrimSpace(p)
}
func (s *Store) keyRecent() string { return "relay:recent" }

// Save writes the record and its index entries in one transaction.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.RoomID) == "" {
		return errors.New("record without room id")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.keyResult(rec.RoomID), raw, s.ttl)
		for _, who := range []string{rec.White, rec.Black} {
			if strings.TrimSpace(who) == "" {
				continue
			}
			p.SAdd(ctx, s.keyParticipant(who), rec.RoomID)
			p.Expire(ctx, s.keyParticipant(who), s.ttl)
		}
		p.LPush(ctx, s.keyRecent(), rec.RoomID)
		p.LTrim(ctx, s.keyRecent(), 0, s.recentCap-1)
		return nil
	})
	return err
}

// Load returns nil, nil when the room is unknown or expired.
func (s *Store) Load(ctx context.Context, room string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, s.keyResult(room)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recent returns up to limit records, newest first. Expired entries are skipped.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || int64(limit) > s.recentCap {
		limit = int(s.recentCap)
	}
	rooms, err := s.rdb.LRange(ctx, s.keyRecent(), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return []Record{}, nil
	}
	keys := make([]string, len(rooms))
	for i, r := range rooms {
		keys[i] = s.keyResult(r)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// RoomsFor lists the archived rooms a participant played in.
func (s *Store) RoomsFor(ctx context.Context, participant string) ([]string, error) {
	return s.rdb.SMembers(ctx, s.keyParticipant(participant)).Result()
}
