package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-relay/internal/match"
	"github.com/park285/cheese-relay/internal/obslog"
	"github.com/park285/cheese-relay/pkg/relaydto"
)

// Messages renders human-readable error texts. *msgcat.Catalog satisfies it.
type Messages interface {
	Render(key string, data any) (string, error)
}

// ResultSink receives every concluded game. It is called outside the
// dispatcher lock and must not block for long.
type ResultSink interface {
	Record(ctx context.Context, s match.Summary)
}

// Stats is a point-in-time view of the relay.
type Stats struct {
	Queued        int    `json:"queued"`
	ActiveRooms   int    `json:"activeRooms"`
	GamesStarted  uint64 `json:"gamesStarted"`
	GamesFinished uint64 `json:"gamesFinished"`
	MovesRelayed  uint64 `json:"movesRelayed"`
}

// Dispatcher turns inbound events into outbound messages. All queue, registry
// and session mutation happens under one mutex.
type Dispatcher struct {
	mu       sync.Mutex
	queue    *match.Queue
	registry *match.Registry
	mm       *match.Matchmaker

	now  func() time.Time
	msgs Messages
	sink ResultSink

	started  uint64
	finished uint64
	moves    uint64
}

type options struct {
	now  func() time.Time
	msgs Messages
	sink ResultSink
	mm   []match.MatchmakerOption
}

type Option func(*options)

func WithClock(fn func() time.Time) Option {
	return func(o *options) {
		if fn != nil {
			o.now = fn
		}
	}
}

func WithLiveness(fn match.Liveness) Option {
	return func(o *options) { o.mm = append(o.mm, match.WithLiveness(fn)) }
}

func WithCoin(fn func() bool) Option {
	return func(o *options) { o.mm = append(o.mm, match.WithCoin(fn)) }
}

func WithRoomIDs(fn func() string) Option {
	return func(o *options) { o.mm = append(o.mm, match.WithRoomIDs(fn)) }
}

func WithTimeControl(tc match.TimeControl) Option {
	return func(o *options) { o.mm = append(o.mm, match.WithTimeControl(tc)) }
}

func WithMessages(m Messages) Option {
	return func(o *options) { o.msgs = m }
}

func WithResultSink(s ResultSink) Option {
	return func(o *options) { o.sink = s }
}

// New builds a dispatcher with its own empty queue and registry.
func New(opts ...Option) *Dispatcher {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	q, r := match.NewQueue(), match.NewRegistry()
	return &Dispatcher{
		queue:    q,
		registry: r,
		mm:       match.NewMatchmaker(q, r, o.mm...),
		now:      o.now,
		msgs:     o.msgs,
		sink:     o.sink,
	}
}

// Handle processes one inbound event and returns the messages to deliver,
// in delivery order.
func (d *Dispatcher) Handle(ctx context.Context, in Inbound) []Outbound {
	d.mu.Lock()
	out, done := d.handleLocked(in, d.now())
	d.mu.Unlock()
	d.archive(ctx, done)
	return out
}

// Sweep concludes every session whose side to move has run out of time.
func (d *Dispatcher) Sweep(ctx context.Context) []Outbound {
	d.mu.Lock()
	now := d.now()
	var (
		out  []Outbound
		done []match.Summary
	)
	for _, s := range d.registry.Sessions() {
		o, ok := s.Expire(now)
		if !ok {
			continue
		}
		out = append(out, d.gameOverBoth(s, o)...)
		done = append(done, d.evict(s))
	}
	d.mu.Unlock()
	if len(done) > 0 {
		obslog.L().Info("relay_sweep", zap.Int("expired", len(done)))
	}
	d.archive(ctx, done)
	return out
}

// Stats reports queue and room counts.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Queued:        d.queue.Len(),
		ActiveRooms:   d.registry.Len(),
		GamesStarted:  d.started,
		GamesFinished: d.finished,
		MovesRelayed:  d.moves,
	}
}

func (d *Dispatcher) handleLocked(in Inbound, now time.Time) ([]Outbound, []match.Summary) {
	switch in.Kind {
	case KindJoinQueue:
		return d.join(in.From, now), nil
	case KindLeaveQueue:
		if d.mm.DequeueIfPresent(in.From) {
			return []Outbound{{To: in.From, Event: relaydto.EventLeftQueue}}, nil
		}
		return nil, nil
	case KindMakeMove:
		return d.move(in, now)
	case KindGetTime:
		return d.queryTime(in.From, now)
	case KindResign:
		return d.resign(in.From, now)
	case KindDisconnect:
		return d.disconnect(in.From, now)
	case KindMalformed:
		return []Outbound{d.errorTo(in.From, "error.malformed", "malformed request")}, nil
	default:
		return []Outbound{d.errorTo(in.From, "error.unknown_event", "unknown event")}, nil
	}
}

func (d *Dispatcher) join(p match.ParticipantID, now time.Time) []Outbound {
	res, err := d.mm.Enqueue(p, now)
	for _, st := range res.Stale {
		obslog.L().Info("relay_stale_waiter", zap.String("participant_id", string(st)))
	}
	if err != nil {
		obslog.L().Warn("relay_pairing_error", zap.String("participant_id", string(p)), zap.Error(err))
		return []Outbound{d.errorTo(p, "error.pairing_failed", "could not start a game")}
	}
	switch res.Status {
	case match.AlreadyQueued:
		return []Outbound{{To: p, Event: relaydto.EventAlreadyInQueue}}
	case match.AlreadyInGame:
		return []Outbound{{To: p, Event: relaydto.EventAlreadyInGame}}
	case match.Queued:
		obslog.L().Info("relay_queued", zap.String("participant_id", string(p)), zap.Int("queue_len", d.queue.Len()))
		return []Outbound{{To: p, Event: relaydto.EventWaitingForOpponent}}
	}

	s := res.Session
	d.started++
	white, black := s.PlayerFor(match.White), s.PlayerFor(match.Black)
	obslog.L().Info("relay_pairing",
		zap.String("room_id", s.RoomID),
		zap.String("white_id", string(white)),
		zap.String("black_id", string(black)),
	)
	tc := relaydto.TimeControl{Initial: s.TimeControl.Initial.Milliseconds(), Increment: s.TimeControl.Increment.Milliseconds()}
	return []Outbound{
		{To: white, Event: relaydto.EventGameStart, Payload: relaydto.GameStart{RoomID: s.RoomID, YourColor: string(match.White), OpponentID: string(black), TimeControl: tc}},
		{To: black, Event: relaydto.EventGameStart, Payload: relaydto.GameStart{RoomID: s.RoomID, YourColor: string(match.Black), OpponentID: string(white), TimeControl: tc}},
	}
}

func (d *Dispatcher) move(in Inbound, now time.Time) ([]Outbound, []match.Summary) {
	s, ok := d.registry.SessionFor(in.From)
	if !ok {
		return []Outbound{d.errorTo(in.From, "error.not_in_game", "you are not in a game")}, nil
	}
	if in.Move == nil {
		return []Outbound{d.errorTo(in.From, "error.empty_move", "move required")}, nil
	}
	res, err := s.ApplyMove(in.From, *in.Move, now)
	if err != nil {
		return []Outbound{d.rejection(in.From, err)}, nil
	}
	if !res.Accepted {
		out := d.gameOverBoth(s, *res.Outcome)
		return out, []match.Summary{d.evict(s)}
	}

	d.moves++
	obslog.L().Info("relay_move",
		zap.String("room_id", s.RoomID),
		zap.String("color", string(res.Mover)),
		zap.Int("ply", res.Record.Ply),
		zap.String("uci", res.Record.UCI),
		zap.Int64("time_left_ms", res.Record.TimeLeft.Milliseconds()),
	)
	opp, _ := s.Opponent(in.From)
	clocks := clocksOf(s)
	out := []Outbound{
		{To: opp, Event: relaydto.EventOpponentMove, Payload: relaydto.OpponentMove{Move: res.Record.Move, TimeLeft: res.Record.TimeLeft.Milliseconds(), Clocks: clocks}},
		{To: in.From, Event: relaydto.EventMoveConfirmed, Payload: relaydto.MoveConfirmed{TimeLeft: res.Record.TimeLeft.Milliseconds(), Clocks: clocks}},
	}
	if res.Outcome == nil {
		return out, nil
	}
	out = append(out, d.gameOverBoth(s, *res.Outcome)...)
	return out, []match.Summary{d.evict(s)}
}

func (d *Dispatcher) queryTime(p match.ParticipantID, now time.Time) ([]Outbound, []match.Summary) {
	s, ok := d.registry.SessionFor(p)
	if !ok {
		return []Outbound{d.errorTo(p, "error.not_in_game", "you are not in a game")}, nil
	}
	rep, o, err := s.QueryTime(p, now)
	if err != nil {
		return []Outbound{d.rejection(p, err)}, nil
	}
	out := []Outbound{{To: p, Event: relaydto.EventTimeUpdate, Payload: relaydto.TimeUpdate{
		YourTime:      rep.YourTime.Milliseconds(),
		OpponentTime:  rep.OpponentTime.Milliseconds(),
		CurrentPlayer: string(rep.CurrentPlayer),
	}}}
	if o == nil {
		return out, nil
	}
	out = append(out, d.gameOverBoth(s, *o)...)
	return out, []match.Summary{d.evict(s)}
}

func (d *Dispatcher) resign(p match.ParticipantID, now time.Time) ([]Outbound, []match.Summary) {
	s, ok := d.registry.SessionFor(p)
	if !ok {
		return []Outbound{d.errorTo(p, "error.not_in_game", "you are not in a game")}, nil
	}
	o, err := s.Resign(p, now)
	if err != nil {
		return []Outbound{d.rejection(p, err)}, nil
	}
	return d.gameOverBoth(s, o), []match.Summary{d.evict(s)}
}

func (d *Dispatcher) disconnect(p match.ParticipantID, now time.Time) ([]Outbound, []match.Summary) {
	if d.mm.DequeueIfPresent(p) {
		obslog.L().Info("relay_dequeue_on_disconnect", zap.String("participant_id", string(p)))
	}
	s, ok := d.registry.SessionFor(p)
	if !ok {
		return nil, nil
	}
	o, err := s.Abandon(p, now)
	if err != nil {
		return nil, []match.Summary{d.evict(s)}
	}
	opp, _ := s.Opponent(p)
	d.logGameOver(s, o)
	out := []Outbound{
		{To: opp, Event: relaydto.EventOpponentDisconnected, Payload: relaydto.OpponentDisconnected{Winner: string(o.Winner)}},
		{To: opp, Event: relaydto.EventGameOver, Payload: gameOverPayload(o)},
	}
	return out, []match.Summary{d.evict(s)}
}

func (d *Dispatcher) gameOverBoth(s *match.GameSession, o match.Outcome) []Outbound {
	d.logGameOver(s, o)
	payload := gameOverPayload(o)
	return []Outbound{
		{To: s.PlayerFor(match.White), Event: relaydto.EventGameOver, Payload: payload},
		{To: s.PlayerFor(match.Black), Event: relaydto.EventGameOver, Payload: payload},
	}
}

func (d *Dispatcher) logGameOver(s *match.GameSession, o match.Outcome) {
	obslog.L().Info("relay_game_over",
		zap.String("room_id", s.RoomID),
		zap.String("result", o.Result),
		zap.String("reason", o.Reason),
		zap.String("winner", string(o.Winner)),
		zap.Int("plies", len(s.Moves)),
	)
}

// evict removes the room and returns its final snapshot for the sink.
func (d *Dispatcher) evict(s *match.GameSession) match.Summary {
	d.registry.Evict(s.RoomID)
	d.finished++
	return s.Summary()
}

func (d *Dispatcher) archive(ctx context.Context, done []match.Summary) {
	if d.sink == nil {
		return
	}
	for _, sum := range done {
		d.sink.Record(ctx, sum)
	}
}

func (d *Dispatcher) rejection(p match.ParticipantID, err error) Outbound {
	switch {
	case errors.Is(err, match.ErrNotYourTurn):
		return d.errorTo(p, "error.not_your_turn", "not your turn")
	case errors.Is(err, match.ErrNotPlayer):
		return d.errorTo(p, "error.not_in_game", "you are not in a game")
	case errors.Is(err, match.ErrConcluded):
		return d.errorTo(p, "error.concluded", "game already over")
	case errors.Is(err, match.ErrInvalidPiece):
		return d.errorTo(p, "error.invalid_piece", "invalid piece")
	case errors.Is(err, match.ErrEmptyMove):
		return d.errorTo(p, "error.empty_move", "move required")
	default:
		obslog.L().Warn("relay_unexpected_error", zap.String("participant_id", string(p)), zap.Error(err))
		return d.errorTo(p, "error.internal", "internal error")
	}
}

func (d *Dispatcher) errorTo(p match.ParticipantID, key, fallback string) Outbound {
	msg := fallback
	if d.msgs != nil {
		if s, err := d.msgs.Render(key, nil); err == nil && s != "" {
			msg = s
		}
	}
	return Outbound{To: p, Event: relaydto.EventError, Payload: relaydto.Error{Message: msg}}
}

func gameOverPayload(o match.Outcome) relaydto.GameOver {
	g := relaydto.GameOver{Result: o.Result, Reason: o.Reason}
	if !o.IsDraw() {
		w := string(o.Winner)
		g.Winner = &w
	}
	return g
}

func clocksOf(s *match.GameSession) relaydto.Clocks {
	return relaydto.Clocks{
		string(match.White): s.Clock[match.White].Milliseconds(),
		string(match.Black): s.Clock[match.Black].Milliseconds(),
	}
}
