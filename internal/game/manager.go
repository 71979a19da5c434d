package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"scratch2x/internal/events"
	"scratch2x/internal/metrics"
)

const (
	DEFAULT_QUEUE_SIZE  = 1000
	COMMAND_TIMEOUT     = 5 * time.Second
	DEFAULT_SESSION_TTL = 30 * time.Minute
	EVICT_INTERVAL      = time.Minute
	PUBLISH_TIMEOUT     = 5 * time.Second
)

// SessionStore keeps the full session (round included) between requests.
// LoadSession returns nil, nil when nothing is stored.
type SessionStore interface {
	LoadSession(ctx context.Context, playerID string) (*Session, error)
	SaveSession(ctx context.Context, s *Session) error
	DeleteSession(ctx context.Context, playerID string) error
}

// PlayerStore is the durable home of balances and round results.
type PlayerStore interface {
	LoadBalance(ctx context.Context, playerID string) (decimal.Decimal, bool, error)
	SaveBalance(ctx context.Context, playerID string, balance decimal.Decimal) error
	RecordResult(ctx context.Context, st *Settlement) error
}

type ScratchPhase string

const (
	ScratchStart ScratchPhase = "start"
	ScratchMove  ScratchPhase = "move"
	ScratchEnd   ScratchPhase = "end"
)

type ScratchEvent struct {
	Phase ScratchPhase `json:"phase"`
	X     float64      `json:"x"`
	Y     float64      `json:"y"`
}

type ScratchResult struct {
	Index      int         `json:"index"`
	Coverage   float64     `json:"coverage"`
	Revealed   bool        `json:"revealed"`
	Settlement *Settlement `json:"settlement,omitempty"`
	Snapshot   Snapshot    `json:"-"`
}

type entry struct {
	session   *Session
	surface   *ScratchSurface
	persisted decimal.Decimal
	lastSeen  time.Time
}

// command is claimed exactly once: by the dispatcher before fn runs, or by
// the caller when it stops waiting. An abandoned command never runs.
type command struct {
	ctx      context.Context
	playerID string
	readOnly bool
	fn       func(e *entry) (interface{}, error)
	resp     chan commandResult
	claimed  *atomic.Bool
}

type commandResult struct {
	snapshot Snapshot
	value    interface{}
	err      error
}

type Option func(*Manager)

func WithTable(t *Table) Option                   { return func(m *Manager) { m.table = t } }
func WithRandomSource(r RandomSource) Option      { return func(m *Manager) { m.rng = r } }
func WithSessionStore(s SessionStore) Option      { return func(m *Manager) { m.sessions = s } }
func WithPlayerStore(p PlayerStore) Option        { return func(m *Manager) { m.players = p } }
func WithNotifier(n Notifier) Option              { return func(m *Manager) { m.notifier = n } }
func WithPublisher(p events.Publisher) Option     { return func(m *Manager) { m.publisher = p } }
func WithMetrics(mt *metrics.Metrics) Option      { return func(m *Manager) { m.metrics = mt } }
func WithDefaultBalance(b decimal.Decimal) Option { return func(m *Manager) { m.defaultBalance = b } }
func WithQueueSize(n int) Option                  { return func(m *Manager) { m.queueSize = n } }
func WithTimeout(d time.Duration) Option          { return func(m *Manager) { m.timeout = d } }
func WithSessionTTL(d time.Duration) Option       { return func(m *Manager) { m.ttl = d } }

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l.Named("manager")
		}
	}
}

// Manager owns every player session. All commands run one at a time on a
// single dispatcher goroutine, so sessions are never touched concurrently.
type Manager struct {
	table          *Table
	rng            RandomSource
	sessions       SessionStore
	players        PlayerStore
	notifier       Notifier
	publisher      events.Publisher
	metrics        *metrics.Metrics
	log            *zap.Logger
	defaultBalance decimal.Decimal
	queueSize      int
	timeout        time.Duration
	ttl            time.Duration

	commands chan command
	stopChan chan struct{}
	stopOnce sync.Once
	entries  map[string]*entry
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		log:            zap.NewNop(),
		defaultBalance: decimal.NewFromInt(1000),
		queueSize:      DEFAULT_QUEUE_SIZE,
		timeout:        COMMAND_TIMEOUT,
		ttl:            DEFAULT_SESSION_TTL,
		entries:        make(map[string]*entry),
		stopChan:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.table == nil {
		m.table = DefaultTable()
	}
	if m.rng == nil {
		m.rng = NewCryptoSource()
	}
	if m.queueSize <= 0 {
		m.queueSize = DEFAULT_QUEUE_SIZE
	}
	m.commands = make(chan command, m.queueSize)
	return m
}

func (m *Manager) Start() {
	go m.loop()
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Manager) Table() *Table {
	return m.table
}

// StartRound stakes bet for the player and deals a new board.
func (m *Manager) StartRound(ctx context.Context, playerID string, bet decimal.Decimal) (Snapshot, error) {
	r := m.dispatch(ctx, playerID, false, func(e *entry) (interface{}, error) {
		if err := e.session.StartRound(bet, m.table, m.rng); err != nil {
			return nil, err
		}
		e.surface.Detach()
		m.metrics.RoundStarted(bet)
		m.log.Info("round started",
			zap.String("player_id", playerID),
			zap.String("round_id", e.session.Round.ID),
			zap.String("bet", bet.StringFixed(2)))
		return nil, nil
	})
	return r.snapshot, r.err
}

func (m *Manager) SelectCard(ctx context.Context, playerID string, index int) (Snapshot, error) {
	r := m.dispatch(ctx, playerID, false, func(e *entry) (interface{}, error) {
		if err := e.session.SelectCard(index); err != nil {
			return nil, err
		}
		e.surface.Attach(index)
		return nil, nil
	})
	return r.snapshot, r.err
}

func (m *Manager) Dismiss(ctx context.Context, playerID string) (Snapshot, error) {
	r := m.dispatch(ctx, playerID, false, func(e *entry) (interface{}, error) {
		if err := e.session.Dismiss(); err != nil {
			return nil, err
		}
		e.surface.Detach()
		return nil, nil
	})
	return r.snapshot, r.err
}

// Reveal uncovers the selected card without waiting for the scratch threshold.
func (m *Manager) Reveal(ctx context.Context, playerID string) (Snapshot, *Settlement, error) {
	r := m.dispatch(ctx, playerID, false, func(e *entry) (interface{}, error) {
		return m.reveal(ctx, e)
	})
	st, _ := r.value.(*Settlement)
	return r.snapshot, st, r.err
}

func (m *Manager) Reset(ctx context.Context, playerID string) (Snapshot, error) {
	r := m.dispatch(ctx, playerID, false, func(e *entry) (interface{}, error) {
		e.session.Reset()
		e.surface.Detach()
		return nil, nil
	})
	return r.snapshot, r.err
}

func (m *Manager) Snapshot(ctx context.Context, playerID string) (Snapshot, error) {
	r := m.dispatch(ctx, playerID, true, func(e *entry) (interface{}, error) {
		return nil, nil
	})
	return r.snapshot, r.err
}

func (m *Manager) Balance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	r := m.dispatch(ctx, playerID, true, func(e *entry) (interface{}, error) {
		return e.session.Ledger.Balance(), nil
	})
	if r.err != nil {
		return decimal.Zero, r.err
	}
	return r.value.(decimal.Decimal), nil
}

// Credit adds funds confirmed by the payment gateway. The round is untouched;
// note, when set, becomes the player's status message.
func (m *Manager) Credit(ctx context.Context, playerID string, amount decimal.Decimal, note string) (decimal.Decimal, error) {
	r := m.dispatch(ctx, playerID, false, func(e *entry) (interface{}, error) {
		if err := e.session.Ledger.Credit(amount); err != nil {
			return nil, err
		}
		if note != "" {
			e.session.Message = note
		}
		return e.session.Ledger.Balance(), nil
	})
	if r.err != nil {
		return decimal.Zero, r.err
	}
	return r.value.(decimal.Decimal), nil
}

// Debit removes funds for a withdrawal. Unlike the ledger itself it refuses
// to overdraw.
func (m *Manager) Debit(ctx context.Context, playerID string, amount decimal.Decimal, note string) (decimal.Decimal, error) {
	r := m.dispatch(ctx, playerID, false, func(e *entry) (interface{}, error) {
		if amount.GreaterThan(e.session.Ledger.Balance()) {
			return nil, ErrInsufficientBalance
		}
		if err := e.session.Ledger.Debit(amount); err != nil {
			return nil, err
		}
		if note != "" {
			e.session.Message = note
		}
		return e.session.Ledger.Balance(), nil
	})
	if r.err != nil {
		return decimal.Zero, r.err
	}
	return r.value.(decimal.Decimal), nil
}

// Scratch feeds one pointer event into the coverage estimator of the selected
// card. The move that crosses the reveal threshold settles the round.
func (m *Manager) Scratch(ctx context.Context, playerID string, ev ScratchEvent) (ScratchResult, error) {
	r := m.dispatch(ctx, playerID, true, func(e *entry) (interface{}, error) {
		s := e.session
		if s.Round.Status != StatusAwaitingReveal || s.Round.Selected == nil {
			return nil, ErrNoCardSelected
		}
		idx := *s.Round.Selected
		if card, ok := e.surface.Card(); !ok || card != idx {
			e.surface.Attach(idx)
		}

		res := ScratchResult{Index: idx}
		var crossed bool
		switch ev.Phase {
		case ScratchStart:
			res.Coverage, crossed = e.surface.Begin(ev.X, ev.Y)
		case ScratchMove:
			res.Coverage, crossed = e.surface.Move(ev.X, ev.Y)
		case ScratchEnd:
			e.surface.End()
			res.Coverage = e.surface.Coverage()
		default:
			return nil, fmt.Errorf("unknown scratch phase %q", ev.Phase)
		}

		if crossed {
			st, err := m.reveal(ctx, e)
			if err != nil {
				return nil, err
			}
			res.Revealed = true
			res.Settlement = st
			m.commit(ctx, e)
		}
		return res, nil
	})
	if r.err != nil {
		return ScratchResult{}, r.err
	}
	res := r.value.(ScratchResult)
	res.Snapshot = r.snapshot
	return res, nil
}

func (m *Manager) dispatch(ctx context.Context, playerID string, readOnly bool, fn func(e *entry) (interface{}, error)) commandResult {
	resp := make(chan commandResult, 1)
	cmd := command{ctx: ctx, playerID: playerID, readOnly: readOnly, fn: fn, resp: resp, claimed: new(atomic.Bool)}

	select {
	case m.commands <- cmd:
		m.metrics.QueueDepth(len(m.commands))
	default:
		m.metrics.Rejected("queue_full")
		return commandResult{err: ErrQueueFull}
	}

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	select {
	case r := <-resp:
		return r
	case <-timer.C:
		if cmd.claimed.CompareAndSwap(false, true) {
			m.metrics.Rejected("timeout")
			return commandResult{err: ErrTimeout}
		}
	case <-ctx.Done():
		if cmd.claimed.CompareAndSwap(false, true) {
			return commandResult{err: ctx.Err()}
		}
	}
	// already running, its outcome is the caller's outcome
	return <-resp
}

func (m *Manager) loop() {
	interval := EVICT_INTERVAL
	if m.ttl > 0 && m.ttl/2 < interval {
		interval = m.ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			m.log.Info("dispatcher stopped")
			return
		case cmd := <-m.commands:
			m.process(cmd)
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *Manager) process(cmd command) {
	defer m.metrics.QueueDepth(len(m.commands))

	if !cmd.claimed.CompareAndSwap(false, true) {
		return
	}
	if cmd.ctx.Err() != nil {
		cmd.resp <- commandResult{err: cmd.ctx.Err()}
		return
	}

	e, err := m.entry(cmd.ctx, cmd.playerID)
	if err != nil {
		cmd.resp <- commandResult{err: err}
		return
	}
	e.lastSeen = time.Now()

	value, err := cmd.fn(e)
	if err != nil && IsValidation(err) {
		m.metrics.Rejected(reasonOf(err))
	}
	if !cmd.readOnly {
		m.commit(cmd.ctx, e)
	}
	cmd.resp <- commandResult{snapshot: e.session.Snapshot(), value: value, err: err}
}

// reveal settles the selected card and fans the result out.
func (m *Manager) reveal(ctx context.Context, e *entry) (*Settlement, error) {
	st, err := e.session.Reveal()
	if err != nil {
		return nil, err
	}
	e.surface.Detach()
	m.metrics.RoundSettled(st.Won, st.Credited)

	if m.players != nil {
		if err := m.players.RecordResult(ctx, st); err != nil {
			m.log.Error("record result", zap.String("player_id", st.PlayerID), zap.Error(err))
		} else {
			e.persisted = st.Balance
		}
	}

	if st.Won && m.notifier != nil {
		m.notifier.Broadcast(WSMessage{Type: "win", Data: WinMessage{
			PlayerID:   st.PlayerID,
			Multiplier: st.Multiplier.StringFixed(2) + "x",
			Payout:     st.Credited,
		}})
	}
	m.publish(events.RoundSettled, st.PlayerID, st)

	m.log.Info("round settled",
		zap.String("player_id", st.PlayerID),
		zap.String("round_id", st.RoundID),
		zap.String("multiplier", st.Multiplier.StringFixed(2)),
		zap.String("credited", st.Credited.StringFixed(2)),
		zap.Bool("won", st.Won))
	return st, nil
}

// commit flushes the session after a mutation and pushes the new snapshot.
func (m *Manager) commit(ctx context.Context, e *entry) {
	s := e.session
	if m.sessions != nil {
		if err := m.sessions.SaveSession(ctx, s); err != nil {
			m.log.Warn("save session", zap.String("player_id", s.PlayerID), zap.Error(err))
		}
	}
	if balance := s.Ledger.Balance(); m.players != nil && !balance.Equal(e.persisted) {
		if err := m.players.SaveBalance(ctx, s.PlayerID, balance); err != nil {
			m.log.Error("save balance", zap.String("player_id", s.PlayerID), zap.Error(err))
		} else {
			e.persisted = balance
		}
	}
	if m.notifier != nil {
		m.notifier.SendTo(s.PlayerID, WSMessage{Type: "snapshot", Data: s.Snapshot()})
	}
}

func (m *Manager) entry(ctx context.Context, playerID string) (*entry, error) {
	if e, ok := m.entries[playerID]; ok {
		return e, nil
	}
	if playerID == "" {
		return nil, ErrUnknownPlayer
	}

	balance := m.defaultBalance
	if m.players != nil {
		b, found, err := m.players.LoadBalance(ctx, playerID)
		if err != nil {
			return nil, fmt.Errorf("load balance: %w", err)
		}
		if !found {
			return nil, ErrUnknownPlayer
		}
		balance = b
	}

	var s *Session
	if m.sessions != nil {
		stored, err := m.sessions.LoadSession(ctx, playerID)
		if err != nil {
			m.log.Warn("load session", zap.String("player_id", playerID), zap.Error(err))
		} else if stored != nil {
			s = stored
			if s.Ledger == nil || m.players != nil {
				s.Ledger = NewLedger(balance)
			}
		}
	}
	if s == nil {
		s = NewSession(playerID, balance)
	}

	e := &entry{
		session:   s,
		surface:   NewScratchSurface(NewGridCoverage(nil)),
		persisted: s.Ledger.Balance(),
		lastSeen:  time.Now(),
	}
	if s.Round.Status == StatusAwaitingReveal && s.Round.Selected != nil {
		e.surface.Attach(*s.Round.Selected)
	}
	m.entries[playerID] = e
	m.metrics.ActiveSessions(len(m.entries))
	return e, nil
}

// evictIdle drops sessions idle for longer than the TTL. Without any store
// the in-memory copy is the only one, so nothing is evicted.
func (m *Manager) evictIdle() {
	if m.ttl <= 0 || (m.sessions == nil && m.players == nil) {
		return
	}
	for id, e := range m.entries {
		if time.Since(e.lastSeen) > m.ttl {
			delete(m.entries, id)
			m.log.Debug("session evicted", zap.String("player_id", id))
		}
	}
	m.metrics.ActiveSessions(len(m.entries))
}

func (m *Manager) publish(eventType, key string, payload any) {
	if m.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PUBLISH_TIMEOUT)
		defer cancel()
		if err := m.publisher.Publish(ctx, eventType, key, payload); err != nil {
			m.log.Warn("publish event", zap.String("type", eventType), zap.Error(err))
		}
	}()
}

func reasonOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidBet):
		return "invalid_bet"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInvalidSelection):
		return "invalid_selection"
	case errors.Is(err, ErrNoCardSelected):
		return "no_card_selected"
	case errors.Is(err, ErrRoundInProgress):
		return "round_in_progress"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "other"
	}
}
