package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const LOSS_MESSAGE = "Better luck next time!"

// Session is the full state of one player: balance plus the active round.
// Every operation validates before it mutates, so a rejected call leaves
// Ledger and Round exactly as they were.
type Session struct {
	PlayerID  string    `json:"player_id"`
	Ledger    *Ledger   `json:"balance"`
	Round     Round     `json:"round"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewSession(playerID string, balance decimal.Decimal) *Session {
	return &Session{
		PlayerID:  playerID,
		Ledger:    NewLedger(balance),
		Round:     Round{Status: StatusIdle, Bet: DefaultBet},
		UpdatedAt: time.Now(),
	}
}

// StartRound stakes bet and deals a fresh board of independently sampled cards.
func (s *Session) StartRound(bet decimal.Decimal, table *Table, src RandomSource) error {
	if err := s.validateStart(bet); err != nil {
		s.Message = UserMessage(err)
		return err
	}

	var cards [CARD_COUNT]Card
	for i := range cards {
		m := table.Sample(src)
		cards[i] = Card{Value: m.Value, Tag: m.Tag, Color: m.Color}
	}

	// stake is at risk from here on; abandoning the round does not refund it
	if err := s.Ledger.Debit(bet); err != nil {
		s.Message = UserMessage(err)
		return err
	}
	s.Round = Round{
		ID:        uuid.NewString(),
		Status:    StatusPlaying,
		Bet:       bet,
		Cards:     cards,
		StartedAt: time.Now(),
	}
	s.Message = ""
	s.touch()
	return nil
}

func (s *Session) validateStart(bet decimal.Decimal) error {
	if s.Round.Status != StatusIdle {
		return ErrRoundInProgress
	}
	if !validBet(bet) {
		return ErrInvalidBet
	}
	balance := s.Ledger.Balance()
	if !balance.IsPositive() || bet.GreaterThan(balance) {
		return ErrInsufficientBalance
	}
	return nil
}

// SelectCard picks the card the player is about to scratch.
func (s *Session) SelectCard(index int) error {
	if s.Round.Status != StatusPlaying || index < 0 || index >= CARD_COUNT || s.Round.Cards[index].Revealed {
		s.Message = UserMessage(ErrInvalidSelection)
		return ErrInvalidSelection
	}
	s.Round.Selected = &index
	s.Round.Status = StatusAwaitingReveal
	s.Message = ""
	s.touch()
	return nil
}

// Dismiss closes the scratch popup without touching any card.
func (s *Session) Dismiss() error {
	if s.Round.Status != StatusAwaitingReveal {
		s.Message = UserMessage(ErrNoCardSelected)
		return ErrNoCardSelected
	}
	s.Round.Selected = nil
	s.Round.Status = StatusPlaying
	s.touch()
	return nil
}

// Reveal uncovers the selected card and settles the round against the ledger.
func (s *Session) Reveal() (*Settlement, error) {
	if s.Round.Status != StatusAwaitingReveal || s.Round.Selected == nil {
		s.Message = UserMessage(ErrNoCardSelected)
		return nil, ErrNoCardSelected
	}
	idx := *s.Round.Selected
	card := &s.Round.Cards[idx]
	bet := s.Round.Bet

	st := &Settlement{
		RoundID:    s.Round.ID,
		PlayerID:   s.PlayerID,
		Bet:        bet,
		Multiplier: card.Value,
		Tag:        card.Tag,
		Win:        decimal.Zero,
		Credited:   decimal.Zero,
		SettledAt:  time.Now(),
	}

	if card.Value.IsPositive() {
		st.Win = bet.Mul(card.Value).Round(2)
		st.Credited = bet.Add(st.Win)
		st.Won = true
		if err := s.Ledger.Credit(st.Credited); err != nil {
			return nil, err
		}
		s.Message = fmt.Sprintf("You Won %s (Bet: %s + Win: %s)",
			FormatAmount(st.Credited), FormatAmount(bet), FormatAmount(st.Win))
	} else {
		s.Message = LOSS_MESSAGE
	}

	card.Revealed = true
	s.Round.Status = StatusCompleted
	st.Balance = s.Ledger.Balance()
	s.touch()
	return st, nil
}

// Reset drops the round from any state and returns to Idle.
func (s *Session) Reset() {
	s.Round = Round{Status: StatusIdle, Bet: DefaultBet}
	s.Message = ""
	s.touch()
}

func (s *Session) Snapshot() Snapshot {
	cards := make([]CardView, CARD_COUNT)
	for i, c := range s.Round.Cards {
		cards[i] = CardView{Index: i, Revealed: c.Revealed}
		if c.Revealed {
			cards[i].Multiplier = c.Value.StringFixed(2) + "x"
			cards[i].Tag = c.Tag
			cards[i].Color = c.Color
		}
	}
	var selected *int
	if s.Round.Selected != nil {
		v := *s.Round.Selected
		selected = &v
	}
	balance := s.Ledger.Balance()
	return Snapshot{
		PlayerID:       s.PlayerID,
		RoundID:        s.Round.ID,
		Status:         s.Round.Status,
		Bet:            s.Round.Bet,
		Cards:          cards,
		Selected:       selected,
		Balance:        balance,
		BalanceDisplay: FormatAmount(balance),
		Message:        s.Message,
	}
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now()
}
