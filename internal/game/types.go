package game

import (
	"time"

	"github.com/shopspring/decimal"
)

type RoundStatus string

const (
	StatusIdle           RoundStatus = "IDLE"
	StatusPlaying        RoundStatus = "PLAYING"
	StatusAwaitingReveal RoundStatus = "AWAITING_REVEAL"
	StatusCompleted      RoundStatus = "COMPLETED"
)

const (
	CARD_COUNT       = 25 // 5x5 board
	REVEAL_THRESHOLD = 0.40
)

var DefaultBet = decimal.NewFromInt(10)

// Card is one cell of the board. Value and Tag are sampled at round start and
// stay hidden from players until Revealed.
type Card struct {
	Revealed bool            `json:"revealed"`
	Value    decimal.Decimal `json:"value"`
	Tag      string          `json:"tag"`
	Color    string          `json:"color,omitempty"`
}

type Round struct {
	ID        string           `json:"id,omitempty"`
	Status    RoundStatus      `json:"status"`
	Bet       decimal.Decimal  `json:"bet"`
	Cards     [CARD_COUNT]Card `json:"cards"`
	Selected  *int             `json:"selected,omitempty"`
	StartedAt time.Time        `json:"started_at,omitempty"`
}

// Settlement describes how a revealed card paid out.
type Settlement struct {
	RoundID    string          `json:"round_id"`
	PlayerID   string          `json:"player_id"`
	Bet        decimal.Decimal `json:"bet"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Tag        string          `json:"tag"`
	Win        decimal.Decimal `json:"win"`
	Credited   decimal.Decimal `json:"credited"`
	Won        bool            `json:"won"`
	Balance    decimal.Decimal `json:"balance"`
	SettledAt  time.Time       `json:"settled_at"`
}

// Profit is the net result of the round for the player.
func (s Settlement) Profit() decimal.Decimal {
	return s.Credited.Sub(s.Bet)
}

type CardView struct {
	Index      int    `json:"index"`
	Revealed   bool   `json:"revealed"`
	Multiplier string `json:"multiplier,omitempty"`
	Tag        string `json:"tag,omitempty"`
	Color      string `json:"color,omitempty"`
}

// Snapshot is the read-only view pushed to the UI after every transition.
type Snapshot struct {
	PlayerID       string          `json:"player_id"`
	RoundID        string          `json:"round_id,omitempty"`
	Status         RoundStatus     `json:"status"`
	Bet            decimal.Decimal `json:"bet"`
	Cards          []CardView      `json:"cards"`
	Selected       *int            `json:"selected,omitempty"`
	Balance        decimal.Decimal `json:"balance"`
	BalanceDisplay string          `json:"balance_display"`
	Message        string          `json:"message,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// ProgressMessage reports scratch coverage of the selected card.
type ProgressMessage struct {
	Index   int     `json:"index"`
	Percent float64 `json:"percent"`
}

// WinMessage is broadcast to every connected client when a round pays out.
type WinMessage struct {
	PlayerID   string          `json:"player_id"`
	Multiplier string          `json:"multiplier"`
	Payout     decimal.Decimal `json:"payout"`
}
