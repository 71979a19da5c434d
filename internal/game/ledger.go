package game

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Ledger holds a player's spendable balance. It never goes below zero.
type Ledger struct {
	balance decimal.Decimal
}

func NewLedger(initial decimal.Decimal) *Ledger {
	return &Ledger{balance: clamp(initial)}
}

func (l *Ledger) Balance() decimal.Decimal {
	return l.balance
}

// Credit adds a positive amount.
func (l *Ledger) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	l.balance = clamp(l.balance.Add(amount))
	return nil
}

// Debit subtracts a positive amount, clamping the result at zero.
func (l *Ledger) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	l.balance = clamp(l.balance.Sub(amount))
	return nil
}

// Set overwrites the balance, e.g. when restoring from storage.
func (l *Ledger) Set(v decimal.Decimal) {
	l.balance = clamp(v)
}

func (l *Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.balance)
}

func (l *Ledger) UnmarshalJSON(data []byte) error {
	var v decimal.Decimal
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	l.balance = clamp(v)
	return nil
}

func clamp(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
