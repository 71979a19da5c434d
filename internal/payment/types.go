package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Final() bool { return s == StatusCompleted || s == StatusFailed }

type Method string

const (
	MethodUPI  Method = "UPI"
	MethodBank Method = "BANK"
	MethodCard Method = "CARD"
	MethodBTC  Method = "BTC"
	MethodETH  Method = "ETH"
	MethodUSDT Method = "USDT"
	MethodUSDC Method = "USDC"
)

// IsCrypto reports whether the method settles on-chain.
func (m Method) IsCrypto() bool {
	switch m {
	case MethodBTC, MethodETH, MethodUSDT, MethodUSDC:
		return true
	}
	return false
}

type Currency string

const (
	INR  Currency = "INR"
	USD  Currency = "USD"
	EUR  Currency = "EUR"
	GBP  Currency = "GBP"
	BTC  Currency = "BTC"
	ETH  Currency = "ETH"
	USDT Currency = "USDT"
	USDC Currency = "USDC"
)

var (
	FiatCurrencies   = []Currency{INR, USD, EUR, GBP}
	CryptoCurrencies = []Currency{BTC, ETH, USDT, USDC}
	Methods          = []Method{MethodUPI, MethodBank, MethodCard, MethodBTC, MethodETH, MethodUSDT, MethodUSDC}
)

func (c Currency) IsFiat() bool {
	for _, f := range FiatCurrencies {
		if c == f {
			return true
		}
	}
	return false
}

func (c Currency) IsCrypto() bool {
	for _, f := range CryptoCurrencies {
		if c == f {
			return true
		}
	}
	return false
}

// Payment is a deposit or withdrawal request and its settlement state.
// Credited flips once the ledger has been adjusted for the final status.
type Payment struct {
	ID           string              `json:"id"`
	PlayerID     string              `json:"user_id"`
	Kind         Kind                `json:"kind"`
	Method       Method              `json:"method"`
	Currency     Currency            `json:"currency"`
	Amount       decimal.Decimal     `json:"amount"`
	CryptoAmount decimal.NullDecimal `json:"crypto_amount"`
	Status       Status              `json:"status"`
	Reference    string              `json:"reference"`
	Details      map[string]string   `json:"details"`
	Credited     bool                `json:"credited"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// LedgerAmount is the rupee amount the payment moves on the player's ledger.
func (p *Payment) LedgerAmount() decimal.Decimal {
	if v, ok := p.Details[DetailLedgerAmount]; ok {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return p.Amount
}

const (
	DetailLedgerAmount   = "ledger_amount"
	DetailTargetCurrency = "target_currency"
	DetailUPIApp         = "upi_app"
	DetailBankName       = "bank_name"
	DetailUPIID          = "upi_id"
	DetailAccountNumber  = "account_number"
	DetailIFSCCode       = "ifsc_code"
	DetailAccountHolder  = "account_holder"
	DetailAddress        = "address"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrAlreadyFinal    = errors.New("payment already settled")
	ErrInvalidStatus   = errors.New("status must be completed or failed")
)

// Store persists payments. UpdateStatus only moves a pending payment and
// returns ErrAlreadyFinal otherwise. ListPending returns payments that are
// pending or final but not yet credited. MarkCredited reports true to exactly
// one caller per payment and only while the payment is in the given status.
// UnmarkCredited hands the payment back to the poller after the ledger
// refused the adjustment.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Payment, error)
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]*Payment, error)
	ListPending(ctx context.Context) ([]*Payment, error)
	MarkCredited(ctx context.Context, id string, status Status) (bool, error)
	UnmarkCredited(ctx context.Context, id string) error
}

// Wallet moves rupees on a player's ledger.
type Wallet interface {
	Balance(ctx context.Context, playerID string) (decimal.Decimal, error)
	Credit(ctx context.Context, playerID string, amount decimal.Decimal, note string) (decimal.Decimal, error)
	Debit(ctx context.Context, playerID string, amount decimal.Decimal, note string) (decimal.Decimal, error)
}

type DepositRequest struct {
	PlayerID       string          `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	SourceCurrency Currency        `json:"source_currency"`
	TargetCurrency Currency        `json:"target_currency"`
	Method         Method          `json:"payment_method"`
	UPIApp         string          `json:"upi_app"`
	BankName       string          `json:"bank_name"`
}

type WithdrawalRequest struct {
	PlayerID          string          `json:"user_id"`
	Amount            decimal.Decimal `json:"amount"`
	Method            Method          `json:"withdrawal_method"`
	UPIID             string          `json:"upi_id"`
	AccountNumber     string          `json:"account_number"`
	IFSCCode          string          `json:"ifsc_code"`
	AccountHolderName string          `json:"account_holder_name"`
	Address           string          `json:"withdrawal_address"`
}

type BankDetails struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	IFSCCode      string `json:"ifsc_code"`
	BankName      string `json:"bank_name"`
	Reference     string `json:"reference"`
}

// Instructions tell the player how to complete a deposit.
type Instructions struct {
	PaymentURL        string              `json:"payment_url,omitempty"`
	BankDetails       *BankDetails        `json:"bank_details,omitempty"`
	ProviderReference string              `json:"provider_reference,omitempty"`
	WalletAddress     string              `json:"wallet_address,omitempty"`
	CryptoAmount      decimal.NullDecimal `json:"crypto_amount"`
	CryptoCurrency    Currency            `json:"crypto_currency,omitempty"`
}

type DepositResult struct {
	Payment      *Payment     `json:"payment"`
	Instructions Instructions `json:"instructions"`
}

type WithdrawalResult struct {
	Payment       *Payment        `json:"payment"`
	EstimatedTime string          `json:"estimated_time"`
	Balance       decimal.Decimal `json:"balance"`
}

type WalletView struct {
	PlayerID       string                       `json:"user_id"`
	Balance        decimal.Decimal              `json:"balance"`
	BalanceDisplay string                       `json:"balance_display"`
	Rates          map[Currency]decimal.Decimal `json:"rates"`
}
