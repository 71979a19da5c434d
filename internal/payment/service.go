package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"scratch2x/internal/events"
	"scratch2x/internal/game"
	"scratch2x/internal/metrics"
)

type Option func(*Service)

func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.publisher = p } }
func WithMetrics(m *metrics.Metrics) Option   { return func(s *Service) { s.metrics = m } }
func WithLogger(l *zap.Logger) Option         { return func(s *Service) { s.logger = l } }

func WithPolling(interval, timeout time.Duration) Option {
	return func(s *Service) {
		s.pollInterval = interval
		s.pollTimeout = timeout
	}
}

// Service is the payment gateway: it records deposits and withdrawals,
// renders funding instructions and settles each payment on the ledger once.
type Service struct {
	store     Store
	wallet    Wallet
	rates     RateSource
	merchant  MerchantConfig
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	poller    *Poller

	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewService(store Store, wallet Wallet, rates RateSource, merchant MerchantConfig, opts ...Option) *Service {
	s := &Service{
		store:        store,
		wallet:       wallet,
		rates:        rates,
		merchant:     merchant,
		publisher:    events.Nop{},
		logger:       zap.NewNop(),
		pollInterval: DEFAULT_POLL_INTERVAL,
		pollTimeout:  DEFAULT_POLL_TIMEOUT,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("payments")
	s.poller = NewPoller(store, s.settle, s.pollInterval, s.pollTimeout, s.logger)
	return s
}

// Start resumes polling for payments left pending by a previous run.
func (s *Service) Start(ctx context.Context) error {
	n, err := s.poller.Resume(ctx)
	if err != nil {
		return fmt.Errorf("resume pending payments: %w", err)
	}
	s.logger.Info("payment poller started", zap.Int("resumed", n))
	return nil
}

func (s *Service) Stop() {
	s.poller.Stop()
}

func (s *Service) Deposit(ctx context.Context, req DepositRequest) (*DepositResult, error) {
	if err := ValidateDeposit(req); err != nil {
		s.metrics.PaymentRequest(string(KindDeposit), string(req.Method), "rejected")
		return nil, err
	}

	p := &Payment{
		ID:        uuid.NewString(),
		PlayerID:  req.PlayerID,
		Kind:      KindDeposit,
		Method:    req.Method,
		Currency:  req.SourceCurrency,
		Amount:    req.Amount,
		Status:    StatusPending,
		Details:   map[string]string{},
		CreatedAt: time.Now().UTC(),
	}
	p.Reference = p.ID
	p.UpdatedAt = p.CreatedAt

	switch req.Method {
	case MethodUPI:
		p.Details[DetailUPIApp] = req.UPIApp
	case MethodBank:
		p.Details[DetailBankName] = req.BankName
	}

	needsRates := req.SourceCurrency != INR || req.Method.IsCrypto()
	var prices Prices
	if needsRates {
		var err error
		if prices, err = s.rates.Prices(ctx); err != nil {
			return nil, fmt.Errorf("quote deposit: %w", err)
		}
	}

	ledger, err := s.toINR(prices, req.Amount, req.SourceCurrency)
	if err != nil {
		return nil, err
	}
	p.Details[DetailLedgerAmount] = ledger.StringFixed(2)

	if req.Method.IsCrypto() {
		target := Currency(req.Method)
		price, err := prices.Price(target, req.SourceCurrency)
		if err != nil {
			return nil, fmt.Errorf("quote deposit: %w", err)
		}
		p.CryptoAmount = decimal.NewNullDecimal(req.Amount.Div(price).Round(8))
		p.Details[DetailTargetCurrency] = string(target)
	}

	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create deposit: %w", err)
	}

	s.metrics.PaymentRequest(string(p.Kind), string(p.Method), string(p.Status))
	s.publish(p)
	s.poller.Watch(p.ID)

	s.logger.Info("deposit created",
		zap.String("payment_id", p.ID),
		zap.String("user_id", p.PlayerID),
		zap.String("method", string(p.Method)),
		zap.String("amount", p.Amount.String()),
		zap.String("currency", string(p.Currency)),
	)
	return &DepositResult{Payment: p, Instructions: instructionsFor(s.merchant, p)}, nil
}

// Withdraw debits the ledger up front and records a pending payout. A payout
// that later fails is refunded by settle.
func (s *Service) Withdraw(ctx context.Context, req WithdrawalRequest) (*WithdrawalResult, error) {
	if err := ValidateWithdrawal(req); err != nil {
		s.metrics.PaymentRequest(string(KindWithdrawal), string(req.Method), "rejected")
		return nil, err
	}

	p := &Payment{
		ID:        uuid.NewString(),
		PlayerID:  req.PlayerID,
		Kind:      KindWithdrawal,
		Method:    req.Method,
		Currency:  INR,
		Amount:    req.Amount,
		Status:    StatusPending,
		Details:   map[string]string{},
		CreatedAt: time.Now().UTC(),
	}
	p.Reference = p.ID
	p.UpdatedAt = p.CreatedAt

	switch {
	case req.Method == MethodUPI:
		p.Details[DetailUPIID] = req.UPIID
	case req.Method == MethodBank:
		p.Details[DetailAccountNumber] = req.AccountNumber
		p.Details[DetailIFSCCode] = req.IFSCCode
		p.Details[DetailAccountHolder] = req.AccountHolderName
	case req.Method.IsCrypto():
		prices, err := s.rates.Prices(ctx)
		if err != nil {
			return nil, fmt.Errorf("quote withdrawal: %w", err)
		}
		target := Currency(req.Method)
		price, err := prices.Price(target, INR)
		if err != nil {
			return nil, fmt.Errorf("quote withdrawal: %w", err)
		}
		p.CryptoAmount = decimal.NewNullDecimal(req.Amount.Div(price).Round(8))
		p.Details[DetailTargetCurrency] = string(target)
		p.Details[DetailAddress] = req.Address
	}

	balance, err := s.wallet.Debit(ctx, req.PlayerID, req.Amount, "")
	if err != nil {
		if errors.Is(err, game.ErrInsufficientBalance) {
			s.metrics.PaymentRequest(string(KindWithdrawal), string(req.Method), "rejected")
			return nil, invalid("Insufficient balance")
		}
		return nil, err
	}

	if err := s.store.Create(ctx, p); err != nil {
		if _, rerr := s.wallet.Credit(ctx, req.PlayerID, req.Amount, ""); rerr != nil {
			s.logger.Error("refund after failed withdrawal insert",
				zap.String("user_id", req.PlayerID), zap.String("amount", req.Amount.String()), zap.Error(rerr))
		}
		return nil, fmt.Errorf("create withdrawal: %w", err)
	}

	s.metrics.PaymentRequest(string(p.Kind), string(p.Method), string(p.Status))
	s.publish(p)
	s.poller.Watch(p.ID)

	s.logger.Info("withdrawal created",
		zap.String("payment_id", p.ID),
		zap.String("user_id", p.PlayerID),
		zap.String("method", string(p.Method)),
		zap.String("amount", p.Amount.String()),
	)
	return &WithdrawalResult{Payment: p, EstimatedTime: EstimatedTime(p.Method), Balance: balance}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Payment, error) {
	return s.store.Get(ctx, id)
}

// Transactions lists a player's deposits and withdrawals, newest first.
func (s *Service) Transactions(ctx context.Context, playerID string, limit int) ([]*Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListByPlayer(ctx, playerID, limit)
}

// UpdateStatus applies a provider callback. The ledger is adjusted here and
// the poller will find the payment already credited.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Payment, error) {
	if !status.Final() {
		return nil, ErrInvalidStatus
	}
	p, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.metrics.PaymentRequest(string(p.Kind), string(p.Method), string(p.Status))
	if err := s.settle(ctx, p); err != nil {
		s.poller.Watch(p.ID)
		return p, err
	}
	p.Credited = true
	return p, nil
}

func (s *Service) Wallet(ctx context.Context, playerID string) (*WalletView, error) {
	balance, err := s.wallet.Balance(ctx, playerID)
	if err != nil {
		return nil, err
	}
	prices, err := s.rates.Prices(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	rates := make(map[Currency]decimal.Decimal, len(CryptoCurrencies))
	for _, c := range CryptoCurrencies {
		if v, err := prices.Price(c, USD); err == nil {
			rates[c] = v
		}
	}
	return &WalletView{
		PlayerID:       playerID,
		Balance:        balance,
		BalanceDisplay: game.FormatAmount(balance),
		Rates:          rates,
	}, nil
}

// settle adjusts the ledger for a payment in a final status. MarkCredited
// guards against a second caller doing the same; a ledger failure releases
// the mark so the poller tries again.
func (s *Service) settle(ctx context.Context, p *Payment) error {
	credit := p.Kind == KindDeposit && p.Status == StatusCompleted
	refund := p.Kind == KindWithdrawal && p.Status == StatusFailed

	won, err := s.store.MarkCredited(ctx, p.ID, p.Status)
	if err != nil {
		return fmt.Errorf("mark credited: %w", err)
	}
	if !won {
		return nil
	}

	amount := p.LedgerAmount()
	var note string
	switch {
	case credit:
		note = fmt.Sprintf("Successfully added %s to your balance!", displayINR(amount))
	case refund:
		note = fmt.Sprintf("Withdrawal failed, %s returned to your balance", displayINR(amount))
	}
	if note != "" {
		if _, err := s.wallet.Credit(ctx, p.PlayerID, amount, note); err != nil {
			s.logger.Error("ledger adjustment failed",
				zap.String("payment_id", p.ID), zap.String("kind", string(p.Kind)), zap.Error(err))
			// the caller's ctx may be the reason, the release must still land
			if uerr := s.store.UnmarkCredited(context.WithoutCancel(ctx), p.ID); uerr != nil {
				s.logger.Error("release credit mark", zap.String("payment_id", p.ID), zap.Error(uerr))
			}
			return err
		}
	}

	p.Credited = true
	s.publish(p)
	s.logger.Info("payment settled",
		zap.String("payment_id", p.ID),
		zap.String("kind", string(p.Kind)),
		zap.String("status", string(p.Status)),
		zap.String("amount", amount.String()),
	)
	return nil
}

func (s *Service) toINR(prices Prices, amount decimal.Decimal, from Currency) (decimal.Decimal, error) {
	if from == INR {
		return amount, nil
	}
	v, err := prices.Convert(amount, from, INR)
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert %s to INR: %w", from, err)
	}
	return v, nil
}

func (s *Service) publish(p *Payment) {
	cp := *p
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.Publish(ctx, events.PaymentUpdated, cp.ID, cp); err != nil {
			s.logger.Warn("publish payment event", zap.String("payment_id", cp.ID), zap.Error(err))
		}
	}()
}

// displayINR drops the paise when there are none: ₹2,000 rather than ₹2,000.00.
func displayINR(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return game.FormatINR(d, 0)
	}
	return game.FormatINR(d, 2)
}
