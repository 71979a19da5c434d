package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"scratch2x/internal/cache"
	"scratch2x/internal/database"
	"scratch2x/internal/game"
	"scratch2x/internal/metrics"
	"scratch2x/internal/payment"
	"scratch2x/internal/repository"
)

// PlayerDirectory is the durable player registry behind the players API.
type PlayerDirectory interface {
	CreatePlayer(ctx context.Context, username string, balance decimal.Decimal) (*repository.Player, error)
	GetPlayer(ctx context.Context, id string) (*repository.Player, error)
	History(ctx context.Context, id string, limit int) ([]repository.GameResult, error)
	Leaderboard(ctx context.Context, limit int) ([]repository.LeaderboardEntry, error)
}

// PaymentGateway is the deposit and withdrawal service.
type PaymentGateway interface {
	Deposit(ctx context.Context, req payment.DepositRequest) (*payment.DepositResult, error)
	Withdraw(ctx context.Context, req payment.WithdrawalRequest) (*payment.WithdrawalResult, error)
	Get(ctx context.Context, id string) (*payment.Payment, error)
	UpdateStatus(ctx context.Context, id string, status payment.Status) (*payment.Payment, error)
	Transactions(ctx context.Context, playerID string, limit int) ([]*payment.Payment, error)
	Wallet(ctx context.Context, playerID string) (*payment.WalletView, error)
}

// Deps are the components the HTTP layer serves. DB, Cache, Players and
// Payments may be nil; their routes then answer 503.
type Deps struct {
	Manager        *game.Manager
	Hub            *game.Hub
	Players        PlayerDirectory
	Payments       PaymentGateway
	DB             database.Service
	Cache          cache.Service
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	DefaultBalance decimal.Decimal
	RateLimit      int
}

type FiberServer struct {
	*fiber.App

	gameManager    *game.Manager
	gameHub        *game.Hub
	players        PlayerDirectory
	payments       PaymentGateway
	db             database.Service
	cache          cache.Service
	metrics        *metrics.Metrics
	log            *zap.Logger
	defaultBalance decimal.Decimal
}

func New(d Deps) *FiberServer {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.DefaultBalance.IsZero() {
		d.DefaultBalance = decimal.NewFromInt(1000)
	}

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "scratch2x",
			AppName:       "scratch2x",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
			ErrorHandler:  jsonErrorHandler,
		}),

		gameManager:    d.Manager,
		gameHub:        d.Hub,
		players:        d.Players,
		payments:       d.Payments,
		db:             d.DB,
		cache:          d.Cache,
		metrics:        d.Metrics,
		log:            logger.Named("http"),
		defaultBalance: d.DefaultBalance,
	}

	server.App.Use(recover.New())
	if d.RateLimit > 0 {
		server.App.Use(limiter.New(limiter.Config{
			Max:        d.RateLimit,
			Expiration: 1 * time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Path() == "/health" || c.Path() == "/metrics" || c.Path() == "/ws"
			},
		}))
	}

	return server
}

// jsonErrorHandler renders errors that escape a handler as {"error": ...}.
func jsonErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// Shutdown stops the HTTP listener and then the game components.
// Stores are closed by whoever opened them.
func (s *FiberServer) Shutdown() error {
	s.log.Info("shutting down")

	err := s.App.ShutdownWithTimeout(10 * time.Second)

	if s.gameManager != nil {
		s.gameManager.Stop()
	}
	if s.gameHub != nil {
		s.gameHub.Stop()
	}
	return err
}
