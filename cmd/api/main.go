package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"scratch2x/internal/cache"
	"scratch2x/internal/config"
	"scratch2x/internal/database"
	"scratch2x/internal/events"
	"scratch2x/internal/game"
	"scratch2x/internal/logger"
	"scratch2x/internal/metrics"
	"scratch2x/internal/payment"
	"scratch2x/internal/repository"
	"scratch2x/internal/server"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(logger.Options{Service: cfg.ServiceName, Env: cfg.Env, Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	table, err := game.LoadTable(cfg.MultiplierTablePath)
	if err != nil {
		return err
	}
	log.Info("multiplier table loaded",
		zap.Int("rows", len(table.Entries())),
		zap.Float64("expected_return", table.ExpectedReturn()))

	m := metrics.New(prometheus.DefaultRegisterer)

	hub := game.NewHub(log)
	hub.UseMetrics(m)
	go hub.Run()

	publisher, err := events.New(events.Config{
		Driver:       cfg.EventsDriver,
		KafkaBrokers: cfg.KafkaBrokers,
		NatsURL:      cfg.NatsURL,
		TopicPrefix:  cfg.EventsTopicPrefix,
	}, log)
	if err != nil {
		log.Warn("events disabled", zap.String("driver", cfg.EventsDriver), zap.Error(err))
		publisher = events.Nop{}
	}
	defer publisher.Close()

	opts := []game.Option{
		game.WithTable(table),
		game.WithNotifier(hub),
		game.WithPublisher(publisher),
		game.WithMetrics(m),
		game.WithLogger(log),
		game.WithDefaultBalance(cfg.DefaultBalance),
		game.WithQueueSize(cfg.CommandQueueSize),
		game.WithTimeout(cfg.CommandTimeout),
		game.WithSessionTTL(cfg.SessionTTL),
	}

	var (
		db       database.Service
		players  server.PlayerDirectory
		payStore payment.Store
	)
	db, err = database.New(ctx, database.Options{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Database: cfg.DBDatabase,
		Username: cfg.DBUsername,
		Password: cfg.DBPassword,
		Schema:   cfg.DBSchema,
	})
	if err != nil {
		log.Warn("postgres unavailable, balances stay in memory", zap.Error(err))
		db = nil
	} else {
		defer db.Close()
		if err := database.RunMigrations(db.DB(), cfg.MigrationsPath); err != nil {
			return err
		}
		tm, err := repository.NewTxManager(db.Pool())
		if err != nil {
			return err
		}
		repo := repository.NewPlayerRepository(db.Pool(), tm)
		players = repo
		payStore = repository.NewPaymentRepository(db.Pool())
		opts = append(opts, game.WithPlayerStore(repo))
	}

	var (
		rc        cache.Service
		rateCache payment.RateCache
	)
	rc, err = cache.New(cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, log)
	if err != nil {
		log.Warn("redis unavailable, sessions are not shared", zap.Error(err))
		rc = nil
	} else {
		defer rc.Close()
		opts = append(opts, game.WithSessionStore(cache.NewSessionStore(rc.GetClient(), cfg.SessionTTL)))
		rateCache = cache.NewRateCache(rc.GetClient())
	}

	manager := game.NewManager(opts...)
	manager.Start()

	var (
		payments server.PaymentGateway
		svc      *payment.Service
	)
	if payStore != nil {
		rates := payment.NewCachedRates(payment.NewCoinGecko(cfg.RatesURL, 10*time.Second), rateCache, cfg.RatesTTL, log)
		svc = payment.NewService(payStore, manager, rates, payment.MerchantConfig{
			UPIID:              cfg.MerchantUPIID,
			Name:               cfg.MerchantName,
			BankAccountName:    cfg.BankAccountName,
			BankAccountNumber:  cfg.BankAccountNumber,
			BankIFSCCode:       cfg.BankIFSCCode,
			BankName:           cfg.BankName,
			OwnerWalletAddress: cfg.OwnerWalletAddress,
		},
			payment.WithPublisher(publisher),
			payment.WithMetrics(m),
			payment.WithLogger(log),
			payment.WithPolling(cfg.PaymentPollInterval, cfg.PaymentPollTimeout),
		)
		if err := svc.Start(ctx); err != nil {
			log.Error("payment resume failed", zap.Error(err))
		}
		payments = svc
	} else {
		log.Warn("payment gateway disabled without postgres")
	}

	srv := server.New(server.Deps{
		Manager:        manager,
		Hub:            hub,
		Players:        players,
		Payments:       payments,
		DB:             db,
		Cache:          rc,
		Metrics:        m,
		Logger:         log,
		DefaultBalance: cfg.DefaultBalance,
		RateLimit:      cfg.RateLimit,
	})
	srv.RegisterFiberRoutes()

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		log.Info("listening", zap.String("addr", addr))
		errCh <- srv.Listen(addr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	// pollers credit through the manager, so they stop first
	if svc != nil {
		svc.Stop()
	}
	return srv.Shutdown()
}
