package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Service wraps the Postgres pool shared by the repositories and migrations.
type Service interface {
	Health() map[string]string
	Close() error
	Pool() *pgxpool.Pool
	DB() *sql.DB
}

type Options struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
	MaxConns int32
}

func (o Options) DSN() string {
	schema := o.Schema
	if schema == "" {
		schema = "public"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		o.Username, o.Password, o.Host, o.Port, o.Database, schema)
}

type service struct {
	pool *pgxpool.Pool
	db   *sql.DB
	name string
}

func New(ctx context.Context, opts Options) (Service, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	zap.L().Info("postgres connected", zap.String("host", opts.Host), zap.String("database", opts.Database))
	return &service{
		pool: pool,
		db:   stdlib.OpenDBFromPool(pool),
		name: opts.Database,
	}, nil
}

func (s *service) Pool() *pgxpool.Pool { return s.pool }
func (s *service) DB() *sql.DB         { return s.db }

// Health checks the database connection and reports pool statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	ps := s.pool.Stat()
	stats["total_conns"] = strconv.Itoa(int(ps.TotalConns()))
	stats["idle_conns"] = strconv.Itoa(int(ps.IdleConns()))
	stats["acquired_conns"] = strconv.Itoa(int(ps.AcquiredConns()))
	stats["max_conns"] = strconv.Itoa(int(ps.MaxConns()))
	stats["acquire_count"] = strconv.FormatInt(ps.AcquireCount(), 10)
	stats["empty_acquire_count"] = strconv.FormatInt(ps.EmptyAcquireCount(), 10)

	if ps.AcquiredConns() > ps.MaxConns()*4/5 {
		stats["message"] = "The database is experiencing heavy load."
	}
	return stats
}

func (s *service) Close() error {
	zap.L().Info("disconnected from database", zap.String("database", s.name))
	err := s.db.Close()
	s.pool.Close()
	return err
}
