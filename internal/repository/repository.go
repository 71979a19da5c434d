package repository

import (
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrUsernameTaken  = errors.New("username already taken")
)

// psql builds Postgres placeholders ($1, $2, ...).
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// NewTxManager wraps the pool so repositories join a transaction started
// with Do on the same context.
func NewTxManager(pool *pgxpool.Pool) (trm.Manager, error) {
	return manager.New(trmpgx.NewDefaultFactory(pool))
}

type Player struct {
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	Balance     decimal.Decimal `json:"balance"`
	TotalWins   int             `json:"total_wins"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	CreatedAt   time.Time       `json:"created_at"`
}

type GameResult struct {
	ID         string          `json:"id"`
	PlayerID   string          `json:"player_id"`
	RoundID    string          `json:"round_id"`
	Bet        decimal.Decimal `json:"bet"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Tag        string          `json:"tag"`
	Payout     decimal.Decimal `json:"payout"`
	Won        bool            `json:"won"`
	CreatedAt  time.Time       `json:"created_at"`
}

type LeaderboardEntry struct {
	PlayerID    string          `json:"player_id"`
	Username    string          `json:"username"`
	TotalWins   int             `json:"total_wins"`
	TotalProfit decimal.Decimal `json:"total_profit"`
}

// parseID rejects anything that is not a uuid; callers treat that as not found.
func parseID(id string) (uuid.UUID, bool) {
	u, err := uuid.Parse(id)
	return u, err == nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool { return pgCode(err) == "23505" }
