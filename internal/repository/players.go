package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"scratch2x/internal/game"
)

const (
	playersTable = "players"
	resultsTable = "game_results"
)

// PlayerRepository stores players, their balances and settled rounds.
// It satisfies game.PlayerStore.
type PlayerRepository struct {
	pool   *pgxpool.Pool
	tm     trm.Manager
	getter *trmpgx.CtxGetter
}

func NewPlayerRepository(pool *pgxpool.Pool, tm trm.Manager) *PlayerRepository {
	return &PlayerRepository{pool: pool, tm: tm, getter: trmpgx.DefaultCtxGetter}
}

func (r *PlayerRepository) conn(ctx context.Context) trmpgx.Tr {
	return r.getter.DefaultTrOrDB(ctx, r.pool)
}

// CreatePlayer inserts a new player with the given opening balance.
func (r *PlayerRepository) CreatePlayer(ctx context.Context, username string, balance decimal.Decimal) (*Player, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	query := psql.Insert(playersTable).
		Columns("id", "username", "balance").
		Values(uuid.New(), username, balance.Round(2)).
		Suffix("RETURNING id, username, balance, total_wins, total_profit, created_at")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	p, err := scanPlayer(r.conn(ctx).QueryRow(ctx, sqlStr, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return p, nil
}

func (r *PlayerRepository) GetPlayer(ctx context.Context, id string) (*Player, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, ErrPlayerNotFound
	}

	query := psql.Select("id", "username", "balance", "total_wins", "total_profit", "created_at").
		From(playersTable).
		Where(sq.Eq{"id": uid})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	p, err := scanPlayer(r.conn(ctx).QueryRow(ctx, sqlStr, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPlayerNotFound
	}
	return p, err
}

// LoadBalance reports found=false for unknown players rather than an error.
func (r *PlayerRepository) LoadBalance(ctx context.Context, id string) (decimal.Decimal, bool, error) {
	uid, ok := parseID(id)
	if !ok {
		return decimal.Zero, false, nil
	}

	sqlStr, args, err := psql.Select("balance").From(playersTable).Where(sq.Eq{"id": uid}).ToSql()
	if err != nil {
		return decimal.Zero, false, err
	}

	var balance decimal.Decimal
	err = r.conn(ctx).QueryRow(ctx, sqlStr, args...).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return balance, true, nil
}

func (r *PlayerRepository) SaveBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	uid, ok := parseID(id)
	if !ok {
		return ErrPlayerNotFound
	}

	sqlStr, args, err := psql.Update(playersTable).
		Set("balance", balance.Round(2)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": uid}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := r.conn(ctx).Exec(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

// RecordResult stores a settled round and rolls it into the player's
// balance and totals in one transaction.
func (r *PlayerRepository) RecordResult(ctx context.Context, st *game.Settlement) error {
	pid, ok := parseID(st.PlayerID)
	if !ok {
		return ErrPlayerNotFound
	}
	rid, err := uuid.Parse(st.RoundID)
	if err != nil {
		return fmt.Errorf("round id: %w", err)
	}

	return r.tm.Do(ctx, func(ctx context.Context) error {
		insert, args, err := psql.Insert(resultsTable).
			Columns("id", "player_id", "round_id", "bet", "multiplier", "tag", "payout", "won", "created_at").
			Values(uuid.New(), pid, rid, st.Bet, st.Multiplier, st.Tag, st.Credited, st.Won, st.SettledAt).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := r.conn(ctx).Exec(ctx, insert, args...); err != nil {
			return fmt.Errorf("insert result: %w", err)
		}

		wins := 0
		if st.Won {
			wins = 1
		}
		update, args, err := psql.Update(playersTable).
			Set("balance", st.Balance.Round(2)).
			Set("total_wins", sq.Expr("total_wins + ?", wins)).
			Set("total_profit", sq.Expr("total_profit + ?", st.Profit())).
			Set("updated_at", sq.Expr("now()")).
			Where(sq.Eq{"id": pid}).
			ToSql()
		if err != nil {
			return err
		}
		tag, err := r.conn(ctx).Exec(ctx, update, args...)
		if err != nil {
			return fmt.Errorf("update player: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrPlayerNotFound
		}
		return nil
	})
}

// History lists a player's rounds, newest first.
func (r *PlayerRepository) History(ctx context.Context, id string, limit int) ([]GameResult, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, ErrPlayerNotFound
	}
	if limit <= 0 {
		limit = 50
	}

	sqlStr, args, err := psql.Select("id", "player_id", "round_id", "bet", "multiplier", "tag", "payout", "won", "created_at").
		From(resultsTable).
		Where(sq.Eq{"player_id": uid}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]GameResult, 0)
	for rows.Next() {
		var (
			res          GameResult
			id, pid, rid uuid.UUID
		)
		if err := rows.Scan(&id, &pid, &rid, &res.Bet, &res.Multiplier, &res.Tag, &res.Payout, &res.Won, &res.CreatedAt); err != nil {
			return nil, err
		}
		res.ID, res.PlayerID, res.RoundID = id.String(), pid.String(), rid.String()
		out = append(out, res)
	}
	return out, rows.Err()
}

// Leaderboard returns the top players by total profit.
func (r *PlayerRepository) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	sqlStr, args, err := psql.Select("id", "username", "total_wins", "total_profit").
		From(playersTable).
		OrderBy("total_profit DESC", "username ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LeaderboardEntry, 0, limit)
	for rows.Next() {
		var (
			e  LeaderboardEntry
			id uuid.UUID
		)
		if err := rows.Scan(&id, &e.Username, &e.TotalWins, &e.TotalProfit); err != nil {
			return nil, err
		}
		e.PlayerID = id.String()
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanPlayer(row pgx.Row) (*Player, error) {
	var (
		p  Player
		id uuid.UUID
	)
	if err := row.Scan(&id, &p.Username, &p.Balance, &p.TotalWins, &p.TotalProfit, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.ID = id.String()
	return &p, nil
}
