package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scratch2x/internal/payment"
)

const paymentsTable = "payments"

var paymentColumns = []string{
	"id", "player_id", "kind", "method", "currency", "amount", "crypto_amount",
	"status", "reference", "details", "credited", "created_at", "updated_at",
}

// PaymentRepository satisfies payment.Store.
type PaymentRepository struct {
	pool   *pgxpool.Pool
	getter *trmpgx.CtxGetter
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool, getter: trmpgx.DefaultCtxGetter}
}

func (r *PaymentRepository) conn(ctx context.Context) trmpgx.Tr {
	return r.getter.DefaultTrOrDB(ctx, r.pool)
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	id, ok := parseID(p.ID)
	if !ok {
		return fmt.Errorf("payment id %q is not a uuid", p.ID)
	}
	pid, ok := parseID(p.PlayerID)
	if !ok {
		return ErrPlayerNotFound
	}
	details := p.Details
	if details == nil {
		details = map[string]string{}
	}

	sqlStr, args, err := psql.Insert(paymentsTable).
		Columns("id", "player_id", "kind", "method", "currency", "amount", "crypto_amount", "status", "reference", "details").
		Values(id, pid, string(p.Kind), string(p.Method), string(p.Currency), p.Amount, p.CryptoAmount, string(p.Status), p.Reference, details).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return err
	}

	err = r.conn(ctx).QueryRow(ctx, sqlStr, args...).Scan(&p.CreatedAt, &p.UpdatedAt)
	if pgCode(err) == "23503" {
		return ErrPlayerNotFound
	}
	return err
}

func (r *PaymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}

	sqlStr, args, err := psql.Select(paymentColumns...).
		From(paymentsTable).
		Where(sq.Eq{"id": uid}).
		ToSql()
	if err != nil {
		return nil, err
	}

	p, err := scanPayment(r.conn(ctx).QueryRow(ctx, sqlStr, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, payment.ErrPaymentNotFound
	}
	return p, err
}

// UpdateStatus moves a pending payment to status. A payment that is already
// final yields payment.ErrAlreadyFinal.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status payment.Status) (*payment.Payment, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}

	sqlStr, args, err := psql.Update(paymentsTable).
		Set("status", string(status)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": uid, "status": string(payment.StatusPending)}).
		Suffix("RETURNING " + strings.Join(paymentColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}

	p, err := scanPayment(r.conn(ctx).QueryRow(ctx, sqlStr, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, payment.ErrAlreadyFinal
	}
	return p, err
}

func (r *PaymentRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*payment.Payment, error) {
	pid, ok := parseID(playerID)
	if !ok {
		return []*payment.Payment{}, nil
	}

	query := psql.Select(paymentColumns...).
		From(paymentsTable).
		Where(sq.Eq{"player_id": pid}).
		OrderBy("created_at DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	return r.list(ctx, query)
}

func (r *PaymentRepository) ListPending(ctx context.Context) ([]*payment.Payment, error) {
	query := psql.Select(paymentColumns...).
		From(paymentsTable).
		Where(sq.Eq{"credited": false}).
		OrderBy("created_at ASC")
	return r.list(ctx, query)
}

// MarkCredited flips the credited flag if nobody has yet and the payment is
// still in status. Only the caller that flips it gets true.
func (r *PaymentRepository) MarkCredited(ctx context.Context, id string, status payment.Status) (bool, error) {
	uid, ok := parseID(id)
	if !ok {
		return false, payment.ErrPaymentNotFound
	}

	sqlStr, args, err := psql.Update(paymentsTable).
		Set("credited", true).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": uid, "credited": false, "status": string(status)}).
		ToSql()
	if err != nil {
		return false, err
	}

	tag, err := r.conn(ctx).Exec(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PaymentRepository) UnmarkCredited(ctx context.Context, id string) error {
	uid, ok := parseID(id)
	if !ok {
		return payment.ErrPaymentNotFound
	}

	sqlStr, args, err := psql.Update(paymentsTable).
		Set("credited", false).
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
		return payment.ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) list(ctx context.Context, query sq.SelectBuilder) ([]*payment.Payment, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*payment.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var (
		p                      payment.Payment
		id, pid                uuid.UUID
		kind, method, currency string
		status                 string
	)
	err := row.Scan(&id, &pid, &kind, &method, &currency, &p.Amount, &p.CryptoAmount,
		&status, &p.Reference, &p.Details, &p.Credited, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ID, p.PlayerID = id.String(), pid.String()
	p.Kind, p.Method, p.Currency = payment.Kind(kind), payment.Method(method), payment.Currency(currency)
	p.Status = payment.Status(status)
	return &p, nil
}
