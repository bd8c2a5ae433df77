package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/app"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
)

const payoutColumns = `id, payee_id, payee_type, amount, currency, period_start, period_end,
commission_count, status, payment_method, payment_reference, notes, processed_at, processed_by,
completed_at, cancelled_at, cancel_reason, failed_at, failure_reason, commissions_released_at,
created_by, created_at, updated_at`

type PayoutRepository struct {
	conn
}

func NewPayoutRepository(pool *pgxpool.Pool) *PayoutRepository {
	return &PayoutRepository{conn: conn{pool: pool}}
}

func (r *PayoutRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *PayoutRepository) GetPayee(ctx context.Context, payeeType domain.PayeeType, id string) (domain.Payee, error) {
	const query = `SELECT id, payee_type, name, email FROM payees WHERE payee_type = $1 AND id = $2`
	var p domain.Payee
	err := r.queryRow(ctx, query, payeeType, id).Scan(&p.ID, &p.Type, &p.Name, &p.Email)
	if err != nil {
		return domain.Payee{}, translateLookup("get payee", err, domain.ErrPayeeNotFound)
	}
	return p, nil
}

// LockPayeeCurrency takes a transaction scoped advisory lock so payouts of one
// payee and currency are created one at a time.
func (r *PayoutRepository) LockPayeeCurrency(ctx context.Context, payeeType domain.PayeeType, payeeID, currency string) error {
	key := fmt.Sprintf("payout:%s:%s:%s", payeeType, payeeID, currency)
	if _, err := r.exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return translate("lock payee currency", err)
	}
	return nil
}

func (r *PayoutRepository) GetCommissionsForUpdate(ctx context.Context, ids []string) ([]domain.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions WHERE id = ANY($1::text[]::uuid[]) ORDER BY id FOR UPDATE`
	return queryCommissions(ctx, r.conn, "get commissions", query, ids)
}

func (r *PayoutRepository) ListAvailableCommissions(ctx context.Context, q app.AvailableQuery) ([]domain.Commission, error) {
	return listAvailable(ctx, r.conn, q)
}

func (r *PayoutRepository) CreatePayout(ctx context.Context, p domain.Payout) error {
	const stmt = `
INSERT INTO payouts (
	id, payee_id, payee_type, amount, currency, period_start, period_end, commission_count,
	status, notes, created_by, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.exec(ctx, stmt,
		p.ID,
		p.PayeeID,
		p.PayeeType,
		p.Amount,
		p.Currency,
		p.PeriodStart,
		p.PeriodEnd,
		p.CommissionCount,
		p.Status,
		p.Notes,
		p.CreatedBy,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return translate("create payout", err)
	}
	return nil
}

// AttachCommissions links the commissions that are still RELEASED and
// unattached, and records each one in the attempt history.
func (r *PayoutRepository) AttachCommissions(ctx context.Context, payoutID string, commissions []domain.Commission, at time.Time) (int64, error) {
	const stmt = `
WITH attached AS (
	UPDATE commissions
	SET payout_id = $1, updated_at = $2
	WHERE id = ANY($3::text[]::uuid[]) AND status = 'RELEASED' AND payout_id IS NULL
	RETURNING id, net_amount
)
INSERT INTO payout_commissions (payout_id, commission_id, net_amount, attached_at)
SELECT $1, id, net_amount, $2 FROM attached`

	ids := make([]string, len(commissions))
	for i, c := range commissions {
		ids[i] = c.ID
	}
	tag, err := r.exec(ctx, stmt, payoutID, at, ids)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("attach commissions: %w", domain.ErrConcurrencyConflict)
		}
		return 0, translate("attach commissions", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PayoutRepository) GetPayoutForUpdate(ctx context.Context, id string) (domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1 FOR UPDATE`
	p, err := scanPayout(r.queryRow(ctx, query, id))
	if err != nil {
		return domain.Payout{}, translateLookup("get payout", err, domain.ErrPayoutNotFound)
	}
	return p, nil
}

// UpdatePayout writes the mutable payout fields if the stored status is still
// from.
func (r *PayoutRepository) UpdatePayout(ctx context.Context, p domain.Payout, from domain.PayoutStatus) error {
	const stmt = `
UPDATE payouts SET
	status = $2,
	payment_method = $3,
	payment_reference = $4,
	notes = $5,
	processed_at = $6,
	processed_by = $7,
	completed_at = $8,
	cancelled_at = $9,
	cancel_reason = $10,
	failed_at = $11,
	failure_reason = $12,
	commissions_released_at = $13,
	updated_at = $14
WHERE id = $1 AND status = $15`

	tag, err := r.exec(ctx, stmt,
		p.ID,
		p.Status,
		p.PaymentMethod,
		p.PaymentReference,
		p.Notes,
		p.ProcessedAt,
		p.ProcessedBy,
		p.CompletedAt,
		p.CancelledAt,
		p.CancelReason,
		p.FailedAt,
		p.FailureReason,
		p.CommissionsReleasedAt,
		p.UpdatedAt,
		from,
	)
	if err != nil {
		return translate("update payout", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update payout %s: %w", p.ID, domain.ErrConcurrencyConflict)
	}
	return nil
}

func (r *PayoutRepository) MarkCommissionsPaid(ctx context.Context, payoutID string, at time.Time) (int64, error) {
	const stmt = `
UPDATE commissions SET status = 'PAID', paid_at = $2, updated_at = $2
WHERE payout_id = $1 AND status = 'RELEASED'`

	tag, err := r.exec(ctx, stmt, payoutID, at)
	if err != nil {
		return 0, translate("mark commissions paid", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PayoutRepository) DetachCommissions(ctx context.Context, payoutID string, at time.Time) (int64, error) {
	const stmt = `
UPDATE commissions SET payout_id = NULL, updated_at = $2
WHERE payout_id = $1 AND status = 'RELEASED'`

	tag, err := r.exec(ctx, stmt, payoutID, at)
	if err != nil {
		return 0, translate("detach commissions", err)
	}
	return tag.RowsAffected(), nil
}

func scanPayout(row pgx.Row) (domain.Payout, error) {
	var p domain.Payout
	err := row.Scan(
		&p.ID,
		&p.PayeeID,
		&p.PayeeType,
		&p.Amount,
		&p.Currency,
		&p.PeriodStart,
		&p.PeriodEnd,
		&p.CommissionCount,
		&p.Status,
		&p.PaymentMethod,
		&p.PaymentReference,
		&p.Notes,
		&p.ProcessedAt,
		&p.ProcessedBy,
		&p.CompletedAt,
		&p.CancelledAt,
		&p.CancelReason,
		&p.FailedAt,
		&p.FailureReason,
		&p.CommissionsReleasedAt,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}
