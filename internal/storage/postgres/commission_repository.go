package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/app"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
)

const commissionColumns = `id, order_id, payee_id, payee_type, order_amount, commission_amount, net_amount,
currency, rate_applied, status, hold_until, captured_at, payout_id, released_at, released_by,
refunded_at, refund_reason, paid_at, created_at, updated_at`

type CommissionRepository struct {
	conn
}

func NewCommissionRepository(pool *pgxpool.Pool) *CommissionRepository {
	return &CommissionRepository{conn: conn{pool: pool}}
}

func (r *CommissionRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *CommissionRepository) FindCommissionByOrderPayee(ctx context.Context, orderID, payeeID string) (*domain.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions WHERE order_id = $1 AND payee_id = $2`
	c, err := scanCommission(r.queryRow(ctx, query, orderID, payeeID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, translate("find commission by order payee", err)
	}
	return &c, nil
}

// CreateCommission inserts c. A row for the same order and payee makes it
// return ErrIdempotencyConflict without aborting the transaction.
func (r *CommissionRepository) CreateCommission(ctx context.Context, c domain.Commission) error {
	const stmt = `
INSERT INTO commissions (
	id, order_id, payee_id, payee_type, order_amount, commission_amount, net_amount,
	currency, rate_applied, status, hold_until, captured_at, released_at, released_by,
	created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (order_id, payee_id) DO NOTHING`

	tag, err := r.exec(ctx, stmt,
		c.ID,
		c.OrderID,
		c.PayeeID,
		c.PayeeType,
		c.OrderAmount,
		c.CommissionAmount,
		c.NetAmount,
		c.Currency,
		c.RateApplied,
		c.Status,
		c.HoldUntil,
		c.CapturedAt,
		c.ReleasedAt,
		c.ReleasedBy,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		return translate("create commission", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIdempotencyConflict
	}
	return nil
}

func (r *CommissionRepository) GetCommissionForUpdate(ctx context.Context, id string) (domain.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions WHERE id = $1 FOR UPDATE`
	c, err := scanCommission(r.queryRow(ctx, query, id))
	if err != nil {
		return domain.Commission{}, translateLookup("get commission", err, domain.ErrCommissionNotFound)
	}
	return c, nil
}

func (r *CommissionRepository) ListOrderCommissionsForUpdate(ctx context.Context, orderID string) ([]domain.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions WHERE order_id = $1 ORDER BY id FOR UPDATE`
	return r.listCommissions(ctx, "list order commissions", query, orderID)
}

func (r *CommissionRepository) MarkReleased(ctx context.Context, id string, at time.Time, by string, dueBy *time.Time) (bool, error) {
	const stmt = `
UPDATE commissions
SET status = 'RELEASED', released_at = $2, released_by = $3, updated_at = $2
WHERE id = $1 AND status = 'HELD' AND ($4::timestamptz IS NULL OR hold_until <= $4::timestamptz)`

	tag, err := r.exec(ctx, stmt, id, at, by, dueBy)
	if err != nil {
		return false, translate("mark commission released", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CommissionRepository) MarkRefunded(ctx context.Context, id string, at time.Time, reason string) (bool, error) {
	const stmt = `
UPDATE commissions
SET status = 'REFUNDED', refunded_at = $2, refund_reason = $3, updated_at = $2
WHERE id = $1 AND status = 'HELD'`

	tag, err := r.exec(ctx, stmt, id, at, reason)
	if err != nil {
		return false, translate("mark commission refunded", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CommissionRepository) ListDueHolds(ctx context.Context, dueBy *time.Time, afterID string, limit int) ([]domain.Commission, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT ` + commissionColumns + ` FROM commissions WHERE status = 'HELD'`)
	if dueBy != nil {
		args = append(args, *dueBy)
		fmt.Fprintf(&sb, ` AND hold_until <= $%d`, len(args))
	}
	if afterID != "" {
		args = append(args, afterID)
		fmt.Fprintf(&sb, ` AND id > $%d`, len(args))
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, ` ORDER BY id LIMIT $%d`, len(args))

	return r.listCommissions(ctx, "list due holds", sb.String(), args...)
}

func (r *CommissionRepository) ListAvailableCommissions(ctx context.Context, q app.AvailableQuery) ([]domain.Commission, error) {
	return listAvailable(ctx, r.conn, q)
}

func (r *CommissionRepository) ListPayeesWithAvailable(ctx context.Context, start, end time.Time) ([]domain.PayeeKey, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT DISTINCT payee_type, payee_id
FROM commissions
WHERE status = 'RELEASED' AND payout_id IS NULL AND captured_at < $1`)
	args := []any{end}
	if !start.IsZero() {
		args = append(args, start)
		fmt.Fprintf(&sb, ` AND captured_at >= $%d`, len(args))
	}
	sb.WriteString(` ORDER BY payee_type, payee_id`)

	rows, err := r.query(ctx, sb.String(), args...)
	if err != nil {
		return nil, translate("list payees with available commissions", err)
	}
	defer rows.Close()

	var out []domain.PayeeKey
	for rows.Next() {
		var k domain.PayeeKey
		if err := rows.Scan(&k.Type, &k.ID); err != nil {
			return nil, translate("scan payee", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list payees with available commissions", err)
	}
	return out, nil
}

func (r *CommissionRepository) listCommissions(ctx context.Context, op, query string, args ...any) ([]domain.Commission, error) {
	return queryCommissions(ctx, r.conn, op, query, args...)
}

// listAvailable returns RELEASED, unattached commissions of one payee captured
// in [Start, End), oldest first. A zero Start has no lower bound.
func listAvailable(ctx context.Context, c conn, q app.AvailableQuery) ([]domain.Commission, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + commissionColumns + ` FROM commissions
WHERE status = 'RELEASED' AND payout_id IS NULL
AND payee_type = $1 AND payee_id = $2 AND captured_at < $3`)
	args := []any{q.PayeeType, q.PayeeID, q.End}
	if !q.Start.IsZero() {
		args = append(args, q.Start)
		fmt.Fprintf(&sb, ` AND captured_at >= $%d`, len(args))
	}
	if q.Currency != "" {
		args = append(args, q.Currency)
		fmt.Fprintf(&sb, ` AND currency = $%d`, len(args))
	}
	sb.WriteString(` ORDER BY captured_at, id`)
	if q.ForUpdate {
		sb.WriteString(` FOR UPDATE`)
	}
	return queryCommissions(ctx, c, "list available commissions", sb.String(), args...)
}

func queryCommissions(ctx context.Context, c conn, op, query string, args ...any) ([]domain.Commission, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()

	var out []domain.Commission
	for rows.Next() {
		cm, err := scanCommission(rows)
		if err != nil {
			return nil, translate(op, err)
		}
		out = append(out, cm)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(op, err)
	}
	return out, nil
}

func scanCommission(row pgx.Row) (domain.Commission, error) {
	var (
		c        domain.Commission
		payoutID *string
	)
	err := row.Scan(
		&c.ID,
		&c.OrderID,
		&c.PayeeID,
		&c.PayeeType,
		&c.OrderAmount,
		&c.CommissionAmount,
		&c.NetAmount,
		&c.Currency,
		&c.RateApplied,
		&c.Status,
		&c.HoldUntil,
		&c.CapturedAt,
		&payoutID,
		&c.ReleasedAt,
		&c.ReleasedBy,
		&c.RefundedAt,
		&c.RefundReason,
		&c.PaidAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return domain.Commission{}, err
	}
	if payoutID != nil {
		c.PayoutID = *payoutID
	}
	return c, nil
}
