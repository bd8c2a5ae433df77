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

// QueryRepository serves the read side. It never writes.
type QueryRepository struct {
	conn
}

func NewQueryRepository(pool *pgxpool.Pool) *QueryRepository {
	return &QueryRepository{conn: conn{pool: pool}}
}

func (r *QueryRepository) ListPayouts(ctx context.Context, f app.PayoutFilter) ([]domain.PayoutView, int, error) {
	var w where
	if f.Status != "" {
		w.add("p.status = $%d", f.Status)
	}
	if f.PayeeID != "" {
		w.add("p.payee_id = $%d", f.PayeeID)
	}
	if f.PayeeType != "" {
		w.add("p.payee_type = $%d", f.PayeeType)
	}

	var total int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM payouts p`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, translate("count payouts", err)
	}

	args := append(w.args, f.Limit, f.Offset())
	query := fmt.Sprintf(`
SELECT %s, y.id, y.payee_type, y.name, y.email
FROM payouts p
JOIN payees y ON y.payee_type = p.payee_type AND y.id = p.payee_id%s
ORDER BY p.created_at DESC, p.id DESC
LIMIT $%d OFFSET $%d`, prefixed("p", payoutColumns), w.sql(), len(args)-1, len(args))

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, translate("list payouts", err)
	}
	defer rows.Close()

	var out []domain.PayoutView
	for rows.Next() {
		view, err := scanPayoutView(rows)
		if err != nil {
			return nil, 0, translate("list payouts", err)
		}
		out = append(out, view)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translate("list payouts", err)
	}
	return out, total, nil
}

// GetPayoutView returns the payout with its payee and every commission the
// payout ever attached.
func (r *QueryRepository) GetPayoutView(ctx context.Context, id string) (domain.PayoutView, error) {
	query := fmt.Sprintf(`
SELECT %s, y.id, y.payee_type, y.name, y.email
FROM payouts p
JOIN payees y ON y.payee_type = p.payee_type AND y.id = p.payee_id
WHERE p.id = $1`, prefixed("p", payoutColumns))

	view, err := scanPayoutView(r.queryRow(ctx, query, id))
	if err != nil {
		return domain.PayoutView{}, translateLookup("get payout", err, domain.ErrPayoutNotFound)
	}

	commissionsQuery := `SELECT ` + prefixed("c", commissionColumns) + `
FROM payout_commissions pc
JOIN commissions c ON c.id = pc.commission_id
WHERE pc.payout_id = $1
ORDER BY c.captured_at, c.id`
	view.Commissions, err = queryCommissions(ctx, r.conn, "list payout commissions", commissionsQuery, id)
	if err != nil {
		return domain.PayoutView{}, err
	}
	return view, nil
}

func (r *QueryRepository) ListCommissions(ctx context.Context, f app.CommissionFilter) ([]domain.Commission, int, error) {
	var w where
	if f.PayeeID != "" {
		w.add("payee_id = $%d", f.PayeeID)
	}
	if f.PayeeType != "" {
		w.add("payee_type = $%d", f.PayeeType)
	}
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	if f.OrderID != "" {
		w.add("order_id = $%d", f.OrderID)
	}

	var total int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM commissions`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, translate("count commissions", err)
	}

	args := append(w.args, f.Limit, f.Offset())
	query := fmt.Sprintf(`SELECT %s FROM commissions%s ORDER BY captured_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		commissionColumns, w.sql(), len(args)-1, len(args))
	commissions, err := queryCommissions(ctx, r.conn, "list commissions", query, args...)
	if err != nil {
		return nil, 0, err
	}
	return commissions, total, nil
}

func (r *QueryRepository) GetCommission(ctx context.Context, id string) (domain.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions WHERE id = $1`
	c, err := scanCommission(r.queryRow(ctx, query, id))
	if err != nil {
		return domain.Commission{}, translateLookup("get commission", err, domain.ErrCommissionNotFound)
	}
	return c, nil
}

func (r *QueryRepository) PayoutTotals(ctx context.Context, f app.StatsFilter) ([]domain.StatusTotal, error) {
	w := statsWhere(f, "created_at")
	query := `SELECT status, currency, COUNT(*), COALESCE(SUM(amount), 0), 0 FROM payouts` + w.sql() +
		` GROUP BY status, currency ORDER BY status, currency`
	return r.totals(ctx, "payout totals", query, w.args...)
}

func (r *QueryRepository) CommissionTotals(ctx context.Context, f app.StatsFilter) ([]domain.StatusTotal, error) {
	w := statsWhere(f, "captured_at")
	query := `SELECT status, currency, COUNT(*), COALESCE(SUM(net_amount), 0), COALESCE(SUM(commission_amount), 0)
FROM commissions` + w.sql() + ` GROUP BY status, currency ORDER BY status, currency`
	return r.totals(ctx, "commission totals", query, w.args...)
}

func (r *QueryRepository) EscrowBalances(ctx context.Context, payeeType domain.PayeeType, payeeID string) ([]domain.StatusTotal, *time.Time, error) {
	totals, err := r.CommissionTotals(ctx, app.StatsFilter{PayeeID: payeeID, PayeeType: payeeType})
	if err != nil {
		return nil, nil, err
	}

	var next *time.Time
	const query = `SELECT MIN(hold_until) FROM commissions WHERE payee_type = $1 AND payee_id = $2 AND status = 'HELD'`
	if err := r.queryRow(ctx, query, payeeType, payeeID).Scan(&next); err != nil {
		return nil, nil, translate("next hold until", err)
	}
	return totals, next, nil
}

func (r *QueryRepository) totals(ctx context.Context, op, query string, args ...any) ([]domain.StatusTotal, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()

	var out []domain.StatusTotal
	for rows.Next() {
		var t domain.StatusTotal
		if err := rows.Scan(&t.Status, &t.Currency, &t.Count, &t.Amount, &t.Commission); err != nil {
			return nil, translate(op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(op, err)
	}
	return out, nil
}

func statsWhere(f app.StatsFilter, timeColumn string) where {
	var w where
	if f.PayeeID != "" {
		w.add("payee_id = $%d", f.PayeeID)
	}
	if f.PayeeType != "" {
		w.add("payee_type = $%d", f.PayeeType)
	}
	if !f.From.IsZero() {
		w.add(timeColumn+" >= $%d", f.From)
	}
	if !f.To.IsZero() {
		w.add(timeColumn+" < $%d", f.To)
	}
	return w
}

func scanPayoutView(row pgx.Row) (domain.PayoutView, error) {
	var (
		p     domain.Payout
		payee domain.Payee
	)
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
		&payee.ID,
		&payee.Type,
		&payee.Name,
		&payee.Email,
	)
	if err != nil {
		return domain.PayoutView{}, err
	}
	return domain.PayoutView{Payout: p, Payee: &payee}, nil
}

// where collects AND-ed conditions with positional arguments.
type where struct {
	clauses []string
	args    []any
}

// add appends a condition; format holds one %d for the argument position.
func (w *where) add(format string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(format, len(w.args)))
}

func (w where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// prefixed qualifies every column of a column list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, col := range parts {
		parts[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(parts, ", ")
}
