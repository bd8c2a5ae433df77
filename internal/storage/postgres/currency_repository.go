package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
)

type CurrencyRepository struct {
	conn
}

func NewCurrencyRepository(pool *pgxpool.Pool) *CurrencyRepository {
	return &CurrencyRepository{conn: conn{pool: pool}}
}

// ListRates returns every rate, active or not, ordered by code.
func (r *CurrencyRepository) ListRates(ctx context.Context) ([]domain.CurrencyRate, error) {
	const query = `
SELECT code, name, symbol, rate_to_base, decimal_digits, symbol_position, is_active, updated_at
FROM currency_rates
ORDER BY code`

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, translate("list currency rates", err)
	}
	defer rows.Close()

	var out []domain.CurrencyRate
	for rows.Next() {
		var c domain.CurrencyRate
		if err := rows.Scan(
			&c.Code,
			&c.Name,
			&c.Symbol,
			&c.RateToBase,
			&c.DecimalDigits,
			&c.SymbolPosition,
			&c.Active,
			&c.UpdatedAt,
		); err != nil {
			return nil, translate("scan currency rate", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list currency rates", err)
	}
	return out, nil
}
