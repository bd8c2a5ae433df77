package postgres

import (
	"context"
	"maps"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
	"github.com/shopspring/decimal"
)

// SettingsRepository reads the settlement settings owned by the settings
// subsystem and overlays them on the configured defaults.
type SettingsRepository struct {
	conn
	defaults domain.Settings
}

func NewSettingsRepository(pool *pgxpool.Pool, defaults domain.Settings) *SettingsRepository {
	return &SettingsRepository{conn: conn{pool: pool}, defaults: defaults}
}

// Settings returns a fresh snapshot on every call.
func (r *SettingsRepository) Settings(ctx context.Context) (domain.Settings, error) {
	values, err := r.values(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	s, err := r.defaults.ApplyValues(values)
	if err != nil {
		return domain.Settings{}, err
	}

	overrides, err := r.overrides(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	if len(overrides) > 0 {
		merged := make(map[domain.PayeeKey]decimal.Decimal, len(s.RateOverrides)+len(overrides))
		maps.Copy(merged, s.RateOverrides)
		maps.Copy(merged, overrides)
		s.RateOverrides = merged
	}
	return s, nil
}

func (r *SettingsRepository) values(ctx context.Context) (map[string]string, error) {
	const query = `SELECT key, value FROM settlement_settings WHERE key = ANY($1::text[])`
	keys := []string{
		domain.SettingEscrowEnabled,
		domain.SettingEscrowDefaultHoldDays,
		domain.SettingMinPayoutAmount,
		domain.SettingGlobalCommissionRate,
		domain.SettingProviderCommissionRate,
	}
	rows, err := r.query(ctx, query, keys)
	if err != nil {
		return nil, translate("read settlement settings", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, translate("read settlement settings", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, translate("read settlement settings", err)
	}
	return values, nil
}

func (r *SettingsRepository) overrides(ctx context.Context) (map[domain.PayeeKey]decimal.Decimal, error) {
	const query = `SELECT payee_type, payee_id, rate FROM commission_rate_overrides`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, translate("read commission rate overrides", err)
	}
	defer rows.Close()

	out := make(map[domain.PayeeKey]decimal.Decimal)
	for rows.Next() {
		var (
			key  domain.PayeeKey
			rate decimal.Decimal
		)
		if err := rows.Scan(&key.Type, &key.ID, &rate); err != nil {
			return nil, translate("read commission rate overrides", err)
		}
		out[key] = rate
	}
	if err := rows.Err(); err != nil {
		return nil, translate("read commission rate overrides", err)
	}
	return out, nil
}
