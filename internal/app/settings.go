package app

import (
	"context"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/currency"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
)

// SettingsProvider returns the settlement settings in force right now. Every
// operation reads a fresh snapshot.
type SettingsProvider interface {
	Settings(ctx context.Context) (domain.Settings, error)
}

// StaticSettings serves a fixed snapshot.
type StaticSettings domain.Settings

func (s StaticSettings) Settings(context.Context) (domain.Settings, error) {
	return domain.Settings(s), nil
}

// RateSource returns the current currency rate table.
type RateSource interface {
	Table(ctx context.Context) (*currency.Table, error)
}
