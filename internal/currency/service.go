package currency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/clock"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
)

// Repository reads the externally maintained rate table.
type Repository interface {
	ListRates(ctx context.Context) ([]domain.CurrencyRate, error)
}

// Service serves rate table snapshots, caching the last load for ttl.
type Service struct {
	repo  Repository
	clock clock.Clock
	ttl   time.Duration

	mu        sync.RWMutex
	table     *Table
	expiresAt time.Time
}

const defaultCacheTTL = time.Minute

func NewService(repo Repository, clk clock.Clock, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Service{repo: repo, clock: clk, ttl: ttl}
}

// Table returns the cached table, reloading it once the ttl has elapsed.
func (s *Service) Table(ctx context.Context) (*Table, error) {
	now := s.clock.Now()

	s.mu.RLock()
	table, expiresAt := s.table, s.expiresAt
	s.mu.RUnlock()
	if table != nil && now.Before(expiresAt) {
		return table, nil
	}

	rates, err := s.repo.ListRates(ctx)
	if err != nil {
		if table != nil {
			// Serve the stale snapshot rather than failing every capture.
			return table, nil
		}
		return nil, fmt.Errorf("load currency rates: %w", err)
	}

	table = NewTable(rates)
	s.mu.Lock()
	s.table = table
	s.expiresAt = now.Add(s.ttl)
	s.mu.Unlock()
	return table, nil
}

// Invalidate drops the cached table.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.table = nil
	s.mu.Unlock()
}

// StaticSource serves a fixed table.
type StaticSource struct {
	table *Table
}

func NewStaticSource(rates []domain.CurrencyRate) StaticSource {
	return StaticSource{table: NewTable(rates)}
}

func (s StaticSource) Table(context.Context) (*Table, error) {
	return s.table, nil
}
