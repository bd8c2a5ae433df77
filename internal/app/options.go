package app

import (
	"context"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/metrics"
	"go.uber.org/zap"
)

// EventPublisher receives settlement events after their transaction commits.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.Event) error { return nil }

type serviceDeps struct {
	log           *zap.Logger
	publisher     EventPublisher
	metrics       *metrics.Settlement
	batchSize     int
	retryAttempts int
}

const (
	defaultBatchSize     = 50
	defaultRetryAttempts = 3
)

// Option configures the settlement services.
type Option func(*serviceDeps)

func WithLogger(log *zap.Logger) Option {
	return func(d *serviceDeps) {
		if log != nil {
			d.log = log
		}
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(d *serviceDeps) {
		if p != nil {
			d.publisher = p
		}
	}
}

func WithMetrics(m *metrics.Settlement) Option {
	return func(d *serviceDeps) {
		d.metrics = m
	}
}

// WithBatchSize overrides how many rows a sweep handles per query.
func WithBatchSize(n int) Option {
	return func(d *serviceDeps) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithRetryAttempts bounds the retries of operations that hit a
// ConcurrencyConflict.
func WithRetryAttempts(n int) Option {
	return func(d *serviceDeps) {
		if n > 0 {
			d.retryAttempts = n
		}
	}
}

func newServiceDeps(name string, opts []Option) serviceDeps {
	d := serviceDeps{
		log:           zap.NewNop(),
		publisher:     nopPublisher{},
		batchSize:     defaultBatchSize,
		retryAttempts: defaultRetryAttempts,
	}
	for _, opt := range opts {
		opt(&d)
	}
	d.log = d.log.Named(name)
	return d
}

// publish is best effort: the state change is already committed.
func (d serviceDeps) publish(ctx context.Context, events ...domain.Event) {
	for _, ev := range events {
		if err := d.publisher.Publish(ctx, ev); err != nil {
			d.log.Warn("publish settlement event failed",
				zap.String("event_type", ev.Type),
				zap.String("event_id", ev.ID),
				zap.Error(err),
			)
		}
	}
}
