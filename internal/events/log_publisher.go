package events

import (
	"context"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
	"go.uber.org/zap"
)

// LogPublisher writes events to the log. It is used when no broker is
// configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogPublisher{log: log.Named("events")}
}

func (p *LogPublisher) Publish(_ context.Context, event domain.Event) error {
	p.log.Info("settlement event",
		zap.String("event_type", event.Type),
		zap.String("event_id", event.ID),
		zap.String("payee_id", event.Data.PayeeID),
		zap.String("payout_id", event.Data.PayoutID),
		zap.String("commission_id", event.Data.CommissionID),
		zap.String("status", event.Data.Status),
		zap.String("amount", event.Data.Amount),
		zap.String("currency", event.Data.Currency),
	)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
