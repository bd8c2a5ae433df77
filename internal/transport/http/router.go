package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/app"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterDeps collects what the HTTP surface needs. Gatherer is optional; when
// nil the /metrics route is not mounted.
type RouterDeps struct {
	Commissions CommissionCapturer
	Escrow      EscrowManager
	Payouts     PayoutManager
	Aggregator  PayoutAggregator
	Queries     SettlementQueries
	Rates       app.RateSource
	Clock       clock.Clock
	Logger      *zap.Logger
	Gatherer    prometheus.Gatherer
	Readiness   map[string]HealthCheck
	CORSOrigins []string
}

// NewRouter wires every settlement route.
func NewRouter(deps RouterDeps) http.Handler {
	clk := deps.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}

	r := chi.NewRouter()
	r.Use(CORS(DefaultCORSConfig(deps.CORSOrigins)))
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler { return RequestLogger(next, deps.Logger) })
	r.Use(middleware.Recoverer)
	r.NotFound(NotFoundHandler())
	r.MethodNotAllowed(MethodNotAllowedHandler())

	r.Get("/health", HealthHandler)
	r.Get("/ready", ReadinessHandler(deps.Readiness))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/commissions", func(r chi.Router) {
		r.Post("/", HandleCaptureCommission(deps.Commissions, clk))
		r.Get("/", HandleListCommissions(deps.Queries))
		r.Get("/stats", HandleCommissionStats(deps.Queries))
		r.Get("/{id}", HandleGetCommission(deps.Queries))
		r.Post("/{id}/release", HandleReleaseCommission(deps.Escrow))
		r.Post("/{id}/refund", HandleRefundCommission(deps.Escrow))
	})
	r.Post("/orders/{orderID}/commissions/cancel", HandleCancelOrderCommissions(deps.Escrow))
	r.Post("/escrow/release-eligible", HandleReleaseEligible(deps.Escrow, clk))

	r.Route("/payouts", func(r chi.Router) {
		r.Post("/", HandleCreatePayout(deps.Payouts))
		r.Get("/", HandleListPayouts(deps.Queries))
		r.Get("/stats", HandlePayoutStats(deps.Queries))
		r.Get("/{id}", HandleGetPayout(deps.Queries))
		r.Post("/{id}/process", HandleProcessPayout(deps.Payouts))
		r.Post("/{id}/complete", HandleCompletePayout(deps.Payouts))
		r.Post("/{id}/cancel", HandleCancelPayout(deps.Payouts))
		r.Post("/{id}/fail", HandleFailPayout(deps.Payouts))
		r.Post("/{id}/release-commissions", HandleReleasePayoutCommissions(deps.Payouts))
	})

	r.Route("/payees/{payeeID}", func(r chi.Router) {
		r.Get("/aggregate", HandleAggregatePreview(deps.Aggregator))
		r.Post("/payouts", HandleCreatePayeePayouts(deps.Aggregator))
		r.Get("/escrow", HandleEscrowSummary(deps.Queries))
	})

	r.Get("/currencies", HandleListCurrencies(deps.Rates))
	r.Get("/currencies/convert", HandleConvertCurrency(deps.Rates))

	return r
}
