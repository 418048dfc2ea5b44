package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"orderhub/internal/metrics"
	"orderhub/internal/model"
	"orderhub/internal/mw"
	"orderhub/internal/service"
	"orderhub/internal/tracker"
)

// Deps are the collaborators behind the operator API. Tickets and Invoicing
// may be nil.
type Deps struct {
	Auth       *service.AuthService
	JWTSecret  string
	Pending    PendingLister
	Tracker    tracker.Tracker
	DDT        DDTCreator
	Runner     AutomationRunner
	Disabler   Disabler
	Shipper    Shipper
	Tickets    TicketReader
	Invoicing  HealthChecker
	Sender     service.Sender
	Configured func(model.Source) bool
	Metrics    http.Handler
}

func NewRouter(d Deps) http.Handler {
	if d.Configured == nil {
		d.Configured = func(model.Source) bool { return false }
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/health", HealthHandler(d.Configured, d.Invoicing))
	r.Post("/api/login", LoginHandler(d.Auth))
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(d.JWTSecret))

		r.Get("/api/orders/pending", ListPendingHandler(d.Pending, d.Tracker))
		r.Get("/api/orders/export.csv", ExportCSVHandler(d.Pending, d.Sender))
		r.Post("/api/orders/{source}/{orderID}/ddt", CreateDDTHandler(d.Pending, d.DDT, d.Tracker))
		r.Post("/api/orders/{source}/{orderID}/ship", ShipOrderHandler(d.Shipper))

		r.Post("/api/automation/run", RunAutomationHandler(d.Runner))
		r.Get("/api/automation/tracker", TrackerStatsHandler(d.Tracker))

		r.Post("/api/products/{sku}/disable", DisableProductHandler(d.Disabler))

		r.Get("/api/shipments", ListShipmentsHandler(d.Shipper))
		r.Get("/api/carriers", CarriersHandler())

		r.Get("/api/tickets/stats", TicketStatsHandler(d.Tickets))
		r.Get("/api/tickets/open", OpenTicketsHandler(d.Tickets))
		r.Get("/api/tickets/closed", ClosedTicketsHandler(d.Tickets))
	})

	return r
}
