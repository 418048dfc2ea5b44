package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orderhub/internal/config"
	"orderhub/internal/database"
	"orderhub/internal/handler"
	"orderhub/internal/invoicex"
	"orderhub/internal/marketplace"
	"orderhub/internal/metrics"
	"orderhub/internal/model"
	"orderhub/internal/notify"
	"orderhub/internal/service"
	"orderhub/internal/tracker"
	"orderhub/internal/worker"
)

func main() {
	cfg := config.New()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Databases
	var journalDB, ticketDB *sql.DB
	if cfg.DatabaseURI != "" {
		db, err := database.NewDB(ctx, cfg.DatabaseURI)
		if err != nil {
			slog.Error("failed to connect to DB", "error", err)
			os.Exit(1)
		}
		if err := database.InitSchema(ctx, db); err != nil {
			slog.Error("failed to init DB schema", "error", err)
			os.Exit(1)
		}
		journalDB = db
		defer database.CloseDB(journalDB)
	} else {
		slog.Warn("DATABASE_URI not set, shipments will not be journaled")
	}
	if cfg.TicketingDatabaseURI != "" {
		db, err := database.NewDB(ctx, cfg.TicketingDatabaseURI)
		if err != nil {
			slog.Error("failed to connect to ticketing DB", "error", err)
			os.Exit(1)
		}
		ticketDB = db
		defer database.CloseDB(ticketDB)
	}

	// Tracker
	var tr tracker.Tracker
	if cfg.RedisAddr != "" {
		rt, err := tracker.NewRedisTracker(ctx, tracker.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.TrackerRetention)
		if err != nil {
			slog.Error("failed to init redis tracker", "error", err)
			os.Exit(1)
		}
		defer rt.Close()
		tr = rt
		slog.Info("using redis tracker", "addr", cfg.RedisAddr)
	} else {
		tr = tracker.NewFileTracker(cfg.TrackerFile, cfg.TrackerRetention, logger)
		slog.Info("using file tracker", "path", cfg.TrackerFile)
	}

	// Marketplaces
	ch := newChannels(cfg, logger)
	for _, s := range model.Sources {
		slog.Info("marketplace", "name", s.Key(), "configured", ch.Configured(s))
	}

	// Invoicing
	invoicing := invoicex.NewClient(cfg.InvoiceX.BaseURL, cfg.InvoiceX.APIKey, invoicex.Options{
		Timeout:         cfg.HTTPTimeout,
		MaxRetries:      3,
		InitialInterval: time.Second,
	}, logger)
	var invoicingHealth handler.HealthChecker
	if cfg.InvoiceX.BaseURL != "" {
		invoicingHealth = invoicing
	} else {
		slog.Warn("INVOICEX_API_URL not set, DDT creation will fail")
	}

	// Services
	pendingSvc := service.NewPendingService(ch, logger)
	ddtSvc := service.NewDDTService(invoicing, logger)
	disableSvc := service.NewDisableService(ch, logger)
	var store *service.ShipmentStore
	if journalDB != nil {
		store = service.NewShipmentStore(journalDB)
	}
	shippingSvc := service.NewShippingService(ch, store, logger)
	var tickets handler.TicketReader
	if ticketDB != nil {
		tickets = service.NewTicketService(ticketDB)
	}
	authSvc := service.NewAuthService(model.Operator{
		Login:        cfg.OperatorUser,
		PasswordHash: []byte(cfg.OperatorPasswordHash),
	}, cfg.JWTSecret)
	if cfg.OperatorPasswordHash == "" {
		slog.Warn("OPERATOR_PASSWORD_HASH not set, login is disabled")
	}

	// Worker
	telegram := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
	automation := worker.NewAutomationWorker(pendingSvc, ch, ddtSvc, tr, telegram, cfg.AutomationInterval, logger)
	if cfg.AutomationDisableSold {
		automation.DisableSold(disableSvc)
	}

	metrics.Register()

	router := handler.NewRouter(handler.Deps{
		Auth:       authSvc,
		JWTSecret:  cfg.JWTSecret,
		Pending:    pendingSvc,
		Tracker:    tr,
		DDT:        ddtSvc,
		Runner:     automation,
		Disabler:   disableSvc,
		Shipper:    shippingSvc,
		Tickets:    tickets,
		Invoicing:  invoicingHealth,
		Sender:     service.Sender(cfg.Sender),
		Configured: ch.Configured,
		Metrics:    promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	if cfg.AutomationEnabled {
		go automation.Start(ctx)
	} else {
		slog.Info("automation disabled, runs only on demand")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	slog.Info("starting server", "addr", cfg.RunAddress)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	slog.Info("shutting down...")

	cancel() // stop worker
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	slog.Info("server stopped")
}

// newChannels builds an adapter for every marketplace that has credentials.
// Unconfigured marketplaces stay nil.
func newChannels(cfg *config.Config, logger *slog.Logger) service.Channels {
	opts := marketplace.Options{Timeout: cfg.HTTPTimeout, RPS: cfg.MarketplaceRPS}

	var ch service.Channels
	if cfg.BackMarket.Configured() {
		ch.BackMarket = marketplace.NewBackMarket(cfg.BackMarket.BaseURL, cfg.BackMarket.Token, opts, logger)
	}
	if cfg.Refurbed.Configured() {
		ch.Refurbed = marketplace.NewRefurbed(cfg.Refurbed.BaseURL, cfg.Refurbed.Token, opts, logger)
	}
	if cfg.Octopia.Configured() {
		ch.CDiscount = marketplace.NewOctopia(marketplace.OctopiaConfig(cfg.Octopia), opts, logger)
	}
	if cfg.Magento.Configured() {
		ch.Magento = marketplace.NewMagento(cfg.Magento.BaseURL, cfg.Magento.Token, cfg.Magento.StoreViews, opts, logger)
	}
	return ch
}

func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
