package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"orderhub/internal/metrics"
	"orderhub/internal/model"
	"orderhub/internal/service"
	"orderhub/internal/tracker"
)

var ErrTickInProgress = errors.New("automation tick already running")

type PendingCollector interface {
	CollectPending(ctx context.Context) []model.Order
}

type Acceptor interface {
	Accept(ctx context.Context, o model.Order) error
}

type DDTCreator interface {
	CreateDDT(ctx context.Context, o model.Order) (*service.DDTResult, error)
}

type Disabler interface {
	DisableEverywhere(ctx context.Context, sku, listingID string) model.DisableReport
}

type Notifier interface {
	Notify(ctx context.Context, s *model.TickSummary) error
}

// AutomationWorker accepts pending orders, creates their DDTs and records
// them in the tracker, once per interval. Only one pass runs at a time.
type AutomationWorker struct {
	pending  PendingCollector
	acceptor Acceptor
	ddt      DDTCreator
	tracker  tracker.Tracker
	notifier Notifier
	disabler Disabler
	interval time.Duration
	running  atomic.Bool
	log      *slog.Logger
	now      func() time.Time
}

func NewAutomationWorker(
	pending PendingCollector,
	acceptor Acceptor,
	ddt DDTCreator,
	tr tracker.Tracker,
	notifier Notifier,
	interval time.Duration,
	logger *slog.Logger,
) *AutomationWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &AutomationWorker{
		pending:  pending,
		acceptor: acceptor,
		ddt:      ddt,
		tracker:  tr,
		notifier: notifier,
		interval: interval,
		log:      logger.With("component", "automation"),
		now:      time.Now,
	}
}

// DisableSold makes the worker take every SKU of a completed order off sale
// on all channels.
func (w *AutomationWorker) DisableSold(d Disabler) *AutomationWorker {
	w.disabler = d
	return w
}

func (w *AutomationWorker) Start(ctx context.Context) {
	w.log.Info("starting automation worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("automation worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				if errors.Is(err, ErrTickInProgress) {
					w.log.Warn("previous tick still running, skipping")
					continue
				}
				w.log.Error("automation tick failed", "error", err)
			}
		}
	}
}

// RunOnce runs a single pass. It returns ErrTickInProgress without doing
// anything when another pass is running.
func (w *AutomationWorker) RunOnce(ctx context.Context) (*model.TickSummary, error) {
	if !w.running.CompareAndSwap(false, true) {
		metrics.TicksSkippedTotal.Inc()
		return nil, ErrTickInProgress
	}
	defer w.running.Store(false)

	s := &model.TickSummary{RunID: uuid.New(), StartedAt: w.now()}
	log := w.log.With("run", s.RunID)
	log.Info("automation tick started")

	for _, o := range w.pending.CollectPending(ctx) {
		if err := ctx.Err(); err != nil {
			s.Errors = append(s.Errors, fmt.Sprintf("tick interrupted: %v", err))
			break
		}
		done, err := w.tracker.IsProcessed(ctx, o.Source.Key(), o.OrderID)
		if err != nil {
			w.fail(s, o, "tracker", err)
			continue
		}
		if done {
			s.Skipped++
			continue
		}
		s.Pending++
		w.process(ctx, s, o)
	}

	s.FinishedAt = w.now()
	metrics.TicksTotal.Inc()
	metrics.TickDuration.Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())
	log.Info("automation tick completed",
		"pending", s.Pending, "accepted", len(s.Accepted), "ddts", len(s.DDTs),
		"skipped", s.Skipped, "errors", len(s.Errors))

	if w.notifier != nil {
		if err := w.notifier.Notify(ctx, s); err != nil {
			log.Error("failed to send notification", "error", err)
		}
	}
	return s, nil
}

func (w *AutomationWorker) process(ctx context.Context, s *model.TickSummary, o model.Order) {
	key := o.Source.Key()
	log := w.log.With("marketplace", key, "order", o.OrderID)

	if service.NeedsAcceptance(o) {
		accepted, err := w.tracker.IsAccepted(ctx, key, o.OrderID)
		if err != nil {
			w.fail(s, o, "tracker", err)
			return
		}
		if !accepted {
			if err := w.acceptor.Accept(ctx, o); err != nil {
				w.fail(s, o, "accept_order", err)
				return
			}
			metrics.OrdersAccepted.WithLabelValues(key).Inc()
			s.Accepted = append(s.Accepted, model.OrderRef{Source: o.Source, OrderID: o.OrderID})
			log.Info("order accepted")
			if err := w.tracker.MarkAccepted(ctx, key, o.OrderID); err != nil {
				log.Warn("failed to record acceptance", "step", "mark_accepted", "error", err)
			}
		}
	}

	res, err := w.ddt.CreateDDT(ctx, o)
	if err != nil {
		w.fail(s, o, "create_ddt", err)
		return
	}
	metrics.DDTsCreated.WithLabelValues(key).Inc()
	s.DDTs = append(s.DDTs, model.CreatedDDT{Source: o.Source, OrderID: o.OrderID, DDTID: res.DDTID, Warning: res.Warning})
	if res.Warning != "" {
		s.Errors = append(s.Errors, fmt.Sprintf("%s: DDT %s incomplete: %s", o.Reference(), res.DDTID, res.Warning))
	}

	if err := w.tracker.MarkProcessed(ctx, key, o.OrderID, res.DDTID); err != nil {
		w.fail(s, o, "mark_processed", err)
	}

	if w.disabler != nil {
		for _, it := range o.Items {
			if it.SKU == "" {
				continue
			}
			report := w.disabler.DisableEverywhere(ctx, it.SKU, it.ListingID)
			if failed := report.Failed(); len(failed) > 0 {
				s.Errors = append(s.Errors, fmt.Sprintf("%s: disable %s failed on %v", o.Reference(), it.SKU, failed))
			}
		}
	}
}

func (w *AutomationWorker) fail(s *model.TickSummary, o model.Order, step string, err error) {
	w.log.Error("order step failed", "marketplace", o.Source.Key(), "order", o.OrderID, "step", step, "error", err)
	metrics.OrderErrors.WithLabelValues(o.Source.Key(), step).Inc()
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %s failed: %v", o.Reference(), step, err))
}
