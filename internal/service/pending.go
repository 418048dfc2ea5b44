package service

import (
	"context"
	"log/slog"
	"strings"

	"orderhub/internal/marketplace"
	"orderhub/internal/metrics"
	"orderhub/internal/model"
)

// backMarketStatuses are queried one by one: the listing endpoint filters on a
// single status.
var backMarketStatuses = []string{"waiting_acceptance", "accepted", "to_ship"}

var terminalStates = map[model.Source]map[string]bool{
	model.SourceBackMarket: {"9": true, "shipped": true, "cancelled": true, "refunded": true},
	model.SourceRefurbed:   {"SHIPPED": true, "DELIVERED": true, "CANCELLED": true, "RETURNED": true, "REJECTED": true},
	model.SourceCDiscount:  {"Shipped": true, "Delivered": true, "Cancelled": true},
	model.SourceMagento:    {"complete": true, "closed": true, "canceled": true},
}

func isTerminal(o model.Order) bool {
	states := terminalStates[o.Source]
	if o.Source == model.SourceBackMarket {
		return states[strings.ToLower(o.Status)]
	}
	return states[o.Status]
}

type PendingService struct {
	ch  Channels
	log *slog.Logger
}

func NewPendingService(ch Channels, logger *slog.Logger) *PendingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PendingService{ch: ch, log: logger}
}

// CollectPending returns the actionable orders of every configured marketplace
// in the order BackMarket, Refurbed, CDiscount, Magento. An order appears once
// even when several status queries return it. A failing marketplace
// contributes nothing.
func (s *PendingService) CollectPending(ctx context.Context) []model.Order {
	seen := make(map[string]bool)
	var out []model.Order

	for _, src := range model.Sources {
		if !s.ch.Configured(src) {
			continue
		}
		log := s.log.With("marketplace", src.Key())

		batches, err := s.fetch(ctx, src)
		if err != nil {
			log.Error("failed to list orders", "step", "list_orders", "error", err)
			metrics.AdapterErrors.WithLabelValues(src.Key(), "list_orders").Inc()
			continue
		}

		count := 0
		for _, raw := range batches {
			o, err := Normalize(raw, src, log)
			if err != nil {
				log.Warn("skipping order", "step", "normalize", "error", err)
				continue
			}
			if seen[o.Key()] || isTerminal(*o) {
				continue
			}
			seen[o.Key()] = true
			out = append(out, *o)
			count++
		}
		log.Info("pending orders collected", "count", count)
	}
	return out
}

func (s *PendingService) fetch(ctx context.Context, src model.Source) ([]marketplace.RawOrder, error) {
	switch src {
	case model.SourceBackMarket:
		var all []marketplace.RawOrder
		for _, status := range backMarketStatuses {
			orders, err := s.ch.BackMarket.ListOrders(ctx, status)
			if err != nil {
				return nil, err
			}
			all = append(all, orders...)
		}
		return all, nil
	case model.SourceRefurbed:
		return s.ch.Refurbed.ListOrders(ctx, "")
	case model.SourceCDiscount:
		return s.ch.CDiscount.ListOrders(ctx)
	case model.SourceMagento:
		return s.ch.Magento.ListOrders(ctx)
	}
	return nil, nil
}
