package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"orderhub/internal/marketplace"
	"orderhub/internal/metrics"
	"orderhub/internal/model"
)

type DisableService struct {
	ch  Channels
	log *slog.Logger
}

func NewDisableService(ch Channels, logger *slog.Logger) *DisableService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DisableService{ch: ch, log: logger}
}

// DisableEverywhere takes the SKU off sale on every configured channel. The
// channels run one after another and a failure or panic in one never stops the
// rest. listingID is the BackMarket listing id; when empty it is looked up
// from the SKU.
func (s *DisableService) DisableEverywhere(ctx context.Context, sku, listingID string) model.DisableReport {
	sku = strings.TrimSpace(sku)
	report := make(model.DisableReport, len(model.Sources))

	for _, src := range model.Sources {
		if !s.ch.Configured(src) {
			report[src.Key()] = model.DisableResult{Message: "not configured"}
			continue
		}
		res := s.runChannel(ctx, src, sku, strings.TrimSpace(listingID))
		report[src.Key()] = res

		outcome := "success"
		if !res.Success {
			outcome = "failure"
			s.log.Warn("disable failed", "marketplace", src.Key(), "sku", sku, "step", "disable_listing", "error", res.Message)
		}
		metrics.DisableOutcomes.WithLabelValues(src.Key(), outcome).Inc()
	}

	s.log.Info("disable completed", "sku", sku, "failed", report.Failed())
	return report
}

func (s *DisableService) runChannel(ctx context.Context, src model.Source, sku, listingID string) (res model.DisableResult) {
	res.Attempted = true
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Message = fmt.Sprintf("panic: %v", r)
		}
	}()

	if sku == "" && src != model.SourceBackMarket {
		return model.DisableResult{Attempted: true, Message: "sku required"}
	}

	var msg string
	var err error
	switch src {
	case model.SourceBackMarket:
		msg, err = s.disableBackMarket(ctx, sku, listingID)
	case model.SourceRefurbed:
		err = s.ch.Refurbed.DisableOffer(ctx, sku)
		if errors.Is(err, marketplace.ErrNotFound) {
			msg, err = "offer not found, nothing to disable", nil
		}
	case model.SourceCDiscount:
		err = s.ch.CDiscount.DisableOffer(ctx, sku)
	case model.SourceMagento:
		err = s.ch.Magento.DisableProduct(ctx, sku)
	}

	if err != nil {
		return model.DisableResult{Attempted: true, Message: err.Error()}
	}
	if msg == "" {
		msg = "disabled"
	}
	return model.DisableResult{Attempted: true, Success: true, Message: msg}
}

// disableBackMarket treats a listing that cannot be resolved as already gone.
func (s *DisableService) disableBackMarket(ctx context.Context, sku, listingID string) (string, error) {
	if listingID == "" {
		if sku == "" {
			return "", errors.New("sku or listing id required")
		}
		id, err := s.ch.BackMarket.FindListingID(ctx, sku)
		if err != nil {
			s.log.Info("listing not resolved, nothing to disable", "marketplace", "backmarket", "sku", sku, "error", err)
			return "listing not found, nothing to disable", nil
		}
		listingID = id
	}

	err := s.ch.BackMarket.DisableListing(ctx, listingID)
	if errors.Is(err, marketplace.ErrNotFound) {
		return "listing " + listingID + " not found, nothing to disable", nil
	}
	if err != nil {
		return "", err
	}
	return "listing " + listingID + " disabled", nil
}
