package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"orderhub/internal/model"
)

type Disabler interface {
	DisableEverywhere(ctx context.Context, sku, listingID string) model.DisableReport
}

type disableRequest struct {
	ListingID string `json:"listing_id"`
}

type disableResponse struct {
	SKU     string              `json:"sku"`
	Results model.DisableReport `json:"results"`
	Failed  []string            `json:"failed"`
}

// DisableProductHandler takes a product off sale on every configured channel.
// Per-channel failures are part of the report, not of the status code.
func DisableProductHandler(d Disabler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sku := strings.TrimSpace(chi.URLParam(r, "sku"))

		var req disableRequest
		if !decodeBody(w, r, &req, true) {
			return
		}
		if sku == "" && req.ListingID == "" {
			http.Error(w, "sku or listing_id required", http.StatusBadRequest)
			return
		}

		report := d.DisableEverywhere(r.Context(), sku, strings.TrimSpace(req.ListingID))
		failed := report.Failed()
		if failed == nil {
			failed = []string{}
		}
		writeJSON(w, http.StatusOK, disableResponse{SKU: sku, Results: report, Failed: failed})
	}
}
