package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"orderhub/internal/marketplace"
	"orderhub/internal/model"
	"orderhub/internal/service"
	"orderhub/internal/tracker"
)

type PendingLister interface {
	CollectPending(ctx context.Context) []model.Order
}

type DDTCreator interface {
	CreateDDT(ctx context.Context, o model.Order) (*service.DDTResult, error)
}

type Shipper interface {
	MarkShipped(ctx context.Context, source model.Source, orderID, carrier, number string) (*model.Shipment, error)
	ListShipments(ctx context.Context, limit int) ([]model.Shipment, error)
}

type pendingOrder struct {
	model.Order
	Processed bool `json:"processed"`
}

// ListPendingHandler returns the pending orders of every configured
// marketplace, flagged with whether a DDT already exists for them.
func ListPendingHandler(pending PendingLister, tr tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders := pending.CollectPending(r.Context())

		out := make([]pendingOrder, 0, len(orders))
		for _, o := range orders {
			done, err := tr.IsProcessed(r.Context(), o.Source.Key(), o.OrderID)
			if err != nil {
				slog.Error("tracker lookup failed", "marketplace", o.Source.Key(), "order", o.OrderID, "error", err)
			}
			out = append(out, pendingOrder{Order: o, Processed: done})
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func ExportCSVHandler(pending PendingLister, sender service.Sender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders := pending.CollectPending(r.Context())

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", service.ShippingCSVFilename(time.Now())))
		if err := service.WriteShippingCSV(w, orders, sender); err != nil {
			slog.Error("csv export failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

// CreateDDTHandler creates the DDT of a single pending order on demand and
// records it in the tracker.
func CreateDDTHandler(pending PendingLister, ddt DDTCreator, tr tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source, err := model.ParseSource(chi.URLParam(r, "source"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		orderID := chi.URLParam(r, "orderID")

		done, err := tr.IsProcessed(r.Context(), source.Key(), orderID)
		if err != nil {
			slog.Error("tracker lookup failed", "marketplace", source.Key(), "order", orderID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if done {
			http.Error(w, "order already processed", http.StatusConflict)
			return
		}

		var order *model.Order
		for _, o := range pending.CollectPending(r.Context()) {
			if o.Source == source && o.OrderID == orderID {
				order = &o
				break
			}
		}
		if order == nil {
			http.Error(w, "order not pending", http.StatusNotFound)
			return
		}

		res, err := ddt.CreateDDT(r.Context(), *order)
		if err != nil {
			slog.Error("manual ddt failed", "marketplace", source.Key(), "order", orderID, "step", "create_ddt", "error", err)
			http.Error(w, "ddt creation failed: "+err.Error(), http.StatusBadGateway)
			return
		}

		if err := tr.MarkProcessed(r.Context(), source.Key(), orderID, res.DDTID); err != nil {
			slog.Error("failed to mark order processed", "marketplace", source.Key(), "order", orderID, "step", "mark_processed", "error", err)
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

type shipRequest struct {
	Carrier        string `json:"carrier" validate:"required"`
	TrackingNumber string `json:"tracking_number" validate:"required"`
}

// ShipOrderHandler confirms a shipment on the marketplace. Magento orders are
// addressed by entity id.
func ShipOrderHandler(shipper Shipper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source, err := model.ParseSource(chi.URLParam(r, "source"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var req shipRequest
		if !decodeBody(w, r, &req, false) {
			return
		}

		sh, err := shipper.MarkShipped(r.Context(), source, chi.URLParam(r, "orderID"), req.Carrier, req.TrackingNumber)
		if err != nil {
			switch {
			case errors.Is(err, marketplace.ErrNotConfigured):
				http.Error(w, "marketplace not configured", http.StatusServiceUnavailable)
			case errors.Is(err, marketplace.ErrUnsupported):
				http.Error(w, "marketplace does not support shipping confirmation", http.StatusUnprocessableEntity)
			case errors.Is(err, marketplace.ErrNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			default:
				http.Error(w, "marketplace error", http.StatusBadGateway)
			}
			return
		}

		writeJSON(w, http.StatusOK, sh)
	}
}

func ListShipmentsHandler(shipper Shipper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := limitParam(r, 50, 500)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		shipments, err := shipper.ListShipments(r.Context(), limit)
		if err != nil {
			if errors.Is(err, service.ErrNoJournal) {
				http.Error(w, "shipment journal not configured", http.StatusServiceUnavailable)
				return
			}
			slog.Error("list shipments failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if shipments == nil {
			shipments = []model.Shipment{}
		}

		writeJSON(w, http.StatusOK, shipments)
	}
}

func CarriersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, service.SupportedCarriers())
	}
}
