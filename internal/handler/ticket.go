package handler

import (
	"context"
	"log/slog"
	"net/http"

	"orderhub/internal/model"
)

type TicketReader interface {
	Stats(ctx context.Context) (*model.TicketStats, error)
	OpenTickets(ctx context.Context, limit int) ([]model.Ticket, error)
	RecentClosed(ctx context.Context, limit int) ([]model.Ticket, error)
}

// TicketStatsHandler answers 503 when tickets is nil, meaning no ticketing
// database is configured. The list handlers do the same.
func TicketStatsHandler(tickets TicketReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tickets == nil {
			http.Error(w, "ticketing database not configured", http.StatusServiceUnavailable)
			return
		}

		stats, err := tickets.Stats(r.Context())
		if err != nil {
			slog.Error("ticket stats failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func OpenTicketsHandler(tickets TicketReader) http.HandlerFunc {
	return listTickets(tickets, TicketReader.OpenTickets)
}

func ClosedTicketsHandler(tickets TicketReader) http.HandlerFunc {
	return listTickets(tickets, TicketReader.RecentClosed)
}

func listTickets(tickets TicketReader, fetch func(TicketReader, context.Context, int) ([]model.Ticket, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tickets == nil {
			http.Error(w, "ticketing database not configured", http.StatusServiceUnavailable)
			return
		}
		limit, err := limitParam(r, 20, 200)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		list, err := fetch(tickets, r.Context(), limit)
		if err != nil {
			slog.Error("ticket list failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []model.Ticket{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
