package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"orderhub/internal/model"
	"orderhub/internal/tracker"
	"orderhub/internal/worker"
)

type AutomationRunner interface {
	RunOnce(ctx context.Context) (*model.TickSummary, error)
}

// RunAutomationHandler runs one automation pass synchronously. The pass is not
// tied to the request, so a client disconnect does not abort it halfway.
func RunAutomationHandler(runner AutomationRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := runner.RunOnce(context.WithoutCancel(r.Context()))
		if err != nil {
			if errors.Is(err, worker.ErrTickInProgress) {
				http.Error(w, "automation already running", http.StatusConflict)
				return
			}
			slog.Error("manual automation run failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, summary)
	}
}

type trackerStats struct {
	Processed map[string]int `json:"processed"`
	Total     int            `json:"total"`
}

func TrackerStatsHandler(tr tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := tr.Stats(r.Context())
		if err != nil {
			slog.Error("tracker stats failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		total := 0
		for _, n := range stats {
			total += n
		}
		writeJSON(w, http.StatusOK, trackerStats{Processed: stats, Total: total})
	}
}
