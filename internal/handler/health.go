package handler

import (
	"context"
	"net/http"
	"time"

	"orderhub/internal/model"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type healthResponse struct {
	Status       string          `json:"status"`
	Marketplaces map[string]bool `json:"marketplaces"`
	Invoicing    string          `json:"invoicing"`
}

// HealthHandler reports which marketplaces are configured and whether the
// invoicing API answers. An unreachable invoicing API degrades the service.
func HealthHandler(configured func(model.Source) bool, invoicing HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Marketplaces: make(map[string]bool, len(model.Sources))}
		for _, s := range model.Sources {
			resp.Marketplaces[s.Key()] = configured(s)
		}

		resp.Invoicing = "not configured"
		if invoicing != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := invoicing.HealthCheck(ctx); err != nil {
				resp.Invoicing = "unreachable"
				resp.Status = "degraded"
			} else {
				resp.Invoicing = "ok"
			}
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
