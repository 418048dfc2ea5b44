package model

import (
	"time"

	"github.com/google/uuid"
)

type OrderRef struct {
	Source  Source `json:"source"`
	OrderID string `json:"order_id"`
}

type CreatedDDT struct {
	Source  Source `json:"source"`
	OrderID string `json:"order_id"`
	DDTID   string `json:"ddt_id"`
	Warning string `json:"warning,omitempty"`
}

// TickSummary is the outcome of one automation pass.
type TickSummary struct {
	RunID      uuid.UUID    `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Pending    int          `json:"pending"`
	Skipped    int          `json:"skipped"`
	Accepted   []OrderRef   `json:"accepted"`
	DDTs       []CreatedDDT `json:"ddts"`
	Errors     []string     `json:"errors"`
}
