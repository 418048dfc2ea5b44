package model

import (
	"time"

	"github.com/google/uuid"
)

type Shipment struct {
	ID             uuid.UUID `json:"id"`
	Source         Source    `json:"source"`
	OrderID        string    `json:"order_id"`
	Carrier        string    `json:"carrier"`
	TrackingNumber string    `json:"tracking_number"`
	TrackingURL    string    `json:"tracking_url"`
	ShippedAt      time.Time `json:"shipped_at"`
}
