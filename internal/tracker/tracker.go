// Package tracker records which orders already went through the automatic
// accept and DDT pipeline so that later ticks leave them alone.
package tracker

import (
	"context"
	"time"
)

// DefaultRetention bounds how long an order is remembered. The marketplaces
// and the invoicing system remain the source of truth after that.
const DefaultRetention = 7 * 24 * time.Hour

// Tracker keeps two independent marks per order: accepted on the marketplace
// and DDT created (processed).
type Tracker interface {
	IsProcessed(ctx context.Context, marketplace, orderID string) (bool, error)
	IsAccepted(ctx context.Context, marketplace, orderID string) (bool, error)
	MarkAccepted(ctx context.Context, marketplace, orderID string) error
	MarkProcessed(ctx context.Context, marketplace, orderID, ddtID string) error
	// Stats returns the number of processed orders per marketplace.
	Stats(ctx context.Context) (map[string]int, error)
}
