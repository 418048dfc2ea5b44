package service

import (
	"context"

	"orderhub/internal/marketplace"
	"orderhub/internal/model"
)

type BackMarketAPI interface {
	ListOrders(ctx context.Context, status string) ([]marketplace.RawOrder, error)
	AcceptOrder(ctx context.Context, orderID string) error
	FindListingID(ctx context.Context, sku string) (string, error)
	DisableListing(ctx context.Context, listingID string) error
	MarkShipped(ctx context.Context, orderID string, t marketplace.Tracking) error
}

type RefurbedAPI interface {
	ListOrders(ctx context.Context, state string) ([]marketplace.RawOrder, error)
	AcceptOrder(ctx context.Context, orderID string) error
	DisableOffer(ctx context.Context, sku string) error
	MarkShipped(ctx context.Context, orderID string, t marketplace.Tracking) error
}

type OctopiaAPI interface {
	ListOrders(ctx context.Context) ([]marketplace.RawOrder, error)
	AcceptOrder(ctx context.Context, orderID string) error
	DisableOffer(ctx context.Context, sellerProductID string) error
	MarkShipped(ctx context.Context, orderID string, t marketplace.Tracking) error
}

type MagentoAPI interface {
	ListOrders(ctx context.Context) ([]marketplace.RawOrder, error)
	AcceptOrder(ctx context.Context, orderID string) error
	DisableProduct(ctx context.Context, sku string) error
	MarkShipped(ctx context.Context, entityID string, t marketplace.Tracking) error
}

// Channels holds one adapter per marketplace. A nil field means the
// marketplace is not configured.
type Channels struct {
	BackMarket BackMarketAPI
	Refurbed   RefurbedAPI
	CDiscount  OctopiaAPI
	Magento    MagentoAPI
}

func (c Channels) Configured(s model.Source) bool {
	switch s {
	case model.SourceBackMarket:
		return c.BackMarket != nil
	case model.SourceRefurbed:
		return c.Refurbed != nil
	case model.SourceCDiscount:
		return c.CDiscount != nil
	case model.SourceMagento:
		return c.Magento != nil
	}
	return false
}

// Accept runs the explicit acceptance step of the order's marketplace.
// Marketplaces without one succeed immediately.
func (c Channels) Accept(ctx context.Context, o model.Order) error {
	switch o.Source {
	case model.SourceBackMarket:
		if c.BackMarket == nil {
			return marketplace.ErrNotConfigured
		}
		return c.BackMarket.AcceptOrder(ctx, o.OrderID)
	case model.SourceRefurbed:
		if c.Refurbed == nil {
			return marketplace.ErrNotConfigured
		}
		return c.Refurbed.AcceptOrder(ctx, o.OrderID)
	case model.SourceCDiscount:
		if c.CDiscount == nil {
			return marketplace.ErrNotConfigured
		}
		return c.CDiscount.AcceptOrder(ctx, o.OrderID)
	case model.SourceMagento:
		if c.Magento == nil {
			return marketplace.ErrNotConfigured
		}
		return c.Magento.AcceptOrder(ctx, o.OrderID)
	}
	return marketplace.ErrUnsupported
}

// NeedsAcceptance reports whether the order is still waiting for an explicit
// acceptance on its marketplace.
func NeedsAcceptance(o model.Order) bool {
	switch o.Source {
	case model.SourceBackMarket:
		return o.Status == "waiting_acceptance" || o.Status == "1"
	case model.SourceRefurbed:
		return o.Status == "NEW" || o.Status == "PENDING"
	}
	return false
}
