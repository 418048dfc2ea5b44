package service

import (
	"context"
	"sync"

	"orderhub/internal/marketplace"
)

type fakeCalls struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeCalls) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeCalls) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

type fakeBackMarket struct {
	fakeCalls
	byStatus   map[string][]marketplace.RawOrder
	listErr    error
	listingID  string
	findErr    error
	disableErr error
	shipped    marketplace.Tracking
	panicOn    string
}

func (f *fakeBackMarket) ListOrders(ctx context.Context, status string) ([]marketplace.RawOrder, error) {
	f.record("list:" + status)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.byStatus[status], nil
}

func (f *fakeBackMarket) AcceptOrder(ctx context.Context, orderID string) error {
	f.record("accept:" + orderID)
	return nil
}

func (f *fakeBackMarket) FindListingID(ctx context.Context, sku string) (string, error) {
	f.record("find:" + sku)
	if f.panicOn == "find" {
		panic("listing catalog exploded")
	}
	return f.listingID, f.findErr
}

func (f *fakeBackMarket) DisableListing(ctx context.Context, listingID string) error {
	f.record("disable:" + listingID)
	return f.disableErr
}

func (f *fakeBackMarket) MarkShipped(ctx context.Context, orderID string, t marketplace.Tracking) error {
	f.record("ship:" + orderID)
	f.shipped = t
	return nil
}

type fakeRefurbed struct {
	fakeCalls
	orders     []marketplace.RawOrder
	listErr    error
	disableErr error
}

func (f *fakeRefurbed) ListOrders(ctx context.Context, state string) ([]marketplace.RawOrder, error) {
	f.record("list")
	return f.orders, f.listErr
}

func (f *fakeRefurbed) AcceptOrder(ctx context.Context, orderID string) error {
	f.record("accept:" + orderID)
	return nil
}

func (f *fakeRefurbed) DisableOffer(ctx context.Context, sku string) error {
	f.record("disable:" + sku)
	return f.disableErr
}

func (f *fakeRefurbed) MarkShipped(ctx context.Context, orderID string, t marketplace.Tracking) error {
	f.record("ship:" + orderID)
	return nil
}

type fakeOctopia struct {
	fakeCalls
	orders     []marketplace.RawOrder
	listErr    error
	disableErr error
}

func (f *fakeOctopia) ListOrders(ctx context.Context) ([]marketplace.RawOrder, error) {
	f.record("list")
	return f.orders, f.listErr
}

func (f *fakeOctopia) AcceptOrder(ctx context.Context, orderID string) error { return nil }

func (f *fakeOctopia) DisableOffer(ctx context.Context, sku string) error {
	f.record("disable:" + sku)
	return f.disableErr
}

func (f *fakeOctopia) MarkShipped(ctx context.Context, orderID string, t marketplace.Tracking) error {
	return marketplace.ErrUnsupported
}

type fakeMagento struct {
	fakeCalls
	orders     []marketplace.RawOrder
	listErr    error
	disableErr error
}

func (f *fakeMagento) ListOrders(ctx context.Context) ([]marketplace.RawOrder, error) {
	f.record("list")
	return f.orders, f.listErr
}

func (f *fakeMagento) AcceptOrder(ctx context.Context, orderID string) error { return nil }

func (f *fakeMagento) DisableProduct(ctx context.Context, sku string) error {
	f.record("disable:" + sku)
	return f.disableErr
}

func (f *fakeMagento) MarkShipped(ctx context.Context, entityID string, t marketplace.Tracking) error {
	f.record("ship:" + entityID)
	return nil
}
