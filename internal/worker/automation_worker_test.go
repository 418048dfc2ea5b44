package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderhub/internal/model"
	"orderhub/internal/service"
	"orderhub/internal/tracker"
)

type fakePending struct {
	orders []model.Order
	block  chan struct{}
}

func (f *fakePending) CollectPending(_ context.Context) []model.Order {
	if f.block != nil {
		<-f.block
	}
	return f.orders
}

type fakeAcceptor struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (f *fakeAcceptor) Accept(_ context.Context, o model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[o.Key()]++
	return f.err
}

func (f *fakeAcceptor) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

type fakeDDT struct {
	mu     sync.Mutex
	calls  map[string]int
	errs   map[string]error
	nextID string
}

func (f *fakeDDT) CreateDDT(_ context.Context, o model.Order) (*service.DDTResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[o.Key()]++
	if err := f.errs[o.Key()]; err != nil {
		return nil, err
	}
	return &service.DDTResult{DDTID: f.nextID}, nil
}

func (f *fakeDDT) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

type fakeNotifier struct {
	mu        sync.Mutex
	summaries []*model.TickSummary
	err       error
}

func (f *fakeNotifier) Notify(_ context.Context, s *model.TickSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, s)
	return f.err
}

type fakeDisabler struct {
	skus []string
}

func (f *fakeDisabler) DisableEverywhere(_ context.Context, sku, _ string) model.DisableReport {
	f.skus = append(f.skus, sku)
	return model.DisableReport{
		"backmarket": {Attempted: true, Success: true},
		"refurbed":   {Attempted: true, Success: false, Message: "boom"},
	}
}

func backMarketOrder(id string) model.Order {
	return model.Order{
		OrderID:       id,
		Source:        model.SourceBackMarket,
		Status:        "waiting_acceptance",
		CustomerName:  "Mario Rossi",
		CustomerEmail: "mario@example.com",
		Items:         []model.Item{{SKU: "SN1", Quantity: 1, UnitPrice: decimal.NewFromInt(100)}},
		Total:         decimal.NewFromInt(100),
	}
}

func newTestWorker(t *testing.T, orders ...model.Order) (*AutomationWorker, *fakeAcceptor, *fakeDDT, *fakeNotifier, tracker.Tracker) {
	t.Helper()
	tr := tracker.NewFileTracker(filepath.Join(t.TempDir(), "processed.json"), 0, nil)
	acc := &fakeAcceptor{}
	ddt := &fakeDDT{nextID: "42"}
	n := &fakeNotifier{}
	w := NewAutomationWorker(&fakePending{orders: orders}, acc, ddt, tr, n, time.Minute, nil)
	return w, acc, ddt, n, tr
}

func TestRunOnce_AcceptsAndCreatesDDT(t *testing.T) {
	w, acc, ddt, n, tr := newTestWorker(t, backMarketOrder("555"))
	ctx := context.Background()

	s, err := w.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, []model.OrderRef{{Source: model.SourceBackMarket, OrderID: "555"}}, s.Accepted)
	require.Len(t, s.DDTs, 1)
	assert.Equal(t, "42", s.DDTs[0].DDTID)
	assert.Empty(t, s.Errors)
	assert.Equal(t, 1, acc.count("backmarket:555"))
	assert.Equal(t, 1, ddt.count("backmarket:555"))
	require.Len(t, n.summaries, 1)

	done, err := tr.IsProcessed(ctx, "backmarket", "555")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRunOnce_SecondTickSkipsProcessed(t *testing.T) {
	w, acc, ddt, _, _ := newTestWorker(t, backMarketOrder("555"))
	ctx := context.Background()

	_, err := w.RunOnce(ctx)
	require.NoError(t, err)
	s, err := w.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, s.Pending)
	assert.Equal(t, 1, s.Skipped)
	assert.Empty(t, s.DDTs)
	assert.Equal(t, 1, acc.count("backmarket:555"))
	assert.Equal(t, 1, ddt.count("backmarket:555"))
}

func TestRunOnce_NoAcceptanceNeeded(t *testing.T) {
	o := backMarketOrder("777")
	o.Source = model.SourceMagento
	o.Status = "processing"
	w, acc, ddt, _, _ := newTestWorker(t, o)

	s, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Empty(t, s.Accepted)
	assert.Len(t, s.DDTs, 1)
	assert.Equal(t, 0, acc.count("magento:777"))
	assert.Equal(t, 1, ddt.count("magento:777"))
}

func TestRunOnce_AcceptFailureSkipsDDT(t *testing.T) {
	w, acc, ddt, _, tr := newTestWorker(t, backMarketOrder("555"))
	acc.err = errors.New("upstream 500")
	ctx := context.Background()

	s, err := w.RunOnce(ctx)
	require.NoError(t, err)

	require.Len(t, s.Errors, 1)
	assert.Contains(t, s.Errors[0], "BACKMARKET-555")
	assert.Contains(t, s.Errors[0], "accept_order")
	assert.Equal(t, 0, ddt.count("backmarket:555"))

	done, err := tr.IsProcessed(ctx, "backmarket", "555")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestRunOnce_DDTFailureRetriesWithoutReaccepting(t *testing.T) {
	w, acc, ddt, _, tr := newTestWorker(t, backMarketOrder("555"))
	ddt.errs = map[string]error{"backmarket:555": errors.New("invoicex down")}
	ctx := context.Background()

	s, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Len(t, s.Accepted, 1)
	assert.Empty(t, s.DDTs)
	require.Len(t, s.Errors, 1)

	accepted, err := tr.IsAccepted(ctx, "backmarket", "555")
	require.NoError(t, err)
	assert.True(t, accepted)

	ddt.errs = nil
	s, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, s.Accepted)
	assert.Len(t, s.DDTs, 1)
	assert.Equal(t, 1, acc.count("backmarket:555"))
	assert.Equal(t, 2, ddt.count("backmarket:555"))
}

func TestRunOnce_OneFailureDoesNotStopOthers(t *testing.T) {
	w, _, ddt, _, _ := newTestWorker(t, backMarketOrder("1"), backMarketOrder("2"), backMarketOrder("3"))
	ddt.errs = map[string]error{"backmarket:2": errors.New("bad customer")}

	s, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, s.Pending)
	assert.Len(t, s.DDTs, 2)
	assert.Len(t, s.Errors, 1)
}

func TestRunOnce_NotifierErrorIsIgnored(t *testing.T) {
	w, _, _, n, _ := newTestWorker(t, backMarketOrder("555"))
	n.err = errors.New("telegram down")

	s, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.DDTs, 1)
}

func TestRunOnce_DisableSold(t *testing.T) {
	w, _, _, _, _ := newTestWorker(t, backMarketOrder("555"))
	d := &fakeDisabler{}
	w.DisableSold(d)

	s, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"SN1"}, d.skus)
	require.Len(t, s.Errors, 1)
	assert.Contains(t, s.Errors[0], "refurbed")
}

func TestRunOnce_RejectsOverlappingTick(t *testing.T) {
	tr := tracker.NewFileTracker(filepath.Join(t.TempDir(), "processed.json"), 0, nil)
	pending := &fakePending{block: make(chan struct{})}
	w := NewAutomationWorker(pending, &fakeAcceptor{}, &fakeDDT{}, tr, nil, time.Minute, nil)

	done := make(chan error, 1)
	go func() {
		_, err := w.RunOnce(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return w.running.Load() }, time.Second, 5*time.Millisecond)

	_, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrTickInProgress)

	close(pending.block)
	require.NoError(t, <-done)

	_, err = w.RunOnce(context.Background())
	assert.NoError(t, err)
}
