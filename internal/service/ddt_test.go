package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderhub/internal/invoicex"
	"orderhub/internal/model"
)

type postedLine struct {
	ddtID string
	sku   string
	price string
	line  int
}

type fakeInvoicing struct {
	mu        sync.Mutex
	exists    bool
	code      string
	codeErr   error
	createErr error
	created   []invoicex.Customer
	headers   []invoicex.DDTHeader
	headerErr error
	lines     []postedLine
	failSKUs  map[string]bool
}

func (f *fakeInvoicing) FindCustomerByEmail(ctx context.Context, email string) (bool, error) {
	return f.exists, nil
}

func (f *fakeInvoicing) GetCustomerCode(ctx context.Context, email string) (string, error) {
	return f.code, f.codeErr
}

func (f *fakeInvoicing) CreateCustomer(ctx context.Context, c invoicex.Customer) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, c)
	if f.createErr != nil {
		return "", f.createErr
	}
	return "NEW-1", nil
}

func (f *fakeInvoicing) CreateDDT(ctx context.Context, customerCode string, h invoicex.DDTHeader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers = append(f.headers, h)
	if f.headerErr != nil {
		return "", f.headerErr
	}
	return "42", nil
}

func (f *fakeInvoicing) PostDDTLine(ctx context.Context, ddtID, sku string, price decimal.Decimal, line int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, postedLine{ddtID: ddtID, sku: sku, price: price.StringFixed(2), line: line})
	if f.failSKUs[sku] {
		return fmt.Errorf("invoicex serial %s: %w", sku, invoicex.ErrNotFound)
	}
	return nil
}

func testOrder() model.Order {
	return model.Order{
		OrderID:       "555",
		Source:        model.SourceBackMarket,
		Status:        "waiting_acceptance",
		CustomerName:  "Mario De Rossi",
		CustomerEmail: "a@b.com",
		Country:       "it",
		Items:         []model.Item{{SKU: "X1", Quantity: 1, UnitPrice: decimal.NewFromInt(100)}},
		Total:         decimal.NewFromInt(100),
	}
}

func TestCreateDDT_ExistingCustomer(t *testing.T) {
	api := &fakeInvoicing{exists: true, code: "C-7"}
	svc := NewDDTService(api, nil)

	res, err := svc.CreateDDT(context.Background(), testOrder())
	require.NoError(t, err)

	assert.Equal(t, "42", res.DDTID)
	assert.Equal(t, "C-7", res.CustomerCode)
	assert.Equal(t, "BACKMARKET", res.PaymentTag)
	assert.Equal(t, []string{"X1"}, res.ItemsOK)
	assert.Empty(t, res.ItemsFailed)
	assert.Empty(t, res.Warning)
	assert.Empty(t, api.created)
	require.Len(t, api.headers, 1)
	assert.Equal(t, invoicex.DDTHeader{Reference: "BACKMARKET-555", PaymentMethod: "BACKMARKET"}, api.headers[0])
	assert.Equal(t, []postedLine{{ddtID: "42", sku: "X1", price: "100.00", line: 2}}, api.lines)
}

func TestCreateDDT_CreatesMissingCustomer(t *testing.T) {
	api := &fakeInvoicing{}
	svc := NewDDTService(api, nil)

	res, err := svc.CreateDDT(context.Background(), testOrder())
	require.NoError(t, err)

	assert.Equal(t, "NEW-1", res.CustomerCode)
	require.Len(t, api.created, 1)
	assert.Equal(t, "Mario", api.created[0].FirstName)
	assert.Equal(t, "De Rossi", api.created[0].LastName)
	assert.Equal(t, "IT", api.created[0].Region)
}

func TestCreateDDT_AcceptsUnusualEmail(t *testing.T) {
	api := &fakeInvoicing{exists: true, code: "C-7"}
	o := testOrder()
	o.CustomerEmail = "mario.rossi@marketplace"

	res, err := NewDDTService(api, nil).CreateDDT(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, "42", res.DDTID)

	o.CustomerEmail = ""
	_, err = NewDDTService(api, nil).CreateDDT(context.Background(), o)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestCreateDDT_PartialLineFailure(t *testing.T) {
	api := &fakeInvoicing{exists: true, code: "C-7", failSKUs: map[string]bool{"S2": true}}
	svc := NewDDTService(api, nil)

	o := testOrder()
	o.Items = []model.Item{
		{SKU: "S1", UnitPrice: decimal.NewFromInt(10)},
		{SKU: "S2", UnitPrice: decimal.NewFromInt(20)},
		{SKU: "S3", UnitPrice: decimal.NewFromInt(30)},
	}
	res, err := svc.CreateDDT(context.Background(), o)
	require.NoError(t, err)

	assert.Equal(t, []string{"S1", "S3"}, res.ItemsOK)
	require.Len(t, res.ItemsFailed, 1)
	assert.Equal(t, "S2", res.ItemsFailed[0].SKU)
	assert.Equal(t, 3, res.ItemsFailed[0].Line)
	assert.NotEmpty(t, res.Warning)
	require.Len(t, api.lines, 3)
	assert.Equal(t, 4, api.lines[2].line)
}

func TestCreateDDT_EvenSplitWhenNoUnitPrice(t *testing.T) {
	api := &fakeInvoicing{exists: true, code: "C-7"}
	svc := NewDDTService(api, nil)

	o := testOrder()
	o.Total = decimal.NewFromInt(100)
	o.Items = []model.Item{{SKU: "A"}, {SKU: "B"}, {SKU: "C"}}
	_, err := svc.CreateDDT(context.Background(), o)
	require.NoError(t, err)

	for _, l := range api.lines {
		assert.Equal(t, "33.33", l.price)
	}
}

func TestCreateDDT_ItemWithoutSKUFails(t *testing.T) {
	api := &fakeInvoicing{exists: true, code: "C-7"}
	o := testOrder()
	o.Items = append(o.Items, model.Item{Name: "no sku"})

	res, err := NewDDTService(api, nil).CreateDDT(context.Background(), o)
	require.NoError(t, err)
	assert.Len(t, res.ItemsOK, 1)
	assert.Len(t, res.ItemsFailed, 1)
	assert.Len(t, api.lines, 1)
}

func TestCreateDDT_FatalErrors(t *testing.T) {
	t.Run("no customer", func(t *testing.T) {
		api := &fakeInvoicing{createErr: errors.New("invalid code")}
		_, err := NewDDTService(api, nil).CreateDDT(context.Background(), testOrder())
		assert.ErrorIs(t, err, ErrNoCustomer)
		assert.Empty(t, api.headers)
	})

	t.Run("no header", func(t *testing.T) {
		api := &fakeInvoicing{exists: true, code: "C-7", headerErr: errors.New("boom")}
		_, err := NewDDTService(api, nil).CreateDDT(context.Background(), testOrder())
		assert.ErrorIs(t, err, ErrNoHeader)
		assert.Empty(t, api.lines)
	})

	t.Run("invalid order", func(t *testing.T) {
		api := &fakeInvoicing{}
		o := testOrder()
		o.Items = nil
		_, err := NewDDTService(api, nil).CreateDDT(context.Background(), o)
		assert.ErrorIs(t, err, ErrInvalidOrder)
		assert.Empty(t, api.created)
	})
}

func TestPaymentTag(t *testing.T) {
	tests := []struct {
		source   model.Source
		method   string
		want     string
		unmapped bool
	}{
		{model.SourceRefurbed, "", "REFURBED", false},
		{model.SourceCDiscount, "", "CDISCOUNT", false},
		{model.SourceMagento, "banktransfer", "BONIFICO BANCARIO", false},
		{model.SourceMagento, "paypal_express", "PAYPAL", false},
		{model.SourceMagento, "paypal_plus", "PAYPAL", false},
		{model.SourceMagento, "cashondelivery", "CONTRASSEGNO", false},
		{model.SourceMagento, "free", "PERMUTA", false},
		{model.SourceMagento, "satispay", "CARTA DI CREDITO", true},
	}
	for _, tt := range tests {
		tag, unmapped := PaymentTag(model.Order{Source: tt.source, PaymentMethod: tt.method})
		assert.Equal(t, tt.want, tag, tt.method)
		assert.Equal(t, tt.unmapped, unmapped, tt.method)
	}
}
