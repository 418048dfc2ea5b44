package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"orderhub/internal/invoicex"
	"orderhub/internal/metrics"
	"orderhub/internal/model"
	"orderhub/internal/validation"
)

var (
	ErrNoCustomer = errors.New("customer not resolved")
	ErrNoHeader   = errors.New("ddt header not created")
)

const (
	// Row 1 of an InvoiceX document is its header.
	firstDDTLine = 2

	defaultPaymentTag = "CARTA DI CREDITO"
)

var magentoPaymentTags = map[string]string{
	"paypal_express":     "PAYPAL",
	"paypal_standard":    "PAYPAL",
	"paypal":             "PAYPAL",
	"checkmo":            "BONIFICO BANCARIO",
	"banktransfer":       "BONIFICO BANCARIO",
	"cashondelivery":     "CONTRASSEGNO",
	"cashondelivery_fee": "CONTRASSEGNO",
	"ccsave":             "CARTA DI CREDITO",
	"authorizenet":       "CARTA DI CREDITO",
	"stripe":             "CARTA DI CREDITO",
	"braintree":          "CARTA DI CREDITO",
	"free":               "PERMUTA",
}

// Invoicing is the subset of the InvoiceX API used to build delivery notes.
type Invoicing interface {
	FindCustomerByEmail(ctx context.Context, email string) (bool, error)
	GetCustomerCode(ctx context.Context, email string) (string, error)
	CreateCustomer(ctx context.Context, c invoicex.Customer) (string, error)
	CreateDDT(ctx context.Context, customerCode string, h invoicex.DDTHeader) (string, error)
	PostDDTLine(ctx context.Context, ddtID, sku string, price decimal.Decimal, line int) error
}

type LineFailure struct {
	SKU    string `json:"sku"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type DDTResult struct {
	DDTID        string        `json:"ddt_id"`
	CustomerCode string        `json:"customer_code"`
	PaymentTag   string        `json:"payment_tag"`
	ItemsOK      []string      `json:"items_ok"`
	ItemsFailed  []LineFailure `json:"items_failed"`
	Warning      string        `json:"warning,omitempty"`
}

type DDTService struct {
	api Invoicing
	log *slog.Logger
}

func NewDDTService(api Invoicing, logger *slog.Logger) *DDTService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DDTService{api: api, log: logger}
}

// PaymentTag returns the InvoiceX payment method for the order and whether the
// Magento payment code was unknown.
func PaymentTag(o model.Order) (tag string, unmapped bool) {
	if o.Source != model.SourceMagento {
		return o.Source.Tag(), false
	}
	code := strings.ToLower(strings.TrimSpace(o.PaymentMethod))
	if t, ok := magentoPaymentTags[code]; ok {
		return t, false
	}
	if strings.HasPrefix(code, "paypal") {
		return "PAYPAL", false
	}
	return defaultPaymentTag, true
}

// linePrice falls back to an even split of the order total when the item has
// no price of its own.
func linePrice(o model.Order, it model.Item) decimal.Decimal {
	if !it.UnitPrice.IsZero() {
		return it.UnitPrice
	}
	if len(o.Items) == 0 {
		return decimal.Zero
	}
	return o.Total.Div(decimal.NewFromInt(int64(len(o.Items)))).Round(2)
}

// CreateDDT resolves the customer, creates the delivery note header and posts
// one line per item. Line failures are collected in the result; only a missing
// customer or header fails the whole call.
func (s *DDTService) CreateDDT(ctx context.Context, o model.Order) (*DDTResult, error) {
	log := s.log.With("marketplace", o.Source.Key(), "order", o.OrderID)

	if err := validation.Struct(o); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", o.Key(), ErrInvalidOrder, err)
	}

	code, err := s.resolveCustomer(ctx, o)
	if err != nil {
		log.Error("customer resolution failed", "step", "resolve_customer", "error", err)
		return nil, fmt.Errorf("%s: %w: %v", o.Key(), ErrNoCustomer, err)
	}

	tag, unmapped := PaymentTag(o)
	if unmapped {
		log.Warn("unknown payment method, using default", "payment_method", o.PaymentMethod, "tag", tag)
	}

	ddtID, err := s.api.CreateDDT(ctx, code, invoicex.DDTHeader{Reference: o.Reference(), PaymentMethod: tag})
	if err != nil {
		log.Error("ddt header creation failed", "step", "create_ddt", "error", err)
		return nil, fmt.Errorf("%s: %w: %v", o.Key(), ErrNoHeader, err)
	}

	res := &DDTResult{DDTID: ddtID, CustomerCode: code, PaymentTag: tag}
	for i, it := range o.Items {
		line := firstDDTLine + i
		if it.SKU == "" {
			res.ItemsFailed = append(res.ItemsFailed, LineFailure{Line: line, Reason: "missing sku"})
			continue
		}
		if err := s.api.PostDDTLine(ctx, ddtID, it.SKU, linePrice(o, it), line); err != nil {
			log.Warn("ddt line failed", "step", "post_ddt_line", "ddt", ddtID, "sku", it.SKU, "line", line, "error", err)
			res.ItemsFailed = append(res.ItemsFailed, LineFailure{SKU: it.SKU, Line: line, Reason: err.Error()})
			continue
		}
		res.ItemsOK = append(res.ItemsOK, it.SKU)
	}

	if n := len(res.ItemsFailed); n > 0 {
		metrics.DDTLinesFailed.Add(float64(n))
		res.Warning = fmt.Sprintf("%d of %d lines failed", n, len(o.Items))
	}
	log.Info("ddt created", "ddt", ddtID, "customer", code, "lines_ok", len(res.ItemsOK), "lines_failed", len(res.ItemsFailed))
	return res, nil
}

func (s *DDTService) resolveCustomer(ctx context.Context, o model.Order) (string, error) {
	exists, err := s.api.FindCustomerByEmail(ctx, o.CustomerEmail)
	if err != nil {
		return "", err
	}
	if exists {
		code, err := s.api.GetCustomerCode(ctx, o.CustomerEmail)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, invoicex.ErrNotFound) {
			return "", err
		}
	}

	first, last := model.SplitName(o.CustomerName)
	return s.api.CreateCustomer(ctx, invoicex.Customer{
		FirstName: first,
		LastName:  last,
		Street:    o.Address,
		PostCode:  o.PostalCode,
		City:      o.City,
		Region:    region(o.Country),
		Phone:     o.CustomerPhone,
		Email:     o.CustomerEmail,
	})
}

func region(country string) string {
	c := strings.ToUpper(strings.TrimSpace(country))
	if len(c) < 2 {
		return "IT"
	}
	return c[:2]
}
