package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Source string

const (
	SourceBackMarket Source = "BackMarket"
	SourceRefurbed   Source = "Refurbed"
	SourceCDiscount  Source = "CDiscount"
	SourceMagento    Source = "Magento"
)

// Sources lists every marketplace in aggregation order.
var Sources = []Source{SourceBackMarket, SourceRefurbed, SourceCDiscount, SourceMagento}

// Key is the lower-case identifier used by the tracker and in URLs.
func (s Source) Key() string {
	return strings.ToLower(string(s))
}

// Tag is the upper-case prefix used in DDT references.
func (s Source) Tag() string {
	return strings.ToUpper(string(s))
}

func ParseSource(v string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "backmarket":
		return SourceBackMarket, nil
	case "refurbed":
		return SourceRefurbed, nil
	case "cdiscount", "octopia":
		return SourceCDiscount, nil
	case "magento":
		return SourceMagento, nil
	}
	return "", fmt.Errorf("unknown marketplace %q", v)
}

type Item struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ListingID string          `json:"listing_id,omitempty"` // BackMarket only
}

type Order struct {
	OrderID       string          `json:"order_id" validate:"required"`
	Source        Source          `json:"source" validate:"required"`
	Status        string          `json:"status"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email" validate:"required"`
	CustomerPhone string          `json:"customer_phone"`
	Address       string          `json:"address"`
	City          string          `json:"city"`
	PostalCode    string          `json:"postal_code"`
	Country       string          `json:"country"`
	Items         []Item          `json:"items" validate:"min=1"`
	Total         decimal.Decimal `json:"total"`
	Date          string          `json:"date"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	ExternalID    string          `json:"external_id,omitempty"` // Magento entity_id
}

// Key is unique across marketplaces.
func (o Order) Key() string {
	return o.Source.Key() + ":" + o.OrderID
}

func (o Order) Reference() string {
	return o.Source.Tag() + "-" + o.OrderID
}

// SplitName splits on the first whitespace: first token is the first name,
// the remainder the last name.
func SplitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	i := strings.IndexFunc(full, func(r rune) bool { return r == ' ' || r == '\t' })
	if i < 0 {
		return full, ""
	}
	return full[:i], strings.TrimSpace(full[i+1:])
}
