package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"orderhub/internal/marketplace"
	"orderhub/internal/model"
)

var ErrInvalidOrder = errors.New("invalid order")

// Normalize maps a raw marketplace payload onto the canonical order. Payloads
// without an order id or without items return ErrInvalidOrder.
func Normalize(raw marketplace.RawOrder, source model.Source, logger *slog.Logger) (*model.Order, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o *model.Order
	switch source {
	case model.SourceBackMarket:
		o = normalizeBackMarket(raw)
	case model.SourceRefurbed:
		o = normalizeRefurbed(raw)
	case model.SourceCDiscount:
		o = normalizeCDiscount(raw)
	case model.SourceMagento:
		o = normalizeMagento(raw)
	default:
		return nil, fmt.Errorf("normalize: unknown source %q", source)
	}
	o.Source = source

	if o.OrderID == "" {
		return nil, fmt.Errorf("%s: missing order id: %w", source.Key(), ErrInvalidOrder)
	}
	if len(o.Items) == 0 {
		return nil, fmt.Errorf("%s order %s: no items: %w", source.Key(), o.OrderID, ErrInvalidOrder)
	}
	if o.CustomerEmail == "" {
		o.CustomerEmail = fmt.Sprintf("%s_%s@placeholder.local", source.Key(), o.OrderID)
		logger.Warn("order without email, using placeholder",
			"marketplace", source.Key(), "order", o.OrderID, "email", o.CustomerEmail)
	}
	return o, nil
}

// fields reads values from a decoded JSON object. Keys may be dotted paths
// into nested objects.
type fields map[string]any

func (f fields) get(path string) any {
	var cur any = map[string]any(f)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func (f fields) object(path string) fields {
	if m, ok := f.get(path).(map[string]any); ok {
		return m
	}
	return fields{}
}

func (f fields) list(paths ...string) []any {
	for _, p := range paths {
		if l, ok := f.get(p).([]any); ok && len(l) > 0 {
			return l
		}
	}
	return nil
}

// firstString returns the first non-empty value among paths.
func (f fields) firstString(paths ...string) string {
	for _, p := range paths {
		if s := stringify(f.get(p)); s != "" {
			return s
		}
	}
	return ""
}

// firstDecimal returns the first non-zero value among paths.
func (f fields) firstDecimal(paths ...string) decimal.Decimal {
	for _, p := range paths {
		if d := decimalOf(f.get(p)); !d.IsZero() {
			return d
		}
	}
	return decimal.Zero
}

func (f fields) quantity(path string) int {
	n, err := strconv.Atoi(stringify(f.get(path)))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func decimalOf(v any) decimal.Decimal {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero
		}
		return d
	case map[string]any:
		return fields(t).firstDecimal("amount", "value")
	}
	return decimal.Zero
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func normalizeBackMarket(raw fields) *model.Order {
	addr := raw.object("shipping_address")
	o := &model.Order{
		OrderID:       raw.firstString("order_id", "id"),
		Status:        raw.firstString("state", "status"),
		Date:          raw.firstString("date_creation", "created_at"),
		CustomerName:  joinNonEmpty(addr.firstString("first_name"), addr.firstString("last_name")),
		CustomerEmail: raw.firstString("customer_email", "email", "shipping_address.email"),
		CustomerPhone: addr.firstString("phone", "phone_number"),
		Address:       joinNonEmpty(addr.firstString("street", "address_line_1"), addr.firstString("street2")),
		City:          addr.firstString("city"),
		PostalCode:    addr.firstString("postal_code", "zipcode"),
		Country:       addr.firstString("country", "country_code"),
		Total:         raw.firstDecimal("price", "total_price"),
		PaymentMethod: model.SourceBackMarket.Key(),
	}
	for _, line := range raw.list("orderlines", "items") {
		it, ok := line.(map[string]any)
		if !ok {
			continue
		}
		f := fields(it)
		o.Items = append(o.Items, model.Item{
			SKU:       f.firstString("serial_number", "listing", "sku"),
			Name:      f.firstString("product", "product_name"),
			Quantity:  f.quantity("quantity"),
			UnitPrice: f.firstDecimal("price", "unit_price"),
			ListingID: f.firstString("listing_id"),
		})
	}
	return o
}

func normalizeRefurbed(raw fields) *model.Order {
	addr := raw.object("shipping_address")
	o := &model.Order{
		OrderID:       raw.firstString("id", "orderId"),
		Status:        raw.firstString("state", "orderState"),
		Date:          raw.firstString("released_at", "created_at", "order_date", "date"),
		CustomerName:  joinNonEmpty(addr.firstString("first_name"), addr.firstString("family_name", "last_name")),
		CustomerEmail: raw.firstString("customer_email", "email", "shipping_address.email", "customer.email"),
		CustomerPhone: addr.firstString("phone_number", "phone"),
		Address:       joinNonEmpty(addr.firstString("street_name", "street"), addr.firstString("house_no")),
		City:          addr.firstString("town", "city"),
		PostalCode:    addr.firstString("post_code", "postal_code"),
		Country:       addr.firstString("country_code", "country"),
		Total:         raw.firstDecimal("settlement_total_paid", "total_paid", "total_price"),
		PaymentMethod: model.SourceRefurbed.Key(),
	}
	if o.Status == "" {
		o.Status = "NEW"
	}
	for _, line := range raw.list("items", "orderItems") {
		it, ok := line.(map[string]any)
		if !ok {
			continue
		}
		f := fields(it)
		o.Items = append(o.Items, model.Item{
			SKU:       f.firstString("sku", "offer_data.sku", "id"),
			Name:      f.firstString("name", "title", "product_name", "instance_name"),
			Quantity:  f.quantity("quantity"),
			UnitPrice: f.firstDecimal("settlement_total_paid", "price", "unit_price", "offer.price"),
		})
	}
	return o
}

func normalizeCDiscount(raw fields) *model.Order {
	o := &model.Order{
		OrderID:       raw.firstString("orderId", "OrderId"),
		Status:        raw.firstString("status"),
		Date:          raw.firstString("createdAt"),
		Total:         raw.firstDecimal("totalPrice.sellingPrice", "totalPrice.amount"),
		PaymentMethod: model.SourceCDiscount.Key(),
	}
	var addr fields
	for _, line := range raw.list("lines") {
		it, ok := line.(map[string]any)
		if !ok {
			continue
		}
		f := fields(it)
		if addr == nil {
			if a := f.object("shippingAddress"); len(a) > 0 {
				addr = a
			}
		}
		o.Items = append(o.Items, model.Item{
			SKU:       f.firstString("offer.sellerProductId"),
			Name:      f.firstString("offer.productTitle"),
			Quantity:  f.quantity("quantity"),
			UnitPrice: f.firstDecimal("price.amount", "price.sellingPrice", "unitPrice", "offer.price"),
		})
	}
	if addr == nil {
		addr = raw.object("shippingAddress")
	}
	o.CustomerName = joinNonEmpty(addr.firstString("firstName"), addr.firstString("lastName"))
	o.CustomerEmail = firstNonEmpty(addr.firstString("email"), raw.firstString("customer.email", "email"))
	o.CustomerPhone = addr.firstString("phone", "mobilePhone")
	o.Address = addr.firstString("addressLine1", "street")
	o.City = addr.firstString("city")
	o.PostalCode = addr.firstString("postalCode", "zipCode")
	o.Country = addr.firstString("countryCode", "country")
	return o
}

func normalizeMagento(raw fields) *model.Order {
	addr := raw.object("billing_address")
	o := &model.Order{
		OrderID:       raw.firstString("increment_id", "entity_id"),
		ExternalID:    raw.firstString("entity_id"),
		Status:        raw.firstString("status", "state"),
		Date:          raw.firstString("created_at"),
		CustomerName:  joinNonEmpty(addr.firstString("firstname"), addr.firstString("lastname")),
		CustomerEmail: raw.firstString("customer_email", "billing_address.email"),
		CustomerPhone: addr.firstString("telephone"),
		City:          addr.firstString("city"),
		PostalCode:    addr.firstString("postcode"),
		Country:       addr.firstString("country_id"),
		Total:         raw.firstDecimal("grand_total", "base_grand_total"),
		PaymentMethod: raw.firstString("payment.method"),
	}
	if street := addr.list("street"); len(street) > 0 {
		o.Address = stringify(street[0])
	}
	for _, line := range raw.list("items") {
		it, ok := line.(map[string]any)
		if !ok {
			continue
		}
		f := fields(it)
		if f.firstString("parent_item_id") != "" {
			continue
		}
		switch f.firstString("product_type") {
		case "virtual", "bundle":
			continue
		}
		o.Items = append(o.Items, model.Item{
			SKU:       f.firstString("sku"),
			Name:      f.firstString("name"),
			Quantity:  f.quantity("qty_ordered"),
			UnitPrice: f.firstDecimal("price", "base_price"),
		})
	}
	return o
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
