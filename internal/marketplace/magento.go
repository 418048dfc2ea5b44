package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	magentoStatusDisabled = 2
	magentoDefaultStock   = 1
)

var magentoCarriers = map[string]string{
	"BRT":   "custom",
	"UPS":   "ups",
	"DHL":   "dhl",
	"FEDEX": "fedex",
	"TNT":   "tnt",
	"GLS":   "custom",
}

// MagentoCarrierCode maps a carrier name to the Magento carrier_code.
func MagentoCarrierCode(carrier string) string {
	if code, ok := magentoCarriers[strings.ToUpper(strings.TrimSpace(carrier))]; ok {
		return code
	}
	return "custom"
}

type Magento struct {
	baseURL    string
	storeViews []string
	headers    http.Header
	http       *httpClient
	log        *slog.Logger
}

func NewMagento(baseURL, token string, storeViews []string, opts Options, logger *slog.Logger) *Magento {
	if logger == nil {
		logger = slog.Default()
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return &Magento{
		baseURL:    strings.TrimRight(baseURL, "/"),
		storeViews: storeViews,
		headers:    h,
		http:       newHTTPClient(opts),
		log:        logger.With("marketplace", "magento"),
	}
}

// ListOrders returns the orders in "processing" status.
func (c *Magento) ListOrders(ctx context.Context) ([]RawOrder, error) {
	q := url.Values{}
	q.Set("searchCriteria[filter_groups][0][filters][0][field]", "status")
	q.Set("searchCriteria[filter_groups][0][filters][0][value]", "processing")
	q.Set("searchCriteria[filter_groups][0][filters][0][condition_type]", "eq")

	var resp struct {
		Items []any `json:"items"`
	}
	if err := c.http.do(ctx, "magento list orders", http.MethodGet, c.baseURL+"/rest/V1/orders?"+q.Encode(), c.headers, nil, &resp); err != nil {
		return nil, err
	}
	return toRawOrders(resp.Items), nil
}

// AcceptOrder is a no-op: Magento orders are accepted at checkout.
func (c *Magento) AcceptOrder(ctx context.Context, orderID string) error {
	return nil
}

// DisableProduct sets the product status to disabled on the default scope and
// every configured store view, and its quantity to zero. Both effects are
// attempted even when the other fails.
func (c *Magento) DisableProduct(ctx context.Context, sku string) error {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return errors.New("magento disable product: empty sku")
	}
	escaped := url.PathEscape(sku)
	payload := map[string]any{"product": map[string]any{"sku": sku, "status": magentoStatusDisabled}}

	var statusErr error
	for _, scope := range c.scopes() {
		u := fmt.Sprintf("%s/rest/%s/V1/products/%s", c.baseURL, scope, escaped)
		err := c.http.do(ctx, "magento disable product", http.MethodPut, u, c.headers, payload, nil)
		if err != nil {
			c.log.Warn("product status update failed", "sku", sku, "scope", scope, "error", err)
			if scope == "default" {
				statusErr = err
			}
		}
	}

	u := fmt.Sprintf("%s/rest/V1/products/%s/stockItems/%d", c.baseURL, escaped, magentoDefaultStock)
	stock := map[string]any{"stockItem": map[string]any{"qty": 0, "is_in_stock": false}}
	stockErr := c.http.do(ctx, "magento update stock", http.MethodPut, u, c.headers, stock, nil)
	if stockErr != nil {
		c.log.Warn("stock update failed", "sku", sku, "error", stockErr)
	}

	return errors.Join(statusErr, stockErr)
}

// scopes lists the default scope first, then each store view once.
func (c *Magento) scopes() []string {
	out := []string{"default"}
	seen := map[string]bool{"default": true}
	for _, v := range c.storeViews {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// MarkShipped creates a shipment with tracking for every shippable item of the
// order identified by its entity id.
func (c *Magento) MarkShipped(ctx context.Context, entityID string, t Tracking) error {
	var order RawOrder
	u := fmt.Sprintf("%s/rest/V1/orders/%s", c.baseURL, url.PathEscape(entityID))
	if err := c.http.do(ctx, "magento get order", http.MethodGet, u, c.headers, nil, &order); err != nil {
		return err
	}

	var items []map[string]any
	for _, raw := range asSlice(order["items"]) {
		it := asMap(raw)
		if it == nil || asString(it["parent_item_id"]) != "" {
			continue
		}
		switch asString(it["product_type"]) {
		case "virtual", "downloadable":
			continue
		}
		items = append(items, map[string]any{"order_item_id": it["item_id"], "qty": it["qty_ordered"]})
	}
	if len(items) == 0 {
		return fmt.Errorf("magento mark shipped %s: no shippable items", entityID)
	}

	body := map[string]any{
		"items": items,
		"tracks": []map[string]any{{
			"track_number": t.Number,
			"carrier_code": MagentoCarrierCode(t.Carrier),
			"title":        strings.ToUpper(t.Carrier),
		}},
		"notify": true,
	}
	u = fmt.Sprintf("%s/rest/V1/order/%s/ship", c.baseURL, url.PathEscape(entityID))
	if err := c.http.do(ctx, "magento create shipment", http.MethodPost, u, c.headers, body, nil); err != nil {
		return err
	}
	c.log.Info("shipment created", "order", entityID, "tracking", t.Number)
	return nil
}
