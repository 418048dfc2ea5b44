package marketplace

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

const refurbedMaxPages = 10

type Refurbed struct {
	baseURL string
	headers http.Header
	http    *httpClient
	log     *slog.Logger
}

func NewRefurbed(baseURL, token string, opts Options, logger *slog.Logger) *Refurbed {
	if logger == nil {
		logger = slog.Default()
	}
	h := http.Header{}
	h.Set("Authorization", "Plain "+token)
	return &Refurbed{
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: h,
		http:    newHTTPClient(opts),
		log:     logger.With("marketplace", "refurbed"),
	}
}

func (c *Refurbed) call(ctx context.Context, method string, body, out any) error {
	u := c.baseURL + "/refb.merchant.v1." + method
	return c.http.do(ctx, "refurbed "+method, http.MethodPost, u, c.headers, body, out)
}

type refurbedOrderPage struct {
	Orders  []any `json:"orders"`
	HasMore bool  `json:"has_more"`
}

// ListOrders returns the most recent orders, newest first. An empty state
// lists every state.
func (c *Refurbed) ListOrders(ctx context.Context, state string) ([]RawOrder, error) {
	var orders []RawOrder
	cursor := ""
	for page := 0; page < refurbedMaxPages; page++ {
		pagination := map[string]any{"limit": 100}
		if cursor != "" {
			pagination["starting_after"] = cursor
		}
		body := map[string]any{
			"pagination": pagination,
			"sort":       map[string]any{"field": "CREATED_AT", "order": "DESC"},
		}
		if state != "" {
			body["state_filters"] = []string{state}
		}

		var p refurbedOrderPage
		if err := c.call(ctx, "OrderService/ListOrders", body, &p); err != nil {
			return nil, err
		}
		batch := toRawOrders(p.Orders)
		orders = append(orders, batch...)
		if !p.HasMore || len(batch) == 0 {
			break
		}
		cursor = asString(batch[len(batch)-1]["id"])
	}
	return orders, nil
}

func (c *Refurbed) orderItems(ctx context.Context, orderID string) ([]map[string]any, error) {
	var resp struct {
		OrderItems []any `json:"order_items"`
	}
	if err := c.call(ctx, "OrderItemService/ListOrderItemsByOrder", map[string]any{"order_id": orderID}, &resp); err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(resp.OrderItems))
	for _, it := range resp.OrderItems {
		if m := asMap(it); m != nil {
			items = append(items, m)
		}
	}
	return items, nil
}

// AcceptOrder moves every NEW or PENDING item of the order to ACCEPTED.
func (c *Refurbed) AcceptOrder(ctx context.Context, orderID string) error {
	items, err := c.orderItems(ctx, orderID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("refurbed accept order %s: no order items", orderID)
	}

	var updates []map[string]any
	for _, it := range items {
		id := asString(it["id"])
		state := asString(it["state"])
		if state == "" {
			state = "NEW"
		}
		if id != "" && (state == "NEW" || state == "PENDING") {
			updates = append(updates, map[string]any{"order_item_id": id, "state": "ACCEPTED"})
		}
	}
	if len(updates) == 0 {
		c.log.Warn("no items to accept", "order", orderID)
		return nil
	}

	if err := c.call(ctx, "OrderItemService/BatchUpdateOrderItemsState", map[string]any{"updates": updates}, nil); err != nil {
		return err
	}
	c.log.Info("order accepted", "order", orderID, "items", len(updates))
	return nil
}

// DisableOffer sets the stock of the offer identified by sku to zero.
func (c *Refurbed) DisableOffer(ctx context.Context, sku string) error {
	body := map[string]any{
		"identifier": map[string]any{"sku": sku},
		"stock":      0,
	}
	return c.call(ctx, "OfferService/UpdateOffer", body, nil)
}

func (c *Refurbed) MarkShipped(ctx context.Context, orderID string, t Tracking) error {
	items, err := c.orderItems(ctx, orderID)
	if err != nil {
		return err
	}
	var updates []map[string]any
	for _, it := range items {
		id := asString(it["id"])
		if id == "" || asString(it["state"]) == "SHIPPED" {
			continue
		}
		updates = append(updates, map[string]any{
			"order_item_id":          id,
			"state":                  "SHIPPED",
			"parcel_tracking_number": t.Number,
			"parcel_tracking_url":    t.URL,
		})
	}
	if len(updates) == 0 {
		return fmt.Errorf("refurbed mark shipped %s: no items to ship", orderID)
	}
	return c.call(ctx, "OrderItemService/BatchUpdateOrderItemsState", map[string]any{"updates": updates}, nil)
}
