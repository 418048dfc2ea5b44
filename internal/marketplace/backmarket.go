package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	backMarketStateAccepted = 2
	backMarketStateShipped  = 3
	backMarketMaxPages      = 50
)

type BackMarket struct {
	baseURL string
	headers http.Header
	http    *httpClient
	log     *slog.Logger
}

func NewBackMarket(baseURL, token string, opts Options, logger *slog.Logger) *BackMarket {
	if logger == nil {
		logger = slog.Default()
	}
	h := http.Header{}
	h.Set("Authorization", "Basic "+token)
	return &BackMarket{
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: h,
		http:    newHTTPClient(opts),
		log:     logger.With("marketplace", "backmarket"),
	}
}

type backMarketPage struct {
	Results []any  `json:"results"`
	Next    string `json:"next"`
}

// ListOrders returns every order in the given status, following pagination.
func (c *BackMarket) ListOrders(ctx context.Context, status string) ([]RawOrder, error) {
	q := url.Values{}
	q.Set("limit", "100")
	if status != "" {
		q.Set("status", status)
	}
	next := c.baseURL + "/ws/orders?" + q.Encode()

	var orders []RawOrder
	for page := 0; next != "" && page < backMarketMaxPages; page++ {
		var p backMarketPage
		if err := c.http.do(ctx, "backmarket list orders", http.MethodGet, next, c.headers, nil, &p); err != nil {
			return nil, err
		}
		orders = append(orders, toRawOrders(p.Results)...)
		next = p.Next
	}
	return orders, nil
}

func (c *BackMarket) getOrder(ctx context.Context, orderID string) (RawOrder, error) {
	var order RawOrder
	u := fmt.Sprintf("%s/ws/orders/%s", c.baseURL, url.PathEscape(orderID))
	if err := c.http.do(ctx, "backmarket get order", http.MethodGet, u, c.headers, nil, &order); err != nil {
		return nil, err
	}
	return order, nil
}

func orderlineSKU(line map[string]any) string {
	if sku := asString(line["listing"]); sku != "" {
		return sku
	}
	return asString(line["serial_number"])
}

func (c *BackMarket) updateOrderline(ctx context.Context, orderID string, body map[string]any) error {
	u := fmt.Sprintf("%s/ws/orders/%s", c.baseURL, url.PathEscape(orderID))
	return c.http.do(ctx, "backmarket update orderline", http.MethodPost, u, c.headers, body, nil)
}

func numericID(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

// AcceptOrder moves every orderline to the accepted state. The order counts as
// accepted when at least one orderline was updated.
func (c *BackMarket) AcceptOrder(ctx context.Context, orderID string) error {
	order, err := c.getOrder(ctx, orderID)
	if err != nil {
		return err
	}
	lines := asSlice(order["orderlines"])
	if len(lines) == 0 {
		return fmt.Errorf("backmarket accept order %s: no orderlines", orderID)
	}

	accepted := 0
	var errs []error
	for _, l := range lines {
		sku := orderlineSKU(asMap(l))
		if sku == "" {
			c.log.Warn("orderline without sku", "order", orderID)
			continue
		}
		err := c.updateOrderline(ctx, orderID, map[string]any{
			"order_id":  numericID(orderID),
			"new_state": backMarketStateAccepted,
			"sku":       sku,
		})
		if err != nil {
			c.log.Error("orderline acceptance failed", "order", orderID, "sku", sku, "error", err)
			errs = append(errs, err)
			continue
		}
		accepted++
	}

	if accepted == 0 {
		if len(errs) > 0 {
			return errors.Join(errs...)
		}
		return fmt.Errorf("backmarket accept order %s: no acceptable orderlines", orderID)
	}
	c.log.Info("order accepted", "order", orderID, "lines", accepted, "total_lines", len(lines))
	return nil
}

// FindListingID scans the listing catalog for sku and returns its listing id.
func (c *BackMarket) FindListingID(ctx context.Context, sku string) (string, error) {
	for page := 1; page <= backMarketMaxPages; page++ {
		u := fmt.Sprintf("%s/ws/listings?page=%d", c.baseURL, page)
		var p backMarketPage
		if err := c.http.do(ctx, "backmarket list listings", http.MethodGet, u, c.headers, nil, &p); err != nil {
			return "", err
		}
		for _, r := range p.Results {
			l := asMap(r)
			if l == nil || !strings.EqualFold(asString(l["sku"]), sku) {
				continue
			}
			if id := asString(l["listing_id"]); id != "" {
				return id, nil
			}
			if id := asString(l["id"]); id != "" {
				return id, nil
			}
		}
		if p.Next == "" || len(p.Results) == 0 {
			break
		}
	}
	return "", fmt.Errorf("backmarket listing for sku %s: %w", sku, ErrNotFound)
}

// DisableListing removes the listing; when the DELETE is rejected it falls back
// to setting the listing quantity to zero.
func (c *BackMarket) DisableListing(ctx context.Context, listingID string) error {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return errors.New("backmarket disable listing: empty listing id")
	}
	u := fmt.Sprintf("%s/ws/listings/%s", c.baseURL, url.PathEscape(listingID))

	err := c.http.do(ctx, "backmarket delete listing", http.MethodDelete, u, c.headers, nil, nil)
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	c.log.Warn("listing delete failed, setting quantity to 0", "listing", listingID, "error", err)

	return c.http.do(ctx, "backmarket update listing", http.MethodPut, u, c.headers, map[string]any{"quantity": 0}, nil)
}

func (c *BackMarket) MarkShipped(ctx context.Context, orderID string, t Tracking) error {
	order, err := c.getOrder(ctx, orderID)
	if err != nil {
		return err
	}
	lines := asSlice(order["orderlines"])
	if len(lines) == 0 {
		return fmt.Errorf("backmarket mark shipped %s: no orderlines", orderID)
	}
	return c.updateOrderline(ctx, orderID, map[string]any{
		"order_id":        numericID(orderID),
		"new_state":       backMarketStateShipped,
		"sku":             orderlineSKU(asMap(lines[0])),
		"tracking_number": t.Number,
		"tracking_url":    t.URL,
	})
}
