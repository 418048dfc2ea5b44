// Package invoicex is a client for the InvoiceX bridge API that owns
// customers, delivery notes (DDT) and stock movements.
package invoicex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("invoicex %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

type Customer struct {
	FirstName string `json:"nome"`
	LastName  string `json:"cognome"`
	Street    string `json:"indirizzo"`
	PostCode  string `json:"cap"`
	City      string `json:"comune"`
	Region    string `json:"provincia"`
	Phone     string `json:"telefono"`
	Email     string `json:"email"`
	TaxCode   string `json:"cfiscale"`
}

type DDTHeader struct {
	Reference     string `json:"riferimento"`
	PaymentMethod string `json:"metodo_pagamento"`
}

type Options struct {
	Timeout    time.Duration
	MaxRetries uint64
	// InitialInterval is the first retry delay; it doubles on every attempt.
	InitialInterval time.Duration
	HTTPClient      *http.Client
}

type Client struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries uint64
	interval   time.Duration
	log        *slog.Logger
}

func NewClient(baseURL, apiKey string, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := opts.HTTPClient
	if c == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c = &http.Client{Timeout: timeout}
	}
	interval := opts.InitialInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		client:     c,
		maxRetries: opts.MaxRetries,
		interval:   interval,
		log:        logger.With("component", "invoicex"),
	}
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// do sends the request, retrying on 429, 5xx and transport errors, and
// returns the trimmed body. POST requests are sent once.
// Several InvoiceX endpoints are GET requests that carry a JSON body.
func (c *Client) do(ctx context.Context, op, method, path string, payload any) (string, error) {
	var buf []byte
	if payload != nil {
		var err error
		if buf, err = json.Marshal(payload); err != nil {
			return "", fmt.Errorf("invoicex %s: encode: %w", op, err)
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.interval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)

	once := method == http.MethodPost
	transient := func(err error) error {
		if once {
			return backoff.Permanent(err)
		}
		return err
	}

	var body string
	attempt := func() error {
		var reader io.Reader
		if buf != nil {
			reader = bytes.NewReader(buf)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("invoicex %s: create request: %w", op, err))
		}
		req.Header.Set("Apikey", c.apiKey)
		if buf != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return transient(fmt.Errorf("invoicex %s: %w", op, err))
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return transient(fmt.Errorf("invoicex %s: read body: %w", op, err))
		}

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("invoicex %s: %w", op, ErrNotFound))
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
			if retryable(resp.StatusCode) {
				return transient(apiErr)
			}
			return backoff.Permanent(apiErr)
		}
		body = strings.TrimSpace(string(data))
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.log.Warn("retrying request", "op", op, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(attempt, policy, notify); err != nil {
		return "", err
	}
	return body, nil
}

// FindCustomerByEmail reports whether a customer with that email exists.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (bool, error) {
	body, err := c.do(ctx, "find customer", http.MethodGet, "/cercapermail/"+url.PathEscape(email), nil)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var found any
	if err := json.Unmarshal([]byte(body), &found); err != nil {
		return false, fmt.Errorf("invoicex find customer: decode: %w", err)
	}
	switch v := found.(type) {
	case nil:
		return false, nil
	case []any:
		return len(v) > 0, nil
	case map[string]any:
		return len(v) > 0, nil
	case bool:
		return v, nil
	default:
		return true, nil
	}
}

// GetCustomerCode returns ErrNotFound when no customer has that email.
func (c *Client) GetCustomerCode(ctx context.Context, email string) (string, error) {
	body, err := c.do(ctx, "get customer code", http.MethodGet, "/recuperacodicedaemail/"+url.PathEscape(email), nil)
	if err != nil {
		return "", err
	}
	code := strings.Trim(body, `"`)
	if code == "" || code == "0" {
		return "", fmt.Errorf("invoicex customer %s: %w", email, ErrNotFound)
	}
	return code, nil
}

func (c *Client) CreateCustomer(ctx context.Context, cust Customer) (string, error) {
	if cust.Email == "" {
		return "", errors.New("invoicex create customer: email required")
	}
	body, err := c.do(ctx, "create customer", http.MethodPost, "/inserisci-cliente-da-magento", cust)
	if err != nil {
		return "", err
	}
	code := strings.Trim(body, `"`)
	if code == "" || code == "0" || code == "null" {
		return "", fmt.Errorf("invoicex create customer: invalid code %q", body)
	}
	c.log.Info("customer created", "code", code, "email", cust.Email)
	return code, nil
}

// CreateDDT creates a sales delivery note header and returns its numeric id.
func (c *Client) CreateDDT(ctx context.Context, customerCode string, h DDTHeader) (string, error) {
	body, err := c.do(ctx, "create ddt", http.MethodGet, "/crea-ddt-vendita-codice/"+url.PathEscape(customerCode), h)
	if err != nil {
		return "", err
	}
	id := strings.Trim(body, `"`)
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", fmt.Errorf("invoicex create ddt: invalid id %q", body)
	}
	return id, nil
}

// PostDDTLine adds one stock movement to the delivery note. ErrNotFound means
// the serial is not in stock.
func (c *Client) PostDDTLine(ctx context.Context, ddtID, sku string, price decimal.Decimal, line int) error {
	payload := map[string]string{
		"idPadreDDT": ddtID,
		"matricola":  sku,
		"riga":       strconv.Itoa(line),
		"prezzo":     price.StringFixed(2),
	}
	body, err := c.do(ctx, "post ddt line", http.MethodGet, "/movimenta-ddt-vendita", payload)
	if err != nil {
		return err
	}
	if strings.Trim(body, `"`) == "0" {
		return fmt.Errorf("invoicex serial %s: %w", sku, ErrNotFound)
	}
	return nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.do(ctx, "health", http.MethodGet, "/cercapermail/"+url.PathEscape("test@healthcheck.com"), nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
