// Package invoice talks to the external invoice renderer. The renderer is
// opaque: it receives line items and totals and returns a finished document.
package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-finance/pkg/circuitbreaker"
)

var ErrRenderFailed = errors.New("invoice rendering failed")

// maxDocumentBytes caps how much of a rendered document is read.
const maxDocumentBytes = 20 << 20

type Item struct {
	Name        string          `json:"name"`
	Quantity    int64           `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Description string          `json:"description,omitempty"`
}

type Request struct {
	Number     string           `json:"number,omitempty"`
	From       string           `json:"from"`
	To         string           `json:"to"`
	Currency   string           `json:"currency,omitempty"`
	Items      []Item           `json:"items"`
	Discounts  *decimal.Decimal `json:"discounts,omitempty"`
	AmountPaid *decimal.Decimal `json:"amount_paid,omitempty"`
	Notes      string           `json:"notes,omitempty"`
}

type Document struct {
	ContentType string
	Body        []byte
}

type Renderer interface {
	Render(ctx context.Context, req *Request) (*Document, error)
}

type Config struct {
	URL      string
	APIKey   string
	Currency string
	Timeout  time.Duration
}

// HTTPRenderer posts requests to an invoice-generator style HTTP API.
type HTTPRenderer struct {
	cfg      Config
	client   *http.Client
	cb       *circuitbreaker.CircuitBreaker
	maxBytes int64
}

func NewHTTPRenderer(cfg Config) *HTTPRenderer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPRenderer{
		cfg:      cfg,
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxDocumentBytes,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:             "invoice-renderer",
			MaxFailures:      3,
			HalfOpenRequests: 1,
			Timeout:          30 * time.Second,
		}),
	}
}

// wireRequest adds the renderer's display switches. The discount is shown as
// a figure only: line items are already rescaled to the authorized amount.
type wireRequest struct {
	*Request
	Fields map[string]interface{} `json:"fields,omitempty"`
}

func (r *HTTPRenderer) Render(ctx context.Context, req *Request) (*Document, error) {
	wire := *req
	if wire.Currency == "" {
		wire.Currency = r.cfg.Currency
	}
	body, err := json.Marshal(wireRequest{
		Request: &wire,
		Fields:  map[string]interface{}{"discounts": false},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode invoice request: %w", err)
	}

	var doc *Document
	err = r.cb.Execute(func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if r.cfg.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
		}

		resp, err := r.client.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("renderer returned %d: %s", resp.StatusCode, truncate(payload, 200))
		}
		if int64(len(payload)) > r.maxBytes {
			return fmt.Errorf("document exceeds %d bytes", r.maxBytes)
		}

		doc = &Document{ContentType: resp.Header.Get("Content-Type"), Body: payload}
		if doc.ContentType == "" {
			doc.ContentType = "application/pdf"
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return doc, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
