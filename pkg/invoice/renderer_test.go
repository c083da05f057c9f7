package invoice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRenderer_Render(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	r := NewHTTPRenderer(Config{URL: srv.URL, APIKey: "key-1", Currency: "EGP"})
	discount := decimal.RequireFromString("300")
	req := &Request{
		From:      "Clinic",
		To:        "Patient",
		Items:     []Item{{Name: "Session", Quantity: 2, UnitCost: decimal.RequireFromString("384.62")}},
		Discounts: &discount,
	}
	doc, err := r.Render(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, req.Currency, "caller's request is left untouched")
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "%PDF-1.4", string(doc.Body))

	assert.Equal(t, "EGP", got["currency"])
	assert.Equal(t, "300", got["discounts"])
	assert.Equal(t, map[string]interface{}{"discounts": false}, got["fields"])
	items := got["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "384.62", items[0].(map[string]interface{})["unit_cost"])
}

func TestHTTPRenderer_DocumentTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte(strings.Repeat("x", 65)))
	}))
	defer srv.Close()

	r := NewHTTPRenderer(Config{URL: srv.URL})
	r.maxBytes = 64
	_, err := r.Render(context.Background(), &Request{Items: []Item{}})
	require.ErrorIs(t, err, ErrRenderFailed)
	assert.Contains(t, err.Error(), "exceeds 64 bytes")

	r.maxBytes = 65
	doc, err := r.Render(context.Background(), &Request{Items: []Item{}})
	require.NoError(t, err)
	assert.Len(t, doc.Body, 65)
}

func TestHTTPRenderer_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewHTTPRenderer(Config{URL: srv.URL})
	_, err := r.Render(context.Background(), &Request{Items: []Item{}})
	assert.ErrorIs(t, err, ErrRenderFailed)
}

func TestHTTPRenderer_OpensBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewHTTPRenderer(Config{URL: srv.URL})
	for i := 0; i < 5; i++ {
		_, err := r.Render(context.Background(), &Request{})
		assert.Error(t, err)
	}
	assert.Equal(t, 3, calls)
}
