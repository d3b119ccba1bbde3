package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func sampleRequest() Request {
	return Request{
		IssuerTaxID:    "11222333000181",
		Series:         "1",
		Number:         123,
		RecipientTaxID: "52998224725",
		RecipientName:  "Maria Silva",
		Description:    "Hospedagem casa-azul - 3 diária(s)",
		Quantity:       3,
		UnitValue:      decimal.RequireFromString("966.67"),
		TotalValue:     decimal.RequireFromString("3045.00"),
		ICMSRate:       decimal.RequireFromString("0.05"),
		ICMSValue:      decimal.RequireFromString("145.00"),
		IssueDate:      "2025-06-14",
	}
}

func TestAuthorize_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/nfe/authorize" {
			t.Fatalf("path = %s, want /api/nfe/authorize", r.URL.Path)
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Number != 123 || req.Quantity != 3 {
			t.Fatalf("unexpected request: %+v", req)
		}

		resp := Response{
			Success:         true,
			AuthorityNumber: "135250000001234",
			AccessKey:       "35250611222333000000550010000001231234567890",
			Timestamp:       time.Date(2025, time.June, 14, 12, 0, 0, 0, time.UTC),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.Authorize(ctx, sampleRequest())
	if err != nil {
		t.Fatalf("Authorize error: %v", err)
	}
	if res == nil || !res.Success || res.AuthorityNumber != "135250000001234" {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func TestAuthorize_Rejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"success":false,"error":"Rejeição: CNPJ do destinatário inválido"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	res, err := client.Authorize(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Authorize error: %v", err)
	}
	if res.Success || !res.Rejected {
		t.Fatalf("expected rejected response, got %+v", res)
	}
	if !strings.Contains(res.Error, "CNPJ") {
		t.Fatalf("error = %q, want rejection reason", res.Error)
	}
}

func TestAuthorize_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	res, err := client.Authorize(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Authorize error: %v", err)
	}
	if res.Success || res.Rejected {
		t.Fatalf("expected plain failure for 429, got %+v", res)
	}
	if !strings.Contains(res.Error, "5s") {
		t.Fatalf("error = %q, want retry hint", res.Error)
	}
}

func TestAuthorize_UnexpectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	if _, err := client.Authorize(context.Background(), sampleRequest()); err == nil {
		t.Fatalf("expected error for 502")
	}
}

func TestAuthorize_NotConfigured(t *testing.T) {
	var client *Client

	if _, err := client.Authorize(context.Background(), sampleRequest()); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
