package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDo_AttachesContentTypeAndBearer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content-type = %q, want application/json", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret-token" {
			t.Fatalf("authorization = %q, want Bearer secret-token", auth)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, StaticToken("secret-token"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.Get(ctx, "/api/auth/me", nil, true); err != nil {
		t.Fatalf("Get error: %v", err)
	}
}

func TestDo_MissingTokenProceedsUnauthenticated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Fatalf("authorization = %q, want empty", auth)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, StaticToken(""))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.Get(ctx, "/api/cart", nil, true); err != nil {
		t.Fatalf("Get error: %v", err)
	}
}

func TestDo_NoContentResolvesEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var out map[string]any
	if err := client.Post(ctx, "/api/auth/logout", map[string]any{}, &out, false); err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if out != nil {
		t.Fatalf("out = %v, want nil", out)
	}
}

func TestDo_StatusErrorCarriesDetail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "invalid credentials"})
	}))
	defer ts.Close()

	client := NewClient(ts.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := client.Post(ctx, "/api/auth/login", map[string]string{}, nil, false)
	if err == nil {
		t.Fatalf("expected error for 400 response")
	}

	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", apiErr.StatusCode, http.StatusBadRequest)
	}
	if apiErr.Detail != "invalid credentials" {
		t.Fatalf("detail = %q, want invalid credentials", apiErr.Detail)
	}
	if IsTransportError(err) {
		t.Fatalf("400 response must not be a transport error")
	}
}

func TestDo_ErrorFieldFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "checkout failed"})
	}))
	defer ts.Close()

	client := NewClient(ts.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := client.Post(ctx, "/api/checkout/process", map[string]string{}, nil, false)

	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if apiErr.Detail != "checkout failed" {
		t.Fatalf("detail = %q, want checkout failed", apiErr.Detail)
	}
}

func TestDo_TransportErrorHasZeroStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // сервер недоступен

	client := NewClient(ts.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := client.Get(ctx, "/api/products", nil, false)
	if err == nil {
		t.Fatalf("expected error for unreachable server")
	}

	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if apiErr.StatusCode != 0 {
		t.Fatalf("status = %d, want 0", apiErr.StatusCode)
	}
	if !IsTransportError(err) {
		t.Fatalf("unreachable server must be a transport error")
	}
}

func TestDo_DecodesSuccessBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 7, "username": "bob"})
	}))
	defer ts.Close()

	client := NewClient(ts.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var out struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	if err := client.Get(ctx, "/api/auth/me", &out, false); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if out.ID != 7 || out.Username != "bob" {
		t.Fatalf("unexpected response: %+v", out)
	}
}
