package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/bookfeed/internal/model"
)

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("okx", "https://api.example.com")

		if c.baseURL != "https://api.example.com" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://api.example.com")
		}
		if c.httpClient.Timeout != 10*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 10*time.Second)
		}
		if c.maxRetries != 2 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 2)
		}
		if c.BreakerState() != "closed" {
			t.Errorf("BreakerState() = %q, want closed", c.BreakerState())
		}
	})

	t.Run("with multiple options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("bybit", "https://api.example.com",
			WithTimeout(15*time.Second),
			WithRetries(10, 500*time.Millisecond),
			WithBreaker(3, time.Minute),
			WithLogger(logger),
		)
		if c.httpClient.Timeout != 15*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 15*time.Second)
		}
		if c.maxRetries != 10 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 10)
		}
		if c.retryBackoff != 500*time.Millisecond {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 500*time.Millisecond)
		}
		if c.breakerFailures != 3 {
			t.Errorf("breakerFailures = %d, want 3", c.breakerFailures)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
	})

	t.Run("with custom HTTP client", func(t *testing.T) {
		customClient := &http.Client{Timeout: 3 * time.Second}
		c := NewClient("deribit", "https://api.example.com", WithHTTPClient(customClient))
		if c.httpClient != customClient {
			t.Error("custom HTTP client not set")
		}
	})
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	t.Run("Error method", func(t *testing.T) {
		err := &APIError{Venue: "okx", Path: "/api/v5/public/time", StatusCode: 404}
		expected := "okx /api/v5/public/time: status 404 Not Found"
		if err.Error() != expected {
			t.Errorf("Error() = %q, want %q", err.Error(), expected)
		}
	})

	t.Run("IsRetryable", func(t *testing.T) {
		tests := []struct {
			code     int
			expected bool
		}{
			{500, true},
			{503, true},
			{429, true},
			{400, false},
			{404, false},
			{499, false},
		}

		for _, tt := range tests {
			err := &APIError{StatusCode: tt.code}
			if got := err.IsRetryable(); got != tt.expected {
				t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
			}
		}
	})
}

// TestFetchRetrying tests retry behavior against a test server.
func TestFetchRetrying(t *testing.T) {
	t.Run("retries 5xx then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient("okx", server.URL, WithRetries(3, time.Millisecond))
		if _, err := c.fetchRetrying(context.Background(), "/x"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := calls.Load(); got != 3 {
			t.Errorf("calls = %d, want 3", got)
		}
	})

	t.Run("does not retry 4xx", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		c := NewClient("okx", server.URL, WithRetries(3, time.Millisecond))
		_, err := c.fetchRetrying(context.Background(), "/x")

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
			t.Fatalf("err = %v, want 404 APIError", err)
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("calls = %d, want 1", got)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient("okx", server.URL, WithRetries(2, time.Millisecond))
		_, err := c.fetchRetrying(context.Background(), "/x")
		if err == nil {
			t.Fatal("expected error")
		}
		if got := calls.Load(); got != 3 {
			t.Errorf("calls = %d, want 3", got)
		}
		if want := "okx /x: no answer after 3 attempts"; !strings.HasPrefix(err.Error(), want) {
			t.Errorf("err = %q, want prefix %q", err.Error(), want)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError || apiErr.Venue != "okx" {
			t.Errorf("err = %v, want wrapped okx 500 APIError", err)
		}
	})

	t.Run("context cancelled during backoff", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		c := NewClient("okx", server.URL, WithRetries(5, time.Second))
		_, err := c.fetchRetrying(ctx, "/x")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want context.DeadlineExceeded", err)
		}
	})
}

// TestCircuitBreaker tests that repeated failures open the circuit.
func TestCircuitBreaker(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient("okx", server.URL, WithRetries(0, time.Millisecond), WithBreaker(2, time.Minute))

	for i := 0; i < 2; i++ {
		if _, err := c.ServerTime(context.Background(), model.OKX); err == nil {
			t.Fatal("expected error")
		}
	}
	if c.BreakerState() != "open" {
		t.Fatalf("BreakerState() = %q, want open", c.BreakerState())
	}

	_, err := c.ServerTime(context.Background(), model.OKX)
	if !IsCircuitOpen(err) {
		t.Errorf("err = %v, want open circuit", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2 (no request while open)", got)
	}
}

// TestServerTime tests each venue's time endpoint.
func TestServerTime(t *testing.T) {
	tests := []struct {
		name  string
		venue model.VenueID
		path  string
		body  string
		want  time.Time
	}{
		{
			name:  "okx",
			venue: model.OKX,
			path:  OKXTimePath,
			body:  `{"code":"0","msg":"","data":[{"ts":"1700000000123"}]}`,
			want:  time.UnixMilli(1700000000123),
		},
		{
			name:  "bybit nanos",
			venue: model.Bybit,
			path:  BybitTimePath,
			body:  `{"retCode":0,"retMsg":"OK","result":{"timeSecond":"1700000000","timeNano":"1700000000123456789"},"time":1700000000123}`,
			want:  time.Unix(0, 1700000000123456789),
		},
		{
			name:  "bybit seconds",
			venue: model.Bybit,
			path:  BybitTimePath,
			body:  `{"retCode":0,"retMsg":"OK","result":{"timeSecond":"1700000000"}}`,
			want:  time.Unix(1700000000, 0),
		},
		{
			name:  "deribit",
			venue: model.Deribit,
			path:  DeribitTimePath,
			body:  `{"jsonrpc":"2.0","result":1700000000456,"usIn":1,"usOut":2}`,
			want:  time.UnixMilli(1700000000456),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.path {
					t.Errorf("path = %q, want %q", r.URL.Path, tt.path)
				}
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(string(tt.venue), server.URL)
			got, err := c.ServerTime(context.Background(), tt.venue)
			if err != nil {
				t.Fatalf("ServerTime failed: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ServerTime = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServerTime_Errors(t *testing.T) {
	t.Run("okx error code", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code":"50001","msg":"service unavailable","data":[]}`))
		}))
		defer server.Close()

		c := NewClient("okx", server.URL)
		if _, err := c.ServerTime(context.Background(), model.OKX); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("deribit rpc error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":10028,"message":"too_many_requests"}}`))
		}))
		defer server.Close()

		c := NewClient("deribit", server.URL)
		if _, err := c.ServerTime(context.Background(), model.Deribit); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("unsupported venue", func(t *testing.T) {
		c := NewClient("kraken", "http://127.0.0.1:1")
		_, err := c.ServerTime(context.Background(), "kraken")
		if !errors.Is(err, ErrUnsupportedVenue) {
			t.Errorf("err = %v, want ErrUnsupportedVenue", err)
		}
	})
}
