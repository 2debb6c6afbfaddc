package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_GetLatestTrade(t *testing.T) {
	var gotPath, gotFeed, gotKey, gotSecret string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFeed = r.URL.Query().Get("feed")
		gotKey = r.Header.Get("APCA-API-KEY-ID")
		gotSecret = r.Header.Get("APCA-API-SECRET-KEY")

		json.NewEncoder(w).Encode(map[string]any{
			"symbol": "AAPL",
			"trade": map[string]any{
				"t": "2024-03-05T15:00:00Z",
				"p": 185.42,
				"s": 100,
				"c": []string{"@"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-id", "key-secret", WithFeed("iex"))

	trade, err := client.GetLatestTrade(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetLatestTrade failed: %v", err)
	}

	if gotPath != "/stocks/AAPL/trades/latest" {
		t.Errorf("path = %q, want /stocks/AAPL/trades/latest", gotPath)
	}
	if gotFeed != "iex" {
		t.Errorf("feed = %q, want iex", gotFeed)
	}
	if gotKey != "key-id" || gotSecret != "key-secret" {
		t.Errorf("auth headers = %q / %q, want key-id / key-secret", gotKey, gotSecret)
	}

	if trade.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", trade.Symbol)
	}
	if trade.Price != 185.42 {
		t.Errorf("Price = %v, want 185.42", trade.Price)
	}
	if trade.Size != 100 {
		t.Errorf("Size = %d, want 100", trade.Size)
	}
}

func TestClient_GetBars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("timeframe") != "1Min" {
			t.Errorf("timeframe = %q, want 1Min", q.Get("timeframe"))
		}
		if q.Get("adjustment") != "raw" {
			t.Errorf("adjustment = %q, want raw", q.Get("adjustment"))
		}
		if q.Get("limit") != "500" {
			t.Errorf("limit = %q, want 500", q.Get("limit"))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"symbol": "TSLA",
			"bars": []map[string]any{
				{"t": "2024-03-05T14:30:00Z", "o": 200.0, "h": 201.0, "l": 199.5, "c": 200.5, "v": 12345},
				{"t": "2024-03-05T14:31:00Z", "o": 200.5, "h": 202.0, "l": 200.0, "c": 201.8, "v": 6789},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "s")

	bars, err := client.GetBars(context.Background(), "TSLA", BarsParams{
		Start:     time.Now().Add(-time.Hour),
		End:       time.Now(),
		Timeframe: "1Min",
		Limit:     500,
	})
	if err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}

	if len(bars) != 2 {
		t.Fatalf("len(bars) = %d, want 2", len(bars))
	}
	if bars[0].Symbol != "TSLA" {
		t.Errorf("Symbol = %q, want TSLA", bars[0].Symbol)
	}
	if bars[1].Close != 201.8 {
		t.Errorf("Close = %v, want 201.8", bars[1].Close)
	}
	if bars[0].Volume != 12345 {
		t.Errorf("Volume = %d, want 12345", bars[0].Volume)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"symbol": "AAPL",
			"trade":  map[string]any{"t": "2024-03-05T15:00:00Z", "p": 185.0, "s": 1},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "s", WithRetries(3, time.Millisecond))

	trade, err := client.GetLatestTrade(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetLatestTrade failed after retries: %v", err)
	}
	if trade.Price != 185.0 {
		t.Errorf("Price = %v, want 185.0", trade.Price)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server called %d times, want 3", got)
	}
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "s", WithRetries(3, time.Millisecond))

	_, err := client.GetLatestTrade(context.Background(), "FAKE")
	if err == nil {
		t.Fatal("expected error for 404")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is %T, want *APIError in chain: %v", err, err)
	}
	if apiErr.IsRetryable() {
		t.Error("404 should not be retryable")
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1", got)
	}
}

func TestAPIError_IsRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
		{404, false},
	}

	for _, tt := range tests {
		e := &APIError{StatusCode: tt.status}
		if got := e.IsRetryable(); got != tt.want {
			t.Errorf("IsRetryable(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
