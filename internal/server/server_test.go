package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/breakoutcharts/markethub/internal/config"
	"github.com/breakoutcharts/markethub/internal/hub"
)

func testConfig(restURL string) *config.Config {
	return &config.Config{
		Server: config.Server{Host: "127.0.0.1", Port: 3001},
		CORS:   config.CORS{AllowedOrigins: []string{"http://localhost:3000"}},
		Alpaca: config.Alpaca{
			RestURL:    restURL,
			StreamURL:  "ws://127.0.0.1:1",
			Key:        "k",
			Secret:     "s",
			Feed:       "sip",
			Timeout:    time.Second,
			MaxRetries: 1,
		},
		Stream: config.Stream{
			Profile:              "full",
			MaxReconnectAttempts: 1,
			ReconnectDelay:       time.Millisecond,
			BufferSize:           16,
		},
		Poller: config.Poller{
			Interval:    time.Hour,
			Staleness:   10 * time.Second,
			Timeout:     time.Second,
			Concurrency: 2,
		},
		Fanout: config.Fanout{SendBuffer: 16},
	}
}

// newTestServer builds a server over an unstarted hub so handlers hit
// only the REST client and cache.
func newTestServer(t *testing.T, upstream http.HandlerFunc) *Server {
	t.Helper()

	rest := httptest.NewServer(upstream)
	t.Cleanup(rest.Close)

	cfg := testConfig(rest.URL)
	h := hub.New(cfg, nil)
	return New(cfg, h, nil)
}

func doRequest(s *Server, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func TestServer_GetDaily(t *testing.T) {
	var gotTimeframe, gotSymbol string

	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotTimeframe = r.URL.Query().Get("timeframe")
		gotSymbol = r.URL.Path

		json.NewEncoder(w).Encode(map[string]any{
			"symbol": "AAPL",
			"bars": []map[string]any{
				{"t": "2024-03-04T05:00:00Z", "o": 180.0, "h": 186.0, "l": 179.5, "c": 185.0, "v": 50000000},
				{"t": "2024-03-05T05:00:00Z", "o": 185.0, "h": 187.0, "l": 184.0, "c": 186.5, "v": 48000000},
			},
		})
	})

	w := doRequest(s, http.MethodGet, "/api/stocks/aapl/daily", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotTimeframe != "1Day" {
		t.Errorf("timeframe = %q, want 1Day", gotTimeframe)
	}
	if gotSymbol != "/stocks/AAPL/bars" {
		t.Errorf("upstream path = %q, want uppercased symbol", gotSymbol)
	}

	var bars []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &bars); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("len(bars) = %d, want 2", len(bars))
	}
	for _, key := range []string{"x", "o", "h", "l", "c", "volume"} {
		if _, ok := bars[0][key]; !ok {
			t.Errorf("bar missing %q field: %v", key, bars[0])
		}
	}
}

func TestServer_GetIntradayFiltersExtendedHours(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"symbol": "AAPL",
			"bars": []map[string]any{
				// 09:00 New York, pre-market.
				{"t": "2024-03-05T14:00:00Z", "c": 184.0, "v": 100},
				// 10:00 New York, regular session.
				{"t": "2024-03-05T15:00:00Z", "c": 185.0, "v": 200},
				// 18:00 New York, after hours.
				{"t": "2024-03-05T23:00:00Z", "c": 186.0, "v": 300},
			},
		})
	})

	w := doRequest(s, http.MethodGet, "/api/stocks/AAPL/intraday", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var bars []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &bars); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("len(bars) = %d, want only the regular-session bar", len(bars))
	}
	if bars[0]["c"] != 185.0 {
		t.Errorf("surviving bar close = %v, want 185.0", bars[0]["c"])
	}
}

func TestServer_GetLatest(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"symbol": "TSLA",
			"trade":  map[string]any{"t": "2024-03-05T15:00:00Z", "p": 201.5, "s": 10},
		})
	})

	w := doRequest(s, http.MethodGet, "/api/stocks/tsla/latest", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body["symbol"] != "TSLA" {
		t.Errorf("symbol = %v, want TSLA", body["symbol"])
	}
	if body["price"] != 201.5 {
		t.Errorf("price = %v, want 201.5", body["price"])
	}
}

func TestServer_UpstreamFailureReturns500(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	w := doRequest(s, http.MethodGet, "/api/stocks/AAPL/daily", nil)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body["error"] == nil {
		t.Error("expected an error field in the response body")
	}
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	w := doRequest(s, http.MethodGet, "/api/health", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Status string `json:"status"`
		Hub    struct {
			StreamState string `json:"stream_state"`
			Clients     int    `json:"clients"`
		} `json:"hub"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	// The hub was never started, so the upstream session is down.
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded", body.Status)
	}
	if body.Hub.StreamState != "disconnected" {
		t.Errorf("stream_state = %q, want disconnected", body.Hub.StreamState)
	}
	if body.Hub.Clients != 0 {
		t.Errorf("clients = %d, want 0", body.Hub.Clients)
	}
}

func TestServer_CORS(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	allowed := doRequest(s, http.MethodGet, "/api/health", map[string]string{
		"Origin": "http://localhost:3000",
	})
	if got := allowed.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allowed origin header = %q, want echoed origin", got)
	}

	denied := doRequest(s, http.MethodGet, "/api/health", map[string]string{
		"Origin": "http://evil.example",
	})
	if got := denied.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("denied origin header = %q, want empty", got)
	}

	preflight := doRequest(s, http.MethodOptions, "/api/health", map[string]string{
		"Origin": "http://localhost:3000",
	})
	if preflight.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", preflight.Code)
	}
}
