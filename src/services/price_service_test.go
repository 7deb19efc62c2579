package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/username/rupeefolio/backend/src/logger"
	"github.com/username/rupeefolio/backend/src/models"
)

func init() {
	logger.InitLogger("error")
}

// newTestPriceService wires a service against local test endpoints with the
// session warm-up already done, so no request ever leaves the test process.
func newTestPriceService(navBaseURL string, relays []string) *priceServiceImpl {
	return &priceServiceImpl{
		httpClient:    http.Client{Timeout: 2 * time.Second},
		relays:        relays,
		retries:       2,
		retryDelay:    time.Millisecond,
		navBaseURL:    navBaseURL,
		isInitialized: true,
	}
}

func TestNormalizeQuote(t *testing.T) {
	record, err := normalizeQuote("RELIANCE.NS", rawQuote{Current: 2525.456, PreviousClose: 2480})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.CurrentPrice != 2525.46 {
		t.Errorf("expected price rounded to 2525.46, got %f", record.CurrentPrice)
	}
	if record.ChangePercent != 1.83 {
		t.Errorf("expected change percent 1.83, got %f", record.ChangePercent)
	}
	if record.LastUpdated.IsZero() {
		t.Error("expected LastUpdated to be set")
	}

	// Zero or negative values are provider failures, never a valid quote.
	for _, q := range []rawQuote{{0, 2480}, {2525, 0}, {-1, 2480}} {
		if _, err := normalizeQuote("X", q); err == nil {
			t.Errorf("expected error for quote %+v", q)
		}
	}
}

func TestFetchNAV(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/122639" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{
			"status": "SUCCESS",
			"meta": {"scheme_name": "Parag Parikh Flexi Cap Fund - Direct Plan - Growth"},
			"data": [
				{"date": "28-06-2025", "nav": "81.2345"},
				{"date": "27-06-2025", "nav": "80.5000"}
			]
		}`))
	}))
	defer server.Close()

	s := newTestPriceService(server.URL, nil)
	record, err := s.FetchPrice(context.Background(), "122639", models.AssetMutualFund)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.CurrentPrice != 81.23 {
		t.Errorf("expected latest NAV 81.23, got %f", record.CurrentPrice)
	}
	if record.PreviousClose != 80.50 {
		t.Errorf("expected previous NAV 80.50, got %f", record.PreviousClose)
	}
	if record.ChangePercent != 0.91 {
		t.Errorf("expected change percent 0.91, got %f", record.ChangePercent)
	}
}

// A single published NAV point still yields a record: previous falls back to
// current and the change is zero.
func TestFetchNAVSingleDataPoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"SUCCESS","meta":{},"data":[{"date":"28-06-2025","nav":"100.00"}]}`))
	}))
	defer server.Close()

	s := newTestPriceService(server.URL, nil)
	record, err := s.FetchPrice(context.Background(), "999999", models.AssetMutualFund)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.ChangePercent != 0 {
		t.Errorf("expected zero change with one data point, got %f", record.ChangePercent)
	}
}

func TestFetchNAVRetriesThenFails(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s := newTestPriceService(server.URL, nil)
	_, err := s.FetchPrice(context.Background(), "122639", models.AssetMutualFund)
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("expected ErrAllSourcesFailed, got %v", err)
	}
	if calls != s.retries {
		t.Errorf("expected %d attempts, got %d", s.retries, calls)
	}
}

func TestFetchNAVRejectsUnknownScheme(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"FAIL","data":[]}`))
	}))
	defer server.Close()

	s := newTestPriceService(server.URL, nil)
	_, err := s.FetchPrice(context.Background(), "000000", models.AssetMutualFund)
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("expected ErrAllSourcesFailed for FAIL status, got %v", err)
	}
}

func TestGetWithRelaysFallsBack(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("url") == "" {
			http.Error(w, "missing target", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer relay.Close()

	s := newTestPriceService("", []string{relay.URL + "/raw?url="})
	// The direct target is unroutable, so only the relay can answer.
	body, err := s.getWithRelays(context.Background(), "http://127.0.0.1:1/quote")
	if err != nil {
		t.Fatalf("expected relay fallback to succeed, got %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected relay body: %s", body)
	}
}

func TestGetWithRelaysExhausted(t *testing.T) {
	calls := 0
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer relay.Close()

	s := newTestPriceService("", []string{relay.URL + "/raw?url="})
	_, err := s.getWithRelays(context.Background(), "http://127.0.0.1:1/quote")
	if err == nil {
		t.Fatal("expected error after relay exhaustion")
	}
	if calls != s.retries {
		t.Errorf("expected %d relay attempts, got %d", s.retries, calls)
	}
}

func TestSleepCtxCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	start := time.Now()
	if err := sleepCtx(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleepCtx overslept")
	}
}
