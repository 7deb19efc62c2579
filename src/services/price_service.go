// backend/src/services/price_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/username/rupeefolio/backend/src/config"
	"github.com/username/rupeefolio/backend/src/logger"
	"github.com/username/rupeefolio/backend/src/models"
	"github.com/username/rupeefolio/backend/src/utils"
	"golang.org/x/net/publicsuffix"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// --- API Response Structs ---

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

type yahooQuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				RegularMarketPrice struct {
					Raw float64 `json:"raw"`
				} `json:"regularMarketPrice"`
				RegularMarketPreviousClose struct {
					Raw float64 `json:"raw"`
				} `json:"regularMarketPreviousClose"`
			} `json:"price"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteSummary"`
}

type nseQuoteResponse struct {
	PriceInfo struct {
		LastPrice     float64 `json:"lastPrice"`
		PreviousClose float64 `json:"previousClose"`
	} `json:"priceInfo"`
}

type navResponse struct {
	Status string `json:"status"`
	Meta   struct {
		SchemeName string `json:"scheme_name"`
	} `json:"meta"`
	Data []struct {
		Date string `json:"date"`
		NAV  string `json:"nav"`
	} `json:"data"`
}

// rawQuote is the provider-agnostic pair every strategy must produce.
type rawQuote struct {
	Current       float64
	PreviousClose float64
}

// quoteStrategy is one provider attempt with a uniform signature. Strategies
// are iterated in order; the first success wins.
type quoteStrategy struct {
	name  string
	fetch func(ctx context.Context, symbol string) (rawQuote, error)
}

// --- Service Implementation ---

type priceServiceImpl struct {
	httpClient    http.Client
	relays        []string
	retries       int
	retryDelay    time.Duration
	navBaseURL    string
	isInitialized bool
	mu            sync.Mutex
}

func NewPriceService() PriceService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	client := http.Client{
		Jar:     jar,
		Timeout: config.Cfg.ProviderTimeout,
	}

	s := &priceServiceImpl{
		httpClient: client,
		relays:     config.Cfg.RelayEndpoints,
		retries:    config.Cfg.ProviderRetries,
		retryDelay: config.Cfg.ProviderRetryDelay,
		navBaseURL: config.Cfg.NAVProviderBaseURL,
	}

	go s.initializeSession()

	return s
}

// initializeSession warms the cookie jar. The NSE quote API rejects requests
// without a session cookie from the homepage, and Yahoo throttles cookieless
// clients harder.
func (s *priceServiceImpl) initializeSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isInitialized {
		return
	}
	logger.L.Info("Initializing quote provider sessions...")

	for _, seed := range []string{"https://www.nseindia.com", "https://finance.yahoo.com"} {
		req, _ := http.NewRequest("GET", seed, nil)
		req.Header.Set("User-Agent", userAgent)
		resp, err := s.httpClient.Do(req)
		if err != nil {
			logger.L.Warn("Session warm-up request failed", "url", seed, "error", err)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	s.isInitialized = true
}

func (s *priceServiceImpl) ensureSession() {
	s.mu.Lock()
	needsInit := !s.isInitialized
	s.mu.Unlock()

	if needsInit {
		s.initializeSession()
	}
}

// FetchPrice queries the provider chain for one instrument and normalizes the
// response. The caller owns cache persistence; on ErrAllSourcesFailed any
// previously cached price must be left untouched.
func (s *priceServiceImpl) FetchPrice(ctx context.Context, symbol string, assetType models.AssetType) (models.PriceRecord, error) {
	s.ensureSession()

	if assetType == models.AssetMutualFund {
		q, err := s.fetchNAV(ctx, symbol)
		if err != nil {
			return models.PriceRecord{}, fmt.Errorf("%w: %v", ErrAllSourcesFailed, err)
		}
		return normalizeQuote(symbol, q)
	}

	strategies := []quoteStrategy{
		{name: "yahoo-chart", fetch: s.fetchYahooChart},
		{name: "yahoo-quote-summary", fetch: s.fetchYahooQuoteSummary},
		{name: "nse-direct", fetch: s.fetchNSEQuote},
	}

	var lastErr error
	for _, strategy := range strategies {
		q, err := strategy.fetch(ctx, symbol)
		if err != nil {
			logger.L.Debug("Quote strategy failed", "strategy", strategy.name, "symbol", symbol, "error", err)
			lastErr = err
			continue
		}
		record, err := normalizeQuote(symbol, q)
		if err != nil {
			lastErr = err
			continue
		}
		return record, nil
	}
	return models.PriceRecord{}, fmt.Errorf("%w for %s: %v", ErrAllSourcesFailed, symbol, lastErr)
}

// normalizeQuote validates a provider response and computes the change
// percentage. A response missing either price is a provider failure, not a
// success with zeros.
func normalizeQuote(symbol string, q rawQuote) (models.PriceRecord, error) {
	if q.Current <= 0 || q.PreviousClose <= 0 {
		return models.PriceRecord{}, fmt.Errorf("incomplete quote for %s (current=%.2f, previousClose=%.2f)", symbol, q.Current, q.PreviousClose)
	}
	changePercent := (q.Current - q.PreviousClose) / q.PreviousClose * 100
	return models.PriceRecord{
		Symbol:        symbol,
		CurrentPrice:  utils.RoundFloat(q.Current, 2),
		PreviousClose: utils.RoundFloat(q.PreviousClose, 2),
		ChangePercent: utils.RoundFloat(changePercent, 2),
		LastUpdated:   time.Now(),
	}, nil
}

// --- Equity strategies ---

func (s *priceServiceImpl) fetchYahooChart(ctx context.Context, symbol string) (rawQuote, error) {
	chartURL := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s", url.PathEscape(symbol))
	body, err := s.getWithRelays(ctx, chartURL)
	if err != nil {
		return rawQuote{}, err
	}
	var data yahooChartResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return rawQuote{}, fmt.Errorf("failed to decode Yahoo chart response: %w", err)
	}
	if data.Chart.Error != nil {
		return rawQuote{}, fmt.Errorf("yahoo chart API returned an error: %v", data.Chart.Error)
	}
	if len(data.Chart.Result) == 0 {
		return rawQuote{}, fmt.Errorf("no chart result for %s", symbol)
	}
	meta := data.Chart.Result[0].Meta
	prev := meta.ChartPreviousClose
	if prev == 0 {
		prev = meta.PreviousClose
	}
	return rawQuote{Current: meta.RegularMarketPrice, PreviousClose: prev}, nil
}

func (s *priceServiceImpl) fetchYahooQuoteSummary(ctx context.Context, symbol string) (rawQuote, error) {
	summaryURL := fmt.Sprintf("https://query1.finance.yahoo.com/v10/finance/quoteSummary/%s?modules=price", url.PathEscape(symbol))
	body, err := s.getWithRelays(ctx, summaryURL)
	if err != nil {
		return rawQuote{}, err
	}
	var data yahooQuoteSummaryResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return rawQuote{}, fmt.Errorf("failed to decode Yahoo quoteSummary response: %w", err)
	}
	if data.QuoteSummary.Error != nil {
		return rawQuote{}, fmt.Errorf("yahoo quoteSummary API returned an error: %v", data.QuoteSummary.Error)
	}
	if len(data.QuoteSummary.Result) == 0 {
		return rawQuote{}, fmt.Errorf("no quoteSummary result for %s", symbol)
	}
	price := data.QuoteSummary.Result[0].Price
	return rawQuote{
		Current:       price.RegularMarketPrice.Raw,
		PreviousClose: price.RegularMarketPreviousClose.Raw,
	}, nil
}

func (s *priceServiceImpl) fetchNSEQuote(ctx context.Context, symbol string) (rawQuote, error) {
	// NSE wants the bare symbol, not the Yahoo-style exchange suffix.
	bare := symbol
	if idx := len(symbol) - 3; idx > 0 && (symbol[idx:] == ".NS" || symbol[idx:] == ".BO") {
		bare = symbol[:idx]
	}
	quoteURL := fmt.Sprintf("https://www.nseindia.com/api/quote-equity?symbol=%s", url.QueryEscape(bare))
	body, err := s.getWithRelays(ctx, quoteURL)
	if err != nil {
		return rawQuote{}, err
	}
	var data nseQuoteResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return rawQuote{}, fmt.Errorf("failed to decode NSE quote response: %w", err)
	}
	return rawQuote{Current: data.PriceInfo.LastPrice, PreviousClose: data.PriceInfo.PreviousClose}, nil
}

// --- Mutual fund NAV ---

// fetchNAV queries the NAV provider by scheme code: data[0] is the latest
// published NAV, data[1] the previous one.
func (s *priceServiceImpl) fetchNAV(ctx context.Context, schemeCode string) (rawQuote, error) {
	navURL := fmt.Sprintf("%s/%s", s.navBaseURL, url.PathEscape(schemeCode))

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, s.retryDelay); err != nil {
				return rawQuote{}, err
			}
		}
		body, err := s.doGet(ctx, navURL)
		if err != nil {
			lastErr = err
			continue
		}
		var data navResponse
		if err := json.Unmarshal(body, &data); err != nil {
			lastErr = fmt.Errorf("failed to decode NAV response: %w", err)
			continue
		}
		if data.Status != "SUCCESS" || len(data.Data) == 0 {
			lastErr = fmt.Errorf("NAV provider returned status %q with %d records", data.Status, len(data.Data))
			continue
		}
		current, err := strconv.ParseFloat(data.Data[0].NAV, 64)
		if err != nil {
			lastErr = fmt.Errorf("invalid latest NAV %q: %w", data.Data[0].NAV, err)
			continue
		}
		previous := current
		if len(data.Data) > 1 {
			if p, err := strconv.ParseFloat(data.Data[1].NAV, 64); err == nil {
				previous = p
			}
		}
		return rawQuote{Current: current, PreviousClose: previous}, nil
	}
	return rawQuote{}, lastErr
}

// --- Transport helpers ---

// getWithRelays issues a GET directly and, if that fails, retries through each
// configured relay endpoint in sequence with a short backoff between attempts.
func (s *priceServiceImpl) getWithRelays(ctx context.Context, target string) ([]byte, error) {
	body, directErr := s.doGet(ctx, target)
	if directErr == nil {
		return body, nil
	}

	lastErr := directErr
	for _, relay := range s.relays {
		relayURL := relay + url.QueryEscape(target)
		for attempt := 0; attempt < s.retries; attempt++ {
			if attempt > 0 {
				if err := sleepCtx(ctx, s.retryDelay); err != nil {
					return nil, err
				}
			}
			body, err := s.doGet(ctx, relayURL)
			if err == nil {
				return body, nil
			}
			lastErr = err
		}
		logger.L.Debug("Relay exhausted, moving to next", "relay", relay, "target", target, "error", lastErr)
	}
	return nil, lastErr
}

func (s *priceServiceImpl) doGet(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GET %s returned non-OK status %d", target, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
