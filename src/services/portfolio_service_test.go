package services

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/rupeefolio/backend/src/database"
	"github.com/username/rupeefolio/backend/src/model"
	"github.com/username/rupeefolio/backend/src/models"
	"github.com/username/rupeefolio/backend/src/parsers"
	"github.com/username/rupeefolio/backend/src/processors"
	"golang.org/x/time/rate"
	_ "modernc.org/sqlite"
)

// setupTestDB points the global database handle at a throwaway file with the
// real migration schema applied.
func setupTestDB(t *testing.T) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db")+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	schema, err := os.ReadFile("../../db/migrations/000001_init_schema.up.sql")
	if err != nil {
		t.Fatalf("failed to read migration: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	prev := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = prev
		db.Close()
	})
}

// fakePriceService serves canned records or errors per symbol.
type fakePriceService struct {
	records map[string]models.PriceRecord
	calls   int
}

func (f *fakePriceService) FetchPrice(ctx context.Context, symbol string, assetType models.AssetType) (models.PriceRecord, error) {
	f.calls++
	record, ok := f.records[symbol]
	if !ok {
		return models.PriceRecord{}, ErrAllSourcesFailed
	}
	return record, nil
}

func newTestPortfolioService(prices *fakePriceService) *portfolioServiceImpl {
	return &portfolioServiceImpl{
		priceService:   prices,
		statsProcessor: processors.NewStatsProcessor(),
		clock:          NewMarketClock(15, 30),
		reportCache:    cache.New(DefaultCacheExpiration, CacheCleanupInterval),
		fetchLimiter:   rate.NewLimiter(rate.Every(time.Millisecond), 1),
		alertThreshold: 5.0,
	}
}

func seedHolding(t *testing.T, h models.Holding) int64 {
	t.Helper()
	id, err := model.InsertHolding(database.DB, h)
	if err != nil {
		t.Fatalf("failed to seed holding %s: %v", h.Symbol, err)
	}
	return id
}

func TestRefreshPricesMixedResults(t *testing.T) {
	setupTestDB(t)
	seedHolding(t, models.Holding{Symbol: "RELIANCE.NS", AssetType: models.AssetStock, Name: "Reliance", Quantity: 10, AverageCost: 2000})
	seedHolding(t, models.Holding{Symbol: "TCS.NS", AssetType: models.AssetStock, Name: "TCS", Quantity: 5, AverageCost: 3000})

	// TCS has a cached price from a previous cycle but will fail this fetch.
	stale := models.PriceRecord{Symbol: "TCS.NS", CurrentPrice: 3100, PreviousClose: 3050, ChangePercent: 1.64}
	if err := model.InsertOrUpdatePrice(database.DB, stale); err != nil {
		t.Fatalf("failed to seed cache: %v", err)
	}

	prices := &fakePriceService{records: map[string]models.PriceRecord{
		"RELIANCE.NS": {Symbol: "RELIANCE.NS", CurrentPrice: 2260, PreviousClose: 2130, ChangePercent: 6.1},
	}}
	s := newTestPortfolioService(prices)

	report, err := s.RefreshPrices(context.Background(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Attempted != 2 || report.Succeeded != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.AllFailed {
		t.Error("AllFailed must be false when any fetch succeeded")
	}

	// The failed symbol keeps its stale cached price.
	cached, err := model.GetPriceBySymbol(database.DB, "TCS.NS")
	if err != nil {
		t.Fatalf("cache read failed: %v", err)
	}
	if cached.CurrentPrice != 3100 {
		t.Errorf("stale price must survive a failed fetch, got %f", cached.CurrentPrice)
	}

	// A move past the threshold produces an alert.
	if report.Alerts != 1 {
		t.Errorf("expected 1 alert for a 6.1%% move, got %d", report.Alerts)
	}
	alerts, err := model.ListAlerts(database.DB, true)
	if err != nil || len(alerts) != 1 || alerts[0].Symbol != "RELIANCE.NS" {
		t.Errorf("expected one RELIANCE.NS alert, got %+v (err %v)", alerts, err)
	}

	// A successful cycle appends a snapshot.
	snapshots, err := model.ListSnapshots(database.DB, 0)
	if err != nil || len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d (err %v)", len(snapshots), err)
	}
}

func TestRefreshPricesAllFailed(t *testing.T) {
	setupTestDB(t)
	seedHolding(t, models.Holding{Symbol: "RELIANCE.NS", AssetType: models.AssetStock, Name: "Reliance", Quantity: 10, AverageCost: 2000})
	stale := models.PriceRecord{Symbol: "RELIANCE.NS", CurrentPrice: 2100, PreviousClose: 2090, ChangePercent: 0.48}
	if err := model.InsertOrUpdatePrice(database.DB, stale); err != nil {
		t.Fatalf("failed to seed cache: %v", err)
	}

	s := newTestPortfolioService(&fakePriceService{records: nil})
	report, err := s.RefreshPrices(context.Background(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.AllFailed {
		t.Error("expected AllFailed when every fetch fails")
	}

	cached, _ := model.GetPriceBySymbol(database.DB, "RELIANCE.NS")
	if cached.CurrentPrice != 2100 {
		t.Errorf("cache must be untouched on total failure, got %f", cached.CurrentPrice)
	}
	snapshots, _ := model.ListSnapshots(database.DB, 0)
	if len(snapshots) != 0 {
		t.Error("no snapshot should be appended when nothing succeeded")
	}
}

func TestRefreshPricesEmptyPortfolio(t *testing.T) {
	setupTestDB(t)
	prices := &fakePriceService{}
	s := newTestPortfolioService(prices)

	report, err := s.RefreshPrices(context.Background(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Attempted != 0 || prices.calls != 0 {
		t.Errorf("empty portfolio must fetch nothing, report %+v, calls %d", report, prices.calls)
	}
}

func TestRefreshTwiceSumsAlerts(t *testing.T) {
	setupTestDB(t)
	seedHolding(t, models.Holding{Symbol: "RELIANCE.NS", AssetType: models.AssetStock, Name: "Reliance", Quantity: 10, AverageCost: 2000})

	prices := &fakePriceService{records: map[string]models.PriceRecord{
		"RELIANCE.NS": {Symbol: "RELIANCE.NS", CurrentPrice: 2260, PreviousClose: 2130, ChangePercent: 6.1},
	}}
	s := newTestPortfolioService(prices)

	report, err := s.RefreshTwice(context.Background(), time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prices.calls != 2 {
		t.Errorf("expected two fetch passes, got %d", prices.calls)
	}
	if report.Alerts != 2 {
		t.Errorf("expected alerts summed across both passes, got %d", report.Alerts)
	}
}

func TestGetHoldingsWithPricesFallsBackToCost(t *testing.T) {
	setupTestDB(t)
	seedHolding(t, models.Holding{Symbol: "RELIANCE.NS", AssetType: models.AssetStock, Name: "Reliance", Quantity: 10, AverageCost: 2000})
	seedHolding(t, models.Holding{Symbol: "TCS.NS", AssetType: models.AssetStock, Name: "TCS", Quantity: 5, AverageCost: 3000})
	if err := model.InsertOrUpdatePrice(database.DB, models.PriceRecord{
		Symbol: "RELIANCE.NS", CurrentPrice: 2200, PreviousClose: 2150, ChangePercent: 2.33,
	}); err != nil {
		t.Fatalf("failed to seed cache: %v", err)
	}

	s := newTestPortfolioService(&fakePriceService{})
	holdings, err := s.GetHoldingsWithPrices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(holdings) != 2 {
		t.Fatalf("expected 2 holdings, got %d", len(holdings))
	}

	// Sorted by symbol: RELIANCE.NS first.
	priced := holdings[0]
	if !priced.HasPrice || !priced.IsCached {
		t.Errorf("expected cached price tags, got %+v", priced)
	}
	if priced.CurrentValue != 22000 || priced.GainLoss != 2000 {
		t.Errorf("unexpected valuation: %+v", priced)
	}

	unpriced := holdings[1]
	if unpriced.HasPrice {
		t.Error("TCS.NS has no cached price and must not claim one")
	}
	if unpriced.CurrentValue != unpriced.InvestedValue {
		t.Errorf("unpriced holding must be valued at cost, got %+v", unpriced)
	}
}

func TestGetStatsMemoized(t *testing.T) {
	setupTestDB(t)
	seedHolding(t, models.Holding{Symbol: "RELIANCE.NS", AssetType: models.AssetStock, Name: "Reliance", Quantity: 10, AverageCost: 2000})

	s := newTestPortfolioService(&fakePriceService{})
	first, err := s.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.HoldingCount != 1 {
		t.Fatalf("expected 1 holding, got %d", first.HoldingCount)
	}

	// A write the cache does not know about is invisible until invalidation.
	seedHolding(t, models.Holding{Symbol: "TCS.NS", AssetType: models.AssetStock, Name: "TCS", Quantity: 5, AverageCost: 3000})
	cached, _ := s.GetStats()
	if cached.HoldingCount != 1 {
		t.Errorf("expected memoized stats, got %+v", cached)
	}

	s.InvalidateStatsCache()
	fresh, _ := s.GetStats()
	if fresh.HoldingCount != 2 {
		t.Errorf("expected fresh stats after invalidation, got %+v", fresh)
	}
}

// An exported portfolio must re-import through the generic format with the
// same symbols, quantities and costs.
func TestExportCSVRoundTrips(t *testing.T) {
	setupTestDB(t)
	seedHolding(t, models.Holding{
		Symbol: "RELIANCE.NS", AssetType: models.AssetStock, Name: "Reliance Industries",
		Quantity: 10, AverageCost: 2100.5, PurchaseDate: "2024-01-15", Sector: "Energy", Exchange: "NSE",
	})
	seedHolding(t, models.Holding{
		Symbol: "122639", AssetType: models.AssetMutualFund, Name: "Parag Parikh Flexi Cap Fund",
		Quantity: 150.123, AverageCost: 77.2,
	})

	s := newTestPortfolioService(&fakePriceService{})
	var buf bytes.Buffer
	if err := s.ExportCSV(&buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	result, err := parsers.Parse(bytes.NewReader(buf.Bytes()), "portfolio_export.csv")
	if err != nil {
		t.Fatalf("re-import of export failed: %v", err)
	}
	if result.Format != parsers.FormatGeneric {
		t.Fatalf("export must parse as the generic format, got %s", result.Format)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}

	bySymbol := make(map[string]models.ImportRow)
	for _, row := range result.Rows {
		bySymbol[row.Symbol] = row
	}
	stock := bySymbol["RELIANCE.NS"]
	if stock.Quantity != 10 || stock.Price != 2100.5 || stock.Date != "2024-01-15" {
		t.Errorf("stock row did not round-trip: %+v", stock)
	}
	if stock.AssetType != models.AssetStock {
		t.Errorf("expected stock asset type, got %s", stock.AssetType)
	}
	fund := bySymbol["122639"]
	if fund.Quantity != 150.123 || fund.Price != 77.2 {
		t.Errorf("fund row did not round-trip: %+v", fund)
	}
	if fund.AssetType != models.AssetMutualFund {
		t.Errorf("expected mutual fund asset type, got %s", fund.AssetType)
	}
}
