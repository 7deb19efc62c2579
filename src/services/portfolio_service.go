// backend/src/services/portfolio_service.go
package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/rupeefolio/backend/src/config"
	"github.com/username/rupeefolio/backend/src/database"
	"github.com/username/rupeefolio/backend/src/logger"
	"github.com/username/rupeefolio/backend/src/model"
	"github.com/username/rupeefolio/backend/src/models"
	"github.com/username/rupeefolio/backend/src/processors"
	"github.com/username/rupeefolio/backend/src/utils"
	"golang.org/x/time/rate"
)

const (
	ckPortfolioStats       = "agg_portfolio_stats"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

// exportHeader is the fixed CSV export contract. The generic import format
// recognizes exactly this header, so an export round-trips.
var exportHeader = []string{"Asset Type", "Symbol", "Name", "Quantity", "Purchase Price", "Purchase Date", "Sector", "Exchange"}

type portfolioServiceImpl struct {
	priceService   PriceService
	statsProcessor *processors.StatsProcessor
	clock          *MarketClock
	reportCache    *cache.Cache
	fetchLimiter   *rate.Limiter
	alertThreshold float64
}

func NewPortfolioService(priceService PriceService, clock *MarketClock, reportCache *cache.Cache) PortfolioService {
	return &portfolioServiceImpl{
		priceService:   priceService,
		statsProcessor: processors.NewStatsProcessor(),
		clock:          clock,
		reportCache:    reportCache,
		// Sequential fetches are paced to respect third-party rate limits.
		// This throughput tradeoff is deliberate; do not parallelize.
		fetchLimiter:   rate.NewLimiter(rate.Every(config.Cfg.FetchDelay), 1),
		alertThreshold: config.Cfg.AlertThresholdPercent,
	}
}

// GetHoldingsWithPrices joins holdings with the price cache in one bulk read.
// Cached records are tagged IsCached so the caller can tell stale from fresh;
// a symbol that has ever been fetched never shows as unknown.
func (s *portfolioServiceImpl) GetHoldingsWithPrices() ([]models.HoldingWithPrice, error) {
	holdings, err := model.ListHoldings(database.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	symbols := make([]string, len(holdings))
	for i, h := range holdings {
		symbols[i] = h.Symbol
	}
	prices, err := model.GetPricesBySymbols(database.DB, symbols)
	if err != nil {
		logger.L.Error("Failed to bulk-read price cache", "error", err)
		prices = map[string]models.PriceRecord{}
	}

	out := make([]models.HoldingWithPrice, 0, len(holdings))
	for _, h := range holdings {
		hp := models.HoldingWithPrice{Holding: h}
		hp.InvestedValue = utils.RoundFloat(h.Quantity*h.AverageCost, 2)
		if price, ok := prices[h.Symbol]; ok {
			hp.CurrentPrice = price.CurrentPrice
			hp.ChangePercent = price.ChangePercent
			hp.CurrentValue = utils.RoundFloat(h.Quantity*price.CurrentPrice, 2)
			hp.LastUpdated = price.LastUpdated.Format(time.RFC3339)
			hp.IsCached = price.IsCached
			hp.HasPrice = true
		} else {
			// No price yet: value at cost so totals stay computable.
			hp.CurrentValue = hp.InvestedValue
		}
		hp.GainLoss = utils.RoundFloat(hp.CurrentValue-hp.InvestedValue, 2)
		out = append(out, hp)
	}
	return out, nil
}

func (s *portfolioServiceImpl) GetStats() (models.PortfolioStats, error) {
	if cached, found := s.reportCache.Get(ckPortfolioStats); found {
		return cached.(models.PortfolioStats), nil
	}

	holdings, err := model.ListHoldings(database.DB)
	if err != nil {
		return models.PortfolioStats{}, fmt.Errorf("failed to list holdings: %w", err)
	}
	symbols := make([]string, len(holdings))
	for i, h := range holdings {
		symbols[i] = h.Symbol
	}
	prices, err := model.GetPricesBySymbols(database.DB, symbols)
	if err != nil {
		return models.PortfolioStats{}, fmt.Errorf("failed to read price cache: %w", err)
	}

	stats := s.statsProcessor.Aggregate(holdings, prices)
	s.reportCache.Set(ckPortfolioStats, stats, DefaultCacheExpiration)
	return stats, nil
}

func (s *portfolioServiceImpl) GetSnapshots(limit int) ([]models.PortfolioSnapshot, error) {
	return model.ListSnapshots(database.DB, limit)
}

func (s *portfolioServiceImpl) InvalidateStatsCache() {
	s.reportCache.Delete(ckPortfolioStats)
}

// RefreshPrices runs one refresh cycle: sequential per-holding fetches paced
// by the limiter, cache upserts on success, cached price preserved on failure.
// When the market is closed and forced is false, the cycle is a silent no-op.
func (s *portfolioServiceImpl) RefreshPrices(ctx context.Context, forced bool) (models.RefreshReport, error) {
	var report models.RefreshReport

	if !s.clock.ShouldFetchLive(time.Now(), forced) {
		logger.L.Debug("Market closed, refresh skipped; cache retained")
		report.Skipped = true
		return report, nil
	}

	holdings, err := model.ListHoldings(database.DB)
	if err != nil {
		return report, fmt.Errorf("failed to list holdings: %w", err)
	}
	if len(holdings) == 0 {
		return report, nil
	}

	report.Attempted = len(holdings)
	for _, h := range holdings {
		if err := s.fetchLimiter.Wait(ctx); err != nil {
			return report, err
		}

		record, err := s.priceService.FetchPrice(ctx, h.Symbol, h.AssetType)
		if err != nil {
			// Cached price stays untouched; the loop moves on.
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", h.Symbol, err))
			logger.L.Warn("Price fetch failed for holding", "symbol", h.Symbol, "error", err)
			continue
		}

		if err := model.InsertOrUpdatePrice(database.DB, record); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: cache write: %v", h.Symbol, err))
			continue
		}
		report.Succeeded++

		if record.ChangePercent >= s.alertThreshold || record.ChangePercent <= -s.alertThreshold {
			s.recordAlert(h, record)
			report.Alerts++
		}
	}

	report.AllFailed = report.Succeeded == 0 && report.Failed > 0
	if report.AllFailed {
		logger.L.Error("Refresh cycle: every holding failed to fetch", "attempted", report.Attempted)
	} else {
		logger.L.Info("Refresh cycle complete", "succeeded", report.Succeeded, "failed", report.Failed, "alerts", report.Alerts)
	}

	if report.Succeeded > 0 {
		s.InvalidateStatsCache()
		if err := s.appendSnapshot(); err != nil {
			logger.L.Error("Failed to append portfolio snapshot", "error", err)
		}
	}
	return report, nil
}

// RefreshTwice runs two forced passes separated by gap. The manual refresh
// action and the daily job both use this shape.
func (s *portfolioServiceImpl) RefreshTwice(ctx context.Context, gap time.Duration) (models.RefreshReport, error) {
	first, err := s.RefreshPrices(ctx, true)
	if err != nil {
		return first, err
	}
	if err := sleepCtx(ctx, gap); err != nil {
		return first, err
	}
	second, err := s.RefreshPrices(ctx, true)
	if err != nil {
		return first, err
	}
	// The second pass is authoritative for prices; counts report the cycle.
	second.Alerts += first.Alerts
	return second, nil
}

func (s *portfolioServiceImpl) recordAlert(h models.Holding, record models.PriceRecord) {
	direction := "up"
	if record.ChangePercent < 0 {
		direction = "down"
	}
	alert := models.PriceAlert{
		HoldingID:     h.ID,
		Symbol:        h.Symbol,
		ChangePercent: record.ChangePercent,
		Message:       fmt.Sprintf("%s moved %s %.2f%% today (%.2f)", h.Name, direction, record.ChangePercent, record.CurrentPrice),
	}
	if err := model.InsertAlert(database.DB, alert); err != nil {
		logger.L.Error("Failed to record price alert", "symbol", h.Symbol, "error", err)
	}
}

// appendSnapshot values the portfolio off the freshly updated cache and
// appends a history point. Snapshots are append-only.
func (s *portfolioServiceImpl) appendSnapshot() error {
	holdings, err := model.ListHoldings(database.DB)
	if err != nil {
		return err
	}
	symbols := make([]string, len(holdings))
	for i, h := range holdings {
		symbols[i] = h.Symbol
	}
	prices, err := model.GetPricesBySymbols(database.DB, symbols)
	if err != nil {
		return err
	}
	stats := s.statsProcessor.Aggregate(holdings, prices)
	return model.InsertSnapshot(database.DB, models.PortfolioSnapshot{
		TotalInvested:   stats.TotalInvested,
		TotalValue:      stats.TotalCurrent,
		GainLoss:        stats.GainLoss,
		GainLossPercent: stats.GainLossPercent,
	})
}

// ExportCSV writes all holdings under the fixed export header.
func (s *portfolioServiceImpl) ExportCSV(w io.Writer) error {
	holdings, err := model.ListHoldings(database.DB)
	if err != nil {
		return fmt.Errorf("failed to list holdings for export: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, h := range holdings {
		assetType := "Stock"
		if h.AssetType == models.AssetMutualFund {
			assetType = "Mutual Fund"
		}
		record := []string{
			assetType,
			h.Symbol,
			h.Name,
			strconv.FormatFloat(h.Quantity, 'f', -1, 64),
			strconv.FormatFloat(h.AverageCost, 'f', -1, 64),
			h.PurchaseDate,
			h.Sector,
			h.Exchange,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("csv export failed: %w", err)
	}
	return nil
}
