// backend/src/processors/stats_processor.go
package processors

import (
	"github.com/username/rupeefolio/backend/src/models"
	"github.com/username/rupeefolio/backend/src/utils"
)

// defaultSector buckets holdings without classification metadata.
const defaultSector = "Others"

type StatsProcessor struct{}

func NewStatsProcessor() *StatsProcessor { return &StatsProcessor{} }

// Aggregate combines holdings with current prices into portfolio totals and a
// sector allocation breakdown. Holdings with no cached price yet are valued at
// cost so totals stay computable before the first live fetch completes.
func (p *StatsProcessor) Aggregate(holdings []models.Holding, prices map[string]models.PriceRecord) models.PortfolioStats {
	stats := models.PortfolioStats{
		SectorAllocation: make(map[string]float64),
	}

	for _, h := range holdings {
		invested := h.Quantity * h.AverageCost
		current := invested
		if price, ok := prices[h.Symbol]; ok && price.CurrentPrice > 0 {
			current = h.Quantity * price.CurrentPrice
		}

		stats.TotalInvested += invested
		stats.TotalCurrent += current

		sector := h.Sector
		if sector == "" {
			sector = defaultSector
		}
		stats.SectorAllocation[sector] += current
	}

	stats.HoldingCount = len(holdings)
	stats.GainLoss = stats.TotalCurrent - stats.TotalInvested
	if stats.TotalInvested > 0 {
		stats.GainLossPercent = (stats.GainLoss / stats.TotalInvested) * 100
	}

	stats.TotalInvested = utils.RoundFloat(stats.TotalInvested, 2)
	stats.TotalCurrent = utils.RoundFloat(stats.TotalCurrent, 2)
	stats.GainLoss = utils.RoundFloat(stats.GainLoss, 2)
	stats.GainLossPercent = utils.RoundFloat(stats.GainLossPercent, 2)
	for sector, value := range stats.SectorAllocation {
		stats.SectorAllocation[sector] = utils.RoundFloat(value, 2)
	}
	return stats
}
