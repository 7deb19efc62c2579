package models

// ImportRow is one parsed spreadsheet line. Rows are transient: they are
// consumed by the reconciliation fold and discarded.
type ImportRow struct {
	Name            string
	Symbol          string // exchange-qualified ticker or scheme code; may be empty pre-resolution
	TransactionType string // "BUY" or "SELL"
	Quantity        float64
	Price           float64
	Date            string // YYYY-MM-DD
	AssetType       AssetType
	Status          string // equity ledgers: order status column, empty otherwise
	Sector          string
	Exchange        string
}

// ImportSummary is returned to the caller after an import batch.
type ImportSummary struct {
	Format       string   `json:"format"`
	RowsParsed   int      `json:"rows_parsed"`
	RowsSkipped  int      `json:"rows_skipped"`
	Imported     int      `json:"imported"`
	Deduplicated int      `json:"deduplicated"`
	NeedsReview  int      `json:"needs_review"`
	Warnings     []string `json:"warnings,omitempty"`
}

// PortfolioStats is the aggregate view of holdings combined with current prices.
type PortfolioStats struct {
	TotalInvested    float64            `json:"total_invested"`
	TotalCurrent     float64            `json:"total_current"`
	GainLoss         float64            `json:"gain_loss"`
	GainLossPercent  float64            `json:"gain_loss_percent"`
	HoldingCount     int                `json:"holding_count"`
	SectorAllocation map[string]float64 `json:"sector_allocation"`
}
