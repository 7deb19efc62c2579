package models

import "time"

// PriceRecord is one cached quote for a symbol.
// ChangePercent is always (CurrentPrice-PreviousClose)/PreviousClose*100, rounded
// to 2 decimals. IsCached marks records served from storage rather than a fresh
// fetch in the current cycle.
type PriceRecord struct {
	Symbol        string    `json:"symbol"`
	CurrentPrice  float64   `json:"current_price"`
	PreviousClose float64   `json:"previous_close"`
	ChangePercent float64   `json:"change_percent"`
	LastUpdated   time.Time `json:"last_updated"`
	IsCached      bool      `json:"is_cached"`
}

// PortfolioSnapshot is a point-in-time valuation of the whole portfolio,
// appended after each successful refresh cycle. Snapshots are never mutated.
type PortfolioSnapshot struct {
	ID              int64     `json:"id"`
	TotalInvested   float64   `json:"total_invested"`
	TotalValue      float64   `json:"total_value"`
	GainLoss        float64   `json:"gain_loss"`
	GainLossPercent float64   `json:"gain_loss_percent"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// PriceAlert records a single-cycle price move beyond the configured threshold.
type PriceAlert struct {
	ID            int64     `json:"id"`
	HoldingID     int64     `json:"holding_id"`
	Symbol        string    `json:"symbol"`
	ChangePercent float64   `json:"change_percent"`
	Message       string    `json:"message"`
	IsRead        bool      `json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
}

// RefreshReport summarises one refresh cycle.
type RefreshReport struct {
	Attempted int      `json:"attempted"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Skipped   bool     `json:"skipped"` // market closed, cycle was a no-op
	AllFailed bool     `json:"all_failed"`
	Alerts    int      `json:"alerts"`
	Errors    []string `json:"errors,omitempty"`
}
