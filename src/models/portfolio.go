package models

// AssetType distinguishes exchange-listed equities from mutual fund schemes.
type AssetType string

const (
	AssetStock      AssetType = "stock"
	AssetMutualFund AssetType = "mutual_fund"
)

// Holding represents one consolidated position for a symbol.
// There is at most one holding per symbol; positions that reach zero
// quantity are deleted rather than kept at zero.
type Holding struct {
	ID           int64     `json:"id"`
	Symbol       string    `json:"symbol"`
	AssetType    AssetType `json:"asset_type"`
	Name         string    `json:"name"`
	Quantity     float64   `json:"quantity"`
	AverageCost  float64   `json:"average_cost"`
	PurchaseDate string    `json:"purchase_date"` // YYYY-MM-DD
	Sector       string    `json:"sector,omitempty"`
	Exchange     string    `json:"exchange,omitempty"`
	NeedsReview  bool      `json:"needs_review"` // set when a scheme code could not be resolved
}

// HoldingWithPrice is a holding joined with its latest cached or live price.
type HoldingWithPrice struct {
	Holding
	CurrentPrice  float64 `json:"current_price"`
	ChangePercent float64 `json:"change_percent"`
	CurrentValue  float64 `json:"current_value"`
	InvestedValue float64 `json:"invested_value"`
	GainLoss      float64 `json:"gain_loss"`
	LastUpdated   string  `json:"last_updated,omitempty"`
	IsCached      bool    `json:"is_cached"`
	HasPrice      bool    `json:"has_price"`
}
