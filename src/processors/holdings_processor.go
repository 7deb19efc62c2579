// backend/src/processors/holdings_processor.go
package processors

import (
	"fmt"
	"math"
	"strings"

	"github.com/username/rupeefolio/backend/src/models"
	"github.com/username/rupeefolio/backend/src/utils"
)

// Mutual fund units are fractional; sells that round down to a dust quantity
// below this epsilon count as full liquidation. Stocks keep the exact <= 0 rule.
const fundLiquidationEpsilon = 0.01

// HoldingsProcessor folds a batch of import rows into consolidated holdings
// using weighted-average cost basis. It is a pure computation: persistence is
// the caller's job.
type HoldingsProcessor struct{}

func NewHoldingsProcessor() *HoldingsProcessor { return &HoldingsProcessor{} }

// ReconcileResult is the outcome of folding one import batch.
type ReconcileResult struct {
	// NewHoldings are positions to insert: quantity > 0 and symbol not already persisted.
	NewHoldings []models.Holding
	// Deduplicated counts working-set positions dropped because the symbol
	// already exists in storage. Dedup applies to "insert as new" only; such
	// symbols still absorb buy/sell rows within the batch.
	Deduplicated int
	SkippedRows  int
	Warnings     []string
}

// executedStatuses are the equity order states that affect holdings.
// Pending/cancelled/rejected rows must not move a position.
var executedStatuses = map[string]bool{
	"":         true, // mutual fund ledgers and generic lists carry no status column
	"complete": true,
	"executed": true,
	"traded":   true,
	"success":  true,
}

// Reconcile folds importRows, in the order given, into a fresh working set and
// returns the resulting holdings. Rows must already be in chronological order
// (oldest first); format-dependent reordering is the parser's responsibility.
func (p *HoldingsProcessor) Reconcile(existingSymbols map[string]bool, importRows []models.ImportRow) ReconcileResult {
	var result ReconcileResult

	working := make(map[string]*models.Holding)
	var order []string // preserve first-seen order for deterministic output

	for _, row := range importRows {
		symbol := strings.TrimSpace(row.Symbol)
		if symbol == "" {
			result.SkippedRows++
			continue
		}
		if math.IsNaN(row.Quantity) || math.IsNaN(row.Price) || row.Quantity <= 0 {
			result.SkippedRows++
			continue
		}
		if !executedStatuses[strings.ToLower(strings.TrimSpace(row.Status))] {
			result.SkippedRows++
			continue
		}

		switch strings.ToUpper(row.TransactionType) {
		case "BUY":
			if row.Price <= 0 {
				result.SkippedRows++
				continue
			}
			h, ok := working[symbol]
			if !ok {
				working[symbol] = &models.Holding{
					Symbol:       symbol,
					AssetType:    row.AssetType,
					Name:         row.Name,
					Quantity:     row.Quantity,
					AverageCost:  row.Price,
					PurchaseDate: row.Date,
					Sector:       row.Sector,
					Exchange:     row.Exchange,
				}
				order = append(order, symbol)
				continue
			}
			newQty := h.Quantity + row.Quantity
			h.AverageCost = (h.Quantity*h.AverageCost + row.Quantity*row.Price) / newQty
			h.Quantity = newQty
			if row.Date != "" && (h.PurchaseDate == "" || row.Date < h.PurchaseDate) {
				h.PurchaseDate = row.Date
			}

		case "SELL":
			h, ok := working[symbol]
			if !ok {
				if existingSymbols[symbol] {
					result.Warnings = append(result.Warnings,
						fmt.Sprintf("sell of %s matches a stored holding outside this batch; not applied", symbol))
				} else {
					result.Warnings = append(result.Warnings,
						fmt.Sprintf("sell of %s references an unknown symbol; ignored", symbol))
				}
				continue
			}
			h.Quantity -= row.Quantity
			if isLiquidated(h) {
				delete(working, symbol)
			}

		default:
			result.SkippedRows++
		}
	}

	for _, symbol := range order {
		h, ok := working[symbol]
		if !ok || h.Quantity <= 0 {
			continue
		}
		if existingSymbols[symbol] {
			result.Deduplicated++
			continue
		}
		h.Quantity = utils.RoundFloat(h.Quantity, 4)
		h.AverageCost = utils.RoundFloat(h.AverageCost, 4)
		result.NewHoldings = append(result.NewHoldings, *h)
	}
	return result
}

// isLiquidated reports whether a position has been fully sold off. Stocks use
// the exact <= 0 rule; fractional fund units absorb rounding dust via epsilon.
func isLiquidated(h *models.Holding) bool {
	if h.AssetType == models.AssetMutualFund {
		return h.Quantity <= fundLiquidationEpsilon
	}
	return h.Quantity <= 0
}
