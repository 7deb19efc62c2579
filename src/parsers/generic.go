// backend/src/parsers/generic.go
package parsers

import (
	"strings"

	"github.com/username/rupeefolio/backend/src/models"
)

// extractGenericRows maps a plain holdings list, the same shape this service
// exports: one BUY row per position at its average cost. Re-importing an
// export reproduces the original (symbol, quantity, averageCost) set.
func extractGenericRows(rows [][]string, cols columnMap) ([]models.ImportRow, int) {
	var out []models.ImportRow
	skipped := 0

	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		symbol := strings.ToUpper(cell(row, cols, "symbol"))
		if symbol == "" {
			skipped++
			continue
		}
		qty, okQty := parseNumber(cell(row, cols, "quantity"))
		price, okPrice := parseNumber(cell(row, cols, "price"))
		if !okQty || qty <= 0 || !okPrice || price <= 0 {
			skipped++
			continue
		}

		assetType := models.AssetStock
		if strings.Contains(strings.ToLower(cell(row, cols, "assetType")), "mutual") {
			assetType = models.AssetMutualFund
		}
		date, _ := parseDate(cell(row, cols, "date"))

		out = append(out, models.ImportRow{
			Name:            cell(row, cols, "name"),
			Symbol:          symbol,
			TransactionType: "BUY",
			Quantity:        qty,
			Price:           price,
			Date:            date,
			AssetType:       assetType,
			Sector:          cell(row, cols, "sector"),
			Exchange:        strings.ToUpper(cell(row, cols, "exchange")),
		})
	}
	return out, skipped
}
