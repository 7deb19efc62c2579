// backend/src/parsers/stock.go
package parsers

import (
	"strings"

	"github.com/username/rupeefolio/backend/src/models"
)

// defaultExchangeSuffix qualifies bare NSE tickers so the symbol matches the
// quote providers' exchange-qualified form.
const defaultExchangeSuffix = ".NS"

// extractStockRows maps equity-ledger rows top-to-bottom (these exports are
// already chronological). Symbols are exchange-qualified; the order-status
// column is carried through so the fold can drop pending/cancelled orders.
func extractStockRows(rows [][]string, cols columnMap) ([]models.ImportRow, int) {
	var out []models.ImportRow
	skipped := 0

	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		symbol := strings.ToUpper(cell(row, cols, "symbol"))
		name := cell(row, cols, "name")
		if symbol == "" && name == "" {
			skipped++
			continue
		}
		if symbol == "" {
			symbol = strings.ToUpper(strings.ReplaceAll(name, " ", ""))
		}

		tradeType := normalizeTradeType(cell(row, cols, "type"))
		if tradeType == "" {
			skipped++
			continue
		}
		qty, okQty := parseNumber(cell(row, cols, "quantity"))
		price, okPrice := parseNumber(cell(row, cols, "price"))
		if !okQty || qty <= 0 || !okPrice || price <= 0 {
			skipped++
			continue
		}
		date, _ := parseDate(cell(row, cols, "date"))

		exchange := strings.ToUpper(cell(row, cols, "exchange"))
		if exchange == "" {
			exchange = "NSE"
		}
		if !strings.Contains(symbol, ".") {
			symbol += exchangeSuffix(exchange)
		}

		out = append(out, models.ImportRow{
			Name:            name,
			Symbol:          symbol,
			TransactionType: tradeType,
			Quantity:        qty,
			Price:           price,
			Date:            date,
			AssetType:       models.AssetStock,
			Status:          cell(row, cols, "status"),
			Sector:          cell(row, cols, "sector"),
			Exchange:        exchange,
		})
	}
	return out, skipped
}

func exchangeSuffix(exchange string) string {
	switch strings.ToUpper(exchange) {
	case "BSE":
		return ".BO"
	case "NSE", "":
		return defaultExchangeSuffix
	}
	return defaultExchangeSuffix
}
