// backend/src/parsers/mutualfund.go
package parsers

import (
	"github.com/username/rupeefolio/backend/src/models"
)

// extractMutualFundRows maps fund-ledger rows. The symbol is the AMFI scheme
// code: taken from a dedicated column when present, else from a code embedded
// in the scheme name. Rows without either keep an empty symbol; the import
// service resolves those against the scheme directory before folding.
func extractMutualFundRows(rows [][]string, cols columnMap) ([]models.ImportRow, int) {
	var out []models.ImportRow
	skipped := 0

	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		rawName := cell(row, cols, "name")
		if rawName == "" {
			skipped++
			continue
		}
		name, code := ExtractSchemeCode(rawName)
		if explicit := cell(row, cols, "code"); explicit != "" {
			code = explicit
		}

		txType := normalizeTradeType(cell(row, cols, "type"))
		if txType == "" {
			// Statements of current balances carry no transaction column.
			txType = "BUY"
		}
		units, okUnits := parseNumber(cell(row, cols, "quantity"))
		nav, okNav := parseNumber(cell(row, cols, "price"))
		if !okUnits || units <= 0 || !okNav || nav <= 0 {
			skipped++
			continue
		}
		date, _ := parseDate(cell(row, cols, "date"))

		out = append(out, models.ImportRow{
			Name:            name,
			Symbol:          code,
			TransactionType: txType,
			Quantity:        units,
			Price:           nav,
			Date:            date,
			AssetType:       models.AssetMutualFund,
		})
	}
	return out, skipped
}
