// backend/src/parsers/parser.go
package parsers

import (
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/username/rupeefolio/backend/src/logger"
	"github.com/username/rupeefolio/backend/src/models"
)

// ParseResult carries the extracted rows plus batch-level bookkeeping.
type ParseResult struct {
	Format      SheetFormat
	Rows        []models.ImportRow
	RowsSkipped int
}

// Parse reads an uploaded ledger or holdings sheet and extracts import rows.
// The format is detected from the header; rows failing required-field
// validation are dropped and counted, never fatal. Mutual fund ledgers, which
// brokers export newest-first, are reversed so the fold sees oldest-first.
func Parse(file io.Reader, filename string) (ParseResult, error) {
	grid, err := ReadSheet(file, filename)
	if err != nil {
		return ParseResult{}, err
	}

	det, err := detectFormat(grid)
	if err != nil {
		return ParseResult{}, err
	}

	result := ParseResult{Format: det.Format}
	dataRows := grid[det.HeaderRow+1:]

	switch det.Format {
	case FormatStock:
		result.Rows, result.RowsSkipped = extractStockRows(dataRows, det.Columns)
	case FormatMutualFund:
		result.Rows, result.RowsSkipped = extractMutualFundRows(dataRows, det.Columns)
		// Fund ledgers list newest-first. Reverse so weighted-average cost
		// folds buys in the order they actually happened.
		for i, j := 0, len(result.Rows)-1; i < j; i, j = i+1, j-1 {
			result.Rows[i], result.Rows[j] = result.Rows[j], result.Rows[i]
		}
	case FormatGeneric:
		result.Rows, result.RowsSkipped = extractGenericRows(dataRows, det.Columns)
	}

	logger.L.Info("Sheet parsed", "format", det.Format, "rows", len(result.Rows), "skipped", result.RowsSkipped)
	return result, nil
}

var schemeCodeRe = regexp.MustCompile(`\((\d{5,6})\)\s*$`)

// ExtractSchemeCode pulls an AMFI scheme code embedded in a scheme name,
// e.g. "Parag Parikh Flexi Cap Fund (122639)". Returns the cleaned name and
// the code, or an empty code when none is embedded.
func ExtractSchemeCode(schemeName string) (name, code string) {
	name = strings.TrimSpace(schemeName)
	if m := schemeCodeRe.FindStringSubmatch(name); m != nil {
		code = m[1]
		name = strings.TrimSpace(schemeCodeRe.ReplaceAllString(name, ""))
	}
	return name, code
}

func cell(row []string, cols columnMap, field string) string {
	idx, ok := cols[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseNumber handles Indian broker exports: thousands separators, currency
// prefixes and stray quotes.
func parseNumber(s string) (float64, bool) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.Trim(cleaned, "\"")
	cleaned = strings.TrimPrefix(cleaned, "₹")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var dateLayouts = []string{
	"02-01-2006", // DD-MM-YYYY
	"02-Jan-2006",
	"02-Jan-06",
	"2006-01-02",
	"02/01/2006",
}

// parseDate normalizes the supported ledger date formats to YYYY-MM-DD.
func parseDate(s string) (string, bool) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

func normalizeTradeType(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "b", "purchase", "sip", "switch in", "switch-in":
		return "BUY"
	case "sell", "s", "redemption", "redeem", "switch out", "switch-out":
		return "SELL"
	}
	return ""
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
