// backend/src/parsers/detect.go
package parsers

import (
	"errors"
	"strings"
)

// SheetFormat tags the detected tabular layout of an uploaded sheet.
type SheetFormat string

const (
	FormatStock      SheetFormat = "stock"
	FormatMutualFund SheetFormat = "mutual_fund"
	FormatGeneric    SheetFormat = "generic"
)

// ErrFormatNotRecognized is returned when no usable header row is found.
// This is fatal for the import; no partial parse is attempted.
var ErrFormatNotRecognized = errors.New("spreadsheet format not recognized")

// headerScanLimit: broker exports commonly prepend banner and metadata rows,
// so the real header can sit well below row 1.
const headerScanLimit = 20

// columnMap maps logical fields to column indexes within the detected header.
type columnMap map[string]int

// detection is the result of header sniffing: the format tag, the index of the
// header row, and the column mapping for that format.
type detection struct {
	Format    SheetFormat
	HeaderRow int
	Columns   columnMap
}

// headerKeywords drive both classification and column mapping. Each logical
// field lists the header substrings that may name its column, checked in order.
var (
	stockColumns = map[string][]string{
		"name":     {"stock name", "instrument", "security name", "company"},
		"symbol":   {"symbol", "ticker", "trading symbol"},
		"type":     {"trade type", "buy/sell", "transaction type", "side"},
		"quantity": {"quantity", "qty", "shares"},
		"price":    {"price", "avg. price", "average price", "rate"},
		"date":     {"trade date", "order date", "date"},
		"status":   {"status", "order status"},
		"exchange": {"exchange"},
		"sector":   {"sector", "industry"},
	}
	mutualFundColumns = map[string][]string{
		"name":     {"scheme name", "scheme", "fund name"},
		"code":     {"scheme code", "amfi code"},
		"type":     {"transaction type", "transaction", "order", "type"},
		"quantity": {"units", "quantity"},
		"price":    {"nav", "price", "purchase nav"},
		"date":     {"date", "transaction date", "nav date"},
	}
	genericColumns = map[string][]string{
		"assetType": {"asset type"},
		"symbol":    {"symbol"},
		"name":      {"name"},
		"quantity":  {"quantity"},
		"price":     {"purchase price", "average cost", "price"},
		"date":      {"purchase date", "date"},
		"sector":    {"sector"},
		"exchange":  {"exchange"},
	}
)

// detectFormat scans the first headerScanLimit rows for a header it recognizes.
// Classification is by keyword presence: a scheme-name column marks a mutual
// fund ledger, a stock-name/instrument column marks an equity ledger, and the
// fixed export header marks the generic holdings list.
func detectFormat(rows [][]string) (detection, error) {
	limit := len(rows)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}

	for i := 0; i < limit; i++ {
		lowered := make([]string, len(rows[i]))
		for j, cell := range rows[i] {
			lowered[j] = strings.ToLower(strings.TrimSpace(cell))
		}

		if hasCell(lowered, "scheme name", "scheme", "fund name") {
			cols := mapColumns(lowered, mutualFundColumns)
			if _, ok := cols["quantity"]; ok {
				return detection{Format: FormatMutualFund, HeaderRow: i, Columns: cols}, nil
			}
		}
		if hasCell(lowered, "asset type") && hasCell(lowered, "symbol") {
			cols := mapColumns(lowered, genericColumns)
			if _, ok := cols["quantity"]; ok {
				return detection{Format: FormatGeneric, HeaderRow: i, Columns: cols}, nil
			}
		}
		if hasCell(lowered, "stock name", "instrument", "security name", "symbol") {
			cols := mapColumns(lowered, stockColumns)
			_, hasQty := cols["quantity"]
			_, hasType := cols["type"]
			if hasQty && hasType {
				return detection{Format: FormatStock, HeaderRow: i, Columns: cols}, nil
			}
		}
	}
	return detection{}, ErrFormatNotRecognized
}

// hasCell reports whether any cell contains one of the given substrings.
func hasCell(lowered []string, substrings ...string) bool {
	for _, cell := range lowered {
		for _, sub := range substrings {
			if strings.Contains(cell, sub) {
				return true
			}
		}
	}
	return false
}

// mapColumns resolves each logical field to the first header cell matching one
// of its keywords. Keywords are tried in order so more specific names win
// (e.g. "trade date" before "date").
func mapColumns(lowered []string, keywords map[string][]string) columnMap {
	cols := make(columnMap)
	for field, subs := range keywords {
		for _, sub := range subs {
			idx := -1
			for j, cell := range lowered {
				if strings.Contains(cell, sub) {
					// Prefer exact matches over substring hits.
					if cell == sub {
						idx = j
						break
					}
					if idx == -1 {
						idx = j
					}
				}
			}
			if idx >= 0 {
				if existing, taken := colTaken(cols, idx); taken && existing != field {
					continue
				}
				cols[field] = idx
				break
			}
		}
	}
	return cols
}

func colTaken(cols columnMap, idx int) (string, bool) {
	for field, i := range cols {
		if i == idx {
			return field, true
		}
	}
	return "", false
}
