package model

import (
	"database/sql"
	"strings"
	"time"

	"github.com/username/rupeefolio/backend/src/logger"
	"github.com/username/rupeefolio/backend/src/models"
)

// GetPriceBySymbol retrieves one cached price. Returns sql.ErrNoRows when absent.
func GetPriceBySymbol(db *sql.DB, symbol string) (models.PriceRecord, error) {
	var p models.PriceRecord
	row := db.QueryRow(`
		SELECT symbol, current_price, previous_close, change_percent, last_updated
		FROM price_cache WHERE symbol = ?`, symbol)
	if err := row.Scan(&p.Symbol, &p.CurrentPrice, &p.PreviousClose, &p.ChangePercent, &p.LastUpdated); err != nil {
		return models.PriceRecord{}, err
	}
	p.IsCached = true
	return p, nil
}

// GetPricesBySymbols retrieves cached prices for a list of symbols in a single
// query. The result map is keyed by symbol; records are tagged IsCached so they
// can be presented before any live fetch occurs.
func GetPricesBySymbols(db *sql.DB, symbols []string) (map[string]models.PriceRecord, error) {
	prices := make(map[string]models.PriceRecord)
	if len(symbols) == 0 {
		return prices, nil
	}
	query := `SELECT symbol, current_price, previous_close, change_percent, last_updated
		FROM price_cache WHERE symbol IN (?` + strings.Repeat(",?", len(symbols)-1) + `)`
	args := make([]interface{}, len(symbols))
	for i, s := range symbols {
		args[i] = s
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p models.PriceRecord
		if err := rows.Scan(&p.Symbol, &p.CurrentPrice, &p.PreviousClose, &p.ChangePercent, &p.LastUpdated); err != nil {
			return nil, err
		}
		p.IsCached = true
		prices[p.Symbol] = p
	}
	return prices, rows.Err()
}

// InsertOrUpdatePrice saves a fresh price to the cache, updating if the symbol
// already exists. Cached prices are never deleted; stale data stays available
// as a fallback when live fetching is skipped or fails.
func InsertOrUpdatePrice(db *sql.DB, p models.PriceRecord) error {
	query := `
        INSERT INTO price_cache (symbol, current_price, previous_close, change_percent, last_updated)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(symbol) DO UPDATE SET
            current_price = excluded.current_price,
            previous_close = excluded.previous_close,
            change_percent = excluded.change_percent,
            last_updated = excluded.last_updated;
    `
	lastUpdated := p.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now()
	}
	_, err := db.Exec(query, p.Symbol, p.CurrentPrice, p.PreviousClose, p.ChangePercent, lastUpdated)
	if err != nil {
		logger.L.Error("Failed to insert or update cached price", "symbol", p.Symbol, "error", err)
	}
	return err
}
