package model

import (
	"database/sql"
	"time"

	"github.com/username/rupeefolio/backend/src/models"
)

// ListHoldings returns every holding, ordered by symbol.
func ListHoldings(db *sql.DB) ([]models.Holding, error) {
	rows, err := db.Query(`
		SELECT id, symbol, asset_type, name, quantity, average_cost, purchase_date,
		       COALESCE(sector, ''), COALESCE(exchange, ''), needs_review
		FROM holdings ORDER BY symbol ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		var h models.Holding
		var needsReview int
		if err := rows.Scan(&h.ID, &h.Symbol, &h.AssetType, &h.Name, &h.Quantity,
			&h.AverageCost, &h.PurchaseDate, &h.Sector, &h.Exchange, &needsReview); err != nil {
			return nil, err
		}
		h.NeedsReview = needsReview == 1
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// ListHoldingSymbols returns the set of symbols already persisted.
// The reconciliation fold uses it for duplicate-avoidance on insert.
func ListHoldingSymbols(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query(`SELECT symbol FROM holdings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	symbols := make(map[string]bool)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols[s] = true
	}
	return symbols, rows.Err()
}

// InsertHolding inserts a new holding row and returns its ID.
func InsertHolding(db *sql.DB, h models.Holding) (int64, error) {
	needsReview := 0
	if h.NeedsReview {
		needsReview = 1
	}
	res, err := db.Exec(`
		INSERT INTO holdings (symbol, asset_type, name, quantity, average_cost, purchase_date, sector, exchange, needs_review, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.Symbol, h.AssetType, h.Name, h.Quantity, h.AverageCost, h.PurchaseDate,
		nullIfEmpty(h.Sector), nullIfEmpty(h.Exchange), needsReview, time.Now())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateHoldingPosition updates quantity/average cost after buy or sell folding.
func UpdateHoldingPosition(db *sql.DB, symbol string, quantity, averageCost float64, purchaseDate string) error {
	_, err := db.Exec(`
		UPDATE holdings SET quantity = ?, average_cost = ?, purchase_date = ?, updated_at = ?
		WHERE symbol = ?`,
		quantity, averageCost, purchaseDate, time.Now(), symbol)
	return err
}

// DeleteHoldingBySymbol removes a fully liquidated position.
func DeleteHoldingBySymbol(db *sql.DB, symbol string) error {
	_, err := db.Exec(`DELETE FROM holdings WHERE symbol = ?`, symbol)
	return err
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
