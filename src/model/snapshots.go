package model

import (
	"database/sql"
	"time"

	"github.com/username/rupeefolio/backend/src/models"
)

// InsertSnapshot appends a portfolio valuation to the history. Snapshots are
// append-only; they are never updated or deleted.
func InsertSnapshot(db *sql.DB, s models.PortfolioSnapshot) error {
	recordedAt := s.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO portfolio_snapshots (total_invested, total_value, gain_loss, gain_loss_percent, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.TotalInvested, s.TotalValue, s.GainLoss, s.GainLossPercent, recordedAt)
	return err
}

// ListSnapshots returns the snapshot history, oldest first, for growth charts.
func ListSnapshots(db *sql.DB, limit int) ([]models.PortfolioSnapshot, error) {
	query := `SELECT id, total_invested, total_value, gain_loss, gain_loss_percent, recorded_at
		FROM portfolio_snapshots ORDER BY recorded_at ASC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.Query(query+` LIMIT ?`, limit)
	} else {
		rows, err = db.Query(query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []models.PortfolioSnapshot
	for rows.Next() {
		var s models.PortfolioSnapshot
		if err := rows.Scan(&s.ID, &s.TotalInvested, &s.TotalValue, &s.GainLoss, &s.GainLossPercent, &s.RecordedAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}
