package model

import (
	"database/sql"
	"fmt"

	"github.com/username/rupeefolio/backend/src/models"
)

// InsertAlert records a threshold-crossing price move for a holding.
func InsertAlert(db *sql.DB, a models.PriceAlert) error {
	_, err := db.Exec(`
		INSERT INTO price_alerts (holding_id, symbol, change_percent, message)
		VALUES (?, ?, ?, ?)`,
		a.HoldingID, a.Symbol, a.ChangePercent, a.Message)
	return err
}

// ListAlerts returns alerts, newest first. When unreadOnly is set, read alerts
// are filtered out.
func ListAlerts(db *sql.DB, unreadOnly bool) ([]models.PriceAlert, error) {
	query := `SELECT id, holding_id, symbol, change_percent, message, is_read, created_at
		FROM price_alerts`
	if unreadOnly {
		query += ` WHERE is_read = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.PriceAlert
	for rows.Next() {
		var a models.PriceAlert
		var isRead int
		if err := rows.Scan(&a.ID, &a.HoldingID, &a.Symbol, &a.ChangePercent, &a.Message, &isRead, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.IsRead = isRead == 1
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// MarkAlertRead flags an alert as read. Alerts are never auto-deleted.
func MarkAlertRead(db *sql.DB, id int64) error {
	res, err := db.Exec(`UPDATE price_alerts SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("alert %d not found", id)
	}
	return nil
}
