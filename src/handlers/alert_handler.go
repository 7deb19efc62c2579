// backend/src/handlers/alert_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/rupeefolio/backend/src/database"
	"github.com/username/rupeefolio/backend/src/logger"
	"github.com/username/rupeefolio/backend/src/model"
	"github.com/username/rupeefolio/backend/src/models"
	"github.com/username/rupeefolio/backend/src/utils"
)

type AlertHandler struct{}

func NewAlertHandler() *AlertHandler {
	return &AlertHandler{}
}

func (h *AlertHandler) HandleListAlerts(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"
	alerts, err := model.ListAlerts(database.DB, unreadOnly)
	if err != nil {
		logger.L.Error("Failed to list alerts", "error", err)
		utils.SendJSONError(w, "Failed to retrieve alerts", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []models.PriceAlert{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alerts)
}

func (h *AlertHandler) HandleMarkAlertRead(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid alert ID", http.StatusBadRequest)
		return
	}

	if err := model.MarkAlertRead(database.DB, id); err != nil {
		logger.L.Warn("Failed to mark alert read", "alertID", id, "error", err)
		utils.SendJSONError(w, "Alert not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
