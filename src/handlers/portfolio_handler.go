// backend/src/handlers/portfolio_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/username/rupeefolio/backend/src/logger"
	"github.com/username/rupeefolio/backend/src/models"
	"github.com/username/rupeefolio/backend/src/services"
	"github.com/username/rupeefolio/backend/src/utils"
)

// manualRefreshGap separates the two passes of a user-triggered refresh.
const manualRefreshGap = 2 * time.Second

type PortfolioHandler struct {
	portfolioService services.PortfolioService
}

func NewPortfolioHandler(portfolioService services.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService}
}

func (h *PortfolioHandler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.portfolioService.GetHoldingsWithPrices()
	if err != nil {
		logger.L.Error("Failed to get holdings with prices", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving holdings: %v", err), http.StatusInternalServerError)
		return
	}
	if holdings == nil {
		holdings = []models.HoldingWithPrice{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(holdings)
}

func (h *PortfolioHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.portfolioService.GetStats()
	if err != nil {
		logger.L.Error("Failed to aggregate portfolio stats", "error", err)
		utils.SendJSONError(w, "Failed to compute portfolio statistics", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// HandleRefresh is the manual refresh path: always forced, two passes with a
// short gap, mirroring the daily job.
func (h *PortfolioHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())
	ctxLogger.Info("Manual refresh requested")

	report, err := h.portfolioService.RefreshTwice(r.Context(), manualRefreshGap)
	if err != nil {
		ctxLogger.Error("Manual refresh failed", "error", err)
		utils.SendJSONError(w, "Refresh failed", http.StatusInternalServerError)
		return
	}

	// Partial failure stays silent beyond the counts; only a total failure
	// warrants a user-visible error.
	if report.AllFailed {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(report)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (h *PortfolioHandler) HandleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			utils.SendJSONError(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	snapshots, err := h.portfolioService.GetSnapshots(limit)
	if err != nil {
		logger.L.Error("Failed to list snapshots", "error", err)
		utils.SendJSONError(w, "Failed to retrieve snapshot history", http.StatusInternalServerError)
		return
	}
	if snapshots == nil {
		snapshots = []models.PortfolioSnapshot{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshots)
}

func (h *PortfolioHandler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="portfolio_export.csv"`)
	if err := h.portfolioService.ExportCSV(w); err != nil {
		logger.L.Error("CSV export failed", "error", err)
	}
}
