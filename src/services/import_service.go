// backend/src/services/import_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/username/rupeefolio/backend/src/database"
	"github.com/username/rupeefolio/backend/src/logger"
	"github.com/username/rupeefolio/backend/src/model"
	"github.com/username/rupeefolio/backend/src/models"
	"github.com/username/rupeefolio/backend/src/parsers"
	"github.com/username/rupeefolio/backend/src/processors"
)

type importServiceImpl struct {
	holdingsProcessor *processors.HoldingsProcessor
	schemeResolver    SchemeResolver
	portfolioService  PortfolioService
}

func NewImportService(schemeResolver SchemeResolver, portfolioService PortfolioService) ImportService {
	return &importServiceImpl{
		holdingsProcessor: processors.NewHoldingsProcessor(),
		schemeResolver:    schemeResolver,
		portfolioService:  portfolioService,
	}
}

// ProcessImport runs the full import pipeline: parse the sheet, resolve
// missing mutual fund scheme codes, fold the rows into holdings, persist the
// new positions. A format failure aborts the import; row-level problems are
// counted and reported in the summary.
func (s *importServiceImpl) ProcessImport(ctx context.Context, file io.Reader, filename string) (*models.ImportSummary, error) {
	result, err := parsers.Parse(file, filename)
	if err != nil {
		if errors.Is(err, parsers.ErrFormatNotRecognized) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	summary := &models.ImportSummary{
		Format:      string(result.Format),
		RowsParsed:  len(result.Rows),
		RowsSkipped: result.RowsSkipped,
	}

	rows, reviewSymbols := s.resolveSchemeCodes(ctx, result.Rows, summary)

	existingSymbols, err := model.ListHoldingSymbols(database.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing symbols: %w", err)
	}

	folded := s.holdingsProcessor.Reconcile(existingSymbols, rows)
	summary.RowsSkipped += folded.SkippedRows
	summary.Deduplicated = folded.Deduplicated
	summary.Warnings = append(summary.Warnings, folded.Warnings...)

	if len(folded.NewHoldings) > 0 {
		dbTx, err := database.DB.Begin()
		if err != nil {
			return nil, fmt.Errorf("error beginning database transaction: %w", err)
		}
		defer dbTx.Rollback()

		stmt, err := dbTx.Prepare(`
			INSERT INTO holdings (symbol, asset_type, name, quantity, average_cost, purchase_date, sector, exchange, needs_review)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return nil, fmt.Errorf("error preparing insert statement: %w", err)
		}
		defer stmt.Close()

		for _, h := range folded.NewHoldings {
			needsReview := 0
			if reviewSymbols[h.Symbol] {
				needsReview = 1
				summary.NeedsReview++
			}
			_, err := stmt.Exec(h.Symbol, h.AssetType, h.Name, h.Quantity, h.AverageCost,
				h.PurchaseDate, nullable(h.Sector), nullable(h.Exchange), needsReview)
			if err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
					logger.L.Debug("Skipping duplicate holding on import", "symbol", h.Symbol)
					summary.Deduplicated++
					continue
				}
				return nil, fmt.Errorf("error inserting holding %s: %w", h.Symbol, err)
			}
			summary.Imported++
		}

		if err := dbTx.Commit(); err != nil {
			return nil, fmt.Errorf("error committing holdings: %w", err)
		}
	}

	if summary.Imported > 0 {
		s.portfolioService.InvalidateStatsCache()
	}
	logger.L.Info("Import complete", "format", summary.Format, "imported", summary.Imported,
		"skipped", summary.RowsSkipped, "deduplicated", summary.Deduplicated, "warnings", len(summary.Warnings))
	return summary, nil
}

// resolveSchemeCodes fills in missing mutual fund symbols from the scheme
// directory. A failed lookup is non-fatal: the scheme name itself becomes a
// placeholder symbol and the holding is flagged for manual correction.
func (s *importServiceImpl) resolveSchemeCodes(ctx context.Context, rows []models.ImportRow, summary *models.ImportSummary) ([]models.ImportRow, map[string]bool) {
	reviewSymbols := make(map[string]bool)
	resolved := make(map[string]string) // scheme name -> code, within this batch

	for i := range rows {
		row := &rows[i]
		if row.AssetType != models.AssetMutualFund || row.Symbol != "" {
			continue
		}
		if code, ok := resolved[row.Name]; ok {
			row.Symbol = code
			continue
		}

		code, err := s.schemeResolver.ResolveSchemeCode(ctx, row.Name)
		if err != nil {
			// Never fabricate a code: import under the readable name instead.
			code = row.Name
			reviewSymbols[code] = true
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("scheme code not found for %q; imported for manual correction", row.Name))
			logger.L.Warn("Scheme code resolution failed", "schemeName", row.Name, "error", err)
		}
		resolved[row.Name] = code
		row.Symbol = code
	}
	return rows, reviewSymbols
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
