// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/username/rupeefolio/backend/src/models"
)

// Define common service errors
var (
	ErrAllSourcesFailed   = errors.New("all quote sources failed")
	ErrParsingFailed      = errors.New("spreadsheet parsing failed")
	ErrSchemeCodeNotFound = errors.New("scheme code not found")
)

// PriceService fetches a normalized quote for one instrument, falling back
// across providers. A fully exhausted provider chain returns
// ErrAllSourcesFailed; callers must keep any previously cached price.
type PriceService interface {
	FetchPrice(ctx context.Context, symbol string, assetType models.AssetType) (models.PriceRecord, error)
}

// SchemeResolver resolves a mutual fund scheme name to its AMFI scheme code
// via the external scheme directory.
type SchemeResolver interface {
	ResolveSchemeCode(ctx context.Context, schemeName string) (string, error)
}

// ImportService turns an uploaded ledger or holdings sheet into persisted
// holdings.
type ImportService interface {
	ProcessImport(ctx context.Context, file io.Reader, filename string) (*models.ImportSummary, error)
}

// PortfolioService owns the refresh cycle and the read-side aggregations.
type PortfolioService interface {
	GetHoldingsWithPrices() ([]models.HoldingWithPrice, error)
	GetStats() (models.PortfolioStats, error)
	GetSnapshots(limit int) ([]models.PortfolioSnapshot, error)
	// RefreshPrices runs one refresh cycle. When the market is closed and
	// forced is false the cycle is a silent no-op that retains the cache.
	RefreshPrices(ctx context.Context, forced bool) (models.RefreshReport, error)
	// RefreshTwice runs two forced passes separated by a short gap, the same
	// shape the daily scheduler uses.
	RefreshTwice(ctx context.Context, gap time.Duration) (models.RefreshReport, error)
	ExportCSV(w io.Writer) error
	InvalidateStatsCache()
}
