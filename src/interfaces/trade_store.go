package interfaces

import (
	"context"

	"github.com/ryawaa/twinkle/src/models"
)

// -----------------------------------------------------------------------------
// ITradeStore keeps the most recent trade per symbol. Never history.
// -----------------------------------------------------------------------------

type ITradeStore interface {

	// Initialize opens the backend and creates the schema.
	Initialize(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// SaveLatestTrade upserts the trade as the latest for its symbol.
	SaveLatestTrade(ctx context.Context, trade models.MTrade) error

	// -----------------------------------------------------------------------------

	// GetLatestTrade returns nil, nil when nothing is recorded for symbol.
	GetLatestTrade(ctx context.Context, symbol string) (*models.MTrade, error)

	// -----------------------------------------------------------------------------

	Close() error
}
