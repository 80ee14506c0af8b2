package interfaces

import (
	"context"
	"encoding/json"

	"github.com/ryawaa/twinkle/src/models"
)

// -----------------------------------------------------------------------------
// ISparkleClient is the REST surface of the upstream market-data service.
// Payloads are passed through verbatim.
// -----------------------------------------------------------------------------

type ISparkleClient interface {
	FetchQuote(ctx context.Context, symbol string) (json.RawMessage, error)
	FetchQuoteSnapshot(ctx context.Context, symbol string) (models.MQuoteSnapshot, error)
	FetchSymbols(ctx context.Context, query string) (*models.MSymbolSearch, error)
	FetchNews(ctx context.Context) (json.RawMessage, error)
	FetchProfile(ctx context.Context, symbol string) (json.RawMessage, error)
	FetchPeers(ctx context.Context, symbol string) (json.RawMessage, error)
	FetchRecommendationTrends(ctx context.Context, symbol string) (json.RawMessage, error)
	FetchBasicFinancials(ctx context.Context, symbol string) (json.RawMessage, error)
	FetchCompanyNews(ctx context.Context, symbol string) (json.RawMessage, error)
	StartWebSocket(ctx context.Context) (models.MBridgeStatus, error)
	TradesURL() (string, error)
}
