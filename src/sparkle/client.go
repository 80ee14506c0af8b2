package sparkle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ryawaa/twinkle/src/helpers"
	"github.com/ryawaa/twinkle/src/interfaces"
	"github.com/ryawaa/twinkle/src/logger"
	"github.com/ryawaa/twinkle/src/models"
)

// DefaultErrorMessage is reported when sparkle fails without a message.
const DefaultErrorMessage = "An error occurred"

const (
	pathQuote                = "/api/v1/quote"
	pathSearch               = "/api/v1/search"
	pathMarketNews           = "/api/v1/marketnews"
	pathProfile              = "/api/v1/profile"
	pathPeers                = "/api/v1/peers"
	pathRecommendationTrends = "/api/v1/recommendation-trends"
	pathBasicFinancials      = "/api/v1/basic-financials"
	pathCompanyNews          = "/api/v1/company-news"
)

// Client talks to the sparkle REST API.
type Client struct {
	baseURL   string
	wsPath    string
	startPath string
	network   interfaces.INetworkManager
	logger    *logger.Logger
}

var _ interfaces.ISparkleClient = (*Client)(nil)

// -----------------------------------------------------------------------------

func NewClient(cfg *models.MConfig, network interfaces.INetworkManager, log *logger.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.Sparkle.BaseURL, "/"),
		wsPath:    cfg.Sparkle.WSPath,
		startPath: cfg.Sparkle.StartPath,
		network:   network,
		logger:    log,
	}
}

// -----------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, path string, params map[string]string) (json.RawMessage, error) {
	resp, err := c.network.Get(ctx, c.baseURL+path, params)
	if err != nil {
		return nil, helpers.NewUpstreamError(0, err.Error(), err)
	}
	return c.handleResponse(path, resp)
}

// -----------------------------------------------------------------------------

func (c *Client) handleResponse(path string, resp *models.MResponse) (json.RawMessage, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := DefaultErrorMessage
		var body struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(resp.Body, &body); err == nil && body.Message != "" {
			message = body.Message
		}
		c.logger.Warning("%s answered %d: %s", path, resp.StatusCode, message)
		return nil, helpers.NewUpstreamError(resp.StatusCode, message, nil)
	}

	if !json.Valid(resp.Body) {
		return nil, helpers.NewUpstreamError(resp.StatusCode, fmt.Sprintf("invalid JSON from %s", path), nil)
	}
	return json.RawMessage(resp.Body), nil
}

// -----------------------------------------------------------------------------

func (c *Client) bySymbol(ctx context.Context, path, symbol string) (json.RawMessage, error) {
	return c.get(ctx, path, map[string]string{"symbol": symbol})
}

func (c *Client) FetchQuote(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.bySymbol(ctx, pathQuote, symbol)
}

func (c *Client) FetchProfile(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.bySymbol(ctx, pathProfile, symbol)
}

func (c *Client) FetchPeers(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.bySymbol(ctx, pathPeers, symbol)
}

func (c *Client) FetchRecommendationTrends(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.bySymbol(ctx, pathRecommendationTrends, symbol)
}

func (c *Client) FetchBasicFinancials(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.bySymbol(ctx, pathBasicFinancials, symbol)
}

func (c *Client) FetchCompanyNews(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.bySymbol(ctx, pathCompanyNews, symbol)
}

func (c *Client) FetchNews(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, pathMarketNews, nil)
}

// -----------------------------------------------------------------------------

// FetchSymbols searches sparkle and reshapes the answer.
func (c *Client) FetchSymbols(ctx context.Context, query string) (*models.MSymbolSearch, error) {
	raw, err := c.get(ctx, pathSearch, map[string]string{"query": query})
	if err != nil {
		return nil, err
	}

	var body struct {
		Result     interface{} `json:"result"`
		TotalCount interface{} `json:"totalCount"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, helpers.NewUpstreamError(http.StatusOK, "invalid search response", err)
	}
	return &models.MSymbolSearch{Symbols: body.Result, TotalCount: body.TotalCount}, nil
}

// -----------------------------------------------------------------------------

// FetchQuoteSnapshot returns the bid/ask pair for trade classification.
func (c *Client) FetchQuoteSnapshot(ctx context.Context, symbol string) (models.MQuoteSnapshot, error) {
	raw, err := c.FetchQuote(ctx, symbol)
	if err != nil {
		return models.MQuoteSnapshot{}, helpers.NewSnapshotError("quote fetch failed for "+symbol, err)
	}

	var snapshot models.MQuoteSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return models.MQuoteSnapshot{}, helpers.NewSnapshotError("invalid quote for "+symbol, err)
	}
	return snapshot, nil
}

// -----------------------------------------------------------------------------

// StartWebSocket asks sparkle to start its trade bridge.
func (c *Client) StartWebSocket(ctx context.Context) (models.MBridgeStatus, error) {
	raw, err := c.get(ctx, c.startPath, nil)
	if err != nil {
		return models.MBridgeStatus{}, err
	}

	var status models.MBridgeStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return models.MBridgeStatus{}, helpers.NewUpstreamError(http.StatusOK, "invalid bridge status", err)
	}
	return status, nil
}

// -----------------------------------------------------------------------------

// TradesURL is the base URL with the scheme swapped to ws(s) plus the trade path.
func (c *Client) TradesURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported sparkle scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + c.wsPath
	return u.String(), nil
}
