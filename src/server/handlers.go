package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ryawaa/twinkle/src/helpers"
	"github.com/ryawaa/twinkle/src/models"
	"github.com/ryawaa/twinkle/src/ticker"
)

type symbolQuery struct {
	Symbol string `form:"symbol" binding:"required"`
}

type searchQuery struct {
	Query string `form:"query" binding:"required"`
}

type symbolFetch func(ctx context.Context, symbol string) (json.RawMessage, error)

// -----------------------------------------------------------------------------
// Query helpers
// -----------------------------------------------------------------------------

// bindSingle binds a required query parameter that must be given exactly once.
// Validation failures carry message as meta for errorMiddleware.
func bindSingle(c *gin.Context, obj interface{}, name, message string) bool {
	if len(c.QueryArray(name)) > 1 {
		c.Error(newAPIError(http.StatusBadRequest, message, nil))
		return false
	}
	if err := c.ShouldBindQuery(obj); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			c.Error(err).SetMeta(message)
		} else {
			c.Error(newAPIError(http.StatusBadRequest, message, err))
		}
		return false
	}
	return true
}

// upstreamMessage is the sparkle-supplied message behind err.
func upstreamMessage(err error) string {
	var ue *helpers.UpstreamError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return err.Error()
}

// -----------------------------------------------------------------------------

// passthrough serves a symbol-keyed sparkle resource verbatim. An empty
// failMessage reports the upstream message instead.
func (s *Server) passthrough(c *gin.Context, fetch symbolFetch, failMessage string) {
	var q symbolQuery
	if !bindSingle(c, &q, "symbol", "Invalid symbol") {
		return
	}

	data, err := fetch(c.Request.Context(), q.Symbol)
	if err != nil {
		message := failMessage
		if message == "" {
			message = upstreamMessage(err)
		}
		c.Error(newAPIError(http.StatusInternalServerError, message, err))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// -----------------------------------------------------------------------------
// sparkle passthroughs
// -----------------------------------------------------------------------------

func (s *Server) getNews(c *gin.Context) {
	if c.Request.Method != http.MethodGet {
		c.Header("Allow", http.MethodGet)
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": fmt.Sprintf("Method %s Not Allowed", c.Request.Method)})
		return
	}

	result, err := s.deps.Sparkle.FetchNews(c.Request.Context())
	if err != nil {
		c.Error(newAPIError(http.StatusInternalServerError, "Error fetching news", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (s *Server) getPeers(c *gin.Context) {
	s.passthrough(c, s.deps.Sparkle.FetchPeers, "Error fetching peers")
}

func (s *Server) getCompanyNews(c *gin.Context) {
	s.passthrough(c, s.deps.Sparkle.FetchCompanyNews, "")
}

func (s *Server) getQuote(c *gin.Context) {
	s.passthrough(c, s.deps.Sparkle.FetchQuote, "Error fetching quote")
}

func (s *Server) getBasicFinancials(c *gin.Context) {
	s.passthrough(c, s.deps.Sparkle.FetchBasicFinancials, "")
}

func (s *Server) getProfile(c *gin.Context) {
	s.passthrough(c, s.deps.Sparkle.FetchProfile, "Error fetching profile")
}

func (s *Server) getRecommendationTrends(c *gin.Context) {
	s.passthrough(c, s.deps.Sparkle.FetchRecommendationTrends, "")
}

// -----------------------------------------------------------------------------

func (s *Server) getSearch(c *gin.Context) {
	var q searchQuery
	if !bindSingle(c, &q, "query", "Invalid symbol") {
		return
	}

	result, err := s.deps.Sparkle.FetchSymbols(c.Request.Context(), q.Query)
	if err != nil {
		c.Error(newAPIError(http.StatusInternalServerError, "Error fetching symbols", err))
		return
	}
	c.JSON(http.StatusOK, result)
}

// -----------------------------------------------------------------------------
// Live data
// -----------------------------------------------------------------------------

func (s *Server) startBridge(c *gin.Context) {
	status, err := s.deps.Bridge.EnsureStarted(c.Request.Context())
	if err != nil {
		c.Error(newAPIError(http.StatusServiceUnavailable, "live data unavailable", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status.Status})
}

// -----------------------------------------------------------------------------

func (s *Server) getLatestTrade(c *gin.Context) {
	var q symbolQuery
	if !bindSingle(c, &q, "symbol", "Invalid symbol") {
		return
	}
	ctx := c.Request.Context()

	trade, err := s.deps.Store.GetLatestTrade(ctx, q.Symbol)
	if err != nil {
		c.Error(newAPIError(http.StatusInternalServerError, "Error fetching latest trade", err))
		return
	}
	if trade == nil {
		c.Error(newAPIError(http.StatusNotFound, "No trade recorded for "+q.Symbol, nil))
		return
	}

	quote, err := s.deps.Sparkle.FetchQuoteSnapshot(ctx, q.Symbol)
	if err != nil {
		s.Logger.Warning("Failed to fetch bid/ask for %s: %v", q.Symbol, err)
	}

	c.JSON(http.StatusOK, models.MTickerEvent{
		Type:       models.FrameTrade,
		Symbol:     trade.Symbol,
		Trade:      trade,
		TradeType:  ticker.IdentifyTradeType(*trade, quote),
		Conditions: ticker.DecodeConditions(trade.Conditions, s.conditions),
		MarketOpen: s.marketOpen(trade.Symbol),
	})
}

// -----------------------------------------------------------------------------

func (s *Server) getHealth(c *gin.Context) {
	bridge := "stopped"
	if _, running := s.deps.Bridge.Status(); running {
		bridge = "running"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.Hub.Count(),
		"bridge":      bridge,
		"marketOpen":  s.defaultMarketOpen(),
	})
}

// -----------------------------------------------------------------------------

func (s *Server) defaultMarketOpen() *bool {
	if s.deps.Markets == nil {
		return nil
	}
	open := s.deps.Markets.DefaultMarketOpen()
	return &open
}

func (s *Server) marketOpen(symbol string) *bool {
	if s.deps.Markets == nil {
		return nil
	}
	open := s.deps.Markets.IsMarketOpen(strings.TrimSpace(symbol))
	return &open
}
