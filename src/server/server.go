package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ryawaa/twinkle/src/helpers"
	"github.com/ryawaa/twinkle/src/interfaces"
	"github.com/ryawaa/twinkle/src/logger"
	"github.com/ryawaa/twinkle/src/models"
	"github.com/ryawaa/twinkle/src/ticker"
	"github.com/ryawaa/twinkle/src/utils"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Dependencies are the collaborators the HTTP layer fronts.
type Dependencies struct {
	Sparkle interfaces.ISparkleClient
	Bridge  interfaces.IBridge
	Store   interfaces.ITradeStore
	Markets *utils.MarketScheduler
	Dialer  ticker.Dialer
}

type Server struct {
	Config *models.MConfig
	Logger *logger.Logger
	Hub    *Hub

	deps       Dependencies
	conditions map[int]string
	errHandler *helpers.ErrorHandler
	engine     *gin.Engine
	httpServer *http.Server
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewServer(cfg *models.MConfig, log *logger.Logger, deps Dependencies) *Server {
	// Set Gin mode
	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s := &Server{
		Config:     cfg,
		Logger:     log,
		Hub:        NewHub(log.Named("Hub")),
		deps:       deps,
		conditions: ticker.ConditionTable(cfg.Ticker.ConditionTable),
		errHandler: helpers.NewErrorHandler(log.Named("Ticker")),
		engine:     gin.New(),
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.engine.Use(
		gin.Recovery(),
		requestIDMiddleware(),
		requestLoggerMiddleware(log.Named("HTTP")),
		corsMiddleware(),
		errorMiddleware(log),
	)

	s.setupRoutes()
	go s.Hub.Run()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")

	// sparkle passthroughs
	api.Any("/news", s.getNews)
	api.Any("/peers", s.getPeers)
	api.Any("/company-news", s.getCompanyNews)
	api.Any("/search", s.getSearch)
	api.Any("/quote", s.getQuote)
	api.Any("/basic-financials", s.getBasicFinancials)
	api.Any("/profile", s.getProfile)
	api.Any("/recommendation-trends", s.getRecommendationTrends)

	// live data
	api.GET("/ws/start", s.startBridge)
	api.GET("/ws/ticker", s.handleTickerSocket)
	api.GET("/ticker/latest", s.getLatestTrade)

	api.GET("/health", s.getHealth)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

// -----------------------------------------------------------------------------

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start blocks serving HTTP until Shutdown. It returns nil right away when
// Shutdown already ran.
func (s *Server) Start() error {
	s.Logger.Info("Starting server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Shutdown stops accepting requests, then drops every ticker client and
// waits for the hub to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.Hub.Stop()

	select {
	case <-s.Hub.Done():
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}
