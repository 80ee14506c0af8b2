package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryawaa/twinkle/src/bridge"
	"github.com/ryawaa/twinkle/src/logger"
	"github.com/ryawaa/twinkle/src/models"
	"github.com/ryawaa/twinkle/src/network"
	"github.com/ryawaa/twinkle/src/sparkle"
	"github.com/ryawaa/twinkle/src/storage"
	"github.com/ryawaa/twinkle/src/ticker"
	"github.com/ryawaa/twinkle/src/utils"
)

const runningStatus = "WebSocket server is running"

// -----------------------------------------------------------------------------
// Fake sparkle
// -----------------------------------------------------------------------------

type fakeSparkle struct {
	srv       *httptest.Server
	starts    atomic.Int32
	startFail atomic.Bool
	controls  chan models.MControlMessage
}

func newFakeSparkle(t *testing.T) *fakeSparkle {
	f := &fakeSparkle{controls: make(chan models.MControlMessage, 16)}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/start-websocket", func(w http.ResponseWriter, r *http.Request) {
		f.starts.Add(1)
		if f.startFail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"status":"` + runningStatus + `"}`))
	})
	mux.HandleFunc("/ws/trades", f.trades)
	mux.HandleFunc("/api/v1/marketnews", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"headline":"Markets rally"}]`))
	})
	mux.HandleFunc("/api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "FAIL" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"count":1,"result":[{"symbol":"AAPL"}],"totalCount":1}`))
	})
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		switch {
		case symbol == "FAIL":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"upstream exploded"}`))
		case strings.HasSuffix(r.URL.Path, "/quote"):
			w.Write([]byte(`{"c":101,"b":99.5,"a":100.5}`))
		default:
			w.Write([]byte(`{"path":"` + r.URL.Path + `","symbol":"` + symbol + `"}`))
		}
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// trades answers every subscribe with a junk frame and a mixed batch.
func (f *fakeSparkle) trades(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var msg models.MControlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		f.controls <- msg
		if msg.Type != models.ControlSubscribe {
			continue
		}

		conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		conn.WriteJSON(models.MTradeMessage{Type: "trade", Data: []models.MTrade{
			{Price: 300, Symbol: "MSFT", Timestamp: 1, Volume: 5},
			{Price: 99, Symbol: msg.Symbol, Timestamp: 2, Volume: 1},
			{Price: 101, Symbol: msg.Symbol, Timestamp: 3, Volume: 10, Conditions: models.MConditionCodes{1}},
		}})
	}
}

// -----------------------------------------------------------------------------

func newTestServer(t *testing.T) (*Server, *fakeSparkle) {
	t.Helper()
	f := newFakeSparkle(t)

	log := logger.NewLogger("ERROR", "ServerTest")
	log.SetOutput(io.Discard)

	cfg := &models.MConfig{
		Name:     "twinkle",
		LogLevel: "ERROR",
		Sparkle: models.MSparkleConfig{
			BaseURL:       f.srv.URL,
			WSPath:        "/ws/trades",
			StartPath:     "/ws/start-websocket",
			RunningStatus: runningStatus,
			Timeout:       5,
		},
		Network: models.MNetworkConfig{RequestTimeout: 5},
		Ticker:  models.MTickerConfig{SendBuffer: 16},
	}

	client := sparkle.NewClient(cfg, network.NewNetworkManager(cfg, log), log)
	s := NewServer(cfg, log, Dependencies{
		Sparkle: client,
		Bridge:  bridge.NewBootstrapper(client, cfg, log),
		Store:   storage.NewMemoryStore(),
		Markets: utils.NewMarketScheduler("xnys", log),
		Dialer:  ticker.NewWSDialer(5*time.Second, ""),
	})

	t.Cleanup(s.Hub.Stop)
	return s, f
}

func doRequest(s *Server, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	s.Handler().ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

// -----------------------------------------------------------------------------
// REST
// -----------------------------------------------------------------------------

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/does-not-exist")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not found", errorBody(t, w))
}

func TestRequestIDHeader(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/health")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeaderKey))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeaderKey, "abc-123")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeaderKey))
}

func TestNews(t *testing.T) {
	s, f := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/news")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":[{"headline":"Markets rally"}]}`, w.Body.String())

	w = doRequest(s, http.MethodPost, "/api/news")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET", w.Header().Get("Allow"))
	assert.Equal(t, "Method POST Not Allowed", errorBody(t, w))

	f.srv.Close()
	w = doRequest(s, http.MethodGet, "/api/news")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error fetching news", errorBody(t, w))
}

func TestSymbolPassthroughs(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		route    string
		upstream string
		failure  string
	}{
		{"/api/peers", "/api/v1/peers", "Error fetching peers"},
		{"/api/company-news", "/api/v1/company-news", "upstream exploded"},
		{"/api/basic-financials", "/api/v1/basic-financials", "upstream exploded"},
		{"/api/profile", "/api/v1/profile", "Error fetching profile"},
		{"/api/recommendation-trends", "/api/v1/recommendation-trends", "upstream exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			w := doRequest(s, http.MethodGet, tt.route)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Invalid symbol", errorBody(t, w))

			w = doRequest(s, http.MethodGet, tt.route+"?symbol=AAPL&symbol=MSFT")
			assert.Equal(t, http.StatusBadRequest, w.Code)

			w = doRequest(s, http.MethodGet, tt.route+"?symbol=AAPL")
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"path":"`+tt.upstream+`","symbol":"AAPL"}`, w.Body.String())

			w = doRequest(s, http.MethodGet, tt.route+"?symbol=FAIL")
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, tt.failure, errorBody(t, w))
		})
	}
}

func TestQuote(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/quote?symbol=AAPL")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"c":101,"b":99.5,"a":100.5}`, w.Body.String())

	w = doRequest(s, http.MethodGet, "/api/quote?symbol=FAIL")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error fetching quote", errorBody(t, w))
}

func TestSearch(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/search")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid symbol", errorBody(t, w))

	w = doRequest(s, http.MethodGet, "/api/search?query=a&query=b")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid symbol", errorBody(t, w))

	w = doRequest(s, http.MethodGet, "/api/search?query=app")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":[{"symbol":"AAPL"}],"totalCount":1}`, w.Body.String())

	w = doRequest(s, http.MethodGet, "/api/search?query=FAIL")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error fetching symbols", errorBody(t, w))
}

// -----------------------------------------------------------------------------
// Live data
// -----------------------------------------------------------------------------

func TestStartBridgeOnce(t *testing.T) {
	s, f := newTestServer(t)

	for i := 0; i < 3; i++ {
		w := doRequest(s, http.MethodGet, "/api/ws/start")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"WebSocket server is running"}`, w.Body.String())
	}
	assert.Equal(t, int32(1), f.starts.Load())
}

func TestStartBridgeFailure(t *testing.T) {
	s, f := newTestServer(t)
	f.startFail.Store(true)

	w := doRequest(s, http.MethodGet, "/api/ws/start")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "live data unavailable", errorBody(t, w))

	f.startFail.Store(false)
	w = doRequest(s, http.MethodGet, "/api/ws/start")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(2), f.starts.Load())
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	// Wednesday 11:00 in New York
	s.deps.Markets.Now = func() time.Time { return time.Date(2024, 1, 10, 16, 0, 0, 0, time.UTC) }

	w := doRequest(s, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["connections"])
	assert.Equal(t, "stopped", body["bridge"])
	assert.Equal(t, true, body["marketOpen"])

	doRequest(s, http.MethodGet, "/api/ws/start")
	w = doRequest(s, http.MethodGet, "/api/health")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "running", body["bridge"])
}

func TestLatestTrade(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/ticker/latest?symbol=AAPL")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, s.deps.Store.SaveLatestTrade(context.Background(),
		models.MTrade{Price: 99, Symbol: "AAPL", Timestamp: 5, Volume: 1, Conditions: models.MConditionCodes{1, 777}}))

	w = doRequest(s, http.MethodGet, "/api/ticker/latest?symbol=AAPL")
	require.Equal(t, http.StatusOK, w.Code)

	var event models.MTickerEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &event))
	assert.Equal(t, "trade", event.Type)
	assert.Equal(t, models.TradeSell, event.TradeType)
	assert.Equal(t, "Regular Sale, Unknown Condition: 777", event.Conditions)
	require.NotNil(t, event.Trade)
	assert.Equal(t, int64(5), event.Trade.Timestamp)
}

// -----------------------------------------------------------------------------

func TestTickerSocket(t *testing.T) {
	s, f := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws/ticker"
	browser, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.NoError(t, browser.WriteJSON(models.MControlMessage{Type: "subscribe", Symbol: "AAPL"}))

	// first trade event carries the last AAPL trade of the batch
	browser.SetReadDeadline(time.Now().Add(5 * time.Second))
	var trade models.MTickerEvent
	for {
		var event models.MTickerEvent
		require.NoError(t, browser.ReadJSON(&event))
		if event.Type == models.FrameTrade {
			trade = event
			break
		}
	}
	require.NotNil(t, trade.Trade)
	assert.Equal(t, "AAPL", trade.Symbol)
	assert.Equal(t, int64(3), trade.Trade.Timestamp)
	assert.Equal(t, models.TradeBuy, trade.TradeType)
	assert.Equal(t, "Regular Sale", trade.Conditions)

	assert.Equal(t, 1, s.Hub.Count())
	assert.Equal(t, models.MControlMessage{Type: "subscribe", Symbol: "AAPL"}, <-f.controls)

	// persisted for the latest-trade endpoint
	require.Eventually(t, func() bool {
		return doRequest(s, http.MethodGet, "/api/ticker/latest?symbol=AAPL").Code == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	// browser leaving tears the upstream subscription down
	browser.Close()
	select {
	case msg := <-f.controls:
		assert.Equal(t, models.MControlMessage{Type: "unsubscribe", Symbol: "AAPL"}, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("no unsubscribe after browser disconnect")
	}
	require.Eventually(t, func() bool { return s.Hub.Count() == 0 }, time.Second, 10*time.Millisecond)
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

func TestMissingQueryMapsValidationError(t *testing.T) {
	s, _ := newTestServer(t)

	var captured error
	s.engine.GET("/bind-check", func(c *gin.Context) {
		var q symbolQuery
		bindSingle(c, &q, "symbol", "Invalid symbol")
		if len(c.Errors) > 0 {
			captured = c.Errors[0].Err
		}
	})

	w := doRequest(s, http.MethodGet, "/bind-check")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid symbol", errorBody(t, w))

	var ve validator.ValidationErrors
	assert.True(t, errors.As(captured, &ve), "missing query reaches the middleware as a validation error")
}

func TestShutdownBeforeStart(t *testing.T) {
	s, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case <-s.Hub.Done():
	default:
		t.Fatal("hub still running after shutdown")
	}

	// a Start racing behind the shutdown returns instead of serving
	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start served after Shutdown")
	}
}
