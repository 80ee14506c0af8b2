package ticker

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/ryawaa/twinkle/src/helpers"
	"github.com/ryawaa/twinkle/src/interfaces"
	"github.com/ryawaa/twinkle/src/logger"
	"github.com/ryawaa/twinkle/src/models"
)

// Status frame states
const (
	StatusConnecting   = "connecting"
	StatusSubscribed   = "subscribed"
	StatusWaiting      = "waiting"
	StatusClosed       = "closed"
	StatusUnsubscribed = "unsubscribed"
)

const (
	storeTimeout = 2 * time.Second
	saveBuffer   = 64
)

// QuoteFetcher supplies the bid/ask snapshot used for classification.
type QuoteFetcher interface {
	FetchQuoteSnapshot(ctx context.Context, symbol string) (models.MQuoteSnapshot, error)
}

// Options wires a Subscription. Store, MarketOpen, OnEvent and Errors may
// be nil.
type Options struct {
	URL        string
	Dialer     Dialer
	Bridge     interfaces.IBridge
	Quotes     QuoteFetcher
	Store      interfaces.ITradeStore
	Conditions map[int]string
	MarketOpen func(symbol string) bool
	OnEvent    func(models.MTickerEvent)
	Errors     *helpers.ErrorHandler
	Logger     *logger.Logger
}

// -----------------------------------------------------------------------------

// Subscription follows the trades of one symbol at a time over the shared
// sparkle trade socket.
type Subscription struct {
	opts Options

	// opMu serializes SetSymbol and Close, and with them every socket write.
	opMu sync.Mutex

	// emitMu orders OnEvent calls against symbol swaps. Lock order is
	// emitMu then mu.
	emitMu sync.Mutex

	mu     sync.Mutex
	symbol string
	conn   Conn
	state  models.ConnectionState
	latest *models.MTrade
	quote  models.MQuoteSnapshot
	saves  chan models.MTrade
}

// -----------------------------------------------------------------------------

func NewSubscription(opts Options) *Subscription {
	if opts.Conditions == nil {
		opts.Conditions = DefaultConditionTable
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewLogger("INFO", "Ticker")
	}
	if opts.Errors == nil {
		opts.Errors = helpers.NewErrorHandler(opts.Logger)
	}
	return &Subscription{opts: opts, state: models.ConnDisconnected}
}

// -----------------------------------------------------------------------------

// SetSymbol switches the tracked symbol. An empty symbol tears the
// subscription down.
func (s *Subscription) SetSymbol(ctx context.Context, symbol string) error {
	symbol = strings.TrimSpace(symbol)

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	old, conn, state := s.symbol, s.conn, s.state
	s.mu.Unlock()

	if symbol != "" && symbol == old && state == models.ConnOpen {
		return nil
	}

	if old != "" && conn != nil && state == models.ConnOpen {
		s.send(conn, models.ControlUnsubscribe, old)
	}

	s.swap(symbol)

	if symbol == "" {
		s.teardown(false)
		s.emitStatus(StatusUnsubscribed, old, "")
		return nil
	}

	s.refreshQuote(ctx, symbol)

	if _, err := s.opts.Bridge.EnsureStarted(ctx); err != nil {
		s.opts.Logger.Warning("Live data unavailable for %s: %v", symbol, err)
		s.emitStatus(StatusWaiting, symbol, "live data unavailable")
		return err
	}

	conn, err := s.connect(ctx)
	if err != nil {
		s.emitStatus(StatusClosed, symbol, "live data unavailable")
		return err
	}

	if err := s.send(conn, models.ControlSubscribe, symbol); err != nil {
		return err
	}
	s.opts.Logger.Info("Subscribed to %s", symbol)
	s.emitStatus(StatusSubscribed, symbol, "")
	return nil
}

// -----------------------------------------------------------------------------

// Close unsubscribes when the socket is open and closes it. Safe to call on
// an already closed subscription.
func (s *Subscription) Close() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.teardown(true)
	s.swap("")
	return nil
}

// -----------------------------------------------------------------------------

// swap replaces the tracked symbol. Holding emitMu means no trade event for
// the old symbol is delivered once swap returns.
func (s *Subscription) swap(symbol string) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.symbol = symbol
	s.latest = nil
	s.quote = models.MQuoteSnapshot{}
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

// teardown closes the socket; callers hold opMu.
func (s *Subscription) teardown(unsubscribe bool) {
	s.mu.Lock()
	conn, state, symbol := s.conn, s.state, s.symbol
	s.conn = nil
	s.state = models.ConnDisconnected
	s.mu.Unlock()

	if conn == nil {
		return
	}
	if unsubscribe && state == models.ConnOpen && symbol != "" {
		s.send(conn, models.ControlUnsubscribe, symbol)
	}
	if err := conn.Close(); err != nil {
		s.opts.Logger.Debug("Closing trade socket: %v", err)
	}
}

// -----------------------------------------------------------------------------

func (s *Subscription) refreshQuote(ctx context.Context, symbol string) {
	quote, err := s.opts.Quotes.FetchQuoteSnapshot(ctx, symbol)
	if s.opts.Errors.Handle(err, "bid/ask snapshot for "+symbol) {
		return
	}

	s.mu.Lock()
	if s.symbol == symbol {
		s.quote = quote
	}
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

// connect reuses the open socket or dials a new one; callers hold opMu.
func (s *Subscription) connect(ctx context.Context) (Conn, error) {
	s.mu.Lock()
	if s.conn != nil && s.state == models.ConnOpen {
		conn := s.conn
		s.mu.Unlock()
		return conn, nil
	}
	s.state = models.ConnConnecting
	symbol := s.symbol
	s.mu.Unlock()

	s.emitStatus(StatusConnecting, symbol, "")

	conn, err := s.opts.Dialer.Dial(ctx, s.opts.URL)
	if err != nil {
		s.mu.Lock()
		s.state = models.ConnDisconnected
		s.mu.Unlock()
		s.opts.Logger.Error("Failed to open trade socket: %v", err)
		return nil, err
	}

	var saves chan models.MTrade
	if s.opts.Store != nil {
		saves = make(chan models.MTrade, saveBuffer)
		go s.saveLoop(saves)
	}

	s.mu.Lock()
	s.conn = conn
	s.state = models.ConnOpen
	s.saves = saves
	s.mu.Unlock()

	s.opts.Logger.Info("Trade socket established")
	go s.readLoop(conn, saves)
	return conn, nil
}

// -----------------------------------------------------------------------------

func (s *Subscription) send(conn Conn, kind, symbol string) error {
	err := conn.WriteJSON(models.MControlMessage{Type: kind, Symbol: symbol})
	if err != nil {
		s.opts.Logger.Warning("Failed to send %s for %s: %v", kind, symbol, err)
	}
	return err
}

// -----------------------------------------------------------------------------

// readLoop owns saves and closes it on exit.
func (s *Subscription) readLoop(conn Conn, saves chan models.MTrade) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			current := s.conn == conn
			symbol := s.symbol
			if current {
				s.conn = nil
				s.state = models.ConnClosed
			}
			if saves != nil {
				if s.saves == saves {
					s.saves = nil
				}
				close(saves)
			}
			s.mu.Unlock()

			// A deliberate teardown already swapped the socket out.
			if current {
				s.opts.Logger.Warning("Trade socket closed: %v", err)
				conn.Close()
				s.emitStatus(StatusClosed, symbol, "connection closed")
			}
			return
		}
		s.handleMessage(data)
	}
}

// -----------------------------------------------------------------------------

// handleMessage applies one inbound frame. Bad frames are logged and dropped.
func (s *Subscription) handleMessage(data []byte) {
	var msg models.MTradeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.opts.Errors.Handle(helpers.NewFrameError("dropping malformed frame", err), "trade socket")
		return
	}
	if msg.Type == "" {
		s.opts.Errors.Handle(helpers.NewFrameError("dropping frame without type", nil), "trade socket")
		return
	}
	if msg.Type != models.FrameTrade {
		s.opts.Logger.Debug("Ignoring %q frame", msg.Type)
		return
	}

	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	symbol := s.symbol
	var match *models.MTrade
	for i := range msg.Data {
		if symbol != "" && msg.Data[i].Symbol == symbol {
			trade := msg.Data[i]
			match = &trade
		}
	}
	if match == nil {
		s.mu.Unlock()
		return
	}
	s.latest = match
	quote := s.quote
	s.queueSave(*match)
	s.mu.Unlock()

	if s.opts.OnEvent != nil {
		trade := *match
		s.opts.OnEvent(models.MTickerEvent{
			Type:       models.FrameTrade,
			Symbol:     symbol,
			Trade:      &trade,
			TradeType:  IdentifyTradeType(trade, quote),
			Conditions: DecodeConditions(trade.Conditions, s.opts.Conditions),
		})
	}
}

// -----------------------------------------------------------------------------

// queueSave hands trade to the save loop without blocking the read path; it
// is dropped when the queue is full. Callers hold mu.
func (s *Subscription) queueSave(trade models.MTrade) {
	if s.saves == nil {
		return
	}
	select {
	case s.saves <- trade:
	default:
		s.opts.Logger.Warning("Save queue full, dropping trade for %s at %d", trade.Symbol, trade.Timestamp)
	}
}

// -----------------------------------------------------------------------------

func (s *Subscription) saveLoop(saves <-chan models.MTrade) {
	for trade := range saves {
		s.persist(trade)
	}
}

func (s *Subscription) persist(trade models.MTrade) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	s.opts.Errors.Handle(s.opts.Store.SaveLatestTrade(ctx, trade), "saving latest trade for "+trade.Symbol)
}

// -----------------------------------------------------------------------------

func (s *Subscription) emitStatus(state, symbol, message string) {
	if s.opts.OnEvent == nil {
		return
	}
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	event := models.MTickerEvent{Type: models.FrameStatus, Symbol: symbol, State: state, Message: message}
	if s.opts.MarketOpen != nil && symbol != "" {
		open := s.opts.MarketOpen(symbol)
		event.MarketOpen = &open
	}
	s.opts.OnEvent(event)
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

func (s *Subscription) Symbol() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbol
}

func (s *Subscription) State() models.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LatestTrade returns a copy of the latest accepted trade, or nil.
func (s *Subscription) LatestTrade() *models.MTrade {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil
	}
	trade := *s.latest
	return &trade
}

func (s *Subscription) Quote() models.MQuoteSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quote
}

// TradeType classifies the latest trade against the current snapshot.
func (s *Subscription) TradeType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return models.TradeUnknown
	}
	return IdentifyTradeType(*s.latest, s.quote)
}
