package models

// -----------------------------------------------------------------------------
// Connection and subscription states
// -----------------------------------------------------------------------------

type ConnectionState int

const (
	ConnDisconnected ConnectionState = iota
	ConnConnecting
	ConnOpen
	ConnClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnDisconnected:
		return "disconnected"
	case ConnConnecting:
		return "connecting"
	case ConnOpen:
		return "open"
	case ConnClosed:
		return "closed"
	}
	return "unknown"
}

// -----------------------------------------------------------------------------

const (
	ControlSubscribe   = "subscribe"
	ControlUnsubscribe = "unsubscribe"

	FrameTrade  = "trade"
	FrameStatus = "status"

	TradeBuy     = "Buy"
	TradeSell    = "Sell"
	TradeUnknown = "Unknown"
)

// MControlMessage is the client->server frame, on both the bridge socket and
// the browser socket.
type MControlMessage struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// -----------------------------------------------------------------------------

// MTickerEvent is what the ticker pushes to its consumer (and, serialized,
// to the browser).
type MTickerEvent struct {
	Type       string  `json:"type"` // "trade" or "status"
	Symbol     string  `json:"symbol"`
	Trade      *MTrade `json:"trade,omitempty"`
	TradeType  string  `json:"tradeType,omitempty"`
	Conditions string  `json:"conditions,omitempty"`
	State      string  `json:"state,omitempty"`
	Message    string  `json:"message,omitempty"`
	MarketOpen *bool   `json:"marketOpen,omitempty"`
}
