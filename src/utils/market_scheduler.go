package utils

import (
	"sync"
	"time"

	"github.com/ryawaa/twinkle/src/logger"
)

// MarketScheduler resolves and caches one calendar per MIC so every ticker
// frame can report whether its market is open.
type MarketScheduler struct {
	DefaultMIC string
	Calendars  map[string]*TradingCalendar
	Logger     *logger.Logger
	Now        func() time.Time
	mu         sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(defaultMIC string, l *logger.Logger) *MarketScheduler {
	return &MarketScheduler{
		DefaultMIC: defaultMIC,
		Calendars:  make(map[string]*TradingCalendar),
		Logger:     l,
		Now:        time.Now,
	}
}

// -----------------------------------------------------------------------------

// CalendarFor returns the (cached) calendar for a symbol.
func (ms *MarketScheduler) CalendarFor(symbol string) *TradingCalendar {
	mic := MICForSymbol(symbol, ms.DefaultMIC)

	ms.mu.RLock()
	cal, ok := ms.Calendars[mic]
	ms.mu.RUnlock()
	if ok {
		return cal
	}

	cal = GetCalendar(mic)
	if cal.Fallback {
		ms.Logger.Warning("No calendar for MIC '%s'. Using Mon-Fri 09:30-16:00 New York.", mic)
	}

	ms.mu.Lock()
	if existing, ok := ms.Calendars[mic]; ok {
		cal = existing
	} else {
		ms.Calendars[mic] = cal
	}
	ms.mu.Unlock()
	return cal
}

// -----------------------------------------------------------------------------

// IsMarketOpen reports whether the symbol's market is open right now.
func (ms *MarketScheduler) IsMarketOpen(symbol string) bool {
	return ms.CalendarFor(symbol).IsOpenOnMinute(ms.Now().UTC())
}

// -----------------------------------------------------------------------------

// DefaultMarketOpen reports the default market, used by the health check.
func (ms *MarketScheduler) DefaultMarketOpen() bool {
	return ms.IsMarketOpen("")
}
