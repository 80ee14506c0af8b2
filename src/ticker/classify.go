package ticker

import (
	"fmt"
	"strings"

	"github.com/ryawaa/twinkle/src/models"
)

// IdentifyTradeType classifies a trade against the quote snapshot. Without
// both sides of the quote the answer is always Unknown.
func IdentifyTradeType(trade models.MTrade, quote models.MQuoteSnapshot) string {
	if !quote.Known() {
		return models.TradeUnknown
	}
	if trade.Price >= *quote.Ask {
		return models.TradeBuy
	}
	if trade.Price <= *quote.Bid {
		return models.TradeSell
	}
	return models.TradeUnknown
}

// -----------------------------------------------------------------------------

// DecodeConditions renders condition codes through table, keeping their order.
func DecodeConditions(codes []int, table map[int]string) string {
	if len(codes) == 0 {
		return "No conditions"
	}

	names := make([]string, 0, len(codes))
	for _, code := range codes {
		if name, ok := table[code]; ok && name != "" {
			names = append(names, name)
			continue
		}
		names = append(names, fmt.Sprintf("Unknown Condition: %d", code))
	}
	return strings.Join(names, ", ")
}
