package models

// MQuoteSnapshot is the bid/ask pair used for trade classification.
// Nil means the upstream did not report that side.
type MQuoteSnapshot struct {
	Bid *float64 `json:"b"`
	Ask *float64 `json:"a"`
}

// Known reports whether both sides are present.
func (q MQuoteSnapshot) Known() bool {
	return q.Bid != nil && q.Ask != nil
}

// -----------------------------------------------------------------------------

// MSymbolSearch is the reshaped search response.
type MSymbolSearch struct {
	Symbols    interface{} `json:"result"`
	TotalCount interface{} `json:"totalCount"`
}

// -----------------------------------------------------------------------------

// MResponse is a raw upstream HTTP response.
type MResponse struct {
	StatusCode int
	Body       []byte
}
