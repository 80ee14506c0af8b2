package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MTrade is one executed trade as pushed by the bridge.
type MTrade struct {
	Price      float64         `json:"p"`
	Symbol     string          `json:"s"`
	Timestamp  int64           `json:"t"` // ms since epoch
	Volume     float64         `json:"v"`
	Conditions MConditionCodes `json:"c,omitempty"`
}

// -----------------------------------------------------------------------------

// MTradeMessage is the server->client frame on the bridge socket.
type MTradeMessage struct {
	Type string   `json:"type"`
	Data []MTrade `json:"data"`
}

// -----------------------------------------------------------------------------

// MConditionCodes accepts codes sent either as numbers or numeric strings
// (the exchange feed is not consistent about it).
type MConditionCodes []int

func (c *MConditionCodes) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	codes := make(MConditionCodes, 0, len(raw))
	for _, item := range raw {
		var n int
		if err := json.Unmarshal(item, &n); err == nil {
			codes = append(codes, n)
			continue
		}

		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return fmt.Errorf("invalid condition code %s", string(item))
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid condition code %q", s)
		}
		codes = append(codes, n)
	}

	*c = codes
	return nil
}
