package ticker

// DefaultConditionTable maps US consolidated-tape sale condition codes, as
// numbered by the upstream trade feed.
var DefaultConditionTable = map[int]string{
	1:  "Regular Sale",
	2:  "Acquisition",
	3:  "Average Price Trade",
	4:  "Automatic Execution",
	5:  "Bunched Trade",
	6:  "Bunched Sold Trade",
	7:  "CAP Election",
	8:  "Cash Sale",
	9:  "Closing Prints",
	10: "Cross Trade",
	11: "Derivatively Priced",
	12: "Distribution",
	13: "Form T",
	14: "Extended Trading Hours (Sold Out of Sequence)",
	15: "Intermarket Sweep",
	16: "Market Center Official Close",
	17: "Market Center Official Open",
	18: "Market Center Opening Trade",
	19: "Market Center Reopening Trade",
	20: "Market Center Closing Trade",
	21: "Next Day",
	22: "Price Variation Trade",
	23: "Prior Reference Price",
	24: "Rule 155 Trade (AMEX)",
	25: "Rule 127 NYSE",
	26: "Opening Prints",
	28: "Stopped Stock (Regular Trade)",
	29: "Re-Opening Prints",
	30: "Seller",
	31: "Sold Last",
	32: "Sold Last and Stopped Stock",
	33: "Sold (Out of Sequence)",
	34: "Sold (Out of Sequence) and Stopped Stock",
	35: "Split Trade",
	36: "Stock Option",
	37: "Yellow Flag Regular Trade",
	38: "Odd Lot Trade",
	39: "Corrected Consolidated Close",
	41: "Trade Thru Exempt",
	52: "Contingent Trade",
	53: "Qualified Contingent Trade",
}

// ConditionTable returns the defaults with overrides applied on top.
func ConditionTable(overrides map[int]string) map[int]string {
	table := make(map[int]string, len(DefaultConditionTable)+len(overrides))
	for code, name := range DefaultConditionTable {
		table[code] = name
	}
	for code, name := range overrides {
		table[code] = name
	}
	return table
}
