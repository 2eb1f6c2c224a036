package domain

import "github.com/shopspring/decimal"

// Money and quantities travel as JSON numbers. Decoding still accepts
// quoted strings.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}
