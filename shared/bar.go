package shared

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar represents an OHLCV bar for a time window.
type PriceBar struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// Date returns the calendar date of the bar.
func (b *PriceBar) Date() string {
	return b.Timestamp.UTC().Format(DateLayout)
}

// IsNegative checks whether any of the bar's values is negative.
func (b *PriceBar) IsNegative() bool {
	return b.Open.IsNegative() || b.High.IsNegative() || b.Low.IsNegative() ||
		b.Close.IsNegative() || b.Volume.IsNegative()
}

// IsConsistent checks the high is the bar's maximum and the low its minimum.
func (b *PriceBar) IsConsistent() bool {
	maxBody := decimal.Max(b.Open, b.Close, b.Low)
	minBody := decimal.Min(b.Open, b.Close, b.High)

	return b.High.GreaterThanOrEqual(maxBody) && b.Low.LessThanOrEqual(minBody)
}

// PriceSeries represents the ordered price bars of a ticker.
type PriceSeries struct {
	Ticker string
	Bars   []PriceBar
}

// Len returns the number of bars in the series.
func (s *PriceSeries) Len() int {
	return len(s.Bars)
}

// ConvertedBar is a price bar expressed in a target currency.
type ConvertedBar struct {
	PriceBar
	// Currency is the currency the OHLC values are expressed in.
	Currency string
	// Rate is the exchange rate applied to the original OHLC values.
	Rate decimal.Decimal
}

// ConvertedPriceSeries represents a price series expressed in a target currency.
type ConvertedPriceSeries struct {
	Ticker   string
	Currency string
	Rate     decimal.Decimal
	Bars     []ConvertedBar
}

// Len returns the number of bars in the series.
func (s *ConvertedPriceSeries) Len() int {
	return len(s.Bars)
}
