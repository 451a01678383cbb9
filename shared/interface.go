package shared

import (
	"context"
	"time"

	"github.com/tidwall/gjson"
)

// AggregatesRequest describes a request for a ticker's price bars over a date range.
type AggregatesRequest struct {
	Ticker     string
	Start      time.Time
	End        time.Time
	Multiplier int
	Timespan   Timespan
	APIKey     string
}

// RateFetcher defines the requirements for fetching currency exchange rates.
type RateFetcher interface {
	// FetchExchangeRates fetches the rates of the base currency against the provided
	// targets on the trade date. Empty targets fetches all known currencies.
	FetchExchangeRates(ctx context.Context, tradeDate time.Time, base string, targets []string) (*ExchangeRateSet, error)
}

// PriceFetcher defines the requirements for fetching raw price bar records.
type PriceFetcher interface {
	// FetchAggregates fetches the raw aggregate bar records for the request.
	FetchAggregates(ctx context.Context, req AggregatesRequest) ([]gjson.Result, error)
}
