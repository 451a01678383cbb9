package shared

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRateSet represents exchange rates for a base currency on a trade date.
type ExchangeRateSet struct {
	// Base is the base currency code.
	Base string
	// Date is the requested trade date.
	Date time.Time
	// ProviderDate is the date the provider reported the rates for.
	ProviderDate time.Time
	// Rates maps target currency codes to their rate against the base.
	Rates map[string]decimal.Decimal
}

// NewExchangeRateSet initializes an empty exchange rate set.
func NewExchangeRateSet(base string, date time.Time) *ExchangeRateSet {
	return &ExchangeRateSet{
		Base:  base,
		Date:  date,
		Rates: make(map[string]decimal.Decimal),
	}
}

// Rate returns the rate for the provided currency and whether it exists.
func (s *ExchangeRateSet) Rate(code string) (decimal.Decimal, bool) {
	rate, ok := s.Rates[code]
	return rate, ok
}

// Codes returns the currency codes of the set in sorted order.
func (s *ExchangeRateSet) Codes() []string {
	codes := make([]string, 0, len(s.Rates))
	for code := range s.Rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	return codes
}

// Len returns the number of rates in the set.
func (s *ExchangeRateSet) Len() int {
	return len(s.Rates)
}
