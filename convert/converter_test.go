package convert

import (
	"strings"
	"testing"
	"time"

	"github.com/dnldd/stocketl/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testSeries() *shared.PriceSeries {
	return &shared.PriceSeries{
		Ticker: "AAPL",
		Bars: []shared.PriceBar{
			{
				Timestamp: time.UnixMilli(1700000000000).UTC(),
				Open:      dec("10"),
				High:      dec("12"),
				Low:       dec("9"),
				Close:     dec("11"),
				Volume:    dec("100"),
			},
			{
				Timestamp: time.UnixMilli(1700086400000).UTC(),
				Open:      dec("187.15"),
				High:      dec("188.44"),
				Low:       dec("183.885"),
				Close:     dec("185.64"),
				Volume:    dec("58414460"),
			},
		},
	}
}

func testRates(rates map[string]string) *shared.ExchangeRateSet {
	set := shared.NewExchangeRateSet("USD", time.Date(2023, 11, 14, 0, 0, 0, 0, time.UTC))
	for code, rate := range rates {
		set.Rates[code] = dec(rate)
	}

	return set
}

func TestConvert(t *testing.T) {
	converter, err := NewConverter(&ConverterConfig{Logger: &log.Logger})
	assert.NoError(t, err)

	series := testSeries()
	converted, err := converter.Convert(series, testRates(map[string]string{"EUR": "0.9", "GBP": "0.79"}), "EUR")
	assert.NoError(t, err)
	assert.Equal(t, converted.Ticker, "AAPL")
	assert.Equal(t, converted.Currency, "EUR")
	assert.Equal(t, converted.Len(), 2)
	assert.True(t, converted.Rate.Equal(dec("0.9")))

	// Ensure ohlc values are scaled exactly and volume is unchanged.
	first := converted.Bars[0]
	assert.Equal(t, first.Close.String(), "9.9")
	assert.Equal(t, first.Open.String(), "9")
	assert.Equal(t, first.High.String(), "10.8")
	assert.Equal(t, first.Low.String(), "8.1")
	assert.Equal(t, first.Volume.String(), "100")
	assert.Equal(t, first.Currency, "EUR")
	assert.Equal(t, first.Rate.String(), "0.9")
	assert.Equal(t, first.Timestamp, series.Bars[0].Timestamp)

	for idx := range converted.Bars {
		want := series.Bars[idx].Close.Mul(dec("0.9"))
		assert.True(t, converted.Bars[idx].Close.Equal(want))
	}

	// Ensure the input series is untouched.
	if diff := cmp.Diff(series, testSeries()); diff != "" {
		t.Errorf("input series was modified (-got +want):\n%s", diff)
	}
}

func TestConvertMissingRate(t *testing.T) {
	converter, err := NewConverter(&ConverterConfig{Logger: &log.Logger})
	assert.NoError(t, err)

	tests := []struct {
		name   string
		rates  map[string]string
		target string
	}{
		{"empty rates", map[string]string{}, "EUR"},
		{"other currencies only", map[string]string{"GBP": "0.79", "JPY": "144.2"}, "EUR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := testSeries()
			_, err := converter.Convert(series, testRates(tt.rates), tt.target)
			assert.Error(t, err)
			assert.Equal(t, shared.KindOf(err), shared.MissingRateError)
			assert.True(t, strings.Contains(err.Error(), tt.target))

			if diff := cmp.Diff(series, testSeries()); diff != "" {
				t.Errorf("input series was modified (-got +want):\n%s", diff)
			}
		})
	}
}

func TestConvertEmptySeries(t *testing.T) {
	converter, err := NewConverter(&ConverterConfig{Logger: &log.Logger})
	assert.NoError(t, err)

	converted, err := converter.Convert(&shared.PriceSeries{Ticker: "AAPL"}, testRates(map[string]string{"EUR": "0.9"}), "EUR")
	assert.NoError(t, err)
	assert.Equal(t, converted.Len(), 0)
}
