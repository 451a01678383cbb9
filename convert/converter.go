package convert

import (
	"errors"
	"fmt"

	"github.com/dnldd/stocketl/shared"
	"github.com/rs/zerolog"
)

// ConverterConfig represents the configuration for the converter.
type ConverterConfig struct {
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ConverterConfig) Validate() error {
	var errs error

	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("converter logger cannot be nil"))
	}

	return errs
}

// Converter rescales price series into a target currency.
type Converter struct {
	cfg *ConverterConfig
}

// NewConverter initializes a new converter.
func NewConverter(cfg *ConverterConfig) (*Converter, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating converter config: %w", err)
	}

	return &Converter{cfg: cfg}, nil
}

// Convert expresses the series in the target currency using the rate set. OHLC values
// are multiplied by the target rate, volume is unchanged. The provided series is not
// modified.
func (c *Converter) Convert(series *shared.PriceSeries, rates *shared.ExchangeRateSet, target string) (*shared.ConvertedPriceSeries, error) {
	rate, ok := rates.Rate(target)
	if !ok {
		return nil, shared.NewMissingRateError(target)
	}

	converted := &shared.ConvertedPriceSeries{
		Ticker:   series.Ticker,
		Currency: target,
		Rate:     rate,
		Bars:     make([]shared.ConvertedBar, 0, series.Len()),
	}

	for idx := range series.Bars {
		bar := series.Bars[idx]
		converted.Bars = append(converted.Bars, shared.ConvertedBar{
			PriceBar: shared.PriceBar{
				Timestamp: bar.Timestamp,
				Open:      bar.Open.Mul(rate),
				High:      bar.High.Mul(rate),
				Low:       bar.Low.Mul(rate),
				Close:     bar.Close.Mul(rate),
				Volume:    bar.Volume,
			},
			Currency: target,
			Rate:     rate,
		})
	}

	c.cfg.Logger.Info().Msgf("converted %d bars for %s into %s at %s", converted.Len(),
		series.Ticker, target, rate.String())

	return converted, nil
}
