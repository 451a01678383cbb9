package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/stocketl/clean"
	"github.com/dnldd/stocketl/convert"
	"github.com/dnldd/stocketl/shared"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// State represents a pipeline run state.
type State int

const (
	Init State = iota
	RatesFetched
	PricesFetched
	Cleaned
	Converted
	CurrenciesPersisted
	StockPersisted
	RatesPersisted
	PricesPersisted
	Done
	Failed
)

// String stringifies the provided state.
func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case RatesFetched:
		return "rates fetched"
	case PricesFetched:
		return "prices fetched"
	case Cleaned:
		return "cleaned"
	case Converted:
		return "converted"
	case CurrenciesPersisted:
		return "currencies persisted"
	case StockPersisted:
		return "stock persisted"
	case RatesPersisted:
		return "rates persisted"
	case PricesPersisted:
		return "prices persisted"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// stage returns the metric label of the step that leads to the state.
func (s State) stage() string {
	switch s {
	case RatesFetched:
		return "fetch_rates"
	case PricesFetched:
		return "fetch_prices"
	case Cleaned:
		return "clean"
	case Converted:
		return "convert"
	case CurrenciesPersisted:
		return "persist_currencies"
	case StockPersisted:
		return "persist_stock"
	case RatesPersisted:
		return "persist_rates"
	case PricesPersisted:
		return "persist_prices"
	default:
		return "unknown"
	}
}

// Persister defines the warehouse writes of a run.
type Persister interface {
	// RecordCurrency records the provided currency code.
	RecordCurrency(ctx context.Context, code string) error
	// RecordStock resolves the warehouse identity of the provided ticker.
	RecordStock(ctx context.Context, ticker string) (int64, error)
	// RecordExchangeRates records a row per target currency of the rate set.
	RecordExchangeRates(ctx context.Context, tradeDate time.Time, rates *shared.ExchangeRateSet) (int, error)
	// RecordPriceRows records every bar of the series, returning the number recorded.
	RecordPriceRows(ctx context.Context, stockID int64, series *shared.ConvertedPriceSeries) (int, error)
}

// Metrics defines the run measurements the pipeline reports.
type Metrics interface {
	// ObserveStage records the duration of a pipeline stage.
	ObserveStage(stage string, d time.Duration)
	// AddRows records rows handled by kind.
	AddRows(kind string, n int)
}

// Row kinds reported to metrics.
const (
	RowsFetched   = "fetched"
	RowsCleaned   = "cleaned"
	RowsDropped   = "dropped"
	RowsPersisted = "persisted"
)

// PipelineConfig represents the configuration of a pipeline run.
type PipelineConfig struct {
	// Run is the run configuration.
	Run *shared.Configuration
	// RateFetcher fetches exchange rates.
	RateFetcher shared.RateFetcher
	// PriceFetcher fetches raw price bars.
	PriceFetcher shared.PriceFetcher
	// Cleaner cleans raw price bars.
	Cleaner *clean.Cleaner
	// Converter converts price series into the target currency.
	Converter *convert.Converter
	// Persister records run outputs in the warehouse.
	Persister Persister
	// Metrics records run measurements. Optional.
	Metrics Metrics
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *PipelineConfig) Validate() error {
	var errs error

	if cfg.Run == nil {
		errs = errors.Join(errs, fmt.Errorf("run configuration cannot be nil"))
	}
	if cfg.RateFetcher == nil {
		errs = errors.Join(errs, fmt.Errorf("rate fetcher cannot be nil"))
	}
	if cfg.PriceFetcher == nil {
		errs = errors.Join(errs, fmt.Errorf("price fetcher cannot be nil"))
	}
	if cfg.Cleaner == nil {
		errs = errors.Join(errs, fmt.Errorf("cleaner cannot be nil"))
	}
	if cfg.Converter == nil {
		errs = errors.Join(errs, fmt.Errorf("converter cannot be nil"))
	}
	if cfg.Persister == nil {
		errs = errors.Join(errs, fmt.Errorf("persister cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("pipeline logger cannot be nil"))
	}

	return errs
}

// Result summarizes a pipeline run. Counts reflect the steps completed before a failure.
type Result struct {
	// State is the final run state, either Done or Failed.
	State State
	// Rates is the fetched rate set.
	Rates *shared.ExchangeRateSet
	// Fetched is the number of raw price records fetched.
	Fetched int
	// Report is the cleaning report.
	Report *clean.Report
	// Series is the converted price series.
	Series *shared.ConvertedPriceSeries
	// Currencies are the currency codes recorded.
	Currencies []string
	// StockID is the warehouse identity of the ticker.
	StockID int64
	// RatesPersisted is the number of exchange rate rows recorded.
	RatesPersisted int
	// PricesPersisted is the number of price rows recorded.
	PricesPersisted int
}

// Pipeline sequences a single batch run: fetch, clean, convert and persist.
type Pipeline struct {
	cfg *PipelineConfig
}

// NewPipeline initializes a new pipeline.
func NewPipeline(cfg *PipelineConfig) (*Pipeline, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, shared.NewConfigurationError("validating pipeline config", err)
	}

	return &Pipeline{cfg: cfg}, nil
}

// currencySet returns the currency codes recorded for a run. The base currency leads
// the set when included and is otherwise left out.
func currencySet(rates *shared.ExchangeRateSet, include bool) []string {
	codes := rates.Codes()
	set := make([]string, 0, len(codes)+1)
	if include {
		set = append(set, rates.Base)
	}
	for _, code := range codes {
		if code == rates.Base {
			continue
		}
		set = append(set, code)
	}

	return set
}

// step runs fn and advances the result to the next state, or to Failed when fn errors.
func (p *Pipeline) step(res *Result, next State, fn func() error) error {
	start := time.Now()
	err := fn()
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.ObserveStage(next.stage(), time.Since(start))
	}
	if err != nil {
		p.cfg.Logger.Error().Err(err).
			Str("kind", shared.KindOf(err).String()).
			Str("failed_at", next.stage()).
			Msgf("pipeline run failed after %s", res.State)
		res.State = Failed
		return err
	}

	p.cfg.Logger.Debug().Msgf("pipeline state %s -> %s", res.State, next)
	res.State = next

	return nil
}

// addRows reports rows handled to metrics, when configured.
func (p *Pipeline) addRows(kind string, n int) {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.AddRows(kind, n)
	}
}

// Run executes the pipeline once. The returned result is never nil; on error its state
// is Failed and its counts reflect the steps completed. Writes committed before a
// failure are not rolled back.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{State: Init}
	run := p.cfg.Run

	// The run configuration is asserted before any network call.
	err := run.Validate()
	if err != nil {
		res.State = Failed
		p.cfg.Logger.Error().Err(err).Str("kind", shared.KindOf(err).String()).Msg("pipeline run failed")
		return res, err
	}

	p.cfg.Logger.Info().Msgf("starting run for %s from %s to %s in %s", run.Ticker,
		run.StartDate.Format(shared.DateLayout), run.EndDate.Format(shared.DateLayout), run.TargetCurrency)

	var records []gjson.Result
	var series *shared.PriceSeries

	steps := []struct {
		next State
		fn   func() error
	}{
		{RatesFetched, func() error {
			rates, err := p.cfg.RateFetcher.FetchExchangeRates(ctx, run.TradeDate, run.BaseCurrency, run.TargetCurrencies)
			if err != nil {
				return err
			}
			res.Rates = rates
			return nil
		}},
		{PricesFetched, func() error {
			fetched, err := p.cfg.PriceFetcher.FetchAggregates(ctx, run.AggregatesRequest())
			if err != nil {
				return err
			}
			records = fetched
			res.Fetched = len(fetched)
			p.addRows(RowsFetched, len(fetched))
			return nil
		}},
		{Cleaned, func() error {
			cleaned, report, err := p.cfg.Cleaner.Clean(run.Ticker, records)
			if err != nil {
				return err
			}
			series = cleaned
			res.Report = report
			p.addRows(RowsCleaned, report.Kept)
			p.addRows(RowsDropped, report.DroppedTotal())
			return nil
		}},
		{Converted, func() error {
			converted, err := p.cfg.Converter.Convert(series, res.Rates, run.TargetCurrency)
			if err != nil {
				return err
			}
			res.Series = converted
			return nil
		}},
		{CurrenciesPersisted, func() error {
			for _, code := range currencySet(res.Rates, run.IncludeBaseCurrency) {
				err := p.cfg.Persister.RecordCurrency(ctx, code)
				if err != nil {
					return err
				}
				res.Currencies = append(res.Currencies, code)
			}
			return nil
		}},
		{StockPersisted, func() error {
			id, err := p.cfg.Persister.RecordStock(ctx, run.Ticker)
			if err != nil {
				return err
			}
			res.StockID = id
			return nil
		}},
		{RatesPersisted, func() error {
			n, err := p.cfg.Persister.RecordExchangeRates(ctx, run.TradeDate, res.Rates)
			res.RatesPersisted = n
			return err
		}},
		{PricesPersisted, func() error {
			n, err := p.cfg.Persister.RecordPriceRows(ctx, res.StockID, res.Series)
			res.PricesPersisted = n
			p.addRows(RowsPersisted, n)
			return err
		}},
	}

	for _, s := range steps {
		err := p.step(res, s.next, s.fn)
		if err != nil {
			return res, err
		}
	}

	res.State = Done
	p.cfg.Logger.Info().
		Int("fetched", res.Fetched).
		Int("dropped", res.Report.DroppedTotal()).
		Int("rates", res.RatesPersisted).
		Int("prices", res.PricesPersisted).
		Msgf("run for %s done, stock id %d", run.Ticker, res.StockID)

	return res, nil
}
