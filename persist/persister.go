package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/stocketl/shared"
	"github.com/rs/zerolog"
)

// Store defines the requirements for executing warehouse procedures. Every method
// call is committed as its own transaction.
type Store interface {
	// Execute runs the provided calls in a single transaction.
	Execute(ctx context.Context, calls ...Call) error
	// ExecuteReturningID runs the call and returns the identifier it generated.
	ExecuteReturningID(ctx context.Context, call Call) (int64, error)
	// LookupID runs the call and returns the identifier it found, if any.
	LookupID(ctx context.Context, call Call) (int64, bool, error)
}

// PersisterConfig represents the configuration for the persister.
type PersisterConfig struct {
	// Store is the warehouse store.
	Store Store
	// Schema maps operations to store procedures.
	Schema Schema
	// StockIdentity selects how stock identities are resolved.
	StockIdentity shared.StockIdentityMode
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *PersisterConfig) Validate() error {
	var errs error

	if cfg.Store == nil {
		errs = errors.Join(errs, fmt.Errorf("persister store cannot be nil"))
	}
	if cfg.Schema == nil {
		errs = errors.Join(errs, fmt.Errorf("persister schema cannot be nil"))
	} else if err := cfg.Schema.Validate(); err != nil {
		errs = errors.Join(errs, fmt.Errorf("invalid procedure schema: %w", err))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("persister logger cannot be nil"))
	}

	return errs
}

// Persister records pipeline outputs in the warehouse.
type Persister struct {
	cfg *PersisterConfig
}

// NewPersister initializes a new persister.
func NewPersister(cfg *PersisterConfig) (*Persister, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, shared.NewConfigurationError("validating persister config", err)
	}

	return &Persister{cfg: cfg}, nil
}

// bind binds the operation values, reporting failures as persistence errors.
func (p *Persister) bind(op Operation, values map[string]any) (Call, error) {
	call, err := p.cfg.Schema.Bind(op, values)
	if err != nil {
		return Call{}, shared.NewPersistenceError(fmt.Sprintf("binding %s", op), err)
	}

	return call, nil
}

// RecordCurrency records the provided currency code. Recording a known currency is a no-op.
func (p *Persister) RecordCurrency(ctx context.Context, code string) error {
	call, err := p.bind(InsertCurrency, map[string]any{ParamCode: code})
	if err != nil {
		return err
	}

	err = p.cfg.Store.Execute(ctx, call)
	if err != nil {
		return shared.NewPersistenceError(fmt.Sprintf("recording currency %s", code), err)
	}

	return nil
}

// RecordStock resolves the warehouse identity of the provided ticker.
func (p *Persister) RecordStock(ctx context.Context, ticker string) (int64, error) {
	values := map[string]any{ParamTicker: ticker}

	if p.cfg.StockIdentity == shared.FindOrCreate {
		call, err := p.bind(FindStock, values)
		if err != nil {
			return 0, err
		}

		id, found, err := p.cfg.Store.LookupID(ctx, call)
		if err != nil {
			return 0, shared.NewPersistenceError(fmt.Sprintf("finding stock %s", ticker), err)
		}
		if found {
			p.cfg.Logger.Info().Msgf("found stock %s with id %d", ticker, id)
			return id, nil
		}
	}

	call, err := p.bind(InsertStock, values)
	if err != nil {
		return 0, err
	}

	id, err := p.cfg.Store.ExecuteReturningID(ctx, call)
	if err != nil {
		return 0, shared.NewPersistenceError(fmt.Sprintf("recording stock %s", ticker), err)
	}

	p.cfg.Logger.Info().Msgf("recorded stock %s with id %d", ticker, id)

	return id, nil
}

// RecordExchangeRates records a row per target currency of the rate set in a single
// transaction.
func (p *Persister) RecordExchangeRates(ctx context.Context, tradeDate time.Time, rates *shared.ExchangeRateSet) (int, error) {
	date := tradeDate.Format(shared.DateLayout)
	codes := rates.Codes()

	calls := make([]Call, 0, len(codes))
	for _, code := range codes {
		rate, _ := rates.Rate(code)
		call, err := p.bind(InsertExchangeRate, map[string]any{
			ParamTradeDate: date,
			ParamBase:      rates.Base,
			ParamTarget:    code,
			ParamRate:      rate.String(),
		})
		if err != nil {
			return 0, err
		}
		calls = append(calls, call)
	}

	if len(calls) == 0 {
		return 0, nil
	}

	err := p.cfg.Store.Execute(ctx, calls...)
	if err != nil {
		return 0, shared.NewPersistenceError(fmt.Sprintf("recording %d exchange rates for %s on %s",
			len(calls), rates.Base, date), err)
	}

	return len(calls), nil
}

// RecordPriceRow records a converted price bar for the stock.
func (p *Persister) RecordPriceRow(ctx context.Context, stockID int64, bar *shared.ConvertedBar) error {
	date := bar.Date()
	call, err := p.bind(InsertStockPrice, map[string]any{
		ParamStockID:      stockID,
		ParamDate:         date,
		ParamCurrency:     bar.Currency,
		ParamExchangeRate: bar.Rate.String(),
		ParamOpen:         bar.Open.String(),
		ParamHigh:         bar.High.String(),
		ParamLow:          bar.Low.String(),
		ParamClose:        bar.Close.String(),
		ParamVolume:       bar.Volume.String(),
	})
	if err != nil {
		return err
	}

	err = p.cfg.Store.Execute(ctx, call)
	if err != nil {
		return shared.NewPersistenceError(fmt.Sprintf("recording price row for stock %d on %s", stockID, date), err)
	}

	return nil
}

// RecordPriceRows records every bar of the series, each in its own transaction. The
// number of rows recorded before a failure is returned alongside the error.
func (p *Persister) RecordPriceRows(ctx context.Context, stockID int64, series *shared.ConvertedPriceSeries) (int, error) {
	for idx := range series.Bars {
		err := p.RecordPriceRow(ctx, stockID, &series.Bars[idx])
		if err != nil {
			return idx, err
		}
	}

	return series.Len(), nil
}
