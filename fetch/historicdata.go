package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dnldd/stocketl/shared"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// HistoricDataConfig represents the historic aggregates source configuration.
type HistoricDataConfig struct {
	// FilePath is the filepath to a saved aggregates response.
	FilePath string
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *HistoricDataConfig) Validate() error {
	var errs error

	if cfg.FilePath == "" {
		errs = errors.Join(errs, fmt.Errorf("historic data filepath cannot be an empty string"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("historic data logger cannot be nil"))
	}

	return errs
}

// HistoricData replays saved aggregate records in place of the price api.
type HistoricData struct {
	cfg     *HistoricDataConfig
	records []gjson.Result
}

// Ensure historic data implements the PriceFetcher interface.
var _ shared.PriceFetcher = (*HistoricData)(nil)

// loadHistoricData loads aggregate records from the provided file path. Both a full
// aggregates response and a bare array of records are accepted.
func loadHistoricData(filepath string) ([]gjson.Result, error) {
	readb, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("reading historic data from file with path '%s': %w", filepath, err)
	}

	if !gjson.ValidBytes(readb) {
		return nil, shared.NewSchemaError(fmt.Sprintf("historic data at '%s' is not valid json", filepath), nil)
	}

	root := gjson.ParseBytes(readb)
	if root.IsArray() {
		return root.Array(), nil
	}

	return ParseAggregates(readb)
}

// NewHistoricData initializes a new historic data source.
func NewHistoricData(cfg *HistoricDataConfig) (*HistoricData, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating historic data config: %w", err)
	}

	records, err := loadHistoricData(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("loading historic data: %w", err)
	}

	return &HistoricData{
		cfg:     cfg,
		records: records,
	}, nil
}

// FetchAggregates returns the saved records that fall within the requested date range.
// Records without a usable timestamp are passed through for the cleaner to judge.
func (h *HistoricData) FetchAggregates(ctx context.Context, req shared.AggregatesRequest) ([]gjson.Result, error) {
	err := validateAggregatesRequest(&req, false)
	if err != nil {
		return nil, err
	}

	start := req.Start.UnixMilli()
	end := req.End.AddDate(0, 0, 1).UnixMilli()

	records := make([]gjson.Result, 0, len(h.records))
	for _, record := range h.records {
		ts := record.Get("t")
		if ts.Type == gjson.Number && (ts.Int() < start || ts.Int() >= end) {
			continue
		}
		records = append(records, record)
	}

	h.cfg.Logger.Info().Msgf("replaying %d of %d historic records for %s", len(records), len(h.records), req.Ticker)

	return records, nil
}
