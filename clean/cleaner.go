package clean

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dnldd/stocketl/shared"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Provider record keys.
const (
	timestampKey = "t"
	openKey      = "o"
	highKey      = "h"
	lowKey       = "l"
	closeKey     = "c"
	volumeKey    = "v"
)

// requiredKeys are the record keys every price bar is built from.
var requiredKeys = []string{timestampKey, openKey, highKey, lowKey, closeKey, volumeKey}

// DropReason describes why a record was excluded from a cleaned series.
type DropReason int

const (
	MissingValue DropReason = iota
	NegativeValue
	DuplicateTimestamp
	InconsistentRange
)

// String stringifies the provided drop reason.
func (r DropReason) String() string {
	switch r {
	case MissingValue:
		return "missing value"
	case NegativeValue:
		return "negative value"
	case DuplicateTimestamp:
		return "duplicate timestamp"
	case InconsistentRange:
		return "inconsistent range"
	default:
		return "unknown"
	}
}

// CleanerConfig represents the configuration for the cleaner.
type CleanerConfig struct {
	// DropInconsistent drops bars whose high or low do not bound the bar.
	DropInconsistent bool
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *CleanerConfig) Validate() error {
	var errs error

	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("cleaner logger cannot be nil"))
	}

	return errs
}

// Cleaner validates and normalizes raw aggregate records into price series.
type Cleaner struct {
	cfg *CleanerConfig
}

// NewCleaner initializes a new cleaner.
func NewCleaner(cfg *CleanerConfig) (*Cleaner, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating cleaner config: %w", err)
	}

	return &Cleaner{cfg: cfg}, nil
}

// Report summarizes a cleaning pass.
type Report struct {
	// Received is the number of records received.
	Received int
	// Kept is the number of bars in the cleaned series.
	Kept int
	// Dropped counts the excluded records by reason.
	Dropped map[DropReason]int
	// Inconsistent is the number of kept bars with an inconsistent range.
	Inconsistent int
}

// DroppedTotal returns the total number of excluded records.
func (r *Report) DroppedTotal() int {
	var total int
	for _, n := range r.Dropped {
		total += n
	}

	return total
}

func newReport(received int) *Report {
	return &Report{Received: received, Dropped: make(map[DropReason]int)}
}

// missingColumns returns the required keys absent from every record.
func missingColumns(records []gjson.Result) []string {
	missing := make([]string, 0)
	for _, key := range requiredKeys {
		var found bool
		for idx := range records {
			if records[idx].Get(key).Exists() {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)

	return missing
}

// parseValue parses a numeric record value. Null, absent and non-numeric values
// are reported as not ok.
func parseValue(record gjson.Result, key string) (decimal.Decimal, bool) {
	value := record.Get(key)
	if value.Type != gjson.Number {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(value.Raw)
	if err != nil {
		return decimal.Zero, false
	}

	return d, true
}

// maxTimestamp bounds millisecond timestamps to the int64 range.
var maxTimestamp = decimal.NewFromInt(math.MaxInt64)

// parseBar parses a price bar from the provided record.
func parseBar(record gjson.Result) (shared.PriceBar, bool) {
	var bar shared.PriceBar

	ts := record.Get(timestampKey)
	if ts.Type != gjson.Number {
		return bar, false
	}
	ms, err := decimal.NewFromString(ts.Raw)
	if err != nil || !ms.IsInteger() || ms.Abs().GreaterThan(maxTimestamp) {
		return bar, false
	}
	bar.Timestamp = time.UnixMilli(ms.IntPart()).UTC()

	var ok bool
	fields := []struct {
		key string
		dst *decimal.Decimal
	}{
		{openKey, &bar.Open},
		{highKey, &bar.High},
		{lowKey, &bar.Low},
		{closeKey, &bar.Close},
		{volumeKey, &bar.Volume},
	}
	for _, f := range fields {
		*f.dst, ok = parseValue(record, f.key)
		if !ok {
			return bar, false
		}
	}

	return bar, true
}

// filter applies the row level rules to a bar, returning the reason it is dropped.
func (c *Cleaner) filter(bar *shared.PriceBar, seen map[int64]struct{}, report *Report) (DropReason, bool) {
	if bar.IsNegative() {
		return NegativeValue, false
	}

	key := bar.Timestamp.UnixMilli()
	if _, ok := seen[key]; ok {
		return DuplicateTimestamp, false
	}

	if !bar.IsConsistent() {
		if c.cfg.DropInconsistent {
			return InconsistentRange, false
		}
		report.Inconsistent++
	}

	seen[key] = struct{}{}

	return 0, true
}

// Clean validates and normalizes the raw records of a ticker into a price series.
// Records are kept in the order received.
func (c *Cleaner) Clean(ticker string, records []gjson.Result) (*shared.PriceSeries, *Report, error) {
	report := newReport(len(records))
	series := &shared.PriceSeries{Ticker: ticker, Bars: make([]shared.PriceBar, 0, len(records))}

	if len(records) == 0 {
		c.cfg.Logger.Info().Msgf("no aggregate records received for %s", ticker)
		return series, report, nil
	}

	missing := missingColumns(records)
	if len(missing) > 0 {
		return nil, nil, shared.NewSchemaError(fmt.Sprintf("aggregate records for %s missing required columns [%s]",
			ticker, strings.Join(missing, ", ")), nil)
	}

	seen := make(map[int64]struct{}, len(records))
	for idx := range records {
		bar, ok := parseBar(records[idx])
		if !ok {
			report.Dropped[MissingValue]++
			continue
		}

		reason, keep := c.filter(&bar, seen, report)
		if !keep {
			report.Dropped[reason]++
			continue
		}

		series.Bars = append(series.Bars, bar)
	}

	report.Kept = series.Len()
	c.logReport(ticker, report)

	return series, report, nil
}

// CleanSeries applies the row level rules to an already parsed series. Cleaning a
// clean series returns an identical series.
func (c *Cleaner) CleanSeries(series *shared.PriceSeries) (*shared.PriceSeries, *Report) {
	report := newReport(series.Len())
	cleaned := &shared.PriceSeries{Ticker: series.Ticker, Bars: make([]shared.PriceBar, 0, series.Len())}

	seen := make(map[int64]struct{}, series.Len())
	for idx := range series.Bars {
		bar := series.Bars[idx]
		bar.Timestamp = bar.Timestamp.UTC()

		reason, keep := c.filter(&bar, seen, report)
		if !keep {
			report.Dropped[reason]++
			continue
		}

		cleaned.Bars = append(cleaned.Bars, bar)
	}

	report.Kept = cleaned.Len()

	return cleaned, report
}

// logReport logs the outcome of a cleaning pass.
func (c *Cleaner) logReport(ticker string, report *Report) {
	if report.DroppedTotal() > 0 {
		c.cfg.Logger.Warn().
			Int("missing", report.Dropped[MissingValue]).
			Int("negative", report.Dropped[NegativeValue]).
			Int("duplicate", report.Dropped[DuplicateTimestamp]).
			Int("inconsistent", report.Dropped[InconsistentRange]).
			Msgf("dropped %d of %d aggregate records for %s", report.DroppedTotal(), report.Received, ticker)
	}

	if report.Inconsistent > 0 {
		c.cfg.Logger.Warn().Msgf("kept %d bars for %s with a high or low outside the bar range",
			report.Inconsistent, ticker)
	}

	c.cfg.Logger.Info().Msgf("cleaned %d bars for %s", report.Kept, ticker)
}
