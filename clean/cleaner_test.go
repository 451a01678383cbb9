package clean

import (
	"strings"
	"testing"
	"time"

	"github.com/dnldd/stocketl/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

func newTestCleaner(t *testing.T, dropInconsistent bool) *Cleaner {
	t.Helper()

	cleaner, err := NewCleaner(&CleanerConfig{
		DropInconsistent: dropInconsistent,
		Logger:           &log.Logger,
	})
	assert.NoError(t, err)

	return cleaner
}

func records(data string) []gjson.Result {
	return gjson.Parse(data).Array()
}

func TestNewCleaner(t *testing.T) {
	// Ensure a cleaner cannot be created without a logger.
	_, err := NewCleaner(&CleanerConfig{})
	assert.Error(t, err)
}

func TestClean(t *testing.T) {
	cleaner := newTestCleaner(t, false)

	// Ensure a valid record is mapped into a price bar.
	series, report, err := cleaner.Clean("AAPL", records(`[{"t":1700000000000,"o":10,"h":12,"l":9,"c":11,"v":100}]`))
	assert.NoError(t, err)
	assert.Equal(t, series.Ticker, "AAPL")
	assert.Equal(t, series.Len(), 1)
	assert.Equal(t, report.Kept, 1)
	assert.Equal(t, report.DroppedTotal(), 0)

	bar := series.Bars[0]
	assert.Equal(t, bar.Timestamp, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC))
	assert.Equal(t, bar.Date(), "2023-11-14")
	assert.True(t, bar.Open.Equal(decimal.NewFromInt(10)))
	assert.True(t, bar.High.Equal(decimal.NewFromInt(12)))
	assert.True(t, bar.Low.Equal(decimal.NewFromInt(9)))
	assert.True(t, bar.Close.Equal(decimal.NewFromInt(11)))
	assert.True(t, bar.Volume.Equal(decimal.NewFromInt(100)))

	// Ensure no records yields an empty series.
	series, report, err = cleaner.Clean("AAPL", nil)
	assert.NoError(t, err)
	assert.Equal(t, series.Len(), 0)
	assert.Equal(t, report.Received, 0)
}

func TestCleanDropsRows(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		wantLen     int
		wantReason  DropReason
		wantDropped int
	}{
		{
			name: "negative open",
			data: `[{"t":1700000000000,"o":10,"h":12,"l":9,"c":11,"v":100},
				{"t":1700086400000,"o":-5,"h":12,"l":9,"c":11,"v":100}]`,
			wantLen:     1,
			wantReason:  NegativeValue,
			wantDropped: 1,
		},
		{
			name: "negative volume",
			data: `[{"t":1700000000000,"o":10,"h":12,"l":9,"c":11,"v":-1},
				{"t":1700086400000,"o":10,"h":12,"l":9,"c":11,"v":100}]`,
			wantLen:     1,
			wantReason:  NegativeValue,
			wantDropped: 1,
		},
		{
			name: "null close",
			data: `[{"t":1700000000000,"o":10,"h":12,"l":9,"c":null,"v":100},
				{"t":1700086400000,"o":10,"h":12,"l":9,"c":11,"v":100}]`,
			wantLen:     1,
			wantReason:  MissingValue,
			wantDropped: 1,
		},
		{
			name: "value absent from one record",
			data: `[{"t":1700000000000,"o":10,"h":12,"l":9,"v":100},
				{"t":1700086400000,"o":10,"h":12,"l":9,"c":11,"v":100}]`,
			wantLen:     1,
			wantReason:  MissingValue,
			wantDropped: 1,
		},
		{
			name: "out of range timestamp",
			data: `[{"t":92233720368547758080,"o":10,"h":12,"l":9,"c":11,"v":100},
				{"t":1700086400000,"o":10,"h":12,"l":9,"c":11,"v":100}]`,
			wantLen:     1,
			wantReason:  MissingValue,
			wantDropped: 1,
		},
		{
			name: "non numeric value",
			data: `[{"t":1700000000000,"o":"ten","h":12,"l":9,"c":11,"v":100},
				{"t":1700086400000,"o":10,"h":12,"l":9,"c":11,"v":100}]`,
			wantLen:     1,
			wantReason:  MissingValue,
			wantDropped: 1,
		},
		{
			name: "duplicate timestamp",
			data: `[{"t":1700000000000,"o":10,"h":12,"l":9,"c":11,"v":100},
				{"t":1700000000000,"o":20,"h":22,"l":19,"c":21,"v":200}]`,
			wantLen:     1,
			wantReason:  DuplicateTimestamp,
			wantDropped: 1,
		},
	}

	cleaner := newTestCleaner(t, false)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series, report, err := cleaner.Clean("AAPL", records(tt.data))
			assert.NoError(t, err)
			assert.Equal(t, series.Len(), tt.wantLen)
			assert.Equal(t, report.Dropped[tt.wantReason], tt.wantDropped)
			assert.Equal(t, report.DroppedTotal(), tt.wantDropped)

			for _, bar := range series.Bars {
				assert.False(t, bar.IsNegative())
			}
		})
	}
}

func TestCleanKeepsFirstDuplicate(t *testing.T) {
	cleaner := newTestCleaner(t, false)

	series, _, err := cleaner.Clean("AAPL", records(`[
		{"t":1700000000000,"o":10,"h":12,"l":9,"c":11,"v":100},
		{"t":1700000000000,"o":20,"h":22,"l":19,"c":21,"v":200}]`))
	assert.NoError(t, err)
	assert.Equal(t, series.Len(), 1)
	assert.True(t, series.Bars[0].Open.Equal(decimal.NewFromInt(10)))
}

func TestCleanMissingColumns(t *testing.T) {
	cleaner := newTestCleaner(t, false)

	// Ensure a column absent from every record is a schema error.
	_, _, err := cleaner.Clean("AAPL", records(`[{"t":1700000000000,"o":10,"h":12,"l":9,"c":11},
		{"t":1700086400000,"o":10,"h":12,"l":9,"c":11}]`))
	assert.Error(t, err)
	assert.Equal(t, shared.KindOf(err), shared.SchemaError)
	assert.True(t, strings.Contains(err.Error(), "[v]"))

	// Ensure every missing column is named.
	_, _, err = cleaner.Clean("AAPL", records(`[{"o":10,"h":12,"l":9}]`))
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "[c, t, v]"))
}

func TestCleanInconsistentRange(t *testing.T) {
	data := `[{"t":1700000000000,"o":10,"h":9,"l":8,"c":11,"v":100},
		{"t":1700086400000,"o":10,"h":12,"l":9,"c":11,"v":100}]`

	// Ensure inconsistent bars are kept by default.
	series, report, err := newTestCleaner(t, false).Clean("AAPL", records(data))
	assert.NoError(t, err)
	assert.Equal(t, series.Len(), 2)
	assert.Equal(t, report.Inconsistent, 1)

	// Ensure inconsistent bars can be dropped.
	series, report, err = newTestCleaner(t, true).Clean("AAPL", records(data))
	assert.NoError(t, err)
	assert.Equal(t, series.Len(), 1)
	assert.Equal(t, report.Dropped[InconsistentRange], 1)
}

func TestCleanPreservesOrder(t *testing.T) {
	cleaner := newTestCleaner(t, false)

	data := `[{"t":1700172800000,"o":3,"h":3,"l":3,"c":3,"v":3},
		{"t":1700000000000,"o":1,"h":1,"l":1,"c":1,"v":1},
		{"t":1700086400000,"o":2,"h":2,"l":2,"c":2,"v":2}]`

	first, _, err := cleaner.Clean("AAPL", records(data))
	assert.NoError(t, err)
	assert.Equal(t, first.Bars[0].Timestamp.UnixMilli(), int64(1700172800000))
	assert.Equal(t, first.Bars[2].Timestamp.UnixMilli(), int64(1700086400000))

	// Ensure identical input yields identical output.
	second, _, err := cleaner.Clean("AAPL", records(data))
	assert.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("expected identical series (-first +second):\n%s", diff)
	}
}

func TestCleanSeriesIdempotent(t *testing.T) {
	cleaner := newTestCleaner(t, true)

	series, _, err := cleaner.Clean("AAPL", records(`[
		{"t":1700000000000,"o":10,"h":12,"l":9,"c":11,"v":100},
		{"t":1700086400000,"o":-1,"h":12,"l":9,"c":11,"v":100},
		{"t":1700172800000,"o":10.5,"h":12.25,"l":9.75,"c":11.125,"v":300}]`))
	assert.NoError(t, err)
	assert.Equal(t, series.Len(), 2)

	// Ensure cleaning a clean series changes nothing.
	again, report := cleaner.CleanSeries(series)
	assert.Equal(t, report.DroppedTotal(), 0)
	if diff := cmp.Diff(series, again); diff != "" {
		t.Errorf("expected idempotent clean (-first +second):\n%s", diff)
	}

	// Ensure row rules still apply to parsed series.
	dirty := &shared.PriceSeries{Ticker: "AAPL", Bars: append([]shared.PriceBar{}, series.Bars...)}
	dirty.Bars = append(dirty.Bars, series.Bars[0])
	dirty.Bars[1].Volume = decimal.NewFromInt(-1)

	cleaned, report := cleaner.CleanSeries(dirty)
	assert.Equal(t, cleaned.Len(), 1)
	assert.Equal(t, report.Dropped[NegativeValue], 1)
	assert.Equal(t, report.Dropped[DuplicateTimestamp], 1)
}

func TestDropReasonString(t *testing.T) {
	assert.Equal(t, MissingValue.String(), "missing value")
	assert.Equal(t, NegativeValue.String(), "negative value")
	assert.Equal(t, DuplicateTimestamp.String(), "duplicate timestamp")
	assert.Equal(t, InconsistentRange.String(), "inconsistent range")
	assert.Equal(t, DropReason(99).String(), "unknown")
}
