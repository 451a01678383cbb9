package fetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dnldd/stocketl/shared"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

func TestHistoricData(t *testing.T) {
	// Ensure historic data cannot be created without a filepath.
	_, err := NewHistoricData(&HistoricDataConfig{Logger: &log.Logger})
	assert.Error(t, err)

	// Ensure a missing file is reported.
	_, err = NewHistoricData(&HistoricDataConfig{FilePath: "../testdata/missing.json", Logger: &log.Logger})
	assert.Error(t, err)

	cfg := &HistoricDataConfig{
		FilePath: "../testdata/historicdata.json",
		Logger:   &log.Logger,
	}

	// Ensure historic data can be initialized.
	historicData, err := NewHistoricData(cfg)
	assert.NoError(t, err)
	assert.Equal(t, len(historicData.records), 4)

	// Ensure only records in the requested range are replayed.
	req := shared.AggregatesRequest{
		Ticker: "AAPL",
		Start:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	records, err := historicData.FetchAggregates(context.Background(), req)
	assert.NoError(t, err)
	assert.Equal(t, len(records), 3)

	// Ensure the end date is inclusive.
	req.End = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	records, err = historicData.FetchAggregates(context.Background(), req)
	assert.NoError(t, err)
	assert.Equal(t, len(records), 2)

	// Ensure invalid requests are rejected.
	_, err = historicData.FetchAggregates(context.Background(), shared.AggregatesRequest{})
	assert.Error(t, err)
	assert.Equal(t, shared.KindOf(err), shared.ConfigurationError)
}

func TestHistoricDataBareArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.json")
	err := os.WriteFile(path, []byte(`[{"t":1704171600000,"o":1,"h":2,"l":0.5,"c":1.5,"v":10},{"o":1}]`), 0o600)
	assert.NoError(t, err)

	historicData, err := NewHistoricData(&HistoricDataConfig{FilePath: path, Logger: &log.Logger})
	assert.NoError(t, err)

	// Ensure records without timestamps are passed through.
	records, err := historicData.FetchAggregates(context.Background(), shared.AggregatesRequest{
		Ticker: "AAPL",
		Start:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	assert.NoError(t, err)
	assert.Equal(t, len(records), 2)

	// Ensure invalid json files are rejected.
	bad := filepath.Join(t.TempDir(), "bad.json")
	err = os.WriteFile(bad, []byte(`{"results":[`), 0o600)
	assert.NoError(t, err)

	_, err = NewHistoricData(&HistoricDataConfig{FilePath: bad, Logger: &log.Logger})
	assert.Error(t, err)
	assert.Equal(t, shared.KindOf(err), shared.SchemaError)
}
