package shared

import (
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestTimespanString(t *testing.T) {
	tests := []struct {
		name     string
		timespan Timespan
		want     string
	}{
		{"minute", Minute, "minute"},
		{"hour", Hour, "hour"},
		{"day", Day, "day"},
		{"week", Week, "week"},
		{"month", Month, "month"},
		{"quarter", Quarter, "quarter"},
		{"year", Year, "year"},
		{"unknown", Timespan(999), "unknown"},
	}

	for _, test := range tests {
		str := test.timespan.String()
		if str != test.want {
			t.Errorf("%s: expected %v, got %v", test.name, test.want, str)
		}
	}
}

func TestParseTimespan(t *testing.T) {
	// Ensure an empty timespan defaults to day.
	ts, err := ParseTimespan("")
	assert.NoError(t, err)
	assert.Equal(t, ts, Day)

	// Ensure timespans are parsed case insensitively.
	ts, err = ParseTimespan("Week")
	assert.NoError(t, err)
	assert.Equal(t, ts, Week)

	// Ensure unknown timespans are rejected.
	_, err = ParseTimespan("fortnight")
	assert.Error(t, err)
}

func TestParseStockIdentityMode(t *testing.T) {
	mode, err := ParseStockIdentityMode("")
	assert.NoError(t, err)
	assert.Equal(t, mode, FindOrCreate)

	mode, err = ParseStockIdentityMode("insert-always")
	assert.NoError(t, err)
	assert.Equal(t, mode, InsertAlways)
	assert.Equal(t, mode.String(), "insert-always")

	_, err = ParseStockIdentityMode("upsert")
	assert.Error(t, err)
}
