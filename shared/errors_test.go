package shared

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     ErrorKind
		contains string
	}{
		{
			name:     "configuration",
			err:      NewConfigurationError("ticker is required", nil),
			sentinel: ErrConfiguration,
			kind:     ConfigurationError,
			contains: "ticker is required",
		},
		{
			name:     "remote fetch",
			err:      NewRemoteFetchError("fetching aggregates", 404, "not found", nil),
			sentinel: ErrRemoteFetch,
			kind:     RemoteFetchError,
			contains: "status 404: not found",
		},
		{
			name:     "schema",
			err:      NewSchemaError("missing columns [t]", nil),
			sentinel: ErrSchema,
			kind:     SchemaError,
			contains: "missing columns [t]",
		},
		{
			name:     "missing rate",
			err:      NewMissingRateError("EUR"),
			sentinel: ErrMissingRate,
			kind:     MissingRateError,
			contains: "EUR",
		},
		{
			name:     "persistence",
			err:      NewPersistenceError("recording stock", errors.New("connection refused")),
			sentinel: ErrPersistence,
			kind:     PersistenceError,
			contains: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("running pipeline: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.sentinel))
			assert.Equal(t, KindOf(wrapped), tt.kind)
			assert.True(t, strings.Contains(wrapped.Error(), tt.contains))
			assert.True(t, strings.Contains(wrapped.Error(), tt.kind.String()))
		})
	}

	// Ensure kinds do not match each other.
	assert.False(t, errors.Is(NewSchemaError("bad", nil), ErrPersistence))

	// Ensure uncategorised errors report an unknown kind.
	assert.Equal(t, KindOf(errors.New("plain")), UnknownError)

	// Ensure the underlying cause is reachable.
	cause := errors.New("disk full")
	assert.True(t, errors.Is(NewPersistenceError("x", cause), cause))
}
