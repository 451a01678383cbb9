package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dnldd/stocketl/shared"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// PolygonBaseURL is the Polygon api base url.
	PolygonBaseURL = "https://api.polygon.io"
)

// PolygonConfig represents the configuration for the Polygon client.
type PolygonConfig struct {
	// BaseURL is the api base url.
	BaseURL string
	// Timeout is the request timeout.
	Timeout time.Duration
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *PolygonConfig) Validate() error {
	var errs error

	if cfg.BaseURL == "" {
		errs = errors.Join(errs, fmt.Errorf("polygon base url cannot be an empty string"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("polygon logger cannot be nil"))
	}

	return errs
}

// PolygonClient represents the Polygon aggregates API client.
type PolygonClient struct {
	cfg   *PolygonConfig
	httpc *http.Client
	buf   *bytes.Buffer
}

// Ensure the PolygonClient implements the PriceFetcher interface.
var _ shared.PriceFetcher = (*PolygonClient)(nil)

// NewPolygonClient instantiates a new Polygon client.
func NewPolygonClient(cfg *PolygonConfig) (*PolygonClient, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating polygon config: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &PolygonClient{
		cfg:   cfg,
		httpc: &http.Client{Timeout: timeout},
		buf:   bytes.NewBuffer(make([]byte, 0, 512)),
	}, nil
}

// validateAggregatesRequest asserts the aggregates request has its mandatory inputs.
func validateAggregatesRequest(req *shared.AggregatesRequest, requireKey bool) error {
	var errs error

	if req.Ticker == "" {
		errs = errors.Join(errs, fmt.Errorf("ticker is required"))
	}
	if req.Start.IsZero() {
		errs = errors.Join(errs, fmt.Errorf("start date is required"))
	}
	if req.End.IsZero() {
		errs = errors.Join(errs, fmt.Errorf("end date is required"))
	}
	if requireKey && req.APIKey == "" {
		errs = errors.Join(errs, fmt.Errorf("api key is required"))
	}

	if errs != nil {
		return shared.NewConfigurationError("fetching aggregates", errs)
	}

	return nil
}

// aggregatesPath creates the aggregates endpoint path of the request.
func aggregatesPath(req *shared.AggregatesRequest) string {
	multiplier := req.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	return fmt.Sprintf("/v2/aggs/ticker/%s/range/%d/%s/%s/%s", url.PathEscape(req.Ticker), multiplier,
		req.Timespan.String(), req.Start.Format(shared.DateLayout), req.End.Format(shared.DateLayout))
}

// ParseAggregates extracts the raw bar records from the provided response body.
func ParseAggregates(body []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, shared.NewSchemaError("aggregates response is not valid json", nil)
	}

	// Polygon omits results entirely for empty ranges.
	results := gjson.GetBytes(body, "results")
	if !results.Exists() {
		return []gjson.Result{}, nil
	}
	if !results.IsArray() {
		return nil, shared.NewSchemaError(fmt.Sprintf("aggregate results must be an array, got %s", results.Type), nil)
	}

	return results.Array(), nil
}

// FetchAggregates fetches the raw aggregate bar records for the request.
func (c *PolygonClient) FetchAggregates(ctx context.Context, req shared.AggregatesRequest) ([]gjson.Result, error) {
	err := validateAggregatesRequest(&req, true)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("apiKey", req.APIKey)

	formedURL := formURL(c.buf, c.cfg.BaseURL, aggregatesPath(&req), params.Encode())

	body, err := getBody(ctx, c.httpc, formedURL, fmt.Sprintf("aggregates (%d %s) for %s",
		req.Multiplier, req.Timespan.String(), req.Ticker))
	if err != nil {
		return nil, err
	}

	records, err := ParseAggregates(body)
	if err != nil {
		return nil, err
	}

	c.cfg.Logger.Info().Msgf("fetched %d aggregate records for %s from %s to %s", len(records), req.Ticker,
		req.Start.Format(shared.DateLayout), req.End.Format(shared.DateLayout))

	return records, nil
}
