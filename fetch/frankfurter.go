package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dnldd/stocketl/shared"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const (
	// FrankfurterBaseURL is the Frankfurter exchange rate api base url.
	FrankfurterBaseURL = "https://api.frankfurter.dev/v1"
)

// FrankfurterConfig represents the configuration for the Frankfurter client.
type FrankfurterConfig struct {
	// BaseURL is the api base url.
	BaseURL string
	// Timeout is the request timeout.
	Timeout time.Duration
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *FrankfurterConfig) Validate() error {
	var errs error

	if cfg.BaseURL == "" {
		errs = errors.Join(errs, fmt.Errorf("frankfurter base url cannot be an empty string"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("frankfurter logger cannot be nil"))
	}

	return errs
}

// FrankfurterClient represents the Frankfurter exchange rate API client.
type FrankfurterClient struct {
	cfg   *FrankfurterConfig
	httpc *http.Client
	buf   *bytes.Buffer
}

// Ensure the FrankfurterClient implements the RateFetcher interface.
var _ shared.RateFetcher = (*FrankfurterClient)(nil)

// NewFrankfurterClient instantiates a new Frankfurter client.
func NewFrankfurterClient(cfg *FrankfurterConfig) (*FrankfurterClient, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating frankfurter config: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &FrankfurterClient{
		cfg:   cfg,
		httpc: &http.Client{Timeout: timeout},
		buf:   bytes.NewBuffer(make([]byte, 0, 256)),
	}, nil
}

// ratesParams creates the query parameters of a rates request. Symbols are omitted
// when no targets are provided so the api returns every currency it knows.
func ratesParams(base string, targets []string) string {
	params := "base=" + url.QueryEscape(base)
	if len(targets) > 0 {
		escaped := make([]string, 0, len(targets))
		for _, target := range targets {
			escaped = append(escaped, url.QueryEscape(target))
		}
		params += "&symbols=" + strings.Join(escaped, ",")
	}

	return params
}

// ParseExchangeRates parses an exchange rate set from the provided response body.
func ParseExchangeRates(body []byte, tradeDate time.Time, base string) (*shared.ExchangeRateSet, error) {
	if !gjson.ValidBytes(body) {
		return nil, shared.NewSchemaError("exchange rate response is not valid json", nil)
	}

	set := shared.NewExchangeRateSet(base, tradeDate)

	date := gjson.GetBytes(body, "date")
	if date.Exists() {
		providerDate, err := time.Parse(shared.DateLayout, date.String())
		if err != nil {
			return nil, shared.NewSchemaError(fmt.Sprintf("parsing exchange rate date %q", date.String()), err)
		}
		set.ProviderDate = providerDate
	}

	rates := gjson.GetBytes(body, "rates")
	if !rates.Exists() {
		return set, nil
	}
	if !rates.IsObject() {
		return nil, shared.NewSchemaError(fmt.Sprintf("exchange rates must be an object, got %s", rates.Type), nil)
	}

	var parseErr error
	rates.ForEach(func(key, value gjson.Result) bool {
		code := key.String()
		if value.Type != gjson.Number {
			parseErr = shared.NewSchemaError(fmt.Sprintf("exchange rate for %s is not a number: %s", code, value.Raw), nil)
			return false
		}

		rate, err := decimal.NewFromString(value.Raw)
		if err != nil {
			parseErr = shared.NewSchemaError(fmt.Sprintf("parsing exchange rate for %s", code), err)
			return false
		}
		if !rate.IsPositive() {
			parseErr = shared.NewSchemaError(fmt.Sprintf("exchange rate for %s must be positive, got %s", code, rate), nil)
			return false
		}

		set.Rates[code] = rate
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return set, nil
}

// FetchExchangeRates fetches the rates of the base currency against the provided
// targets on the trade date.
func (c *FrankfurterClient) FetchExchangeRates(ctx context.Context, tradeDate time.Time, base string, targets []string) (*shared.ExchangeRateSet, error) {
	var errs error
	if tradeDate.IsZero() {
		errs = errors.Join(errs, fmt.Errorf("trade date is required"))
	}
	if base == "" {
		errs = errors.Join(errs, fmt.Errorf("base currency is required"))
	}
	if errs != nil {
		return nil, shared.NewConfigurationError("fetching exchange rates", errs)
	}

	date := tradeDate.Format(shared.DateLayout)
	formedURL := formURL(c.buf, c.cfg.BaseURL, "/"+date, ratesParams(base, targets))

	body, err := getBody(ctx, c.httpc, formedURL, fmt.Sprintf("exchange rates for %s on %s", base, date))
	if err != nil {
		return nil, err
	}

	set, err := ParseExchangeRates(body, tradeDate, base)
	if err != nil {
		return nil, err
	}

	if !set.ProviderDate.IsZero() && !set.ProviderDate.Equal(tradeDate) {
		c.cfg.Logger.Warn().Msgf("exchange rates requested for %s were published for %s",
			date, set.ProviderDate.Format(shared.DateLayout))
	}

	c.cfg.Logger.Info().Msgf("fetched %d exchange rates for %s on %s", set.Len(), base, date)

	return set, nil
}
