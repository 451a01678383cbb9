package shared

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their document names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// FrankfurterSection is the exchange rate section of a run document.
type FrankfurterSection struct {
	TradeDate        string   `yaml:"trade_date" validate:"required,datetime=2006-01-02"`
	BaseCurrency     string   `yaml:"base_currency" validate:"required,alpha,len=3"`
	TargetCurrencies []string `yaml:"target_currencies" validate:"dive,alpha,len=3"`
}

// PolygonSection is the price data section of a run document.
type PolygonSection struct {
	Ticker     string `yaml:"ticker" validate:"required"`
	StartDate  string `yaml:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `yaml:"end_date" validate:"required,datetime=2006-01-02"`
	Multiplier int    `yaml:"multiplier" default:"1" validate:"min=1"`
	Timespan   string `yaml:"timespan" default:"day" validate:"oneof=minute hour day week month quarter year"`
	APIKey     string `yaml:"api_key"`
}

// WarehouseSection is the optional persistence policy section of a run document.
type WarehouseSection struct {
	StockIdentity       string `yaml:"stock_identity" default:"find-or-create" validate:"oneof=find-or-create insert-always"`
	IncludeBaseCurrency bool   `yaml:"include_base_currency"`
}

// Document is the run document as supplied by the operator.
type Document struct {
	Frankfurter    FrankfurterSection `yaml:"Frankfurter_Currency"`
	Polygon        PolygonSection     `yaml:"Polygon_Stock_Data"`
	TargetCurrency string             `yaml:"target_currency" validate:"required,alpha,len=3"`
	Warehouse      WarehouseSection   `yaml:"Warehouse"`
}

// ParseDocument decodes a run document. JSON documents are accepted as YAML.
func ParseDocument(b []byte) (*Document, error) {
	var doc Document
	err := yaml.Unmarshal(b, &doc)
	if err != nil {
		return nil, NewConfigurationError("decoding run document", err)
	}

	return &doc, nil
}

// validationMessage renders a field validation failure.
func validationMessage(fe validator.FieldError) string {
	// Drop the root struct name from the namespace.
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "datetime":
		return fmt.Sprintf("%s must be a date formatted as %s", field, fe.Param())
	case "alpha", "len":
		return fmt.Sprintf("%s must be a three letter currency code", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// Configuration applies defaults to the document, validates it and derives the
// immutable run configuration.
func (d *Document) Configuration() (*Configuration, error) {
	err := defaults.Set(d)
	if err != nil {
		return nil, NewConfigurationError("applying run document defaults", err)
	}

	err = validate.Struct(d)
	if err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, NewConfigurationError("validating run document", err)
		}

		var errs error
		for _, fe := range verrs {
			errs = errors.Join(errs, errors.New(validationMessage(fe)))
		}

		return nil, NewConfigurationError("invalid run document", errs)
	}

	// Formats were validated above.
	tradeDate, _ := time.Parse(DateLayout, d.Frankfurter.TradeDate)
	startDate, _ := time.Parse(DateLayout, d.Polygon.StartDate)
	endDate, _ := time.Parse(DateLayout, d.Polygon.EndDate)
	timespan, _ := ParseTimespan(d.Polygon.Timespan)
	identity, _ := ParseStockIdentityMode(d.Warehouse.StockIdentity)

	targets := make([]string, 0, len(d.Frankfurter.TargetCurrencies))
	for _, code := range d.Frankfurter.TargetCurrencies {
		targets = append(targets, strings.ToUpper(code))
	}

	cfg := &Configuration{
		TradeDate:           tradeDate,
		BaseCurrency:        strings.ToUpper(d.Frankfurter.BaseCurrency),
		TargetCurrencies:    targets,
		Ticker:              strings.ToUpper(d.Polygon.Ticker),
		StartDate:           startDate,
		EndDate:             endDate,
		Multiplier:          d.Polygon.Multiplier,
		Timespan:            timespan,
		APIKey:              d.Polygon.APIKey,
		TargetCurrency:      strings.ToUpper(d.TargetCurrency),
		StockIdentity:       identity,
		IncludeBaseCurrency: d.Warehouse.IncludeBaseCurrency,
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Configuration represents the immutable parameters of a single run.
type Configuration struct {
	// TradeDate is the date exchange rates are fetched for.
	TradeDate time.Time
	// BaseCurrency is the currency rates are quoted against.
	BaseCurrency string
	// TargetCurrencies are the currencies rates are fetched for. Empty means all.
	TargetCurrencies []string
	// Ticker is the stock ticker.
	Ticker string
	// StartDate is the first date of the price range.
	StartDate time.Time
	// EndDate is the last date of the price range.
	EndDate time.Time
	// Multiplier is the bar size multiplier.
	Multiplier int
	// Timespan is the bar size unit.
	Timespan Timespan
	// APIKey is the price API key. Replayed prices do not need one.
	APIKey string
	// TargetCurrency is the currency prices are converted into.
	TargetCurrency string
	// StockIdentity selects how the stock's warehouse identity is resolved.
	StockIdentity StockIdentityMode
	// IncludeBaseCurrency records the base currency alongside the rate currencies.
	IncludeBaseCurrency bool
}

// Validate asserts the config sane inputs.
func (cfg *Configuration) Validate() error {
	var errs error

	if cfg.TradeDate.IsZero() {
		errs = errors.Join(errs, fmt.Errorf("trade date is required"))
	}
	if cfg.BaseCurrency == "" {
		errs = errors.Join(errs, fmt.Errorf("base currency is required"))
	}
	if cfg.Ticker == "" {
		errs = errors.Join(errs, fmt.Errorf("ticker is required"))
	}
	if cfg.StartDate.IsZero() {
		errs = errors.Join(errs, fmt.Errorf("start date is required"))
	}
	if cfg.EndDate.IsZero() {
		errs = errors.Join(errs, fmt.Errorf("end date is required"))
	}
	if !cfg.StartDate.IsZero() && !cfg.EndDate.IsZero() && cfg.StartDate.After(cfg.EndDate) {
		errs = errors.Join(errs, fmt.Errorf("start date %s is after end date %s",
			cfg.StartDate.Format(DateLayout), cfg.EndDate.Format(DateLayout)))
	}
	if cfg.Multiplier < 1 {
		errs = errors.Join(errs, fmt.Errorf("multiplier must be at least 1, got %d", cfg.Multiplier))
	}
	if cfg.TargetCurrency == "" {
		errs = errors.Join(errs, fmt.Errorf("target currency is required"))
	}

	if errs != nil {
		return NewConfigurationError("invalid run configuration", errs)
	}

	return nil
}

// AggregatesRequest derives the price fetch request of the run.
func (cfg *Configuration) AggregatesRequest() AggregatesRequest {
	return AggregatesRequest{
		Ticker:     cfg.Ticker,
		Start:      cfg.StartDate,
		End:        cfg.EndDate,
		Multiplier: cfg.Multiplier,
		Timespan:   cfg.Timespan,
		APIKey:     cfg.APIKey,
	}
}
