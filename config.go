package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dnldd/stocketl/fetch"
	"github.com/dnldd/stocketl/service"
	"github.com/dnldd/stocketl/shared"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	defaultBackend     = service.BackendSQLite
	defaultSQLitePath  = "stocketl.db"
	defaultHTTPTimeout = time.Second * 10
	defaultLogLevel    = "info"
)

// Config is the configuration struct for the service.
type Config struct {
	// RunConfig is the filepath to the run document.
	RunConfig string
	// PolygonAPIKey overrides the run document's price api key.
	PolygonAPIKey string
	// DBBackend is the warehouse backend.
	DBBackend string
	// DBEndpoint is the rqlite endpoint.
	DBEndpoint string
	// DBUser is the rqlite user.
	DBUser string
	// DBPass is the rqlite password.
	DBPass string
	// SQLitePath is the sqlite database path.
	SQLitePath string
	// HTTPTimeout bounds every remote api request.
	HTTPTimeout time.Duration
	// FrankfurterURL is the exchange rate api base url.
	FrankfurterURL string
	// PolygonURL is the price api base url.
	PolygonURL string
	// PricesFile is the filepath to saved aggregates replayed in place of the price api.
	PricesFile string
	// Pushgateway is the metrics pushgateway url.
	Pushgateway string
	// LogLevel is the log level.
	LogLevel string
	// LogFormat is the stderr log format, console or json.
	LogFormat string
	// LogFile is the rotating log file path.
	LogFile string
	// DropInconsistent drops bars whose high or low do not bound the bar.
	DropInconsistent bool

	registeredFlags map[string]bool
}

// applyDefaults sets the defaults of unset fields.
func (cfg *Config) applyDefaults() {
	if cfg.DBBackend == "" {
		cfg.DBBackend = defaultBackend
	}
	if cfg.DBBackend == service.BackendSQLite && cfg.SQLitePath == "" {
		cfg.SQLitePath = defaultSQLitePath
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	if cfg.FrankfurterURL == "" {
		cfg.FrankfurterURL = fetch.FrankfurterBaseURL
	}
	if cfg.PolygonURL == "" {
		cfg.PolygonURL = fetch.PolygonBaseURL
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = logFormatConsole
	}
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.RunConfig == "" {
		errs = errors.Join(errs, fmt.Errorf("run config filepath cannot be an empty string"))
	}

	switch cfg.DBBackend {
	case service.BackendRqlite:
		if cfg.DBEndpoint == "" {
			errs = errors.Join(errs, fmt.Errorf("db endpoint cannot be an empty string"))
		}
	case service.BackendSQLite, service.BackendDryRun:
	default:
		errs = errors.Join(errs, fmt.Errorf("unknown db backend %q", cfg.DBBackend))
	}

	if cfg.HTTPTimeout < 0 {
		errs = errors.Join(errs, fmt.Errorf("http timeout cannot be negative"))
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		errs = errors.Join(errs, fmt.Errorf("unknown log level %q", cfg.LogLevel))
	}
	if cfg.LogFormat != logFormatConsole && cfg.LogFormat != logFormatJSON {
		errs = errors.Join(errs, fmt.Errorf("unknown log format %q", cfg.LogFormat))
	}

	return errs
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	// Durations are int64 kinds, handle them first.
	if d, ok := value.(*time.Duration); ok {
		var def time.Duration
		if defValue != "" {
			parsed, err := time.ParseDuration(defValue)
			if err != nil {
				return fmt.Errorf("%s: parsing duration %q: %w", name, defValue, err)
			}
			def = parsed
		}
		flag.DurationVar(d, name, def, usage)
		return nil
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	case reflect.Slice:
		// Only handle []string
		if val.Elem().Type().Elem().Kind() == reflect.String {
			var def []string
			if defValue != "" {
				def = strings.Split(defValue, ",")
			}
			flag.Func(name, usage, func(s string) error {
				*value.(*[]string) = strings.Split(s, ",")
				return nil
			})
			// Set default if not provided via flag
			if len(def) > 0 {
				*value.(*[]string) = def
			}
		} else {
			return fmt.Errorf("%s: unsupported slice type", name)
		}
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	flags := []struct {
		name  string
		value interface{}
		usage string
	}{
		{"runconfig", &cfg.RunConfig, "the run document filepath (yaml or json)"},
		{"polygonapikey", &cfg.PolygonAPIKey, "the polygon api key, overrides the run document"},
		{"dbbackend", &cfg.DBBackend, "the warehouse backend: rqlite, sqlite or dryrun"},
		{"dbendpoint", &cfg.DBEndpoint, "the rqlite endpoint"},
		{"dbuser", &cfg.DBUser, "the rqlite user"},
		{"dbpass", &cfg.DBPass, "the rqlite password"},
		{"sqlitepath", &cfg.SQLitePath, "the sqlite database filepath"},
		{"httptimeout", &cfg.HTTPTimeout, "the remote api request timeout"},
		{"frankfurterurl", &cfg.FrankfurterURL, "the frankfurter api base url"},
		{"polygonurl", &cfg.PolygonURL, "the polygon api base url"},
		{"pricesfile", &cfg.PricesFile, "the saved aggregates filepath replayed in place of the polygon api"},
		{"pushgateway", &cfg.Pushgateway, "the prometheus pushgateway url"},
		{"loglevel", &cfg.LogLevel, "the log level"},
		{"logformat", &cfg.LogFormat, "the log format: console or json"},
		{"logfile", &cfg.LogFile, "the rotating log filepath"},
		{"dropinconsistent", &cfg.DropInconsistent, "drop bars whose high or low do not bound the bar"},
	}

	// Register command line arguments using loaded environment variables as defaults.
	for _, f := range flags {
		err := cfg.registerFlag(f.name, f.value, f.usage)
		if err != nil {
			return err
		}
	}

	// Parse command-line flags.
	flag.Parse()

	cfg.applyDefaults()

	return cfg.Validate()
}

// loadRunConfiguration reads the run document and derives the run configuration. A
// non-empty api key overrides the document's.
func loadRunConfiguration(path string, apiKey string) (*shared.Configuration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, shared.NewConfigurationError(fmt.Sprintf("reading run document %s", path), err)
	}

	doc, err := shared.ParseDocument(b)
	if err != nil {
		return nil, err
	}

	if apiKey != "" {
		doc.Polygon.APIKey = apiKey
	}

	return doc.Configuration()
}
