package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/stocketl/clean"
	"github.com/dnldd/stocketl/convert"
	"github.com/dnldd/stocketl/database"
	"github.com/dnldd/stocketl/fetch"
	"github.com/dnldd/stocketl/metrics"
	"github.com/dnldd/stocketl/persist"
	"github.com/dnldd/stocketl/pipeline"
	"github.com/dnldd/stocketl/shared"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// Warehouse backends.
const (
	BackendRqlite = "rqlite"
	BackendSQLite = "sqlite"
	BackendDryRun = "dryrun"
)

// pushTimeout bounds the metrics push after a run.
const pushTimeout = time.Second * 5

// ETLConfig represents the configuration struct for the etl service.
type ETLConfig struct {
	// Run is the run configuration.
	Run *shared.Configuration
	// Backend is the warehouse backend, one of rqlite, sqlite or dryrun.
	Backend string
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
	// PricesFile replays saved aggregates in place of the price api when set.
	PricesFile string
	// PushgatewayURL is the metrics pushgateway url. Metrics are not pushed when empty.
	PushgatewayURL string
	// DropInconsistent drops bars whose high or low do not bound the bar.
	DropInconsistent bool
}

// Validate asserts the config sane inputs.
func (cfg *ETLConfig) Validate() error {
	var errs error

	if cfg.Run == nil {
		errs = errors.Join(errs, fmt.Errorf("run configuration cannot be nil"))
	}
	if cfg.Run != nil && cfg.PricesFile == "" && cfg.Run.APIKey == "" {
		errs = errors.Join(errs, fmt.Errorf("price api key is required unless replaying a prices file"))
	}

	switch cfg.Backend {
	case BackendRqlite:
		if cfg.DBEndpoint == "" {
			errs = errors.Join(errs, fmt.Errorf("database endpoint cannot be an empty string"))
		}
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			errs = errors.Join(errs, fmt.Errorf("sqlite path cannot be an empty string"))
		}
	case BackendDryRun:
	default:
		errs = errors.Join(errs, fmt.Errorf("unknown warehouse backend %q", cfg.Backend))
	}

	if cfg.FrankfurterURL == "" {
		errs = errors.Join(errs, fmt.Errorf("frankfurter url cannot be an empty string"))
	}
	if cfg.PolygonURL == "" && cfg.PricesFile == "" {
		errs = errors.Join(errs, fmt.Errorf("polygon url cannot be an empty string"))
	}
	if cfg.HTTPTimeout < 0 {
		errs = errors.Join(errs, fmt.Errorf("http timeout cannot be negative"))
	}

	return errs
}

// store is a warehouse store holding resources until closed.
type store interface {
	persist.Store
	Close() error
}

// ETL represents a single run stock etl service.
type ETL struct {
	cfg      *ETLConfig
	runID    string
	store    store
	metrics  *metrics.Recorder
	pipeline *pipeline.Pipeline
	logger   *zerolog.Logger
}

// newStore opens the configured warehouse backend.
func newStore(ctx context.Context, cfg *ETLConfig, logger zerolog.Logger) (store, error) {
	storeLogger := logger.With().Str("component", cfg.Backend).Logger()

	switch cfg.Backend {
	case BackendRqlite:
		return database.NewDatabase(ctx, &database.DatabaseConfig{
			Endpoint:   cfg.DBEndpoint,
			User:       cfg.DBUser,
			Pass:       cfg.DBPass,
			Timeout:    cfg.HTTPTimeout,
			Procedures: database.DefaultProcedures(),
			Logger:     &storeLogger,
		})
	case BackendSQLite:
		return database.NewSQLite(ctx, &database.SQLiteConfig{
			Path:       cfg.SQLitePath,
			Procedures: database.DefaultProcedures(),
			Logger:     &storeLogger,
		})
	default:
		return database.NewDryRun(&storeLogger), nil
	}
}

// newPriceFetcher creates the price api client, or the saved aggregates source when
// a prices file is configured.
func newPriceFetcher(cfg *ETLConfig, logger zerolog.Logger) (shared.PriceFetcher, error) {
	if cfg.PricesFile != "" {
		historicDataLogger := logger.With().Str("component", "historicdata").Logger()
		return fetch.NewHistoricData(&fetch.HistoricDataConfig{
			FilePath: cfg.PricesFile,
			Logger:   &historicDataLogger,
		})
	}

	polygonLogger := logger.With().Str("component", "polygon").Logger()
	return fetch.NewPolygonClient(&fetch.PolygonConfig{
		BaseURL: cfg.PolygonURL,
		Timeout: cfg.HTTPTimeout,
		Logger:  &polygonLogger,
	})
}

// NewETL initializes a new etl service and opens its warehouse store.
func NewETL(ctx context.Context, cfg *ETLConfig) (*ETL, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, shared.NewConfigurationError("validating etl config", err)
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	runID := uuid.New().String()
	logger := log.With().Str("service", "etl").Str("run", runID).Logger()

	frankfurterLogger := logger.With().Str("component", "frankfurter").Logger()
	rateFetcher, err := fetch.NewFrankfurterClient(&fetch.FrankfurterConfig{
		BaseURL: cfg.FrankfurterURL,
		Timeout: cfg.HTTPTimeout,
		Logger:  &frankfurterLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating frankfurter client: %w", err)
	}

	priceFetcher, err := newPriceFetcher(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating price fetcher: %w", err)
	}

	cleanerLogger := logger.With().Str("component", "cleaner").Logger()
	cleaner, err := clean.NewCleaner(&clean.CleanerConfig{
		DropInconsistent: cfg.DropInconsistent,
		Logger:           &cleanerLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating cleaner: %w", err)
	}

	converterLogger := logger.With().Str("component", "converter").Logger()
	converter, err := convert.NewConverter(&convert.ConverterConfig{Logger: &converterLogger})
	if err != nil {
		return nil, fmt.Errorf("creating converter: %w", err)
	}

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, shared.NewPersistenceError(fmt.Sprintf("opening %s warehouse", cfg.Backend), err)
	}

	persisterLogger := logger.With().Str("component", "persister").Logger()
	persister, err := persist.NewPersister(&persist.PersisterConfig{
		Store:         st,
		Schema:        persist.DefaultSchema(),
		StockIdentity: cfg.Run.StockIdentity,
		Logger:        &persisterLogger,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating persister: %w", err)
	}

	recorder := metrics.New()

	pipelineLogger := logger.With().Str("component", "pipeline").Logger()
	pl, err := pipeline.NewPipeline(&pipeline.PipelineConfig{
		Run:          cfg.Run,
		RateFetcher:  rateFetcher,
		PriceFetcher: priceFetcher,
		Cleaner:      cleaner,
		Converter:    converter,
		Persister:    persister,
		Metrics:      recorder,
		Logger:       &pipelineLogger,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}

	service := &ETL{
		cfg:      cfg,
		runID:    runID,
		store:    st,
		metrics:  recorder,
		pipeline: pl,
		logger:   &logger,
	}

	return service, nil
}

// RunID returns the identifier attached to the service's logs.
func (e *ETL) RunID() string {
	return e.runID
}

// Run executes the pipeline once and pushes the run metrics when configured. Metric
// push failures are logged and do not fail the run.
func (e *ETL) Run(ctx context.Context) (*pipeline.Result, error) {
	res, err := e.pipeline.Run(ctx)
	if err != nil {
		e.metrics.RecordFailure(shared.KindOf(err).String())
	} else {
		e.metrics.RecordSuccess()
	}

	if e.cfg.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()

		perr := e.metrics.Push(pushCtx, e.cfg.PushgatewayURL, e.cfg.Run.Ticker)
		if perr != nil {
			e.logger.Warn().Err(perr).Msg("pushing run metrics")
		}
	}

	return res, err
}

// Close releases the warehouse store.
func (e *ETL) Close() error {
	return e.store.Close()
}
