package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/stocketl/persist"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"
)

// DatabaseConfig is the configuration for the database.
type DatabaseConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Timeout is the database request timeout.
	Timeout time.Duration
	// Procedures maps procedure names to their SQL bodies.
	Procedures Procedures
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *DatabaseConfig) Validate() error {
	var errs error

	if cfg.Endpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database endpoint cannot be an empty string"))
	}
	if len(cfg.Procedures) == 0 {
		errs = errors.Join(errs, fmt.Errorf("database procedures cannot be empty"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("database logger cannot be nil"))
	}

	return errs
}

// Database represents the rqlite database connection.
type Database struct {
	cfg    *DatabaseConfig
	httpc  *http.Client
	client *rqlitehttp.Client
}

// Ensure the database implements the Store interface.
var _ persist.Store = (*Database)(nil)

// NewDatabase initializes a new database connection.
func NewDatabase(ctx context.Context, cfg *DatabaseConfig) (*Database, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating database config: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = time.Second * 5
	}

	httpc := &http.Client{Timeout: timeout}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	if cfg.User != "" {
		client.SetBasicAuth(cfg.User, cfg.Pass)
	}

	db := &Database{
		cfg:    cfg,
		httpc:  httpc,
		client: client,
	}

	err = db.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// bootstrap initializes the database.
func (db *Database) bootstrap(ctx context.Context) error {
	stmts := make(rqlitehttp.SQLStatements, 0, len(bootstrapSQL))
	for _, sql := range bootstrapSQL {
		stmts = append(stmts, &rqlitehttp.SQLStatement{SQL: sql})
	}

	resp, err := db.client.Execute(ctx, stmts, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("creating tables: %d -> %s", idx, errStr)
	}

	return nil
}

// statements converts the provided calls into rqlite statements.
func (db *Database) statements(calls []persist.Call) (rqlitehttp.SQLStatements, error) {
	stmts := make(rqlitehttp.SQLStatements, 0, len(calls))
	for _, call := range calls {
		sql, err := db.cfg.Procedures.body(call)
		if err != nil {
			return nil, err
		}

		stmts = append(stmts, &rqlitehttp.SQLStatement{
			SQL:         sql,
			NamedParams: namedParams(call),
		})
	}

	return stmts, nil
}

// execute runs the calls in a single transaction.
func (db *Database) execute(ctx context.Context, calls []persist.Call) (*rqlitehttp.ExecuteResponse, error) {
	stmts, err := db.statements(calls)
	if err != nil {
		return nil, err
	}

	resp, err := db.client.Execute(ctx, stmts, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return nil, err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return nil, fmt.Errorf("executing %s: %d -> %s", calls[idx].Procedure, idx, errStr)
	}

	return resp, nil
}

// Execute runs the provided calls in a single transaction.
func (db *Database) Execute(ctx context.Context, calls ...persist.Call) error {
	if len(calls) == 0 {
		return nil
	}

	_, err := db.execute(ctx, calls)
	return err
}

// ExecuteReturningID runs the call and returns the identifier it generated.
func (db *Database) ExecuteReturningID(ctx context.Context, call persist.Call) (int64, error) {
	resp, err := db.execute(ctx, []persist.Call{call})
	if err != nil {
		return 0, err
	}

	if len(resp.Results) == 0 {
		db.cfg.Logger.Error().Msgf("unexpected execute response for %s: %s", call.Procedure, spew.Sdump(resp))
		return 0, fmt.Errorf("no result for %s", call.Procedure)
	}

	return resp.Results[0].LastInsertID, nil
}

// LookupID runs the call and returns the identifier it found, if any.
func (db *Database) LookupID(ctx context.Context, call persist.Call) (int64, bool, error) {
	stmts, err := db.statements([]persist.Call{call})
	if err != nil {
		return 0, false, err
	}

	resp, err := db.client.Query(ctx, stmts, nil)
	if err != nil {
		return 0, false, err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return 0, false, fmt.Errorf("querying %s: %d -> %s", call.Procedure, idx, errStr)
	}

	results := resp.GetQueryResults()
	if len(results) == 0 || len(results[0].Values) == 0 {
		return 0, false, nil
	}

	// Prefer the procedure's output column, falling back to the first column.
	result := results[0]
	column := 0
	for idx, name := range result.Columns {
		if name == call.Output {
			column = idx
			break
		}
	}

	row := result.Values[0]
	if column >= len(row) {
		db.cfg.Logger.Error().Msgf("unexpected lookup row for %s: %s", call.Procedure, spew.Sdump(result))
		return 0, false, fmt.Errorf("no identifier column in %s result", call.Procedure)
	}
	value := row[column]

	id, err := toID(value)
	if err != nil {
		return 0, false, fmt.Errorf("parsing %s result: %w", call.Procedure, err)
	}

	return id, true, nil
}

// toID converts a decoded json value into an identifier.
func toID(value any) (int64, error) {
	switch v := value.(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	default:
		return 0, fmt.Errorf("unexpected identifier type %T", value)
	}
}

// Close releases the database connection.
func (db *Database) Close() error {
	db.httpc.CloseIdleConnections()
	return nil
}
