package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dnldd/stocketl/persist"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

// SQLiteConfig is the configuration for the embedded sqlite warehouse.
type SQLiteConfig struct {
	// Path is the database file path, or ":memory:".
	Path string
	// Procedures maps procedure names to their SQL bodies.
	Procedures Procedures
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *SQLiteConfig) Validate() error {
	var errs error

	if cfg.Path == "" {
		errs = errors.Join(errs, fmt.Errorf("sqlite path cannot be an empty string"))
	}
	if len(cfg.Procedures) == 0 {
		errs = errors.Join(errs, fmt.Errorf("sqlite procedures cannot be empty"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("sqlite logger cannot be nil"))
	}

	return errs
}

// SQLite persists warehouse data to a sqlite database.
type SQLite struct {
	cfg *SQLiteConfig
	db  *sql.DB
}

// Ensure sqlite implements the Store interface.
var _ persist.Store = (*SQLite)(nil)

// NewSQLite opens (or creates) the sqlite database and creates the warehouse tables.
func NewSQLite(ctx context.Context, cfg *SQLiteConfig) (*SQLite, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating sqlite config: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	// One connection keeps connection scoped pragmas and in-memory databases in effect.
	db.SetMaxOpenConns(1)

	s := &SQLite{cfg: cfg, db: db}

	err = s.bootstrap(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrapping sqlite: %w", err)
	}

	cfg.Logger.Info().Msgf("sqlite warehouse opened: %s", cfg.Path)

	return s, nil
}

// bootstrap initializes the database.
func (s *SQLite) bootstrap(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	if err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}

	for idx, stmt := range bootstrapSQL {
		_, err := s.db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("executing bootstrap statement #%d: %w", idx, err)
		}
	}

	return nil
}

// args converts the call's parameters into named args.
func args(call persist.Call) []any {
	named := make([]any, 0, len(call.Args))
	for idx, name := range call.Params {
		named = append(named, sql.Named(name, call.Args[idx]))
	}

	return named
}

// inTx runs fn in a transaction, rolling back on failure.
func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	err = fn(tx)
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			s.cfg.Logger.Error().Err(rerr).Msg("rolling back transaction")
		}
		return err
	}

	return tx.Commit()
}

// Execute runs the provided calls in a single transaction.
func (s *SQLite) Execute(ctx context.Context, calls ...persist.Call) error {
	if len(calls) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, call := range calls {
			body, err := s.cfg.Procedures.body(call)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, body, args(call)...)
			if err != nil {
				return fmt.Errorf("executing %s: %w", call.Procedure, err)
			}
		}

		return nil
	})
}

// ExecuteReturningID runs the call and returns the identifier it generated.
func (s *SQLite) ExecuteReturningID(ctx context.Context, call persist.Call) (int64, error) {
	body, err := s.cfg.Procedures.body(call)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, body, args(call)...)
		if err != nil {
			return fmt.Errorf("executing %s: %w", call.Procedure, err)
		}

		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("fetching %s insert id: %w", call.Procedure, err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// LookupID runs the call and returns the identifier it found, if any.
func (s *SQLite) LookupID(ctx context.Context, call persist.Call) (int64, bool, error) {
	body, err := s.cfg.Procedures.body(call)
	if err != nil {
		return 0, false, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx, body, args(call)...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("querying %s: %w", call.Procedure, err)
	}

	return id, true, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	s.cfg.Logger.Info().Msg("closing sqlite warehouse")
	return s.db.Close()
}
