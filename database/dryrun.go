package database

import (
	"context"

	"github.com/dnldd/stocketl/persist"
	"github.com/rs/zerolog"
)

// DryRun logs store calls without persisting anything. Generated identifiers are
// synthetic.
type DryRun struct {
	logger *zerolog.Logger
	nextID int64
	calls  int
}

// Ensure the dry run store implements the Store interface.
var _ persist.Store = (*DryRun)(nil)

// NewDryRun initializes a new dry run store.
func NewDryRun(logger *zerolog.Logger) *DryRun {
	return &DryRun{logger: logger, nextID: 1}
}

func (d *DryRun) log(call persist.Call) {
	d.calls++
	d.logger.Info().Str("procedure", call.Procedure).Msgf("dry run call %v", call.Args)
}

// Execute logs the provided calls.
func (d *DryRun) Execute(_ context.Context, calls ...persist.Call) error {
	for _, call := range calls {
		d.log(call)
	}

	return nil
}

// ExecuteReturningID logs the call and returns a synthetic identifier.
func (d *DryRun) ExecuteReturningID(_ context.Context, call persist.Call) (int64, error) {
	d.log(call)
	id := d.nextID
	d.nextID++

	return id, nil
}

// LookupID logs the call. Nothing is ever found.
func (d *DryRun) LookupID(_ context.Context, call persist.Call) (int64, bool, error) {
	d.log(call)
	return 0, false, nil
}

// Calls returns the number of calls logged.
func (d *DryRun) Calls() int {
	return d.calls
}

// Close logs the dry run summary.
func (d *DryRun) Close() error {
	d.logger.Info().Msgf("dry run complete, %d calls not persisted", d.calls)
	return nil
}
