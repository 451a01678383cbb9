package persist

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Operation is a named warehouse operation.
type Operation string

const (
	InsertCurrency     Operation = "insert_currency"
	InsertStock        Operation = "insert_stock"
	FindStock          Operation = "find_stock"
	InsertExchangeRate Operation = "insert_exchange_rate"
	InsertStockPrice   Operation = "insert_stock_price"
)

// Operation parameter names.
const (
	ParamCode         = "p_code"
	ParamTicker       = "p_ticker"
	ParamTradeDate    = "p_trade_date"
	ParamBase         = "p_base_currency"
	ParamTarget       = "p_target_currency"
	ParamRate         = "p_rate"
	ParamStockID      = "p_stock_id"
	ParamDate         = "p_date"
	ParamCurrency     = "p_currency"
	ParamExchangeRate = "p_exchange_rate"
	ParamOpen         = "p_open"
	ParamHigh         = "p_high"
	ParamLow          = "p_low"
	ParamClose        = "p_close"
	ParamVolume       = "p_volume"
	OutputStockID     = "p_stock_id"
)

// operationParams are the values each operation is supplied with.
var operationParams = map[Operation][]string{
	InsertCurrency:     {ParamCode},
	InsertStock:        {ParamTicker},
	FindStock:          {ParamTicker},
	InsertExchangeRate: {ParamTradeDate, ParamBase, ParamTarget, ParamRate},
	InsertStockPrice: {ParamStockID, ParamDate, ParamCurrency, ParamExchangeRate,
		ParamOpen, ParamHigh, ParamLow, ParamClose, ParamVolume},
}

// Procedure describes how an operation is invoked on the store.
type Procedure struct {
	// Name is the store procedure name.
	Name string
	// Params are the procedure's parameter names in positional order.
	Params []string
	// Output is the name of the procedure's output value, if any.
	Output string
}

// Schema maps operations to the procedures that implement them.
type Schema map[Operation]Procedure

// DefaultSchema returns the procedure schema of the bundled warehouse.
func DefaultSchema() Schema {
	return Schema{
		InsertCurrency: {Name: "insert_currency", Params: []string{ParamCode}},
		InsertStock:    {Name: "insert_stock", Params: []string{ParamTicker}, Output: OutputStockID},
		FindStock:      {Name: "find_stock", Params: []string{ParamTicker}, Output: OutputStockID},
		InsertExchangeRate: {Name: "insert_exchange_rate",
			Params: []string{ParamTradeDate, ParamBase, ParamTarget, ParamRate}},
		InsertStockPrice: {Name: "insert_stock_price",
			Params: []string{ParamStockID, ParamDate, ParamCurrency, ParamExchangeRate,
				ParamOpen, ParamHigh, ParamLow, ParamClose, ParamVolume}},
	}
}

// Validate asserts every operation has a procedure whose parameters are known to
// the operation.
func (s Schema) Validate() error {
	var errs error

	ops := make([]string, 0, len(operationParams))
	for op := range operationParams {
		ops = append(ops, string(op))
	}
	sort.Strings(ops)

	for _, name := range ops {
		op := Operation(name)
		proc, ok := s[op]
		if !ok {
			errs = errors.Join(errs, fmt.Errorf("no procedure for operation %s", op))
			continue
		}
		if proc.Name == "" {
			errs = errors.Join(errs, fmt.Errorf("procedure name for operation %s cannot be an empty string", op))
		}

		known := make(map[string]struct{}, len(operationParams[op]))
		for _, p := range operationParams[op] {
			known[p] = struct{}{}
		}

		seen := make(map[string]struct{}, len(proc.Params))
		for _, p := range proc.Params {
			if _, ok := known[p]; !ok {
				errs = errors.Join(errs, fmt.Errorf("procedure %s has unknown parameter %s (known: %s)",
					proc.Name, p, strings.Join(operationParams[op], ", ")))
			}
			if _, ok := seen[p]; ok {
				errs = errors.Join(errs, fmt.Errorf("procedure %s repeats parameter %s", proc.Name, p))
			}
			seen[p] = struct{}{}
		}
	}

	return errs
}

// Call is a bound procedure invocation.
type Call struct {
	// Procedure is the store procedure name.
	Procedure string
	// Params are the parameter names in positional order.
	Params []string
	// Args are the parameter values in positional order.
	Args []any
	// Output is the name of the procedure's output value, if any.
	Output string
}

// Bind binds named values to the operation's procedure in positional order.
func (s Schema) Bind(op Operation, values map[string]any) (Call, error) {
	proc, ok := s[op]
	if !ok {
		return Call{}, fmt.Errorf("no procedure for operation %s", op)
	}

	args := make([]any, 0, len(proc.Params))
	for _, p := range proc.Params {
		v, ok := values[p]
		if !ok {
			return Call{}, fmt.Errorf("no value for parameter %s of procedure %s", p, proc.Name)
		}
		args = append(args, v)
	}

	return Call{
		Procedure: proc.Name,
		Params:    proc.Params,
		Args:      args,
		Output:    proc.Output,
	}, nil
}
