package database

import (
	"fmt"

	"github.com/dnldd/stocketl/persist"
)

const (
	// SQL statements.
	createCurrencyTableSQL     = "CREATE TABLE IF NOT EXISTS currency (code TEXT PRIMARY KEY)"
	createStockTableSQL        = "CREATE TABLE IF NOT EXISTS stock (id INTEGER PRIMARY KEY AUTOINCREMENT, ticker TEXT NOT NULL)"
	createStockTickerIndexSQL  = "CREATE INDEX IF NOT EXISTS idx_stock_ticker ON stock(ticker)"
	createExchangeRateTableSQL = "CREATE TABLE IF NOT EXISTS exchange_rate (trade_date TEXT NOT NULL, base_currency TEXT NOT NULL, target_currency TEXT NOT NULL, rate TEXT NOT NULL, PRIMARY KEY (trade_date, base_currency, target_currency))"
	createStockPriceTableSQL   = "CREATE TABLE IF NOT EXISTS stock_price (stock_id INTEGER NOT NULL REFERENCES stock(id), date TEXT NOT NULL, currency TEXT NOT NULL, exchange_rate TEXT NOT NULL, open TEXT NOT NULL, high TEXT NOT NULL, low TEXT NOT NULL, close TEXT NOT NULL, volume TEXT NOT NULL, PRIMARY KEY (stock_id, date, currency))"

	insertCurrencySQL     = "INSERT INTO currency(code) VALUES(:p_code) ON CONFLICT(code) DO NOTHING"
	insertStockSQL        = "INSERT INTO stock(ticker) VALUES(:p_ticker)"
	findStockSQL          = "SELECT id AS p_stock_id FROM stock WHERE ticker = :p_ticker ORDER BY id LIMIT 1"
	insertExchangeRateSQL = "INSERT INTO exchange_rate(trade_date, base_currency, target_currency, rate) VALUES(:p_trade_date, :p_base_currency, :p_target_currency, :p_rate) ON CONFLICT(trade_date, base_currency, target_currency) DO UPDATE SET rate = excluded.rate"
	insertStockPriceSQL   = "INSERT INTO stock_price(stock_id, date, currency, exchange_rate, open, high, low, close, volume) VALUES(:p_stock_id, :p_date, :p_currency, :p_exchange_rate, :p_open, :p_high, :p_low, :p_close, :p_volume) ON CONFLICT(stock_id, date, currency) DO UPDATE SET exchange_rate = excluded.exchange_rate, open = excluded.open, high = excluded.high, low = excluded.low, close = excluded.close, volume = excluded.volume"
)

// bootstrapSQL creates the warehouse tables.
var bootstrapSQL = []string{
	createCurrencyTableSQL,
	createStockTableSQL,
	createStockTickerIndexSQL,
	createExchangeRateTableSQL,
	createStockPriceTableSQL,
}

// Procedures maps procedure names to their SQL bodies. Bodies reference their
// parameters by name.
type Procedures map[string]string

// DefaultProcedures returns the procedure bodies of the bundled warehouse.
func DefaultProcedures() Procedures {
	return Procedures{
		"insert_currency":      insertCurrencySQL,
		"insert_stock":         insertStockSQL,
		"find_stock":           findStockSQL,
		"insert_exchange_rate": insertExchangeRateSQL,
		"insert_stock_price":   insertStockPriceSQL,
	}
}

// body returns the SQL body of the call's procedure.
func (p Procedures) body(call persist.Call) (string, error) {
	sql, ok := p[call.Procedure]
	if !ok {
		return "", fmt.Errorf("unknown procedure %s", call.Procedure)
	}
	if len(call.Params) != len(call.Args) {
		return "", fmt.Errorf("procedure %s has %d parameters, got %d args", call.Procedure,
			len(call.Params), len(call.Args))
	}

	return sql, nil
}

// namedParams pairs the call's parameter names with its args.
func namedParams(call persist.Call) map[string]any {
	params := make(map[string]any, len(call.Params))
	for idx, name := range call.Params {
		params[name] = call.Args[idx]
	}

	return params
}
