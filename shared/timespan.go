package shared

import (
	"fmt"
	"strings"
)

const (
	// DateLayout is the format layout for calendar dates.
	DateLayout = "2006-01-02"
)

// Timespan represents the size of the time window of a price bar.
type Timespan int

const (
	Day Timespan = iota
	Minute
	Hour
	Week
	Month
	Quarter
	Year
)

// String stringifies the provided timespan.
func (t Timespan) String() string {
	switch t {
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	case Quarter:
		return "quarter"
	case Year:
		return "year"
	default:
		return "unknown"
	}
}

// ParseTimespan parses the provided timespan name.
func ParseTimespan(s string) (Timespan, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minute":
		return Minute, nil
	case "hour":
		return Hour, nil
	case "", "day":
		return Day, nil
	case "week":
		return Week, nil
	case "month":
		return Month, nil
	case "quarter":
		return Quarter, nil
	case "year":
		return Year, nil
	default:
		return Day, fmt.Errorf("unknown timespan provided: %s", s)
	}
}

// StockIdentityMode selects how a ticker's warehouse identity is resolved.
type StockIdentityMode int

const (
	// FindOrCreate reuses an existing stock row for the ticker and creates one when absent.
	FindOrCreate StockIdentityMode = iota
	// InsertAlways creates a new stock row on every run.
	InsertAlways
)

// String stringifies the provided stock identity mode.
func (m StockIdentityMode) String() string {
	switch m {
	case FindOrCreate:
		return "find-or-create"
	case InsertAlways:
		return "insert-always"
	default:
		return "unknown"
	}
}

// ParseStockIdentityMode parses the provided stock identity mode name.
func ParseStockIdentityMode(s string) (StockIdentityMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "find-or-create":
		return FindOrCreate, nil
	case "insert-always":
		return InsertAlways, nil
	default:
		return FindOrCreate, fmt.Errorf("unknown stock identity mode provided: %s", s)
	}
}
