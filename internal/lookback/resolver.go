// Package lookback resolves the trailing window of daily rows used for
// parameter fitting.
package lookback

import (
	"fmt"
	"sort"

	"github.com/opensource-marketing/kite/internal/domain"
	"github.com/opensource-marketing/kite/internal/normalize"
)

// FullWindowNote is attached when the user pins the full history, which
// dilutes recent signal.
const FullWindowNote = "full history selected: reduced responsiveness to recent changes"

// Result is the resolved lookback slice.
type Result struct {
	Rows []normalize.Row

	// Days is the resolved integer window in distinct dates.
	Days int

	Note string
}

// Resolve truncates rows to the requested window. Rows are ordered by date
// (the sort key, never array position) before truncation; the input slice is
// not mutated. Fixed windows keep the last N distinct dates; Smart picks a
// window from the amount of history available and never exceeds it.
func Resolve(rows []normalize.Row, choice domain.LookbackChoice) Result {
	sorted := make([]normalize.Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})

	dates := distinctDates(sorted)

	switch choice {
	case domain.LookbackFull:
		return Result{Rows: sorted, Days: len(dates), Note: FullWindowNote}
	case domain.Lookback14:
		return truncate(sorted, dates, 14)
	case domain.Lookback30:
		return truncate(sorted, dates, 30)
	case domain.Lookback90:
		return truncate(sorted, dates, 90)
	default:
		return smart(sorted, dates)
	}
}

// smart resolves the window from available history: 30 days once two months
// of data exist, 14 days for one month, 7 days for one week, else everything.
func smart(rows []normalize.Row, dates []string) Result {
	n := len(dates)
	var days int
	switch {
	case n >= 60:
		days = 30
	case n >= 14:
		days = 14
	case n >= 7:
		days = 7
	default:
		return Result{Rows: rows, Days: n, Note: fmt.Sprintf("only %d days of history available", n)}
	}
	return truncate(rows, dates, days)
}

// truncate keeps rows belonging to the last `days` distinct dates.
func truncate(rows []normalize.Row, dates []string, days int) Result {
	if days >= len(dates) {
		return Result{Rows: rows, Days: len(dates)}
	}

	cutoff := dates[len(dates)-days]
	out := make([]normalize.Row, 0, len(rows))
	for _, r := range rows {
		if r.Date >= cutoff {
			out = append(out, r)
		}
	}
	return Result{Rows: out, Days: days}
}

func distinctDates(rows []normalize.Row) []string {
	out := make([]string, 0, len(rows))
	var last string
	for _, r := range rows {
		if r.Date != last {
			out = append(out, r.Date)
			last = r.Date
		}
	}
	return out
}
