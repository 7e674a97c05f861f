// Package recommend scans the spend axis for the Max-ROAS and growth-knee
// operating points.
package recommend

import (
	"github.com/opensource-marketing/kite/internal/normalize"
	"github.com/opensource-marketing/kite/internal/numeric"

	"github.com/opensource-marketing/kite/internal/domain"
)

const (
	defaultGridMin = 500
	defaultGridMax = 12000
	minSpendDays   = 5
	kneeRatio      = 0.7
)

// Options tune the grid.
type Options struct {
	// Step is the requested grid step. It is floored at StepFloor.
	Step float64

	// StepFloor defaults to 100.
	StepFloor float64
}

// Scan evaluates the predictor over a spend grid inferred from the lookback
// and places both operating points. evaluate must be the same adjusted
// prediction used for the headline estimate.
func Scan(rows []normalize.Row, evaluate func(dailyBudget float64) float64, opts Options) domain.Recommendations {
	min, max := bounds(rows)

	floor := opts.StepFloor
	if floor <= 0 {
		floor = 100
	}
	step := opts.Step
	if step < floor {
		step = floor
	}

	var rec domain.Recommendations
	for spend := min; spend <= max+1e-9; spend += step {
		revenue := evaluate(spend)
		rec.Grid = append(rec.Grid, domain.GridPoint{
			Spend:   spend,
			Revenue: revenue,
			ROAS:    numeric.SafeDiv(revenue, spend, 0),
		})
	}
	if len(rec.Grid) == 0 {
		return rec
	}

	best := 0
	for i, p := range rec.Grid {
		if p.ROAS > rec.Grid[best].ROAS {
			best = i
		}
	}
	rec.MaxROAS = operatingPoint(rec.Grid[best])

	knee, found := findKnee(rec.Grid, best)
	rec.GrowthKnee = operatingPoint(knee)
	rec.KneeFound = found
	rec.KneeAtGridEdge = knee.Spend == rec.Grid[len(rec.Grid)-1].Spend
	return rec
}

// bounds infers the scan range from observed campaign-level daily spend,
// falling back to constants when history is too short.
func bounds(rows []normalize.Row) (float64, float64) {
	perDay := make(map[string]float64)
	for i := range rows {
		if rows[i].IsAdset() {
			continue
		}
		perDay[rows[i].Date] += rows[i].Spend
	}

	spends := make([]float64, 0, len(perDay))
	for _, s := range perDay {
		if s > 0 {
			spends = append(spends, s)
		}
	}
	if len(spends) < minSpendDays {
		return defaultGridMin, defaultGridMax
	}

	p10 := numeric.Percentile(spends, 10, 0)
	p90 := numeric.Percentile(spends, 90, 0)

	min := numeric.RoundTo(0.5*p10, 100)
	if min < 200 {
		min = 200
	}
	max := numeric.RoundTo(2*p90, 100)
	if max < min+500 {
		max = min + 500
	}
	return min, max
}

// findKnee walks the grid past the Max-ROAS point looking for the first spend
// whose marginal ROAS is positive but has decayed to 70% of the best. Without
// one, the point closest to twice the Max-ROAS spend stands in.
func findKnee(grid []domain.GridPoint, best int) (domain.GridPoint, bool) {
	bestROAS := grid[best].ROAS
	for i := best + 1; i < len(grid); i++ {
		dSpend := grid[i].Spend - grid[i-1].Spend
		if dSpend <= 0 {
			continue
		}
		marginal := (grid[i].Revenue - grid[i-1].Revenue) / dSpend
		if marginal > 0 && marginal <= kneeRatio*bestROAS {
			return grid[i], true
		}
	}

	target := 2 * grid[best].Spend
	closest := best
	for i := range grid {
		if abs(grid[i].Spend-target) < abs(grid[closest].Spend-target) {
			closest = i
		}
	}
	return grid[closest], false
}

func operatingPoint(p domain.GridPoint) domain.OperatingPoint {
	return domain.OperatingPoint{Spend: p.Spend, Revenue: p.Revenue, ROAS: p.ROAS}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
