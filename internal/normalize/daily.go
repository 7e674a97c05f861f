package normalize

import (
	"sort"

	"github.com/opensource-marketing/kite/internal/domain"
)

// DailySeries collapses a mixed batch into one observation per distinct
// date. Campaign-aggregate rows win; ad-set detail rows are summed only for
// dates that have no campaign row, so redundant detail never double-counts
// spend or stretches the day sequence. Output is ordered by date.
func DailySeries(rows []Row) []Row {
	campaign := make(map[string]*Row)
	adset := make(map[string]*Row)
	var dates []string

	for i := range rows {
		r := &rows[i]
		if _, ok := campaign[r.Date]; !ok {
			if _, ok := adset[r.Date]; !ok {
				dates = append(dates, r.Date)
			}
		}
		if r.IsAdset() {
			accumulate(adset, r)
		} else {
			accumulate(campaign, r)
		}
	}

	sort.Strings(dates)

	out := make([]Row, 0, len(dates))
	for _, date := range dates {
		if agg, ok := campaign[date]; ok {
			out = append(out, *agg)
		} else {
			out = append(out, *adset[date])
		}
	}
	return out
}

func accumulate(byDate map[string]*Row, r *Row) {
	agg, ok := byDate[r.Date]
	if !ok {
		c := *r
		c.AdsetID = ""
		c.AdsetName = ""
		byDate[r.Date] = &c
		return
	}

	agg.Spend += r.Spend
	agg.NormRevenue += r.NormRevenue
	agg.PurchaseValue += r.PurchaseValue
	agg.Purchases += r.Purchases
	agg.Impressions += r.Impressions
	agg.Clicks += r.Clicks
	agg.ATC += r.ATC
	agg.IC += r.IC
	agg.HasPurchaseValue = agg.HasPurchaseValue || r.HasPurchaseValue
	agg.HasImpressions = agg.HasImpressions || r.HasImpressions
	agg.HasClicks = agg.HasClicks || r.HasClicks
	agg.HasATC = agg.HasATC || r.HasATC
	agg.HasIC = agg.HasIC || r.HasIC
	if agg.RevSource == domain.RevenueNone {
		agg.RevSource = r.RevSource
	}
}
