// Package ingest parses uploaded CSV rows and merges them into a scope's
// existing history. Header aliases are mapped to canonical names; unknown
// columns are ignored, never guessed.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/opensource-marketing/kite/internal/domain"
)

// headerAliases maps every accepted column name to its canonical field.
var headerAliases = map[string]string{
	"date": "date", "day": "date",

	"campaign_id": "campaign_id", "campaign": "campaign_id",
	"campaign_name": "campaign_name",
	"adset_id":      "adset_id", "ad_set_id": "adset_id", "adset": "adset_id",
	"adset_name": "adset_name", "ad_set_name": "adset_name",
	"geo": "geo", "country": "geo", "region": "geo",

	"spend": "spend", "cost": "spend", "amount_spent": "spend",
	"purchase_value": "purchase_value", "revenue": "purchase_value",
	"conversion_value": "purchase_value",
	"purchases":        "purchases", "orders": "purchases",
	"conversions": "purchases", "total_orders": "purchases",

	"impressions": "impressions",
	"clicks":      "clicks", "link_clicks": "clicks",
	"atc": "atc", "add_to_cart": "atc", "adds_to_cart": "atc",
	"ic": "ic", "initiate_checkout": "ic", "checkouts_initiated": "ic",

	"active_creatives_count": "active_creatives", "active_creatives": "active_creatives",
	"promo_flag": "promo_flag", "promo": "promo_flag",
	"discount_pct": "discount_pct", "discount": "discount_pct",
}

// ParseResult is the outcome of one CSV parse.
type ParseResult struct {
	Rows    []domain.DailyRow
	Skipped int
}

// Parse reads CSV content into daily rows. Rows without a parseable date are
// counted as skipped; malformed numeric cells leave the field unset.
func Parse(r io.Reader) (*ParseResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := make(map[int]string, len(header))
	hasDate := false
	for i, h := range header {
		canonical, ok := headerAliases[normalizeHeader(h)]
		if !ok {
			continue
		}
		cols[i] = canonical
		if canonical == "date" {
			hasDate = true
		}
	}
	if !hasDate {
		return nil, fmt.Errorf("CSV is missing a date column")
	}

	result := &ParseResult{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Skipped++
			continue
		}

		row, ok := parseRecord(cols, record)
		if !ok {
			result.Skipped++
			continue
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

func parseRecord(cols map[int]string, record []string) (domain.DailyRow, bool) {
	var row domain.DailyRow
	for i, canonical := range cols {
		if i >= len(record) {
			continue
		}
		cell := strings.TrimSpace(record[i])
		if cell == "" {
			continue
		}

		switch canonical {
		case "date":
			row.Date = cell
		case "campaign_id":
			row.CampaignID = cell
		case "campaign_name":
			row.CampaignName = cell
		case "adset_id":
			row.AdsetID = cell
		case "adset_name":
			row.AdsetName = cell
		case "geo":
			row.Geo = strings.ToUpper(cell)
		case "spend":
			row.Spend = parseFloat(cell)
		case "purchase_value":
			row.PurchaseValue = parseFloat(cell)
			row.HasPurchaseValue = true
		case "purchases":
			row.Purchases = parseFloat(cell)
		case "impressions":
			row.Impressions = parseFloat(cell)
			row.HasImpressions = true
		case "clicks":
			row.Clicks = parseFloat(cell)
			row.HasClicks = true
		case "atc":
			row.ATC = parseFloat(cell)
			row.HasATC = true
		case "ic":
			row.IC = parseFloat(cell)
			row.HasIC = true
		case "active_creatives":
			row.ActiveCreatives = int(parseFloat(cell))
		case "promo_flag":
			row.PromoFlag = parseBool(cell)
		case "discount_pct":
			row.DiscountPct = parseFloat(cell)
		}
	}

	if row.Date == "" {
		return row, false
	}
	return row, true
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}

func parseFloat(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
