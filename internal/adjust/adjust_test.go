package adjust

import (
	"fmt"
	"math"
	"testing"

	"github.com/opensource-marketing/kite/internal/domain"
	"github.com/opensource-marketing/kite/internal/normalize"
)

func funnelRow(day int, clicks float64) normalize.Row {
	return normalize.Row{DailyRow: domain.DailyRow{
		Date:           fmt.Sprintf("2026-01-%02d", day),
		Impressions:    10000,
		Clicks:         clicks,
		HasImpressions: true,
		HasClicks:      true,
	}}
}

func TestQuality(t *testing.T) {
	t.Run("NeutralWithoutFunnelData", func(t *testing.T) {
		rows := []normalize.Row{
			{DailyRow: domain.DailyRow{Date: "2026-01-01", Spend: 100}},
		}
		if got := Quality(rows); got != 1.0 {
			t.Errorf("expected neutral 1.0, got %v", got)
		}
	})

	t.Run("RecentImprovementLifts", func(t *testing.T) {
		// 21 flat days then 7 clearly better days.
		var rows []normalize.Row
		for d := 1; d <= 21; d++ {
			rows = append(rows, funnelRow(d, 100))
		}
		for d := 22; d <= 28; d++ {
			rows = append(rows, funnelRow(d, 300))
		}
		got := Quality(rows)
		if got <= 1.0 {
			t.Errorf("improved funnel should lift quality above 1.0, got %v", got)
		}
		if got > 1.25 {
			t.Errorf("quality must not exceed 1.25, got %v", got)
		}
	})

	t.Run("RecentDeclineDampens", func(t *testing.T) {
		var rows []normalize.Row
		for d := 1; d <= 21; d++ {
			rows = append(rows, funnelRow(d, 300))
		}
		for d := 22; d <= 28; d++ {
			rows = append(rows, funnelRow(d, 50))
		}
		got := Quality(rows)
		if got >= 1.0 {
			t.Errorf("declined funnel should dampen below 1.0, got %v", got)
		}
		if got < 0.8 {
			t.Errorf("quality must not drop below 0.8, got %v", got)
		}
	})

	t.Run("ExtremeShiftStaysClamped", func(t *testing.T) {
		var rows []normalize.Row
		for d := 1; d <= 21; d++ {
			rows = append(rows, funnelRow(d, 100))
		}
		for d := 22; d <= 28; d++ {
			rows = append(rows, funnelRow(d, 9000))
		}
		if got := Quality(rows); got != 1.25 {
			// z is clamped at 2.5 so a lone valid metric tops out at 1.25.
			t.Errorf("expected ceiling 1.25, got %v", got)
		}
	})
}

func TestCreative(t *testing.T) {
	cases := []struct {
		name      string
		creatives int
		budget    float64
		want      float64
	}{
		{"FullCoverage", 10, 10000, 1.0},
		{"HalfCoverage", 5, 10000, 0.85},
		{"NoCreatives", 0, 10000, 0.7},
		{"TinyBudgetSingleSlot", 1, 500, 1.0},
		{"OverProvisionedCaps", 50, 10000, 1.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Creative(tc.creatives, tc.budget)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Errorf("Creative(%d, %v) = %v, want %v", tc.creatives, tc.budget, got, tc.want)
			}
		})
	}
}

func TestPromo(t *testing.T) {
	t.Run("InactiveIsNeutral", func(t *testing.T) {
		if got := Promo(false, 40); got != 1.0 {
			t.Errorf("expected 1.0, got %v", got)
		}
	})

	t.Run("TwentyPercentDiscount", func(t *testing.T) {
		want := 1 + 0.012*20 + 0.00012*20*20
		if got := Promo(true, 20); math.Abs(got-want) > 1e-12 {
			t.Errorf("Promo(true, 20) = %v, want %v", got, want)
		}
	})

	t.Run("DeepDiscountClampsInput", func(t *testing.T) {
		if got, capped := Promo(true, 95), Promo(true, 60); got != capped {
			t.Errorf("discount above 60 should clamp: got %v vs %v", got, capped)
		}
	})

	t.Run("NeverExceedsCeiling", func(t *testing.T) {
		if got := Promo(true, 60); got > 1.35 {
			t.Errorf("promo lift must not exceed 1.35, got %v", got)
		}
	})
}
