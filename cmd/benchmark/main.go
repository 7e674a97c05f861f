// Backtest tool for testing Kite predictions against held-out spend history.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/daily_rows.csv -url http://localhost:8080
//
// This tool:
//   1. Reads exported daily delivery rows (date, campaign, spend, revenue, funnel)
//   2. Groups rows by campaign and holds out the most recent N days
//   3. Simulates each campaign at its held-out average daily spend
//   4. Compares predicted revenue with what the campaign actually earned
//   5. Calculates MAPE, P10-P90 interval coverage, and latency
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DailyRecord is one row from the export CSV.
type DailyRecord struct {
	Date       string
	CampaignID string
	AdsetID    string
	Spend      float64
	Revenue    float64
	Purchases  float64
	Impressions float64
	Clicks     float64
	ATC        float64
	IC         float64
}

// Campaign groups a campaign's rows, sorted by date.
type Campaign struct {
	ID   string
	Rows []DailyRecord
}

// SimulateRequest is the Kite API request format.
type SimulateRequest struct {
	Scope         string       `json:"scope"`
	Scenario      Scenario     `json:"scenario"`
	DailyBudget   float64      `json:"dailyBudget"`
	Rows          []RowPayload `json:"rows,omitempty"`
	BootstrapSeed *int64       `json:"bootstrapSeed,omitempty"`
}

type Scenario struct {
	ScenarioType string `json:"scenarioType"`
	Structure    string `json:"structure"`
}

// RowPayload mirrors the daily row wire format.
type RowPayload struct {
	Date          string  `json:"date"`
	CampaignID    string  `json:"campaign_id,omitempty"`
	AdsetID       string  `json:"adset_id,omitempty"`
	Spend         float64 `json:"spend"`
	PurchaseValue float64 `json:"purchase_value,omitempty"`
	Purchases     float64 `json:"purchases,omitempty"`
	Impressions   float64 `json:"impressions,omitempty"`
	Clicks        float64 `json:"clicks,omitempty"`
	ATC           float64 `json:"atc,omitempty"`
	IC            float64 `json:"ic,omitempty"`
}

// SimulateResponse is the subset of the Kite API response the backtest reads.
type SimulateResponse struct {
	ID         string `json:"id"`
	ModeChosen string `json:"modeChosen"`
	Prediction struct {
		MeanDailyRevenue float64 `json:"meanDailyRevenue"`
		ROAS             float64 `json:"roas"`
		P10              float64 `json:"p10"`
		P90              float64 `json:"p90"`
	} `json:"prediction"`
	DataHealth struct {
		Readiness  string `json:"readiness"`
		Confidence string `json:"confidence"`
	} `json:"dataHealth"`
}

// Metrics tracks backtest results.
type Metrics struct {
	TotalProcessed int64
	TotalErrors    int64
	CoveredByBand  int64 // actual revenue fell inside [P10, P90]
	HighConfidence int64
	PriorsDriven   int64

	ProcessingTimeMs int64

	mu   sync.Mutex
	apes []float64 // absolute percentage errors, one per campaign
}

func (m *Metrics) recordAPE(ape float64) {
	m.mu.Lock()
	m.apes = append(m.apes, ape)
	m.mu.Unlock()
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to daily rows CSV export")
	baseURL := flag.String("url", "http://localhost:8080", "Kite base URL")
	tenantID := flag.String("tenant", "backtest", "Tenant ID for requests")
	holdout := flag.Int("holdout", 7, "Days held out per campaign for comparison")
	minTrain := flag.Int("min-train", 14, "Minimum training days a campaign needs")
	limit := flag.Int("limit", 0, "Maximum campaigns to test (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each campaign result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/daily_rows.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           KITE BACKTEST - Prediction vs Actuals               ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Kite URL:    %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Holdout:     %d days\n", *holdout)
	fmt.Printf("Min Train:   %d days\n", *minTrain)
	fmt.Println()

	// Check Kite is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kite not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kite is running:")
		fmt.Println("  cd kite && go run cmd/kite/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kite is healthy")

	// Read daily rows
	fmt.Printf("\nReading daily rows from %s...\n", *csvPath)
	records, err := readRowsCSV(*csvPath)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d rows\n", len(records))

	// Group into campaigns with enough history to backtest
	campaigns := groupCampaigns(records, *holdout, *minTrain, *limit)
	if len(campaigns) == 0 {
		fmt.Printf("ERROR: No campaign has %d train + %d holdout days\n", *minTrain, *holdout)
		os.Exit(1)
	}
	fmt.Printf("✓ %d campaigns eligible for backtest\n", len(campaigns))

	// Run backtest
	fmt.Printf("\nRunning backtest with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBacktest(campaigns, *baseURL, *tenantID, *holdout, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readRowsCSV(path string) ([]DailyRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices; accept the common export aliases
	colIndex := make(map[string]int)
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		switch name {
		case "revenue", "purchase_value", "conversion_value":
			name = "revenue"
		case "campaign", "campaign_id":
			name = "campaign_id"
		case "adset", "adset_id", "ad_set_id":
			name = "adset_id"
		case "day", "date":
			name = "date"
		}
		colIndex[name] = i
	}
	if _, ok := colIndex["date"]; !ok {
		return nil, fmt.Errorf("CSV has no date column")
	}
	if _, ok := colIndex["spend"]; !ok {
		return nil, fmt.Errorf("CSV has no spend column")
	}

	readFloat := func(record []string, name string) float64 {
		i, ok := colIndex[name]
		if !ok || i >= len(record) {
			return 0
		}
		v, _ := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
		return v
	}
	readString := func(record []string, name string) string {
		i, ok := colIndex[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var records []DailyRecord
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		rec := DailyRecord{
			Date:        readString(record, "date"),
			CampaignID:  readString(record, "campaign_id"),
			AdsetID:     readString(record, "adset_id"),
			Spend:       readFloat(record, "spend"),
			Revenue:     readFloat(record, "revenue"),
			Purchases:   readFloat(record, "purchases"),
			Impressions: readFloat(record, "impressions"),
			Clicks:      readFloat(record, "clicks"),
			ATC:         readFloat(record, "atc"),
			IC:          readFloat(record, "ic"),
		}
		if rec.Date == "" {
			continue
		}
		if rec.CampaignID == "" {
			rec.CampaignID = "default"
		}
		records = append(records, rec)
	}

	return records, nil
}

// groupCampaigns buckets rows per campaign and keeps the ones with enough
// distinct days for a train window plus the holdout.
func groupCampaigns(records []DailyRecord, holdout, minTrain, limit int) []Campaign {
	byID := make(map[string][]DailyRecord)
	for _, rec := range records {
		byID[rec.CampaignID] = append(byID[rec.CampaignID], rec)
	}

	var campaigns []Campaign
	for id, rows := range byID {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })

		days := make(map[string]bool)
		for _, r := range rows {
			days[r.Date] = true
		}
		if len(days) < holdout+minTrain {
			continue
		}
		campaigns = append(campaigns, Campaign{ID: id, Rows: rows})
	}

	// Deterministic order regardless of map iteration
	sort.Slice(campaigns, func(i, j int) bool { return campaigns[i].ID < campaigns[j].ID })

	if limit > 0 && len(campaigns) > limit {
		campaigns = campaigns[:limit]
	}
	return campaigns
}

// splitHoldout separates a campaign's rows into training rows and the last
// holdout days' actuals. Splitting is by date so ad-set rows for the same day
// stay together.
func splitHoldout(c Campaign, holdout int) (train []DailyRecord, actualSpend, actualRevenue float64) {
	dates := make([]string, 0)
	seen := make(map[string]bool)
	for _, r := range c.Rows {
		if !seen[r.Date] {
			seen[r.Date] = true
			dates = append(dates, r.Date)
		}
	}
	sort.Strings(dates)

	cutoff := dates[len(dates)-holdout]

	var holdoutSpend, holdoutRevenue float64
	for _, r := range c.Rows {
		if r.Date < cutoff {
			train = append(train, r)
		} else {
			holdoutSpend += r.Spend
			holdoutRevenue += r.Revenue
		}
	}

	return train, holdoutSpend / float64(holdout), holdoutRevenue / float64(holdout)
}

func runBacktest(campaigns []Campaign, baseURL, tenantID string, holdout, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan Campaign, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for c := range work {
				train, avgSpend, avgRevenue := splitHoldout(c, holdout)
				if avgSpend <= 0 || avgRevenue <= 0 {
					continue // Nothing to compare against
				}

				start := time.Now()
				result, err := simulateCampaign(client, baseURL, tenantID, c.ID, train, avgSpend)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", c.ID, err)
					}
					continue
				}

				predicted := result.Prediction.MeanDailyRevenue
				ape := math.Abs(predicted-avgRevenue) / avgRevenue
				metrics.recordAPE(ape)

				covered := avgRevenue >= result.Prediction.P10 && avgRevenue <= result.Prediction.P90
				if covered {
					atomic.AddInt64(&metrics.CoveredByBand, 1)
				}
				if result.DataHealth.Confidence == "high" {
					atomic.AddInt64(&metrics.HighConfidence, 1)
				}
				if result.ModeChosen == "curve_priors" {
					atomic.AddInt64(&metrics.PriorsDriven, 1)
				}

				if verbose {
					status := "✓"
					if !covered {
						status = "✗"
					}
					name := c.ID
					if len(name) > 14 {
						name = name[:14]
					}
					fmt.Printf("%s %-14s | Budget: $%9.2f | Actual: $%10.2f | Predicted: $%10.2f | APE: %5.1f%% | Band: [%.0f, %.0f] | %s/%s\n",
						status,
						name,
						avgSpend,
						avgRevenue,
						predicted,
						ape*100,
						result.Prediction.P10,
						result.Prediction.P90,
						result.ModeChosen,
						result.DataHealth.Confidence,
					)
				}
			}
		}()
	}

	// Send work
	for _, c := range campaigns {
		work <- c
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func simulateCampaign(client *http.Client, baseURL, tenantID, campaignID string, train []DailyRecord, dailyBudget float64) (*SimulateResponse, error) {
	rows := make([]RowPayload, 0, len(train))
	for _, r := range train {
		rows = append(rows, RowPayload{
			Date:          r.Date,
			CampaignID:    r.CampaignID,
			AdsetID:       r.AdsetID,
			Spend:         r.Spend,
			PurchaseValue: r.Revenue,
			Purchases:     r.Purchases,
			Impressions:   r.Impressions,
			Clicks:        r.Clicks,
			ATC:           r.ATC,
			IC:            r.IC,
		})
	}

	// Fixed seed keeps the uncertainty band reproducible across runs
	seed := int64(42)
	req := SimulateRequest{
		Scope: campaignID,
		Scenario: Scenario{
			ScenarioType: "existing",
			Structure:    "CBO",
		},
		DailyBudget:   dailyBudget,
		Rows:          rows,
		BootstrapSeed: &seed,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/simulate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result SimulateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BACKTEST RESULTS                         ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	scored := int64(len(m.apes))

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Campaigns Tested:  %d\n", m.TotalProcessed)
	fmt.Printf("   Campaigns Scored:  %d\n", scored)
	fmt.Printf("   Errors:            %d\n", m.TotalErrors)
	fmt.Printf("   High Confidence:   %d\n", m.HighConfidence)
	fmt.Printf("   Priors Driven:     %d\n", m.PriorsDriven)

	if scored == 0 {
		fmt.Println("\nNo campaigns scored - nothing to report.")
		return
	}

	// Calculate error metrics
	sorted := append([]float64(nil), m.apes...)
	sort.Float64s(sorted)

	var sum float64
	for _, ape := range sorted {
		sum += ape
	}
	mape := sum / float64(scored)
	medianAPE := sorted[len(sorted)/2]
	coverage := float64(m.CoveredByBand) / float64(scored)

	fmt.Printf("\n🎯 PREDICTION METRICS\n")
	fmt.Printf("   MAPE:           %.2f%%  (mean abs error vs actual revenue)\n", mape*100)
	fmt.Printf("   Median APE:     %.2f%%  (typical campaign error)\n", medianAPE*100)
	fmt.Printf("   Worst APE:      %.2f%%\n", sorted[len(sorted)-1]*100)
	fmt.Printf("   Band Coverage:  %.2f%%  (actuals inside P10-P90, target ~80%%)\n", coverage*100)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f sims/sec\n", rps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if mape <= 0.20 {
		fmt.Println("   ✅ Excellent accuracy - predictions track actuals closely")
	} else if mape <= 0.35 {
		fmt.Println("   ⚠️  Moderate accuracy - usable for directional planning")
	} else {
		fmt.Println("   ❌ Poor accuracy - check data quality and lookback windows")
	}

	if coverage >= 0.7 && coverage <= 0.95 {
		fmt.Println("   ✅ Band coverage is well calibrated")
	} else if coverage > 0.95 {
		fmt.Println("   ⚠️  Bands are too wide - uncertainty is overstated")
	} else {
		fmt.Println("   ⚠️  Bands are too narrow - actuals escape the P10-P90 range")
	}

	fmt.Println()
}
