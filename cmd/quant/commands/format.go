package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/internal/sweep"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// RunHeader holds the metadata printed above a sweep
type RunHeader struct {
	Title    string
	RunID    string
	Period   *contracts.DateRange // Optional
	Tickers  []string
	Families []string
}

// PrintRunHeader prints a formatted sweep header
func PrintRunHeader(h RunHeader) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", h.Title)
	PrintSeparator()
	if h.RunID != "" {
		fmt.Printf("  Run ID    : %s\n", h.RunID)
	}

	// Optional period
	if h.Period != nil {
		fmt.Printf("  Period    : %s ~ %s\n", h.Period.From.Format("2006-01-02"), h.Period.To.Format("2006-01-02"))
	}

	if len(h.Tickers) > 0 {
		fmt.Printf("  Tickers   : %s\n", strings.Join(h.Tickers, ", "))
	}
	if len(h.Families) > 0 {
		fmt.Printf("  Families  : %s\n", strings.Join(h.Families, ", "))
	}
	PrintSeparator()
}

// PrintReport prints one family report
// Example: [SMA] 5/5 tickers, 120 results, 0 errors, 3 batches (pooled) in 2.41s
func PrintReport(r *sweep.Report) {
	if r == nil {
		return
	}
	mode := "inline"
	if r.Pooled {
		mode = "pooled"
	}
	fmt.Printf("[%s] %d/%d tickers, %d results, %d errors, %d batches (%s) in %.2fs\n",
		r.Family, r.Succeeded(), r.Total, len(r.Results), r.Errors, r.Batches, mode, r.Duration.Seconds())
	if r.FailedCombinations > 0 {
		fmt.Printf("   skipped combinations: %d\n", r.FailedCombinations)
	}
	if len(r.FailedTickers) > 0 {
		fmt.Printf("   failed: %s\n", strings.Join(r.FailedTickers, ", "))
	}
}

// PrintResults prints candidate results as a table
func PrintResults(results []contracts.CandidateResult) {
	widths := []int{8, 10, 6, 12, 10, 10, 10, 8}
	PrintTableHeader([]string{"ID", "TICKER", "FAMILY", "PARAMS", "SCORE", "SHARPE", "RETURN", "TRADES"}, widths)
	for _, r := range results {
		PrintTableRow([]string{
			strconv.FormatInt(r.ID, 10),
			r.Ticker,
			string(r.Family),
			r.Params.Key(),
			fmt.Sprintf("%.4f", r.Score),
			fmt.Sprintf("%.3f", r.Metrics.Get(contracts.MetricSharpeRatio)),
			fmt.Sprintf("%.2f%%", r.Metrics.Get(contracts.MetricTotalReturn)*100),
			fmt.Sprintf("%.0f", r.Metrics.Get(contracts.MetricTotalTrades)),
		}, widths)
	}
}

// PrintSelections prints best selections as a table
func PrintSelections(selections []contracts.BestSelection) {
	widths := []int{10, 6, 12, 24, 6, 6, 10}
	PrintTableHeader([]string{"TICKER", "FAMILY", "PARAMS", "CRITERIA", "CONF", "ALTS", "SCORE"}, widths)
	for _, s := range selections {
		PrintTableRow([]string{
			s.Ticker,
			string(s.Family),
			s.Snapshot.Params.Key(),
			string(s.Criteria),
			fmt.Sprintf("%.2f", s.ConfidenceScore),
			strconv.Itoa(s.AlternativesConsidered),
			fmt.Sprintf("%.4f", s.Snapshot.Score),
		}, widths)
	}
}

// PrintCompletion prints the sweep completion message
func PrintCompletion(runID string, elapsed time.Duration) {
	fmt.Println()
	fmt.Printf("✅ Run %s completed in %.2fs\n", runID, elapsed.Seconds())
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// maskPassword hides credentials in a connection URL
func maskPassword(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return url
	}
	creds := url[scheme+3 : at]
	colon := strings.Index(creds, ":")
	if colon < 0 {
		return url
	}
	return url[:scheme+3] + creds[:colon] + ":***" + url[at:]
}
