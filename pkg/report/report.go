// Package report renders self-check results as colored text or NDJSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/edudar/system-rules/internal/checker"
	"github.com/fatih/color"
)

// NDJSON output: each line is a self-contained JSON object.
type JSONRecord struct {
	RunID      string   `json:"run_id,omitempty"`
	Case       string   `json:"case"`
	Status     string   `json:"status"`
	DurationMS float64  `json:"duration_ms"`
	Messages   []string `json:"messages,omitempty"`
}

type JSONSummary struct {
	RunID   string `json:"run_id,omitempty"`
	Total   int    `json:"total"`
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}

type JSONSummaryRecord struct {
	Summary JSONSummary `json:"summary"`
}

// Counts tallies results by status.
type Counts struct {
	Passed  int
	Failed  int
	Skipped int
}

func (c *Counts) Add(res checker.Result) {
	switch res.Status {
	case checker.Failed:
		c.Failed++
	case checker.Skipped:
		c.Skipped++
	default:
		c.Passed++
	}
}

func (c Counts) Total() int {
	return c.Passed + c.Failed + c.Skipped
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, a ...any) {
	if ew.err == nil {
		_, ew.err = fmt.Fprintf(ew.w, format, a...)
	}
}

// PrintCaseResult prints a single case result in the configured format.
func PrintCaseResult(w io.Writer, format, runID string, res checker.Result, width int) error {
	switch format {
	case "json":
		return PrintJSON(w, runID, res)
	default:
		return PrintResult(w, res, width)
	}
}

// PrintJSON emits a single NDJSON line for one case.
func PrintJSON(w io.Writer, runID string, res checker.Result) error {
	rec := JSONRecord{
		RunID:      runID,
		Case:       res.Name,
		Status:     string(res.Status),
		DurationMS: float64(res.Duration.Microseconds()) / 1000,
		Messages:   res.Messages,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling JSON output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func PrintJSONSummary(w io.Writer, runID string, c Counts) error {
	rec := JSONSummaryRecord{
		Summary: JSONSummary{
			RunID:   runID,
			Total:   c.Total(),
			Passed:  c.Passed,
			Failed:  c.Failed,
			Skipped: c.Skipped,
		},
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling JSON summary: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// PrintResult renders one color-coded line per case, followed by its
// failure messages. Messages longer than width are cut; width <= 0 means
// no limit.
func PrintResult(w io.Writer, res checker.Result, width int) error {
	ew := &errWriter{w: w}
	ew.printf("%s %s %s\n", statusLabel(res.Status), res.Name, color.HiBlackString("(%s)", Duration(res.Duration)))
	for _, m := range res.Messages {
		for _, line := range strings.Split(m, "\n") {
			ew.printf("      %s\n", truncate(line, width-6))
		}
	}
	return ew.err
}

// PrintSummary prints the closing line of a text report.
func PrintSummary(w io.Writer, c Counts, elapsed time.Duration) error {
	failed := color.GreenString("%s failed", humanize.Comma(int64(c.Failed)))
	if c.Failed > 0 {
		failed = color.RedString("%s failed", humanize.Comma(int64(c.Failed)))
	}
	unit := "cases"
	if c.Total() == 1 {
		unit = "case"
	}
	_, err := fmt.Fprintf(w, "Ran %s %s in %s: %s passed, %s, %s skipped\n",
		humanize.Comma(int64(c.Total())), unit, Duration(elapsed),
		humanize.Comma(int64(c.Passed)), failed, humanize.Comma(int64(c.Skipped)))
	return err
}

// Duration formats d with SI prefixes, e.g. "1.2 ms".
func Duration(d time.Duration) string {
	if d <= 0 {
		return "0 s"
	}
	return humanize.SIWithDigits(d.Seconds(), 1, "s")
}

func statusLabel(s checker.Status) string {
	switch s {
	case checker.Failed:
		return color.RedString("FAIL")
	case checker.Skipped:
		return color.YellowString("SKIP")
	default:
		return color.GreenString("PASS")
	}
}

func truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
