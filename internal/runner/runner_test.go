package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/edudar/system-rules/internal/checker"
	"github.com/edudar/system-rules/pkg/report"
	"github.com/edudar/system-rules/pkg/restore"
	"github.com/edudar/system-rules/pkg/stdio"
	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
)

func passing(name string) checker.Case {
	return checker.Case{Name: name, Test: func(restore.T) {}, ExpectNoFailure: true}
}

func failing(name string) checker.Case {
	return checker.Case{
		Name:            name,
		Test:            func(t restore.T) { t.Error("boom") },
		ExpectNoFailure: true,
	}
}

func names(results []checker.Result) []string {
	var out []string
	for _, r := range results {
		out = append(out, r.Name)
	}
	return out
}

func TestRunOrderAndCounts(t *testing.T) {
	cases := []checker.Case{
		passing("a/pass"),
		failing("a/fail"),
		{Name: "a/skip", Skip: "not here", Test: func(restore.T) {}, ExpectNoFailure: true},
		passing("b/pass"),
	}
	var out, errOut bytes.Buffer
	got, err := Run(context.Background(), cases, Config{Output: "json", RunID: "r", Out: &out, Err: &errOut})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if diff := cmp.Diff([]string{"a/pass", "a/fail", "a/skip", "b/pass"}, names(got.Results)); diff != "" {
		t.Fatalf("result order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(report.Counts{Passed: 2, Failed: 1, Skipped: 1}, got.Counts); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
	if lines := strings.Count(out.String(), "\n"); lines != len(cases) {
		t.Fatalf("got %d output lines, want %d:\n%s", lines, len(cases), out.String())
	}
	if errOut.Len() != 0 {
		t.Fatalf("unexpected stderr output: %q", errOut.String())
	}
}

func TestRunPreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	got, err := Run(ctx, []checker.Case{passing("a")}, Config{Output: "json", Out: &out})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if len(got.Results) != 0 || out.Len() != 0 {
		t.Fatalf("expected nothing to run, got %v and %q", names(got.Results), out.String())
	}
}

func TestRunCancelMidFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cases := []checker.Case{
		{Name: "first", Test: func(restore.T) { cancel() }, ExpectNoFailure: true},
		passing("second"),
		passing("third"),
	}
	var out bytes.Buffer
	got, err := Run(ctx, cases, Config{Output: "json", Out: &out})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if diff := cmp.Diff([]string{"first"}, names(got.Results)); diff != "" {
		t.Fatalf("ran cases mismatch (-want +got):\n%s", diff)
	}
}

func TestRunOutputIgnoresSwappedStdout(t *testing.T) {
	cases := []checker.Case{{
		Name: "prints",
		Test: func(t restore.T) {
			stdio.Out(t, stdio.WithMute())
			fmt.Println("case output")
		},
		ExpectNoFailure: true,
	}}
	var out bytes.Buffer
	got, err := Run(context.Background(), cases, Config{Output: "json", Out: &out})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got.Counts.Passed != 1 {
		t.Fatalf("expected the case to pass, got %+v", got.Results)
	}
	if strings.Contains(out.String(), "case output") {
		t.Fatalf("case output leaked into the report: %q", out.String())
	}
	if !strings.Contains(out.String(), `"case":"prints"`) {
		t.Fatalf("missing record for the case: %q", out.String())
	}
}

func TestRunEmpty(t *testing.T) {
	var out bytes.Buffer
	got, err := Run(context.Background(), nil, Config{Output: "text", ShowProgress: true, Out: &out})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got.Counts.Total() != 0 || out.Len() != 0 {
		t.Fatalf("expected empty outcome, got %+v and %q", got.Counts, out.String())
	}
}

func TestPrintSummary(t *testing.T) {
	restore.Swap(t, "color.NoColor", &color.NoColor, true)

	outcome := Outcome{Counts: report.Counts{Passed: 2, Failed: 1}}

	var text bytes.Buffer
	if err := PrintSummary(outcome, Config{Output: "text", Out: &text}); err != nil {
		t.Fatalf("PrintSummary error: %v", err)
	}
	if want := "Ran 3 cases in 0 s: 2 passed, 1 failed, 0 skipped\n"; text.String() != want {
		t.Fatalf("text summary = %q, want %q", text.String(), want)
	}

	var js bytes.Buffer
	if err := PrintSummary(outcome, Config{Output: "json", RunID: "r", Out: &js}); err != nil {
		t.Fatalf("PrintSummary error: %v", err)
	}
	if want := `{"summary":{"run_id":"r","total":3,"passed":2,"failed":1,"skipped":0}}` + "\n"; js.String() != want {
		t.Fatalf("json summary = %q, want %q", js.String(), want)
	}
}
