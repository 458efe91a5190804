package main

import (
	"encoding/json"
	"flag"
	"os"
	"strings"
	"testing"

	"github.com/edudar/system-rules/internal/checker"
	"github.com/edudar/system-rules/internal/selfcheck"
	"github.com/edudar/system-rules/pkg/cache"
	"github.com/edudar/system-rules/pkg/env"
	"github.com/edudar/system-rules/pkg/filter"
	"github.com/edudar/system-rules/pkg/report"
	"github.com/edudar/system-rules/pkg/restore"
	"github.com/edudar/system-rules/pkg/stdio"
	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

// isolate points the last-run file at a temp dir and removes SYSRULES_*
// defaults inherited from the developer's shell.
func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	env.Provide(t, "XDG_CACHE_HOME", dir).Set("HOME", dir)
	env.Clear(t, "SYSRULES_OUTPUT", "SYSRULES_NO_COLOR", "SYSRULES_INCLUDE", "SYSRULES_EXCLUDE", "SYSRULES_VERBOSE")
}

// callRun invokes run() with args as the command line and returns the exit
// code and everything printed to stdout. os.Args, flag.CommandLine and
// color.NoColor are process-global, so these tests cannot run in parallel.
func callRun(t *testing.T, args ...string) (exitCode int, stdout string) {
	t.Helper()
	restore.Serial(t)
	restore.Swap(t, "os.Args", &os.Args, append([]string{"sysrules"}, args...))
	restore.Swap(t, "flag.CommandLine", &flag.CommandLine, flag.NewFlagSet("sysrules", flag.ContinueOnError))
	restore.Swap(t, "flag.Usage", &flag.Usage, flag.Usage)
	restore.Swap(t, "color.NoColor", &color.NoColor, color.NoColor)

	stdio.Err(t, stdio.WithMuteForSuccessfulTests())
	out := stdio.Out(t, stdio.WithMute(), stdio.WithLog())
	code := run()
	return code, out.Log()
}

func TestRunVersion(t *testing.T) {
	isolate(t)
	code, stdout := callRun(t, "-version")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if stdout != "sysrules dev\n" {
		t.Fatalf("unexpected version output %q", stdout)
	}
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "positional argument", args: []string{"extra"}},
		{name: "invalid output format", args: []string{"-o", "xml"}},
		{name: "invalid include pattern", args: []string{"-include", "[bad"}},
		{name: "invalid exclude pattern", args: []string{"-exclude", "[bad"}},
		{name: "rerun failed without cache", args: []string{"-rerun-failed", "-no-cache"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			code, stdout := callRun(t, tt.args...)
			if code != 1 {
				t.Fatalf("exit code = %d, want 1", code)
			}
			if stdout != "" {
				t.Fatalf("expected no stdout, got %q", stdout)
			}
		})
	}
}

func TestRunInvalidEnvironmentDefault(t *testing.T) {
	isolate(t)
	env.Provide(t, "SYSRULES_VERBOSE", "not-a-bool")
	code, _ := callRun(t)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestRunList(t *testing.T) {
	isolate(t)
	code, stdout := callRun(t, "-list", "-include", "guard,restore")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	var want []string
	for _, c := range filter.Select(selfcheck.All(), func(c checker.Case) string { return c.Name },
		filter.Config{Includes: []string{"guard", "restore"}}) {
		want = append(want, c.Name)
	}
	got := strings.Split(strings.TrimSuffix(stdout, "\n"), "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("listed cases mismatch (-want +got):\n%s", diff)
	}
}

func TestRunText(t *testing.T) {
	isolate(t)
	code, stdout := callRun(t, "-no-progress", "-include", "env")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0; output:\n%s", code, stdout)
	}
	if !strings.Contains(stdout, "PASS env/") {
		t.Fatalf("expected passing env cases, got:\n%s", stdout)
	}
	if strings.Contains(stdout, "guard/") {
		t.Fatalf("excluded group was run:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Ran ") || !strings.Contains(stdout, "0 failed") {
		t.Fatalf("expected summary line, got:\n%s", stdout)
	}
}

func decodeJSON(t *testing.T, stdout string) ([]report.JSONRecord, report.JSONSummary) {
	t.Helper()
	lines := strings.Split(strings.TrimSuffix(stdout, "\n"), "\n")
	var records []report.JSONRecord
	for _, line := range lines[:len(lines)-1] {
		var rec report.JSONRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		records = append(records, rec)
	}
	var summary report.JSONSummaryRecord
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &summary); err != nil {
		t.Fatalf("invalid summary line %q: %v", lines[len(lines)-1], err)
	}
	return records, summary.Summary
}

func TestRunJSON(t *testing.T) {
	isolate(t)
	code, stdout := callRun(t, "-o", "json", "-include", "guard")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0; output:\n%s", code, stdout)
	}

	records, summary := decodeJSON(t, stdout)
	if summary.Total != len(records) || summary.Passed != len(records) {
		t.Fatalf("summary %+v does not match %d records", summary, len(records))
	}
	if _, err := uuid.Parse(summary.RunID); err != nil {
		t.Fatalf("run_id %q is not a UUID: %v", summary.RunID, err)
	}
	for _, rec := range records {
		if rec.RunID != summary.RunID {
			t.Errorf("record %s has run_id %q, want %q", rec.Case, rec.RunID, summary.RunID)
		}
		if !strings.HasPrefix(rec.Case, "guard/") {
			t.Errorf("unexpected case %s", rec.Case)
		}
	}
}

func TestRunOutputFromEnvironment(t *testing.T) {
	isolate(t)
	env.Provide(t, "SYSRULES_OUTPUT", "json").Set("SYSRULES_INCLUDE", "restore")
	code, stdout := callRun(t)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0; output:\n%s", code, stdout)
	}
	records, _ := decodeJSON(t, stdout)
	if len(records) == 0 {
		t.Fatal("expected restore cases in JSON output")
	}
}

func TestRunRerunFailed(t *testing.T) {
	isolate(t)
	path, err := cache.FilePath()
	if err != nil {
		t.Fatalf("cache.FilePath: %v", err)
	}

	var target string
	for _, c := range selfcheck.All() {
		if strings.HasPrefix(c.Name, "guard/") {
			target = c.Name
			break
		}
	}
	seed := map[string]cache.Entry{
		target:        {Status: "failed", RunID: "old"},
		"env/missing": {Status: "passed", RunID: "old"},
	}
	if err := cache.Save(path, seed); err != nil {
		t.Fatalf("seeding last-run file: %v", err)
	}

	code, stdout := callRun(t, "-o", "json", "-rerun-failed")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0; output:\n%s", code, stdout)
	}
	records, summary := decodeJSON(t, stdout)
	if len(records) != 1 || records[0].Case != target {
		t.Fatalf("expected only %s to run, got %+v", target, records)
	}

	saved, err := cache.Load[cache.Entry](path)
	if err != nil {
		t.Fatalf("loading last-run file: %v", err)
	}
	if got := saved[target]; got.Status != "passed" || got.RunID != summary.RunID {
		t.Fatalf("last-run entry for %s = %+v, want passed with run %s", target, got, summary.RunID)
	}
	if got := saved["env/missing"]; got.RunID != "old" {
		t.Fatalf("untouched entry was rewritten: %+v", got)
	}
}

func TestRunNoCacheWritesNothing(t *testing.T) {
	isolate(t)
	code, _ := callRun(t, "-no-cache", "-include", "guard")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	path, err := cache.FilePath()
	if err != nil {
		t.Fatalf("cache.FilePath: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no last-run file, stat error = %v", err)
	}
}
