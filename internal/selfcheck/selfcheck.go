// Package selfcheck is the catalogue of cases that verify the rules. Every
// case is built fresh on each call so that state shared between its Setup,
// body and checks never leaks into another run.
package selfcheck

import (
	"os"

	"github.com/edudar/system-rules/internal/checker"
	"github.com/edudar/system-rules/pkg/restore"
	"github.com/edudar/system-rules/pkg/stdio"
)

// All returns every case, grouped by rule.
func All() []checker.Case {
	var cases []checker.Case
	cases = append(cases, RestoreCases()...)
	cases = append(cases, EnvCases()...)
	cases = append(cases, OutputCases(stdio.Stdout)...)
	cases = append(cases, OutputCases(stdio.Stderr)...)
	cases = append(cases, DisallowCases(stdio.Stdout)...)
	cases = append(cases, DisallowCases(stdio.Stderr)...)
	cases = append(cases, GuardCases()...)
	return cases
}

// current returns the file the stream variable holds right now.
func current(s stdio.Stream) *os.File {
	if s == stdio.Stderr {
		return os.Stderr
	}
	return os.Stdout
}

func target(s stdio.Stream) **os.File {
	if s == stdio.Stderr {
		return &os.Stderr
	}
	return &os.Stdout
}

// capture stands in for the real stream while a case runs, so that what the
// rule forwards can be inspected.
type capture struct {
	f *os.File
}

func captureStream(t restore.T, s stdio.Stream) *capture {
	t.Helper()
	f, err := os.CreateTemp("", "system-rules-selfcheck-*")
	if err != nil {
		t.Fatalf("creating capture file: %v", err)
	}
	t.Cleanup(func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	})
	restore.Swap(t, s.String(), target(s), f)
	return &capture{f: f}
}

func (c *capture) String() string {
	b, err := os.ReadFile(c.f.Name())
	if err != nil {
		return "<unreadable: " + err.Error() + ">"
	}
	return string(b)
}
