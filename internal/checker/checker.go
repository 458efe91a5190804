// Package checker runs test cases whose outcome is itself under test. A
// Case states what is expected of its body: no failure, a failure that an
// inspection callback accepts, or a state that a check verifies after the
// body and its cleanups have run. Execute reports whether that expectation
// held, so a case that is supposed to fail does not fail the enclosing test.
package checker

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/edudar/system-rules/pkg/restore"
)

// Case is one test body together with its expectation.
type Case struct {
	Name string

	// Setup runs before the body. Cleanups registered on its T run after
	// the body, its checks and its own cleanups.
	Setup func(t restore.T)
	Test  func(t restore.T)
	// Skip, when set, skips the body with this reason.
	Skip string

	ExpectNoFailure bool
	// ExpectFailure inspects the failure of a body that must fail.
	ExpectFailure func(t restore.T, f Failure)
	// CheckAfterwards runs after the body and its cleanups, whatever the outcome.
	CheckAfterwards func(t restore.T)
}

func (c Case) hasExpectation() bool {
	return c.ExpectNoFailure || c.ExpectFailure != nil || c.CheckAfterwards != nil
}

// Failure describes how a body failed.
type Failure struct {
	Case     string
	Messages []string
	Panic    any
}

// Message returns the failure messages, one per line.
func (f Failure) Message() string {
	return strings.Join(f.Messages, "\n")
}

type Status string

const (
	Passed  Status = "passed"
	Failed  Status = "failed"
	Skipped Status = "skipped"
)

// Result is the verdict on one Case.
type Result struct {
	Name     string
	Status   Status
	Messages []string
	Logs     []string
	Duration time.Duration
}

const errTestDidNotFail = "Test did not fail."

// Execute runs c and reports whether its expectation held.
func Execute(c Case) Result {
	start := time.Now()
	res := execute(c)
	res.Name = c.Name
	res.Duration = time.Since(start)
	switch {
	case len(res.Messages) > 0:
		res.Status = Failed
	case res.Status == "":
		res.Status = Passed
	}
	return res
}

func execute(c Case) (res Result) {
	if !c.hasExpectation() {
		res.Messages = append(res.Messages, fmt.Sprintf(
			"No expectation is defined for the test %s. It needs either ExpectFailure or CheckAfterwards or ExpectNoFailure.", c.Name))
		return res
	}
	if c.Test == nil && c.Skip == "" {
		res.Messages = append(res.Messages, fmt.Sprintf("The test %s has no body.", c.Name))
		return res
	}

	class := newRecorder(c.Name)
	defer func() {
		class.runCleanups()
		res.Messages = append(res.Messages, class.Messages()...)
		res.Logs = append(res.Logs, class.Logs()...)
	}()

	if c.Setup != nil {
		class.call(func() { c.Setup(class) })
		if class.Failed() || class.Skipped() {
			if class.Skipped() {
				res.Status = Skipped
			}
			return res
		}
	}

	if c.Skip != "" {
		res.Status = Skipped
		res.Logs = append(res.Logs, c.Skip)
		return res
	}

	body := newRecorder(c.Name)
	body.run(func(t *recorder) { c.Test(t) })
	res.Logs = append(res.Logs, body.Logs()...)

	switch {
	case body.Failed():
		if c.ExpectFailure == nil {
			res.Messages = append(res.Messages, body.Messages()...)
			if len(res.Messages) == 0 {
				res.Messages = append(res.Messages, "Test failed.")
			}
			break
		}
		check := newRecorder(c.Name)
		f := Failure{Case: c.Name, Messages: body.Messages(), Panic: body.panicValue()}
		check.run(func(t *recorder) { c.ExpectFailure(t, f) })
		res.Messages = append(res.Messages, prefixed("Failed to check failure", check)...)
	case body.Skipped():
		res.Status = Skipped
		if c.ExpectFailure != nil {
			res.Messages = append(res.Messages, errTestDidNotFail)
		}
	default:
		if c.ExpectFailure != nil {
			res.Messages = append(res.Messages, errTestDidNotFail)
		}
	}

	if c.CheckAfterwards != nil {
		check := newRecorder(c.Name)
		check.run(func(t *recorder) { c.CheckAfterwards(t) })
		res.Messages = append(res.Messages, prefixed("Failed to execute concluding check", check)...)
	}
	return res
}

// prefixed returns the messages of a check recorder. A check that panicked
// is reported under prefix; plain assertion failures are reported as they are.
func prefixed(prefix string, check *recorder) []string {
	msgs := check.Messages()
	if check.panicValue() == nil {
		if check.Failed() && len(msgs) == 0 {
			return []string{prefix + "."}
		}
		return msgs
	}
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, prefix+": "+m)
	}
	return out
}

// Run executes every case as a subtest of t. Cases run one after another
// because they change process-wide state.
func Run(t *testing.T, cases ...Case) {
	t.Helper()
	seen := make(map[string]bool, len(cases))
	for _, c := range cases {
		if seen[c.Name] {
			t.Fatalf("duplicate case name %q", c.Name)
		}
		seen[c.Name] = true
	}
	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			res := Execute(c)
			for _, l := range res.Logs {
				t.Log(l)
			}
			for _, m := range res.Messages {
				t.Error(m)
			}
			if res.Status == Skipped {
				t.Skip("skipped")
			}
		})
	}
}
