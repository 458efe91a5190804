package selfcheck

import (
	"fmt"
	"os"

	"github.com/edudar/system-rules/internal/checker"
	"github.com/edudar/system-rules/pkg/restore"
	"github.com/edudar/system-rules/pkg/stdio"
)

func expectText(t restore.T, what, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %q, want %q", what, got, want)
	}
}

func write(s stdio.Stream, text string) {
	fmt.Fprint(current(s), text)
}

// OutputCases verify stdio.Intercept for stream s.
func OutputCases(s stdio.Stream) []checker.Case {
	name := func(n string) string { return s.String() + "/" + n }
	var cases []checker.Case

	cases = append(cases, func() checker.Case {
		var original *os.File
		return checker.Case{
			Name:  name("after_the_test_the_stream_is_the_same_as_before"),
			Setup: func(t restore.T) { original = current(s) },
			Test: func(t restore.T) {
				stdio.Intercept(t, s, stdio.WithMute())
				write(s, "dummy text")
			},
			CheckAfterwards: func(t restore.T) {
				if current(s) != original {
					t.Errorf("%s was not restored", s)
				}
			},
		}
	}())

	// forwarded builds a case that checks what reached the real stream.
	forwarded := func(n string, opts []stdio.Option, fail bool, body func(t restore.T, r *stdio.Rule), want string) checker.Case {
		var out *capture
		c := checker.Case{
			Name:  name(n),
			Setup: func(t restore.T) { out = captureStream(t, s) },
			Test: func(t restore.T) {
				r := stdio.Intercept(t, s, opts...)
				body(t, r)
				if fail {
					t.Fail()
				}
			},
			CheckAfterwards: func(t restore.T) {
				expectText(t, "forwarded text", out.String(), want)
			},
		}
		if fail {
			c.ExpectFailure = func(restore.T, checker.Failure) {}
		}
		return c
	}

	cases = append(cases,
		forwarded("text_is_still_written_if_no_mode_is_specified", nil, false,
			func(t restore.T, r *stdio.Rule) { write(s, "dummy text") },
			"dummy text"),
		forwarded("no_text_is_written_if_muted_globally",
			[]stdio.Option{stdio.WithMute()}, false,
			func(t restore.T, r *stdio.Rule) { write(s, "dummy text") },
			""),
		forwarded("no_text_is_written_after_muted_locally", nil, false,
			func(t restore.T, r *stdio.Rule) {
				write(s, "text before muting")
				r.Mute()
				write(s, "text after muting")
			},
			"text before muting"),
		forwarded("no_text_is_written_for_successful_test_if_muted_globally_for_successful_tests",
			[]stdio.Option{stdio.WithMuteForSuccessfulTests()}, false,
			func(t restore.T, r *stdio.Rule) { write(s, "dummy text") },
			""),
		forwarded("text_is_written_for_failing_test_if_muted_globally_for_successful_tests",
			[]stdio.Option{stdio.WithMuteForSuccessfulTests()}, true,
			func(t restore.T, r *stdio.Rule) { write(s, "dummy text") },
			"dummy text"),
		forwarded("no_text_is_written_for_successful_test_if_muted_locally_for_successful_tests", nil, false,
			func(t restore.T, r *stdio.Rule) {
				r.MuteForSuccessfulTests()
				write(s, "dummy text")
			},
			""),
		forwarded("text_is_written_for_failing_test_if_muted_locally_for_successful_tests", nil, true,
			func(t restore.T, r *stdio.Rule) {
				r.MuteForSuccessfulTests()
				write(s, "dummy text")
			},
			"dummy text"),
	)

	// logged builds a case whose body inspects the log. The real stream is
	// replaced so forwarded text does not reach the terminal.
	logged := func(n string, opts []stdio.Option, body func(t restore.T, r *stdio.Rule)) checker.Case {
		return checker.Case{
			Name:            name(n),
			ExpectNoFailure: true,
			Setup:           func(t restore.T) { captureStream(t, s) },
			Test: func(t restore.T) {
				body(t, stdio.Intercept(t, s, opts...))
			},
		}
	}

	cases = append(cases,
		logged("no_text_is_logged_by_default", nil, func(t restore.T, r *stdio.Rule) {
			write(s, "dummy text")
			expectText(t, "log", r.Log(), "")
		}),
		logged("text_is_logged_if_log_has_been_enabled_globally",
			[]stdio.Option{stdio.WithLog()}, func(t restore.T, r *stdio.Rule) {
				write(s, "dummy text")
				expectText(t, "log", r.Log(), "dummy text")
			}),
		logged("text_is_logged_after_log_has_been_enabled_locally", nil, func(t restore.T, r *stdio.Rule) {
			write(s, "text before enabling log")
			r.EnableLog()
			write(s, "text after enabling log")
			expectText(t, "log", r.Log(), "text after enabling log")
		}),
		logged("log_contains_only_text_that_has_been_written_after_log_was_cleared",
			[]stdio.Option{stdio.WithLog()}, func(t restore.T, r *stdio.Rule) {
				write(s, "text before clearing")
				r.ClearLog()
				write(s, "text after clearing")
				expectText(t, "log", r.Log(), "text after clearing")
			}),
		logged("text_is_logged_if_log_is_enabled_and_muted",
			[]stdio.Option{stdio.WithLog(), stdio.WithMute()}, func(t restore.T, r *stdio.Rule) {
				write(s, "dummy text")
				expectText(t, "log", r.Log(), "dummy text")
			}),
		logged("log_is_provided_with_new_line_characters_only_if_requested",
			[]stdio.Option{stdio.WithLog()}, func(t restore.T, r *stdio.Rule) {
				write(s, "dummy\r\ntext\r\n")
				expectText(t, "log", r.Log(), "dummy\r\ntext\r\n")
				expectText(t, "normalized log", r.LogWithNormalizedLineSeparator(), "dummy\ntext\n")
			}),
	)
	return cases
}
