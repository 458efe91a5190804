package selfcheck

import (
	"errors"
	"strings"

	"github.com/edudar/system-rules/internal/checker"
	"github.com/edudar/system-rules/pkg/restore"
)

// RestoreCases verify the guarantees every rule builds on.
func RestoreCases() []checker.Case {
	return []checker.Case{
		func() checker.Case {
			var order []string
			return checker.Case{
				Name: "restore/guards_are_released_in_reverse_order",
				Test: func(t restore.T) {
					order = nil
					for _, name := range []string{"first", "second", "third"} {
						restore.Bind(t, restore.Capture(name,
							func() string { return name },
							func(v string) error {
								order = append(order, v)
								return nil
							}))
					}
				},
				CheckAfterwards: func(t restore.T) {
					if got := strings.Join(order, ","); got != "third,second,first" {
						t.Errorf("release order = %s, want third,second,first", got)
					}
				},
			}
		}(),
		func() checker.Case {
			state := "original"
			return checker.Case{
				Name: "restore/failure_in_test_does_not_suppress_restore",
				Test: func(t restore.T) {
					restore.Swap(t, "state", &state, "changed")
					t.Fatal("failure in test")
				},
				ExpectFailure: func(t restore.T, f checker.Failure) {
					expectText(t, "failure message", f.Message(), "failure in test")
				},
				CheckAfterwards: func(t restore.T) {
					expectText(t, "state", state, "original")
				},
			}
		}(),
		func() checker.Case {
			state := "original"
			return checker.Case{
				Name: "restore/panic_in_test_does_not_suppress_restore",
				Test: func(t restore.T) {
					restore.Swap(t, "state", &state, "changed")
					panic("boom")
				},
				ExpectFailure: func(t restore.T, f checker.Failure) {
					if f.Panic != "boom" {
						t.Errorf("panic = %v, want boom", f.Panic)
					}
				},
				CheckAfterwards: func(t restore.T) {
					expectText(t, "state", state, "original")
				},
			}
		}(),
		func() checker.Case {
			state := "original"
			return checker.Case{
				Name: "restore/state_changed_many_times_is_restored",
				Test: func(t restore.T) {
					restore.Swap(t, "state", &state, "first change")
					state = "second change"
					state = "third change"
				},
				CheckAfterwards: func(t restore.T) {
					expectText(t, "state", state, "original")
				},
			}
		}(),
		{
			Name: "restore/failure_during_restore_fails_the_test",
			Test: func(t restore.T) {
				restore.Bind(t, restore.Capture("broken state",
					func() int { return 0 },
					func(int) error { return errors.New("cannot write back") }))
			},
			ExpectFailure: func(t restore.T, f checker.Failure) {
				expectText(t, "failure message", f.Message(), "restoring broken state: cannot write back")
			},
		},
	}
}
