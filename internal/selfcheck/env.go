package selfcheck

import (
	"os"

	"github.com/edudar/system-rules/internal/checker"
	"github.com/edudar/system-rules/pkg/env"
	"github.com/edudar/system-rules/pkg/restore"
)

const (
	firstVar  = "SYSTEM_RULES_FIRST"
	secondVar = "SYSTEM_RULES_SECOND"
	thirdVar  = "SYSTEM_RULES_THIRD"
)

func setenv(t restore.T, name, value string) {
	t.Helper()
	if err := os.Setenv(name, value); err != nil {
		t.Fatalf("setenv %s: %v", name, err)
	}
}

func expectUnset(t restore.T, name string) {
	t.Helper()
	if v, ok := os.LookupEnv(name); ok {
		t.Errorf("%s = %q, want it unset", name, v)
	}
}

func expectValue(t restore.T, name, want string) {
	t.Helper()
	v, ok := os.LookupEnv(name)
	if !ok {
		t.Errorf("%s is unset, want %q", name, want)
		return
	}
	if v != want {
		t.Errorf("%s = %q, want %q", name, v, want)
	}
}

// EnvCases verify env.Clear, env.Provide and env.Restore.
func EnvCases() []checker.Case {
	return []checker.Case{
		{
			Name:            "env/variables_are_cleared_at_start_of_test",
			ExpectNoFailure: true,
			Setup: func(t restore.T) {
				env.Restore(t)
				setenv(t, firstVar, "dummy value")
				setenv(t, secondVar, "another dummy value")
			},
			Test: func(t restore.T) {
				env.Clear(t, firstVar, secondVar)
				expectUnset(t, firstVar)
				expectUnset(t, secondVar)
			},
		},
		{
			Name:            "env/variable_is_cleared_after_added_to_rule_within_test",
			ExpectNoFailure: true,
			Setup: func(t restore.T) {
				env.Restore(t)
				setenv(t, firstVar, "dummy value")
			},
			Test: func(t restore.T) {
				c := env.Clear(t)
				c.Clear(firstVar)
				expectUnset(t, firstVar)
			},
		},
		{
			Name: "env/after_test_variables_have_the_same_values_as_before",
			Setup: func(t restore.T) {
				env.Restore(t)
				setenv(t, firstVar, "dummy value")
				setenv(t, secondVar, "another dummy value")
				setenv(t, thirdVar, "another dummy value")
			},
			Test: func(t restore.T) {
				c := env.Clear(t, firstVar, secondVar)
				c.Clear(thirdVar)
			},
			CheckAfterwards: func(t restore.T) {
				expectValue(t, firstVar, "dummy value")
				expectValue(t, secondVar, "another dummy value")
				expectValue(t, thirdVar, "another dummy value")
			},
		},
		{
			Name:            "env/variable_that_is_not_set_does_not_cause_failure",
			ExpectNoFailure: true,
			Setup: func(t restore.T) {
				env.Restore(t)
				if err := os.Unsetenv(firstVar); err != nil {
					t.Fatalf("unsetenv: %v", err)
				}
			},
			Test: func(t restore.T) {
				env.Clear(t, firstVar)
			},
		},
		{
			Name: "env/variable_that_was_not_set_is_unset_again_after_test",
			Setup: func(t restore.T) {
				env.Restore(t)
				if err := os.Unsetenv(firstVar); err != nil {
					t.Fatalf("unsetenv: %v", err)
				}
			},
			Test: func(t restore.T) {
				env.Clear(t, firstVar)
				setenv(t, firstVar, "written by the test")
			},
			CheckAfterwards: func(t restore.T) {
				expectUnset(t, firstVar)
			},
		},
		{
			Name:            "env/provided_variables_are_present_during_test",
			ExpectNoFailure: true,
			Setup: func(t restore.T) {
				env.Restore(t)
				setenv(t, firstVar, "original value")
			},
			Test: func(t restore.T) {
				p := env.Provide(t, firstVar, "provided value")
				p.Set(secondVar, "another provided value")
				expectValue(t, firstVar, "provided value")
				expectValue(t, secondVar, "another provided value")
			},
		},
		{
			Name: "env/after_test_provided_variables_have_the_same_values_as_before",
			Setup: func(t restore.T) {
				env.Restore(t)
				setenv(t, firstVar, "original value")
				if err := os.Unsetenv(secondVar); err != nil {
					t.Fatalf("unsetenv: %v", err)
				}
			},
			Test: func(t restore.T) {
				p := env.Provide(t, firstVar, "provided value")
				p.Set(secondVar, "another provided value")
				p.Set(firstVar, "changed twice")
			},
			CheckAfterwards: func(t restore.T) {
				expectValue(t, firstVar, "original value")
				expectUnset(t, secondVar)
			},
		},
		{
			Name: "env/restore_unsets_variables_added_during_test",
			Setup: func(t restore.T) {
				restore.Bind(t, env.Variable(thirdVar))
				if err := os.Unsetenv(thirdVar); err != nil {
					t.Fatalf("unsetenv: %v", err)
				}
			},
			Test: func(t restore.T) {
				env.Restore(t)
				setenv(t, thirdVar, "added by the test")
			},
			CheckAfterwards: func(t restore.T) {
				expectUnset(t, thirdVar)
			},
		},
	}
}
