package selfcheck

import (
	"errors"

	"github.com/edudar/system-rules/internal/checker"
	"github.com/edudar/system-rules/pkg/guard"
	"github.com/edudar/system-rules/pkg/restore"
)

// permissive allows everything and remembers what it was asked.
type permissive struct {
	asked []guard.Permission
}

func (m *permissive) CheckPermission(p guard.Permission) error {
	m.asked = append(m.asked, p)
	return nil
}

// GuardCases verify guard.Provide.
func GuardCases() []checker.Case {
	manager := &permissive{}
	var original guard.Manager
	return []checker.Case{
		{
			Name:            "guard/provided_security_manager_is_present_during_test",
			ExpectNoFailure: true,
			Test: func(t restore.T) {
				guard.Provide(t, manager)
				if guard.Current() != guard.Manager(manager) {
					t.Errorf("security manager during test = %v, want the provided one", guard.Current())
				}
			},
		},
		{
			Name:  "guard/after_test_security_manager_is_the_same_as_before",
			Setup: func(t restore.T) { original = guard.Current() },
			Test: func(t restore.T) {
				guard.Provide(t, manager)
			},
			CheckAfterwards: func(t restore.T) {
				if guard.Current() != original {
					t.Errorf("security manager after test = %v, want %v", guard.Current(), original)
				}
			},
		},
		{
			Name:            "guard/exit_is_refused_while_the_provided_manager_denies_it",
			ExpectNoFailure: true,
			Test: func(t restore.T) {
				guard.Provide(t, guard.DenyAll)
				if err := guard.Exit(3); !errors.Is(err, guard.ErrDenied) {
					t.Errorf("Exit(3) = %v, want an error matching ErrDenied", err)
				}
			},
		},
		{
			Name:            "guard/provided_manager_is_consulted",
			ExpectNoFailure: true,
			Test: func(t restore.T) {
				m := &permissive{}
				guard.Provide(t, m)
				if err := guard.Check(guard.Permission{Name: "read", Action: "config"}); err != nil {
					t.Fatalf("Check: %v", err)
				}
				if len(m.asked) != 1 || m.asked[0].String() != "read(config)" {
					t.Errorf("manager was asked %v, want [read(config)]", m.asked)
				}
			},
		},
	}
}
