// Package guard holds the process-wide security manager: a Manager that
// code consults before privileged operations such as exiting the process or
// changing the environment. Tests install their own Manager with Provide.
package guard

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/edudar/system-rules/pkg/restore"
)

// ErrDenied is matched by every error returned for a refused permission.
var ErrDenied = errors.New("permission denied by security manager")

// Permission names a privileged operation and its target.
type Permission struct {
	Name   string
	Action string
}

func (p Permission) String() string {
	if p.Action == "" {
		return p.Name
	}
	return p.Name + "(" + p.Action + ")"
}

// Manager decides whether an operation may proceed. A non-nil error refuses it.
type Manager interface {
	CheckPermission(p Permission) error
}

// ManagerFunc adapts a function to Manager.
type ManagerFunc func(p Permission) error

func (f ManagerFunc) CheckPermission(p Permission) error {
	return f(p)
}

var (
	// AllowAll permits everything.
	AllowAll Manager = ManagerFunc(func(Permission) error { return nil })
	// DenyAll refuses everything.
	DenyAll Manager = ManagerFunc(func(p Permission) error { return ErrDenied })
)

// DeniedError reports a refused permission.
type DeniedError struct {
	Permission Permission
	Err        error
}

func (e *DeniedError) Error() string {
	if e.Err == nil || e.Err == ErrDenied {
		return fmt.Sprintf("%s: %v", e.Permission, ErrDenied)
	}
	return fmt.Sprintf("%s: %v: %v", e.Permission, ErrDenied, e.Err)
}

func (e *DeniedError) Unwrap() []error {
	if e.Err == nil || e.Err == ErrDenied {
		return []error{ErrDenied}
	}
	return []error{ErrDenied, e.Err}
}

type slot struct {
	m Manager
}

var current atomic.Pointer[slot]

// Current returns the installed Manager, or nil when there is none.
func Current() Manager {
	s := current.Load()
	if s == nil {
		return nil
	}
	return s.m
}

// Install makes m the process-wide Manager and returns the one it replaced.
// A nil m removes the Manager.
func Install(m Manager) Manager {
	prev := current.Swap(&slot{m: m})
	if prev == nil {
		return nil
	}
	return prev.m
}

// Check asks the installed Manager about p. Without a Manager everything is
// permitted.
func Check(p Permission) error {
	m := Current()
	if m == nil {
		return nil
	}
	if err := m.CheckPermission(p); err != nil {
		var denied *DeniedError
		if errors.As(err, &denied) {
			return err
		}
		return &DeniedError{Permission: p, Err: err}
	}
	return nil
}

// exit is swapped in tests so Exit does not end the test binary.
var exit = os.Exit

// Exit terminates the process with code unless the Manager refuses the
// "exit" permission, in which case the refusal is returned.
func Exit(code int) error {
	if err := Check(Permission{Name: "exit", Action: strconv.Itoa(code)}); err != nil {
		return err
	}
	exit(code)
	return nil
}

// Setenv sets an environment variable if the Manager permits "setenv".
func Setenv(name, value string) error {
	if err := Check(Permission{Name: "setenv", Action: name}); err != nil {
		return err
	}
	return os.Setenv(name, value)
}

// Provide installs m for the duration of t and reinstalls the previous
// Manager, possibly none, afterwards.
func Provide(t restore.T, m Manager) {
	t.Helper()
	restore.Bind(t, restore.Capture("security manager", Current, func(prev Manager) error {
		Install(prev)
		return nil
	}))
	Install(m)
}
