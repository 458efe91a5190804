// Package restore implements scoped acquisition of process-wide state with
// guaranteed release. A Guard captures a value when it is created and writes
// it back when released; Bind ties that release to the end of a test.
package restore

import (
	"errors"
	"fmt"
	"sync"
)

// T is the part of testing.TB the rules need. *testing.T satisfies it, and so
// does the recorder used by the self-check runner. testing.TB itself cannot be
// implemented outside the testing package.
type T interface {
	Helper()
	Cleanup(func())
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Fail()
	FailNow()
	Failed() bool
	Log(args ...any)
	Logf(format string, args ...any)
	Name() string
	Skip(args ...any)
	SkipNow()
	Skipf(format string, args ...any)
}

// Guard holds a captured value and the function that writes it back.
type Guard struct {
	name    string
	release func() error

	once sync.Once
	err  error
}

// Capture reads the current value through get and returns a Guard that hands
// it to set on release.
func Capture[V any](name string, get func() V, set func(V) error) *Guard {
	saved := get()
	return &Guard{
		name:    name,
		release: func() error { return set(saved) },
	}
}

// Name returns the label the guard was created with.
func (g *Guard) Name() string {
	return g.name
}

// Release writes the captured value back. Only the first call has an effect;
// later calls return the first call's error.
func (g *Guard) Release() error {
	g.once.Do(func() {
		if err := g.release(); err != nil {
			g.err = fmt.Errorf("restoring %s: %w", g.name, err)
		}
	})
	return g.err
}

// Bind releases g when t finishes. A failed release fails the test.
func Bind(t T, g *Guard) *Guard {
	t.Helper()
	if g == nil {
		return nil
	}
	t.Cleanup(func() {
		if err := g.Release(); err != nil {
			t.Errorf("%v", err)
		}
	})
	return g
}

// Swap assigns replacement to *target for the duration of t.
func Swap[V any](t T, name string, target *V, replacement V) {
	t.Helper()
	Bind(t, Capture(name,
		func() V { return *target },
		func(v V) error {
			*target = v
			return nil
		}))
	*target = replacement
}

// Stack releases guards in reverse order of Push.
type Stack struct {
	mu     sync.Mutex
	guards []*Guard
}

func (s *Stack) Push(g *Guard) {
	if g == nil {
		return
	}
	s.mu.Lock()
	s.guards = append(s.guards, g)
	s.mu.Unlock()
}

func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.guards)
}

// Release releases every guard, last pushed first, and empties the stack.
// A failing guard does not stop the others.
func (s *Stack) Release() error {
	s.mu.Lock()
	guards := s.guards
	s.guards = nil
	s.mu.Unlock()

	var errs []error
	for i := len(guards) - 1; i >= 0; i-- {
		if err := guards[i].Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run calls fn and then releases guards in reverse order. Release also
// happens when fn panics; the panic continues afterwards.
func Run(fn func() error, guards ...*Guard) (err error) {
	var s Stack
	for _, g := range guards {
		s.Push(g)
	}
	defer func() {
		if relErr := s.Release(); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()
	return fn()
}

var serialMu sync.Mutex

// Serial holds a process-wide lock until t finishes. Tests that change
// global state and may run with t.Parallel should call it first. Calling it
// twice on the same goroutine chain deadlocks.
func Serial(t T) {
	t.Helper()
	serialMu.Lock()
	t.Cleanup(serialMu.Unlock)
}
