// Package env provides rules that change process environment variables for
// a single test and put them back afterwards.
package env

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/edudar/system-rules/pkg/restore"
)

// varState is the state of one variable: its content and whether it is set.
type varState struct {
	v  string
	ok bool
}

func lookup(name string) varState {
	v, ok := os.LookupEnv(name)
	return varState{v: v, ok: ok}
}

func apply(name string, val varState) error {
	if val.ok {
		return os.Setenv(name, val.v)
	}
	return os.Unsetenv(name)
}

// Variable returns a guard that puts name back into its current state.
func Variable(name string) *restore.Guard {
	return restore.Capture("environment variable "+name,
		func() varState { return lookup(name) },
		func(val varState) error { return apply(name, val) })
}

// Snapshot returns the current environment as a map.
func Snapshot() map[string]string {
	vars := os.Environ()
	m := make(map[string]string, len(vars))
	for _, kv := range vars {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		m[k] = v
	}
	return m
}

// Environment returns a guard that resets the whole environment to its
// current content, unsetting variables that were added in the meantime.
func Environment() *restore.Guard {
	return restore.Capture("environment", Snapshot, func(saved map[string]string) error {
		current := Snapshot()
		names := make([]string, 0, len(current))
		for k := range current {
			if _, ok := saved[k]; !ok {
				names = append(names, k)
			}
		}
		sort.Strings(names)
		for _, k := range names {
			if err := os.Unsetenv(k); err != nil {
				return err
			}
		}
		for k, v := range saved {
			if cur, ok := current[k]; ok && cur == v {
				continue
			}
			if err := os.Setenv(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Restore resets the whole environment when t finishes.
func Restore(t restore.T) {
	t.Helper()
	restore.Bind(t, Environment())
}

// Clearer unsets environment variables for the duration of a test.
type Clearer struct {
	t restore.T

	mu      sync.Mutex
	guarded map[string]bool
}

// Clear unsets names for the duration of t. Names that are not set are fine.
func Clear(t restore.T, names ...string) *Clearer {
	t.Helper()
	c := &Clearer{t: t, guarded: make(map[string]bool)}
	c.Clear(names...)
	return c
}

// Clear unsets more variables. Each one is put back when the test finishes.
func (c *Clearer) Clear(names ...string) {
	c.t.Helper()
	for _, name := range names {
		c.guard(name)
		if err := os.Unsetenv(name); err != nil {
			c.t.Fatalf("clearing environment variable %s: %v", name, err)
		}
	}
}

func (c *Clearer) guard(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.guarded[name] {
		return
	}
	c.guarded[name] = true
	restore.Bind(c.t, Variable(name))
}

// Provider sets environment variables for the duration of a test.
type Provider struct {
	t restore.T

	mu      sync.Mutex
	guarded map[string]bool
}

// Provide sets name to value for the duration of t.
func Provide(t restore.T, name, value string) *Provider {
	t.Helper()
	p := &Provider{t: t, guarded: make(map[string]bool)}
	p.Set(name, value)
	return p
}

// Set sets another variable. Its previous state is restored when the test
// finishes.
func (p *Provider) Set(name, value string) {
	p.t.Helper()
	p.guard(name)
	if err := os.Setenv(name, value); err != nil {
		p.t.Fatalf("setting environment variable %s: %v", name, err)
	}
}

func (p *Provider) guard(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.guarded[name] {
		return
	}
	p.guarded[name] = true
	restore.Bind(p.t, Variable(name))
}
