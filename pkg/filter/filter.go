package filter

import (
	"fmt"
	"path"
	"strings"
)

type Config struct {
	Includes []string
	Excludes []string
	// Only, when non-nil, restricts selection to these exact names.
	Only map[string]bool
}

// ParsePatterns splits a comma-separated pattern list, dropping blanks.
func ParsePatterns(s string) []string {
	if s == "" {
		return nil
	}
	var patterns []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// Validate reports the first malformed pattern.
func Validate(flagName string, patterns []string) error {
	for _, p := range patterns {
		if _, err := path.Match(p, "test"); err != nil {
			return fmt.Errorf("invalid %s pattern %q: %w", flagName, p, err)
		}
	}
	return nil
}

// Matches reports whether name matches pattern. A pattern matches a name
// either as a whole or as a leading group prefix, so "env" and "env/*"
// both select "env/variables_are_cleared".
func Matches(pattern, name string) bool {
	if ok, _ := path.Match(pattern, name); ok {
		return true
	}
	for i := 0; i < len(name); i++ {
		if name[i] != '/' {
			continue
		}
		if ok, _ := path.Match(pattern, name[:i]); ok {
			return true
		}
	}
	return false
}

// ShouldRun decides whether the case called name is selected.
func ShouldRun(name string, cfg Config) bool {
	if cfg.Only != nil && !cfg.Only[name] {
		return false
	}

	if len(cfg.Includes) > 0 {
		matched := false
		for _, pattern := range cfg.Includes {
			if Matches(pattern, name) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, pattern := range cfg.Excludes {
		if Matches(pattern, name) {
			return false
		}
	}
	return true
}

// Select returns the items whose name passes cfg, in their original order.
func Select[E any](items []E, name func(E) string, cfg Config) []E {
	var out []E
	for _, it := range items {
		if ShouldRun(name(it), cfg) {
			out = append(out, it)
		}
	}
	return out
}
