// Package filter decides which source and destination entries take part in
// mirroring. Excluded entries are invisible to a pass on both sides: they are
// never copied and never removed.
package filter

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher holds compiled exclude patterns. The zero value and nil both
// exclude nothing.
type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

// New compiles the exclude patterns. Patterns use '/' as the separator and
// are matched against the slash-separated path relative to the tree root and
// against the entry's base name, so "*.tmp" hides every .tmp file while
// "build/*" hides the direct children of the top-level build folder.
func New(patterns ...string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(strings.TrimSuffix(p, "/"), '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, p)
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Excluded reports whether the entry at rel (relative to the tree root, in
// either OS or slash form) is excluded.
func (m *Matcher) Excluded(rel string) bool {
	if m == nil || len(m.globs) == 0 {
		return false
	}

	rel = filepath.ToSlash(rel)
	base := path.Base(rel)
	for _, g := range m.globs {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}

// Patterns returns the patterns the matcher was built from.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}
