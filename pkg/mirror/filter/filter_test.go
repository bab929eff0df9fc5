package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcherExcluded(t *testing.T) {
	m, err := New("*.tmp", "build/*", ".git", "logs/**", "cache/")
	require.NoError(t, err)

	tests := []struct {
		rel  string
		want bool
	}{
		{"a.tmp", true},
		{"deep/nested/b.tmp", true},
		{"a.txt", false},
		{"build/out.bin", true},
		{"build/sub/out.bin", false},
		{"src/build/out.bin", false},
		{".git", true},
		{"vendor/.git", true},
		{"logs/2024/app.log", true},
		{"cache", true},
		{"src/cache", true},
		{"cached", false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Excluded(tt.rel))
		})
	}
}

func TestMatcherNilAndEmpty(t *testing.T) {
	var nilMatcher *Matcher
	assert.False(t, nilMatcher.Excluded("anything"))
	assert.Nil(t, nilMatcher.Patterns())

	empty, err := New("", "  ")
	require.NoError(t, err)
	assert.False(t, empty.Excluded("anything"))
	assert.Empty(t, empty.Patterns())
}

func TestNewInvalidPattern(t *testing.T) {
	_, err := New("[unclosed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[unclosed")
}

func TestPatternsIsCopy(t *testing.T) {
	m, err := New("*.tmp")
	require.NoError(t, err)

	p := m.Patterns()
	p[0] = "changed"
	assert.Equal(t, []string{"*.tmp"}, m.Patterns())
}
