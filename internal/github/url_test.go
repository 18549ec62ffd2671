package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsernameFromURL(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://github.com/alice", "alice", true},
		{"https://github.com/alice/", "alice", true},
		{"http://www.github.com/alice?tab=repositories", "alice", true},
		{"github.com/bob-the-builder", "bob-the-builder", true},
		{"carol", "carol", true},
		{"https://github.com/alice/some-repo", "alice", true},
		{"", "", false},
		{"https://gitlab.com/alice", "", false},
		{"https://github.com/", "", false},
		{"https://github.com/-bad-", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := UsernameFromURL(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRepositoryURL(t *testing.T) {
	owner, repo, ok := ParseRepositoryURL("https://github.com/alice/dex.git")
	assert.True(t, ok)
	assert.Equal(t, "alice", owner)
	assert.Equal(t, "dex", repo)

	_, _, ok = ParseRepositoryURL("https://github.com/alice")
	assert.False(t, ok)

	_, _, ok = ParseRepositoryURL("https://example.com/alice/dex")
	assert.False(t, ok)
}
