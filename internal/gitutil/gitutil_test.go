// internal/gitutil/gitutil_test.go
package gitutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projtrack/internal/model"
)

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		platform model.Platform
		owner    string
		repo     string
	}{
		{"github https", "https://github.com/acme/widget.git", model.PlatformGitHub, "acme", "widget"},
		{"github https without .git", "https://github.com/acme/widget", model.PlatformGitHub, "acme", "widget"},
		{"github ssh", "git@github.com:acme/widget.git", model.PlatformGitHub, "acme", "widget"},
		{"gitlab https", "https://gitlab.com/acme/widget.git", model.PlatformGitLab, "acme", "widget"},
		{"gitlab ssh", "git@gitlab.com:acme/widget.git", model.PlatformGitLab, "acme", "widget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParseRemoteURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.platform, info.Platform)
			assert.Equal(t, tt.owner, info.Owner)
			assert.Equal(t, tt.repo, info.RepoName)
		})
	}

	t.Run("rejects unknown hosts and malformed urls", func(t *testing.T) {
		for _, url := range []string{
			"https://bitbucket.org/acme/widget.git",
			"git@github.com:acme",
			"https://github.com//widget.git",
			"not-a-url",
		} {
			_, err := ParseRemoteURL(url)
			assert.Error(t, err, url)
		}
	})
}
