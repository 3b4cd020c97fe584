// internal/gitutil/gitutil.go

// Package gitutil shells out to git for the little plumbing this tool needs.
// Git stays an external collaborator; only its output is parsed here.
package gitutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"projtrack/internal/model"
)

// subprocess timeout; git config reads are fast or hung, nothing in between.
const gitTimeout = 5 * time.Second

// RemoteInfo is the platform/owner/repo triple parsed from a git remote URL.
type RemoteInfo struct {
	Platform model.Platform
	Owner    string
	RepoName string
	URL      string
}

// IsGitRepo reports whether path contains a .git directory.
func IsGitRepo(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && info.IsDir()
}

// DetectRemote reads remote.origin.url from the working copy at path and
// parses it into platform, owner and repository name.
func DetectRemote(ctx context.Context, path string) (*RemoteInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "config", "--get", "remote.origin.url")
	cmd.Dir = path

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("no git remote configured: %w", err)
	}

	return ParseRemoteURL(strings.TrimSpace(string(out)))
}

// ParseRemoteURL parses an https or ssh remote URL for the known platforms.
//
//	https://github.com/owner/repo.git
//	git@github.com:owner/repo.git
//	https://gitlab.com/owner/repo.git
//	git@gitlab.com:owner/repo.git
func ParseRemoteURL(remoteURL string) (*RemoteInfo, error) {
	hosts := map[string]model.Platform{
		"github.com": model.PlatformGitHub,
		"gitlab.com": model.PlatformGitLab,
	}

	for host, platform := range hosts {
		var rest string
		switch {
		case strings.HasPrefix(remoteURL, "https://"+host+"/"):
			rest = strings.TrimPrefix(remoteURL, "https://"+host+"/")
		case strings.HasPrefix(remoteURL, "git@"+host+":"):
			rest = strings.TrimPrefix(remoteURL, "git@"+host+":")
		default:
			continue
		}

		rest = strings.TrimSuffix(rest, ".git")
		parts := strings.Split(rest, "/")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("unrecognized remote URL: %s", remoteURL)
		}

		return &RemoteInfo{
			Platform: platform,
			Owner:    parts[0],
			RepoName: parts[1],
			URL:      remoteURL,
		}, nil
	}

	return nil, fmt.Errorf("unrecognized remote URL: %s", remoteURL)
}
