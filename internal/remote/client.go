// internal/remote/client.go

// Package remote isolates the rest of the tool from platform-specific API
// shapes. Every implementation translates (owner, repo) into normalized
// metadata and maps SDK failures onto the package's sentinel errors; no
// platform SDK type leaks past this boundary.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"projtrack/internal/model"
)

// RepoInfo is the normalized repository metadata shared by all platforms.
type RepoInfo struct {
	Owner         string
	Name          string
	Description   string
	Stars         int
	Forks         int
	Watchers      int
	OpenIssues    int
	OpenPRs       int
	Language      string
	SizeKB        int
	DefaultBranch string
	License       string
	Topics        []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PushedAt      time.Time
	Homepage      string
	Archived      bool
	Private       bool
}

// WorkflowRun is the most recent CI/CD run of a repository.
type WorkflowRun struct {
	Name        string
	Status      string // completed, in_progress, queued
	Conclusion  string // success, failure, cancelled, ...
	Branch      string
	CommitSHA   string
	StartedAt   time.Time
	CompletedAt time.Time
	URL         string
}

// Result returns the conclusion when the run has one, else the status. This
// is the single string shown next to a project in status output.
func (w *WorkflowRun) Result() string {
	if w.Conclusion != "" {
		return w.Conclusion
	}
	return w.Status
}

// RateLimit is the platform's authoritative quota introspection. It is
// independent of and more accurate than the process-local sliding-window
// limiter, which only sees this process's own calls.
type RateLimit struct {
	Limit     int
	Remaining int
	Used      int
	ResetAt   time.Time
}

// Client is the per-platform adapter contract.
type Client interface {
	// RepoInfo fetches normalized repository metadata.
	RepoInfo(ctx context.Context, owner, repo string) (*RepoInfo, error)

	// OpenPRCount returns the number of open pull requests.
	OpenPRCount(ctx context.Context, owner, repo string) (int, error)

	// LatestWorkflowRun returns the most recent CI run, or ErrNotFound when
	// the repository has none.
	LatestWorkflowRun(ctx context.Context, owner, repo string) (*WorkflowRun, error)

	// RateLimit returns the platform-reported quota state.
	RateLimit(ctx context.Context) (*RateLimit, error)

	// TestConnection performs a lightweight authentication check.
	TestConnection(ctx context.Context) error
}

// NewClient builds the client for a platform. GitLab is enumerated but its
// client is not implemented yet; it fails fast rather than attempting partial
// behavior.
func NewClient(platform model.Platform, token string, logger *slog.Logger) (Client, error) {
	switch platform {
	case model.PlatformGitHub:
		return NewGitHubClient(token, logger), nil
	case model.PlatformGitLab:
		return nil, fmt.Errorf("gitlab: %w", ErrPlatformUnsupported)
	default:
		return nil, fmt.Errorf("%q: %w", platform, ErrPlatformUnsupported)
	}
}
