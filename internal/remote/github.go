// internal/remote/github.go
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

// GitHubClient is a wrapper around the go-github client implementing Client.
type GitHubClient struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewGitHubClient creates and configures a new GitHubClient. The provided
// token is used to create an authenticated http.Client.
func NewGitHubClient(token string, logger *slog.Logger) *GitHubClient {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &GitHubClient{
		gh:     github.NewClient(tc),
		logger: logger,
	}
}

// RepoInfo fetches repository details and translates them to the normalized
// RepoInfo shape.
func (c *GitHubClient) RepoInfo(ctx context.Context, owner, repo string) (*RepoInfo, error) {
	c.logger.Debug("Fetching repository metadata", "owner", owner, "repo", repo)

	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, mapGitHubError(err)
	}
	return toRepoInfo(r), nil
}

// OpenPRCount returns the number of open pull requests using the search API,
// which reports the total in a single call instead of paging the PR list.
func (c *GitHubClient) OpenPRCount(ctx context.Context, owner, repo string) (int, error) {
	query := fmt.Sprintf("repo:%s/%s is:pr is:open", owner, repo)
	result, _, err := c.gh.Search.Issues(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return 0, mapGitHubError(err)
	}
	return result.GetTotal(), nil
}

// LatestWorkflowRun returns the most recent GitHub Actions run.
func (c *GitHubClient) LatestWorkflowRun(ctx context.Context, owner, repo string) (*WorkflowRun, error) {
	runs, _, err := c.gh.Actions.ListRepositoryWorkflowRuns(ctx, owner, repo, &github.ListWorkflowRunsOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return nil, mapGitHubError(err)
	}
	if runs.GetTotalCount() == 0 || len(runs.WorkflowRuns) == 0 {
		return nil, fmt.Errorf("no workflow runs: %w", ErrNotFound)
	}

	latest := runs.WorkflowRuns[0]
	name := latest.GetName()
	if name == "" {
		name = "Workflow"
	}
	return &WorkflowRun{
		Name:        name,
		Status:      latest.GetStatus(),
		Conclusion:  latest.GetConclusion(),
		Branch:      latest.GetHeadBranch(),
		CommitSHA:   latest.GetHeadSHA(),
		StartedAt:   latest.GetCreatedAt().Time,
		CompletedAt: latest.GetUpdatedAt().Time,
		URL:         latest.GetHTMLURL(),
	}, nil
}

// RateLimit returns GitHub's authoritative core-quota state.
func (c *GitHubClient) RateLimit(ctx context.Context) (*RateLimit, error) {
	limits, _, err := c.gh.RateLimit.Get(ctx)
	if err != nil {
		return nil, mapGitHubError(err)
	}

	core := limits.GetCore()
	return &RateLimit{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		Used:      core.Limit - core.Remaining,
		ResetAt:   core.Reset.Time,
	}, nil
}

// TestConnection checks that the token can resolve the authenticated user.
func (c *GitHubClient) TestConnection(ctx context.Context) error {
	_, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return mapGitHubError(err)
	}
	return nil
}

// toRepoInfo translates a github.Repository to the normalized RepoInfo.
func toRepoInfo(r *github.Repository) *RepoInfo {
	return &RepoInfo{
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		Description:   r.GetDescription(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		Watchers:      r.GetWatchersCount(),
		OpenIssues:    r.GetOpenIssuesCount(),
		Language:      r.GetLanguage(),
		SizeKB:        r.GetSize(),
		DefaultBranch: r.GetDefaultBranch(),
		License:       r.GetLicense().GetName(),
		Topics:        r.Topics,
		CreatedAt:     r.GetCreatedAt().Time,
		UpdatedAt:     r.GetUpdatedAt().Time,
		PushedAt:      r.GetPushedAt().Time,
		Homepage:      r.GetHomepage(),
		Archived:      r.GetArchived(),
		Private:       r.GetPrivate(),
	}
}

// mapGitHubError converts go-github errors to this package's sentinels so no
// SDK error type escapes the boundary.
func mapGitHubError(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("github: %w", ErrRateLimited)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("github: %w", ErrRateLimited)
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusNotFound, http.StatusForbidden:
			return fmt.Errorf("github: %w", ErrNotFound)
		case http.StatusUnauthorized:
			return fmt.Errorf("github: %w", ErrUnauthorized)
		}
	}
	return fmt.Errorf("github api error: %w", err)
}
