// internal/remote/github_test.go
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projtrack/internal/model"
)

// setupTestClient creates a httptest server and a GitHubClient pointing to it.
func setupTestClient(t *testing.T, handler http.Handler) (*GitHubClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	// No token needed, we never talk to the real GitHub.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := NewGitHubClient("", logger)

	// Point the client's internal go-github client at the test server.
	testClient, err := github.NewClient(server.Client()).WithEnterpriseURLs(server.URL, server.URL)
	require.NoError(t, err)
	client.gh = testClient

	return client, server
}

func TestGitHubClient_RepoInfo(t *testing.T) {
	t.Run("translates repository fields", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v3/repos/acme/widget", r.URL.Path)
			fmt.Fprintln(w, `{
				"name": "widget",
				"owner": {"login": "acme"},
				"description": "A widget",
				"stargazers_count": 42,
				"forks_count": 7,
				"watchers_count": 42,
				"open_issues_count": 3,
				"language": "Go",
				"size": 1024,
				"default_branch": "main",
				"license": {"name": "MIT License"},
				"topics": ["cli", "tooling"],
				"created_at": "2020-01-02T10:00:00Z",
				"updated_at": "2024-05-06T10:00:00Z",
				"pushed_at": "2024-05-07T10:00:00Z"
			}`)
		})
		client, _ := setupTestClient(t, handler)

		info, err := client.RepoInfo(context.Background(), "acme", "widget")

		require.NoError(t, err)
		assert.Equal(t, "acme", info.Owner)
		assert.Equal(t, "widget", info.Name)
		assert.Equal(t, 42, info.Stars)
		assert.Equal(t, 7, info.Forks)
		assert.Equal(t, 3, info.OpenIssues)
		assert.Equal(t, "Go", info.Language)
		assert.Equal(t, "MIT License", info.License)
		assert.Equal(t, []string{"cli", "tooling"}, info.Topics)
		assert.Equal(t, "main", info.DefaultBranch)
	})

	t.Run("maps 404 to ErrNotFound", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintln(w, `{"message": "Not Found"}`)
		})
		client, _ := setupTestClient(t, handler)

		_, err := client.RepoInfo(context.Background(), "acme", "gone")

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("maps 401 to ErrUnauthorized", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintln(w, `{"message": "Bad credentials"}`)
		})
		client, _ := setupTestClient(t, handler)

		_, err := client.RepoInfo(context.Background(), "acme", "widget")

		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestGitHubClient_OpenPRCount(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/search/issues", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("q"), "repo:acme/widget")
		fmt.Fprintln(w, `{"total_count": 9, "incomplete_results": false, "items": []}`)
	})
	client, _ := setupTestClient(t, handler)

	count, err := client.OpenPRCount(context.Background(), "acme", "widget")

	require.NoError(t, err)
	assert.Equal(t, 9, count)
}

func TestGitHubClient_LatestWorkflowRun(t *testing.T) {
	t.Run("returns the most recent run", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v3/repos/acme/widget/actions/runs", r.URL.Path)
			fmt.Fprintln(w, `{
				"total_count": 2,
				"workflow_runs": [{
					"name": "CI",
					"status": "completed",
					"conclusion": "success",
					"head_branch": "main",
					"head_sha": "abc123",
					"html_url": "https://github.com/acme/widget/actions/runs/1",
					"created_at": "2024-05-07T09:00:00Z",
					"updated_at": "2024-05-07T09:05:00Z"
				}]
			}`)
		})
		client, _ := setupTestClient(t, handler)

		run, err := client.LatestWorkflowRun(context.Background(), "acme", "widget")

		require.NoError(t, err)
		assert.Equal(t, "CI", run.Name)
		assert.Equal(t, "success", run.Conclusion)
		assert.Equal(t, "success", run.Result())
		assert.Equal(t, "main", run.Branch)
		assert.Equal(t, "abc123", run.CommitSHA)
	})

	t.Run("returns ErrNotFound when no runs exist", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"total_count": 0, "workflow_runs": []}`)
		})
		client, _ := setupTestClient(t, handler)

		_, err := client.LatestWorkflowRun(context.Background(), "acme", "widget")

		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGitHubClient_RateLimit(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{
			"resources": {
				"core": {"limit": 5000, "remaining": 4321, "reset": 1714000000}
			}
		}`)
	})
	client, _ := setupTestClient(t, handler)

	rl, err := client.RateLimit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5000, rl.Limit)
	assert.Equal(t, 4321, rl.Remaining)
	assert.Equal(t, 679, rl.Used)
	assert.False(t, rl.ResetAt.IsZero())
}

func TestNewClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	t.Run("github is implemented", func(t *testing.T) {
		c, err := NewClient(model.PlatformGitHub, "token", logger)
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("gitlab fails fast", func(t *testing.T) {
		_, err := NewClient(model.PlatformGitLab, "token", logger)
		assert.ErrorIs(t, err, ErrPlatformUnsupported)
	})

	t.Run("unknown platform fails fast", func(t *testing.T) {
		_, err := NewClient(model.Platform("sourcehut"), "token", logger)
		assert.True(t, errors.Is(err, ErrPlatformUnsupported))
	})
}
