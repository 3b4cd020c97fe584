// cmd/projtrack/scan.go
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"projtrack/internal/gitutil"
	"projtrack/internal/store"
)

// directories never worth descending into during a scan.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	".venv":        true,
}

func newScanCommand(a *app) *cobra.Command {
	var (
		maxDepth   int
		enableSync bool
	)

	cmd := &cobra.Command{
		Use:   "scan [root]",
		Short: "Find git repositories under a directory and register them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			root, err := filepath.Abs(root)
			if err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			repos, err := findGitRepos(root, maxDepth)
			if err != nil {
				return err
			}
			if len(repos) == 0 {
				a.printer.Infof("No git repositories found under %s", root)
				return nil
			}

			// Remote detection shells out to git per repo; do that part
			// concurrently and keep the sqlite writes on one goroutine.
			var mu sync.Mutex
			remotes := make(map[string]*gitutil.RemoteInfo, len(repos))

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(4)
			for _, repo := range repos {
				repo := repo
				g.Go(func() error {
					info, err := gitutil.DetectRemote(gctx, repo)
					if err != nil {
						a.logger.Debug("No usable remote", "path", repo, "error", err)
						return nil
					}
					mu.Lock()
					remotes[repo] = info
					mu.Unlock()
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			added := 0
			for _, repo := range repos {
				if _, err := s.GetProjectByPath(ctx, repo); err == nil {
					continue
				} else if !errors.Is(err, store.ErrNotFound) {
					return err
				}

				p, err := s.CreateProject(ctx, store.CreateProjectParams{
					Name: filepath.Base(repo),
					Path: repo,
				})
				if err != nil {
					// Most likely a name collision with a repo elsewhere.
					a.printer.Errorf("Skipping %s: %v", repo, err)
					continue
				}
				added++

				if info := remotes[repo]; info != nil && enableSync {
					if err := s.EnableSync(ctx, p.ID, info.Platform, info.Owner, info.RepoName, info.URL, ""); err != nil {
						return err
					}
					a.printer.Successf("Added %s (sync: %s/%s)", p.Name, info.Owner, info.RepoName)
				} else {
					a.printer.Successf("Added %s", p.Name)
				}
			}

			a.printer.Infof("Scanned %d repositories, added %d new projects", len(repos), added)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", 3, "how deep to descend below the root")
	cmd.Flags().BoolVar(&enableSync, "enable-sync", false, "enable sync for repositories with a recognized remote")
	return cmd
}

// findGitRepos walks root up to maxDepth and returns directories that are git
// working copies. It does not descend into a repository.
func findGitRepos(root string, maxDepth int) ([]string, error) {
	var repos []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return fs.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}

		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
			return fs.SkipDir
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel != "." && strings.Count(rel, string(filepath.Separator)) >= maxDepth {
			return fs.SkipDir
		}

		if gitutil.IsGitRepo(path) {
			repos = append(repos, path)
			return fs.SkipDir
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return nil, err
	}
	return repos, nil
}
