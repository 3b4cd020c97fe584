// cmd/projtrack/sync.go
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"projtrack/internal/credentials"
	"projtrack/internal/gitutil"
	"projtrack/internal/model"
	"projtrack/internal/remote"
	"projtrack/internal/syncer"
)

func newSyncCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync remote repository metadata into the local cache",
	}

	cmd.AddCommand(
		newSyncEnableCommand(a),
		newSyncDisableCommand(a),
		newSyncStatusCommand(a),
		newSyncRunCommand(a),
		newSyncQueueCommand(a),
		newSyncRateLimitCommand(a),
	)
	return cmd
}

func newSyncEnableCommand(a *app) *cobra.Command {
	var (
		platform string
		owner    string
		repoName string
	)

	cmd := &cobra.Command{
		Use:   "enable <project>",
		Short: "Link a project to its remote repository and enable sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.resolveProject(cmd, args[0])
			if err != nil {
				return err
			}
			s, _ := a.openStore()

			var info *gitutil.RemoteInfo
			if platform != "" || owner != "" || repoName != "" {
				if platform == "" || owner == "" || repoName == "" {
					return fmt.Errorf("--platform, --owner and --repo must be given together")
				}
				pf := model.Platform(platform)
				if !pf.Valid() {
					return fmt.Errorf("unknown platform %q (expected github or gitlab)", platform)
				}
				info = &gitutil.RemoteInfo{Platform: pf, Owner: owner, RepoName: repoName}
			} else {
				if !p.Path.Valid {
					return fmt.Errorf("project %s has no local path; pass --platform, --owner and --repo", p.Name)
				}
				info, err = gitutil.DetectRemote(cmd.Context(), p.Path.String)
				if err != nil {
					return fmt.Errorf("could not detect a remote for %s: %w", p.Name, err)
				}
			}

			err = s.EnableSync(cmd.Context(), p.ID, info.Platform, info.Owner, info.RepoName, info.URL, "")
			if err != nil {
				return err
			}
			a.printer.Successf("Sync enabled for %s (%s:%s/%s)", p.Name, info.Platform, info.Owner, info.RepoName)
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "remote platform: github or gitlab")
	cmd.Flags().StringVar(&owner, "owner", "", "repository owner")
	cmd.Flags().StringVar(&repoName, "repo", "", "repository name")
	return cmd
}

func newSyncDisableCommand(a *app) *cobra.Command {
	var deleteCache bool

	cmd := &cobra.Command{
		Use:   "disable <project>",
		Short: "Disable sync for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.resolveProject(cmd, args[0])
			if err != nil {
				return err
			}
			s, _ := a.openStore()

			if err := s.DisableSync(cmd.Context(), p.ID, deleteCache); err != nil {
				return err
			}
			if deleteCache {
				a.printer.Successf("Sync disabled for %s, cached data removed", p.Name)
			} else {
				a.printer.Successf("Sync disabled for %s", p.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&deleteCache, "delete-cache", false, "also delete the remote link and all cached data")
	return cmd
}

func newSyncStatusCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [project]",
		Short: "Show sync configuration, overall or for one project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if len(args) == 1 {
				return a.printProjectSyncStatus(cmd, args[0])
			}

			stats, err := s.SyncStatistics(ctx)
			if err != nil {
				return err
			}

			a.printer.Infof("Sync enabled for %d of %d linked repositories", stats.TotalEnabled, stats.TotalRepos)
			a.printer.Infof("Synced in the last 24h: %d, never synced: %d", stats.Synced24h, stats.NeverSynced)
			for platform, count := range stats.ByPlatform {
				a.printer.Infof("  %s: %d", platform, count)
			}

			targets, err := s.ListSyncEnabled(ctx)
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Project", "Remote", "Last synced"})
			for _, target := range targets {
				link, err := s.GetRemoteRepo(ctx, target.ProjectID)
				if err != nil {
					return err
				}
				lastSynced := "never"
				if link.LastSyncedAt.Valid {
					lastSynced = link.LastSyncedAt.Time.Local().Format(time.RFC822)
				}
				t.AppendRow(table.Row{
					target.Name,
					fmt.Sprintf("%s:%s/%s", target.Platform, target.Owner, target.RepoName),
					lastSynced,
				})
			}
			t.Render()
			return nil
		},
	}
	return cmd
}

func (a *app) printProjectSyncStatus(cmd *cobra.Command, ref string) error {
	p, err := a.resolveProject(cmd, ref)
	if err != nil {
		return err
	}
	s, _ := a.openStore()
	ctx := cmd.Context()

	link, err := s.GetRemoteRepo(ctx, p.ID)
	if err != nil {
		a.printer.Infof("Sync is not configured for %s. Enable it with: projtrack sync enable %s", p.Name, p.Name)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendRow(table.Row{"Remote", fmt.Sprintf("%s:%s/%s", link.Platform, link.Owner, link.RepoName)})
	t.AppendRow(table.Row{"Sync enabled", link.SyncEnabled})
	if link.LastSyncedAt.Valid {
		t.AppendRow(table.Row{"Last synced", link.LastSyncedAt.Time.Local().Format(time.RFC1123)})
	} else {
		t.AppendRow(table.Row{"Last synced", "never"})
	}

	if m, err := s.GetMetrics(ctx, link.ID, a.cfg.CacheTTL); err == nil {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Stars", m.Stars})
		t.AppendRow(table.Row{"Forks", m.Forks})
		t.AppendRow(table.Row{"Open issues", m.OpenIssues})
		t.AppendRow(table.Row{"Open PRs", m.OpenPRs})
		t.AppendRow(table.Row{"Cached at", m.CachedAt.Local().Format(time.RFC1123)})
	} else {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Metrics", "no fresh snapshot (run: projtrack sync run " + p.Name + ")"})
	}

	if ps, err := s.LatestPipelineStatus(ctx, link.ID); err == nil {
		result := ps.Status
		if ps.Conclusion.Valid && ps.Conclusion.String != "" {
			result = ps.Conclusion.String
		}
		t.AppendRow(table.Row{"Last CI run", fmt.Sprintf("%s (%s)", ps.Name, result)})
	}

	t.Render()
	return nil
}

func newSyncRunCommand(a *app) *cobra.Command {
	var (
		all            bool
		force          bool
		updateMetadata bool
		enqueue        bool
		priority       int
	)

	cmd := &cobra.Command{
		Use:   "run [project]",
		Short: "Sync one project now, or enqueue it for later",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("pass exactly one of a project or --all")
			}

			o, q, err := a.newSyncer()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if all {
				results := o.SyncAllEnabled(ctx, updateMetadata)
				return a.printSummary(results)
			}

			p, err := a.resolveProject(cmd, args[0])
			if err != nil {
				return err
			}

			if enqueue {
				id, err := q.Add(ctx, p.ID, priority)
				if err != nil {
					return err
				}
				a.printer.Successf("Queued %s for sync (item %d, priority %d)", p.Name, id, priority)
				return nil
			}

			result := o.SyncProject(ctx, p.ID, syncer.SyncOptions{
				Force:          force,
				UpdateMetadata: updateMetadata,
			})
			return a.printResult(result)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "sync every project with sync enabled")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "fetch even when cached metrics are fresh")
	cmd.Flags().BoolVar(&updateMetadata, "update-metadata", false, "overwrite project description, language and tags from the remote")
	cmd.Flags().BoolVar(&enqueue, "queue", false, "enqueue instead of syncing now")
	cmd.Flags().IntVar(&priority, "priority", model.QueuePriorityDefault, "queue priority, 1 (first) to 10 (last)")
	return cmd
}

func newSyncQueueCommand(a *app) *cobra.Command {
	var (
		process        bool
		platform       string
		retryFailed    bool
		clearCompleted int
	)

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or work the sync queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, q, err := a.newSyncer()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if retryFailed {
				n, err := q.RetryFailed(ctx)
				if err != nil {
					return err
				}
				a.printer.Successf("Requeued %d failed items", n)
			}

			if clearCompleted >= 0 {
				n, err := q.ClearCompleted(ctx, clearCompleted)
				if err != nil {
					return err
				}
				a.printer.Successf("Cleared %d completed items", n)
			}

			if process {
				pf := model.Platform(platform)
				if !pf.Valid() {
					return fmt.Errorf("unknown platform %q (expected github or gitlab)", platform)
				}
				n, err := o.ProcessQueue(ctx, pf, a.cfg.SyncBatchSize)
				if err != nil {
					return err
				}
				a.printer.Successf("Processed %d queue items", n)
			}

			stats, err := q.Stats(ctx)
			if err != nil {
				return err
			}
			a.printer.Infof("Queue: %d pending, %d processing, %d completed, %d failed",
				stats.Pending, stats.Processing, stats.Completed, stats.Failed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&process, "process", false, "process one batch of pending items now")
	cmd.Flags().StringVar(&platform, "platform", string(model.PlatformGitHub), "platform whose pending items to process")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "reset failed items back to pending")
	cmd.Flags().IntVar(&clearCompleted, "clear-completed", -1, "clear completed items older than this many days")
	return cmd
}

func newSyncRateLimitCommand(a *app) *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "rate-limit",
		Short: "Show the platform-reported API quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pf := model.Platform(platform)
			if !pf.Valid() {
				return fmt.Errorf("unknown platform %q (expected github or gitlab)", platform)
			}

			token, err := credentials.Token(pf)
			if err != nil {
				return fmt.Errorf("no %s token found; store one with: projtrack auth %s --token YOUR_TOKEN", pf, pf)
			}
			client, err := remote.NewClient(pf, token, a.logger)
			if err != nil {
				return err
			}

			rl, err := client.RateLimit(cmd.Context())
			if err != nil {
				return err
			}
			a.printer.Infof("%s API quota: %d/%d remaining (used %d), resets %s",
				pf, rl.Remaining, rl.Limit, rl.Used, rl.ResetAt.Local().Format(time.Kitchen))
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", string(model.PlatformGitHub), "platform to query")
	return cmd
}

func (a *app) printResult(r syncer.SyncResult) error {
	if !r.Success {
		a.printer.Errorf("Sync failed for %s: %s", r.ProjectName, r.Err)
		return fmt.Errorf("sync failed")
	}

	if r.FromCache {
		a.printer.Successf("%s: %s", r.ProjectName, r.Note)
	} else {
		a.printer.Successf("Synced %s in %s", r.ProjectName, r.Duration.Round(time.Millisecond))
	}
	if r.Stars != nil {
		line := fmt.Sprintf("stars %d, forks %d, open issues %d, open PRs %d",
			*r.Stars, *r.Forks, *r.OpenIssues, *r.OpenPRs)
		if r.WorkflowStatus != "" {
			line += fmt.Sprintf(", CI %s", r.WorkflowStatus)
		}
		a.printer.Infof("%s", line)
	}
	return nil
}

func (a *app) printSummary(results []syncer.SyncResult) error {
	if len(results) == 0 {
		return nil
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			a.printer.Errorf("%s: %s", r.ProjectName, r.Err)
		}
	}
	a.printer.Successf("Synced %d/%d projects", succeeded, len(results))

	if succeeded < len(results) {
		return fmt.Errorf("%d of %d projects failed to sync", len(results)-succeeded, len(results))
	}
	return nil
}
