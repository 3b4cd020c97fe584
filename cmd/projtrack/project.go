// cmd/projtrack/project.go
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"projtrack/internal/store"
)

func newAddCommand(a *app) *cobra.Command {
	var (
		name        string
		description string
		priority    string
		tags        []string
	)

	cmd := &cobra.Command{
		Use:   "add [path]",
		Short: "Register a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(abs)
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}

			p, err := s.CreateProject(cmd.Context(), store.CreateProjectParams{
				Name:        name,
				Path:        abs,
				Description: description,
				Priority:    priority,
				Tags:        tags,
			})
			if err != nil {
				return err
			}

			a.printer.Successf("Added project %s (id %d)", p.Name, p.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "project name (defaults to the directory name)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "short description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "priority: high, medium or low")
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "comma-separated tags")
	return cmd
}

func newListCommand(a *app) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}

			projects, err := s.ListProjects(cmd.Context(), status)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				a.printer.Infof("No projects tracked yet. Add one with: projtrack add")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Name", "Status", "Priority", "Language", "Tags"})
			for _, p := range projects {
				t.AppendRow(table.Row{
					p.ID, p.Name, p.Status, p.Priority,
					p.Language.String, strings.Join(p.Tags, ", "),
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by status")
	return cmd
}

func newInfoCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <project>",
		Short: "Show project details, including cached remote metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.resolveProject(cmd, args[0])
			if err != nil {
				return err
			}
			s, _ := a.openStore()
			ctx := cmd.Context()

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendRow(table.Row{"Name", p.Name})
			t.AppendRow(table.Row{"Path", p.Path.String})
			t.AppendRow(table.Row{"Status", p.Status})
			t.AppendRow(table.Row{"Priority", p.Priority})
			t.AppendRow(table.Row{"Language", p.Language.String})
			t.AppendRow(table.Row{"Tags", strings.Join(p.Tags, ", ")})
			t.AppendRow(table.Row{"Description", p.Description.String})
			t.AppendRow(table.Row{"Created", p.CreatedAt.Local().Format(time.RFC1123)})

			link, err := s.GetRemoteRepo(ctx, p.ID)
			if err == nil {
				t.AppendSeparator()
				t.AppendRow(table.Row{"Remote", fmt.Sprintf("%s:%s/%s", link.Platform, link.Owner, link.RepoName)})
				t.AppendRow(table.Row{"Sync enabled", link.SyncEnabled})
				if link.LastSyncedAt.Valid {
					t.AppendRow(table.Row{"Last synced", link.LastSyncedAt.Time.Local().Format(time.RFC1123)})
				} else {
					t.AppendRow(table.Row{"Last synced", "never"})
				}

				// Age does not matter here: show whatever is cached.
				if m, err := s.GetMetrics(ctx, link.ID, 0); err == nil {
					t.AppendSeparator()
					t.AppendRow(table.Row{"Stars", m.Stars})
					t.AppendRow(table.Row{"Forks", m.Forks})
					t.AppendRow(table.Row{"Open issues", m.OpenIssues})
					t.AppendRow(table.Row{"Open PRs", m.OpenPRs})
					t.AppendRow(table.Row{"Cached at", m.CachedAt.Local().Format(time.RFC1123)})
				}
				if ps, err := s.LatestPipelineStatus(ctx, link.ID); err == nil {
					result := ps.Status
					if ps.Conclusion.Valid && ps.Conclusion.String != "" {
						result = ps.Conclusion.String
					}
					t.AppendRow(table.Row{"Last CI run", fmt.Sprintf("%s (%s)", ps.Name, result)})
				}
			}

			t.Render()
			return nil
		},
	}
	return cmd
}

func newRemoveCommand(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "rm <project>",
		Aliases: []string{"remove"},
		Short:   "Remove a project and everything cached for it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.resolveProject(cmd, args[0])
			if err != nil {
				return err
			}

			if !yes {
				fmt.Fprintf(os.Stdout, "Delete project %q and all its cached data? [y/N] ", p.Name)
				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				if answer = strings.ToLower(strings.TrimSpace(answer)); answer != "y" && answer != "yes" {
					a.printer.Infof("Aborted")
					return nil
				}
			}

			s, _ := a.openStore()
			if err := s.DeleteProject(cmd.Context(), p.Name); err != nil {
				return err
			}
			a.printer.Successf("Removed project %s", p.Name)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
