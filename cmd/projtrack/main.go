// cmd/projtrack/main.go
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"projtrack/internal/config"
	"projtrack/internal/display"
	"projtrack/internal/model"
	"projtrack/internal/queue"
	"projtrack/internal/ratelimit"
	"projtrack/internal/store"
	"projtrack/internal/syncer"
)

var version = "dev"

// app carries the shared collaborators of all commands. The store is opened
// lazily so that help and argument errors never touch the database.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	printer *display.Printer
	store   *store.Store
}

func main() {
	a := &app{printer: display.New()}

	rootCmd := &cobra.Command{
		Use:           "projtrack",
		Short:         "Track local projects and sync metadata from their remotes",
		Long: `projtrack keeps a catalog of your local projects and, for projects linked
to a GitHub or GitLab repository, syncs stars, forks, issues, pull requests
and CI status into a local cache.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a.cfg = cfg
			a.logger = newLogger(cfg.LogLevel)
			return nil
		},
	}

	rootCmd.AddCommand(
		newAddCommand(a),
		newListCommand(a),
		newInfoCommand(a),
		newRemoveCommand(a),
		newScanCommand(a),
		newAuthCommand(a),
		newSyncCommand(a),
	)

	err := rootCmd.Execute()
	if a.store != nil {
		a.store.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func (a *app) openStore() (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.Open(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

// newSyncer builds the sync pipeline: one limiter registry shared between the
// queue and the orchestrator, both over the same store.
func (a *app) newSyncer() (*syncer.Orchestrator, *queue.Queue, error) {
	s, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}

	limiters := ratelimit.NewRegistry()
	q := queue.New(s, limiters, a.cfg.RateLimitBuffer, a.logger)
	o := syncer.New(s, q, limiters, a.logger, syncer.Options{
		CacheTTL:  a.cfg.CacheTTL,
		SyncDelay: a.cfg.SyncDelay,
		Notify:    a.printer,
	})
	return o, q, nil
}

// resolveProject accepts a numeric id or a project name.
func (a *app) resolveProject(cmd *cobra.Command, ref string) (*model.Project, error) {
	s, err := a.openStore()
	if err != nil {
		return nil, err
	}

	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		p, err := s.GetProjectByID(cmd.Context(), id)
		if err == nil {
			return p, nil
		}
	}

	p, err := s.GetProjectByName(cmd.Context(), ref)
	if err != nil {
		return nil, fmt.Errorf("project %q not found", ref)
	}
	return p, nil
}
