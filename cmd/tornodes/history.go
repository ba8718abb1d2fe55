package main

import (
	"context"
	"fmt"

	"github.com/nao1215/tornodes/internal/database"
	"github.com/nao1215/tornodes/internal/model"
	"github.com/nao1215/tornodes/internal/report"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent cache refreshes",
		Long: `History lists the most recent refresh attempts recorded by serve, fetch
and stats, newest first, with their duration, item count and error.

Examples:
  # Last 50 refreshes of both caches
  tornodes history

  # Last 10 refreshes of the relay set as JSON
  tornodes history --cache detailed --limit 10 --json`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", database.DefaultRecentLimit, "Maximum number of events")
	cmd.Flags().String("cache", "", "Only show one cache: exit or detailed")
	cmd.Flags().BoolP("json", "j", false, "Output JSON instead of Markdown")
	cmd.Flags().String("db-dir", "", "History database directory (default: XDG data dir)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	if limit < 1 {
		return fmt.Errorf("invalid limit %d: must be positive", limit)
	}
	cacheFlag, err := cmd.Flags().GetString("cache")
	if err != nil {
		return err
	}
	cache, err := parseCacheName(cacheFlag)
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(cfg.DBDir, opts)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-only use

	events, err := recentEvents(cmd.Context(), db, cache, limit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if asJSON {
		_, err = report.NewJSONWriter(cmd.OutOrStdout(), report.WithPrettyPrint()).
			Write(report.NewHistoryPayload(events))
	} else {
		_, err = report.NewMarkdownWriter(cmd.OutOrStdout()).WriteHistory(events)
	}
	if err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// parseCacheName accepts an empty name (both caches), exit and detailed.
func parseCacheName(s string) (model.CacheName, error) {
	switch name := model.CacheName(s); name {
	case "", model.CacheExit, model.CacheDetailed:
		return name, nil
	default:
		return "", fmt.Errorf("unknown cache %q: use exit or detailed", s)
	}
}

func recentEvents(ctx context.Context, db *database.HistoryDB, cache model.CacheName, limit int) ([]model.RefreshEvent, error) {
	if cache == "" {
		return db.Recent(ctx, limit)
	}
	return db.RecentByCache(ctx, cache, limit)
}
