package main

import (
	"fmt"

	"github.com/nao1215/tornodes/internal/report"
	"github.com/spf13/cobra"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print relay statistics",
		Long: `Stats prints aggregate statistics of the relay set: totals, running and
exit relays, bandwidth, the top countries and the flag distribution.

The relay set is refreshed first when it is older than its TTL.

Examples:
  # Markdown report with Mermaid pie charts
  tornodes stats

  # JSON, as served on /api/stats
  tornodes stats --json`,
		Args: cobra.NoArgs,
		RunE: runStatsCmd,
	}

	cmd.Flags().BoolP("json", "j", false, "Output JSON instead of Markdown")
	addSourceFlags(cmd)

	return cmd
}

// runStatsCmd executes the stats command.
func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	logger := setupLogger(cfg, cmd.ErrOrStderr())
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.service.Statistics(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to compute statistics: %w", err)
	}

	if asJSON {
		_, err = report.NewJSONWriter(cmd.OutOrStdout(), report.WithPrettyPrint()).
			Write(report.NewStatsPayload(stats))
	} else {
		_, err = report.NewMarkdownWriter(cmd.OutOrStdout()).WriteStatistics(stats)
	}
	if err != nil {
		return fmt.Errorf("failed to write statistics: %w", err)
	}
	return nil
}
