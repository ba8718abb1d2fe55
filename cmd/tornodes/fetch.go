package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/tornodes/internal/model"
	"github.com/nao1215/tornodes/internal/report"
	"github.com/spf13/cobra"
)

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Refresh both caches once and print the result",
		Long: `Fetch downloads the exit address list and the relay summary once,
saves the exit list to the cache directory and prints the exit IP list.

A failing upstream keeps the previous snapshot; fetch still prints it and
exits non-zero.

Examples:
  # Print the exit IP list
  tornodes fetch

  # Print every relay as JSON
  tornodes fetch --json`,
		Args: cobra.NoArgs,
		RunE: runFetchCmd,
	}

	cmd.Flags().BoolP("json", "j", false, "Print the relays as JSON instead of the IP list")
	addSourceFlags(cmd)

	return cmd
}

// runFetchCmd executes the fetch command.
func runFetchCmd(cmd *cobra.Command, _ []string) error {
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

	return runFetch(cmd.Context(), a, cmd.OutOrStdout(), asJSON)
}

// runFetch refreshes both caches and writes the requested view to w.
// The refresh errors are returned after the output so that the last good
// snapshot is still printed.
func runFetch(ctx context.Context, a *app, w io.Writer, asJSON bool) error {
	var err error
	refreshErr := errors.Join(
		a.coord.RefreshExit(ctx),
		a.coord.RefreshDetailed(ctx),
	)
	if refreshErr != nil {
		a.logger.Warn("refresh failed", "error", refreshErr)
	}

	if asJSON {
		relays := a.store.ReadDetailed()
		payload := report.NewNodesPayload(relays, a.store.DetailedInfo())
		if _, err = report.NewJSONWriter(w, report.WithPrettyPrint()).Write(payload); err != nil {
			return fmt.Errorf("failed to write relays: %w", err)
		}
	} else {
		info := a.store.ExitInfo()
		writer := report.NewTextWriter(w, report.WithSource(a.cfg.ExitAddressesURL))
		if info.Exists {
			_, err = writer.WriteIPList(model.IPs(a.store.ReadExit()), info.LastUpdate)
		} else {
			_, err = writer.WriteError(refreshErr)
		}
		if err != nil {
			return fmt.Errorf("failed to write IP list: %w", err)
		}
	}

	if refreshErr != nil {
		return fmt.Errorf("fetch incomplete: %w", refreshErr)
	}
	a.logger.Debug("fetch completed",
		"exitAddresses", a.store.ExitInfo().ItemCount,
		"relays", a.store.DetailedInfo().ItemCount,
	)
	return nil
}
