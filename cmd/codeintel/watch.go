package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the source tree and update the index as files change",
	Long: `Watch starts a debounced filesystem watcher and runs an incremental
update on every batch of changes it reports, until interrupted.

This runs in the foreground: every read path (search, impact, diff)
already auto-refreshes on a cooldown via EnsureFresh, so watch mode is
an accelerant for long-running sessions, not a requirement.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := e.Update(ctx, progressPrinter); err != nil {
		return fmt.Errorf("initial update failed: %w", err)
	}
	fmt.Println("\nwatching for changes, press Ctrl+C to stop")

	if err := e.Watch(ctx, progressPrinter); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
