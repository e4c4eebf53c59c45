package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeintel/engine/internal/indexmanager"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Incrementally index changed files",
	Long: `Update discovers files changed since the last run (by Merkle hash)
and re-extracts, re-embeds, and persists only that delta.`,
	RunE: runUpdate,
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Truncate the branch and re-index everything from scratch",
	RunE:  runRebuild,
}

func init() {
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(rebuildCmd)
}

func progressPrinter(p indexmanager.Progress) {
	if p.Total > 0 {
		fmt.Printf("\r%s: %d/%d", p.Phase, p.Current, p.Total)
	} else {
		fmt.Printf("\r%s", p.Phase)
	}
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	stats, err := e.Update(ctx, progressPrinter)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Printf("run %s: indexed %d, removed %d, errored %d, %d symbols added\n",
		stats.RunID, stats.FilesIndexed, stats.FilesRemoved, stats.FilesErrored, stats.ChunksAdded)
	return nil
}

func runRebuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	stats, err := e.Rebuild(ctx, progressPrinter)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Printf("run %s: indexed %d, removed %d, errored %d, %d symbols added\n",
		stats.RunID, stats.FilesIndexed, stats.FilesRemoved, stats.FilesErrored, stats.ChunksAdded)
	return nil
}
