package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeintel/engine/internal/analysis"
)

var (
	diffOffset int
	diffLimit  int
)

var diffCmd = &cobra.Command{
	Use:   "diff <source-branch> <target-branch>",
	Short: "Compare two branches' symbol and edge sets",
	Long: `Diff lists symbols added, removed, and modified (by content hash,
signature, or location) between source-branch and target-branch, plus
the call edges added and removed and the set of files touched.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().IntVar(&diffOffset, "offset", 0, "Pagination offset")
	diffCmd.Flags().IntVar(&diffLimit, "limit", 50, "Pagination limit")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := e.Diff(ctx, args[0], args[1], analysis.BranchDiffOptions{Offset: diffOffset, Limit: diffLimit})
	if err != nil {
		return err
	}

	fmt.Printf("added:    %d\n", result.AddedCount)
	for _, s := range result.Added {
		fmt.Printf("  + %s (%s)\n", s.QualifiedName, s.FilePath)
	}
	fmt.Printf("removed:  %d\n", result.RemovedCount)
	for _, s := range result.Removed {
		fmt.Printf("  - %s (%s)\n", s.QualifiedName, s.FilePath)
	}
	fmt.Printf("modified: %d\n", result.ModifiedCount)
	for _, c := range result.Modified {
		fmt.Printf("  ~ %s\n", c.QualifiedName)
	}
	fmt.Printf("edges added: %d, edges removed: %d\n", len(result.EdgesAdded), len(result.EdgesRemoved))
	fmt.Printf("affected files: %d\n", len(result.AffectedFiles))
	return nil
}
