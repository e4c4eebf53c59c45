package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeintel/engine/internal/analysis"
)

var impactMaxDepth int

var impactCmd = &cobra.Command{
	Use:   "impact <symbol-id>",
	Short: "Find what depends on a symbol (callers-only BFS)",
	Long: `Impact walks the call graph backward from a symbol, counting direct
and transitive dependents and classifying the change's blast radius as
low, medium, high, or critical risk.`,
	Args: cobra.ExactArgs(1),
	RunE: runImpact,
}

func init() {
	impactCmd.Flags().IntVar(&impactMaxDepth, "max-depth", 0, "Maximum BFS depth (0 uses the configured default)")
	rootCmd.AddCommand(impactCmd)
}

func runImpact(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := e.Impact(ctx, args[0], analysis.ImpactOptions{MaxDepth: impactMaxDepth})
	if err != nil {
		return err
	}

	fmt.Printf("symbol:      %s\n", result.SymbolID)
	fmt.Printf("direct:      %d\n", result.DirectDependents)
	fmt.Printf("transitive:  %d\n", result.TransitiveDependents)
	fmt.Printf("risk:        %s\n", result.Risk)
	fmt.Printf("confidence:  %s\n", result.Confidence)
	if seed, ok, err := e.Symbol(ctx, result.SymbolID); err == nil && ok {
		if repoMap, err := e.RepoMap(ctx); err == nil {
			for _, entry := range repoMap {
				if entry.FilePath == seed.FilePath {
					fmt.Printf("file importance: %.3f (in=%d out=%d)\n", entry.ImportanceScore, entry.InDegree, entry.OutDegree)
					if entry.SymbolSummary != "" {
						fmt.Printf("file summary: %s\n", entry.SymbolSummary)
					}
					break
				}
			}
		}
	}
	if len(result.Paths) > 0 {
		fmt.Println("paths:")
		for _, p := range result.Paths {
			fmt.Printf("  %s\n", strings.Join(p, " -> "))
		}
	}
	return nil
}
