package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var relatedCmd = &cobra.Command{
	Use:   "related <source-symbol-id> <target-symbol-id>",
	Short: "Find the cheapest call path between two symbols",
	Long: `Related runs a confidence-weighted shortest path search between two
symbols, useful for explaining why one symbol turned up near another in
search results rather than just that it did.`,
	Args: cobra.ExactArgs(2),
	RunE: runRelated,
}

func init() {
	rootCmd.AddCommand(relatedCmd)
}

func runRelated(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	path, err := e.NearestRelated(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if !path.Reachable {
		fmt.Println("no path found")
		return nil
	}
	fmt.Printf("cost: %.3f\n", path.Cost)
	fmt.Printf("path: %s\n", strings.Join(path.SymbolIDs, " -> "))
	return nil
}
