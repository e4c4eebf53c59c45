package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alpkeskin/gotoon"
	"github.com/spf13/cobra"

	"github.com/codeintel/engine/internal/retrieval"
)

var (
	searchLimit int
	searchJSON  bool
	searchTOON  bool
)

// searchResultView is the CLI's stable output shape, decoupled from
// symbol.Symbol so JSON/TOON output isn't tied to internal field names.
type searchResultView struct {
	Type          string `json:"type"`
	QualifiedName string `json:"qualified_name"`
	FilePath      string `json:"file_path"`
	StartLine     int    `json:"start_line"`
	EndLine       int    `json:"end_line"`
	Signature     string `json:"signature,omitempty"`
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the codebase with a natural-language or keyword query",
	Long: `Search runs the hybrid retrieval pipeline: the query is embedded and
matched against symbol vectors, matched by keyword against the FTS5
index, fused by reciprocal rank fusion, expanded over the call graph up
to the configured graph depth (two hops by default), and packed into a
token-budgeted context string.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum number of results to print")
	searchCmd.Flags().BoolVarP(&searchJSON, "json", "j", false, "Output results as JSON")
	searchCmd.Flags().BoolVarP(&searchTOON, "toon", "t", false, "Output results in TOON format (token-efficient for AI agents)")
	searchCmd.MarkFlagsMutuallyExclusive("json", "toon")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	query := args[0]
	vec, err := e.EmbedQuery(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}

	result, err := e.Search(ctx, retrieval.Query{Embedding: vec, QueryText: query})
	if err != nil {
		return err
	}

	views := make([]searchResultView, 0, len(result.Symbols))
	for i, s := range result.Symbols {
		if i >= searchLimit {
			break
		}
		views = append(views, searchResultView{
			Type:          string(s.Type),
			QualifiedName: s.QualifiedName,
			FilePath:      s.FilePath,
			StartLine:     s.StartLine,
			EndLine:       s.EndLine,
			Signature:     s.Signature,
		})
	}

	switch {
	case searchJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case searchTOON:
		output, err := gotoon.Encode(views)
		if err != nil {
			return fmt.Errorf("failed to encode TOON: %w", err)
		}
		fmt.Println(output)
		return nil
	default:
		fmt.Printf("%d results (%d vector hits, %d keyword hits, confidence %s, %dms)\n\n",
			len(views), result.Metadata.VectorHits, result.Metadata.KeywordHits,
			result.Metadata.Confidence, result.Metadata.QueryTimeMs)
		for _, v := range views {
			fmt.Printf("%s  %s\n  %s:%d-%d\n", v.Type, v.QualifiedName, v.FilePath, v.StartLine, v.EndLine)
			if v.Signature != "" {
				fmt.Printf("  %s\n", v.Signature)
			}
			fmt.Println()
		}
		return nil
	}
}
