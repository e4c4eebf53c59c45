// Command codeintel is the CLI front door for the semantic code
// intelligence engine: a thin cobra wrapper over internal/engine's
// Query API (index.update/rebuild/status, retrieval.search/find_similar,
// analysis.impact/diff) plus an optional live watch mode.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "codeintel",
	Short: "Semantic code intelligence: index, search, and analyze a source tree",
	Long: `codeintel ingests a source tree into a symbol graph and a hybrid
vector/keyword/graph index, then answers retrieval and impact-analysis
queries against it.

Typical workflow:
  codeintel init            Create .opencode/code-intel/config.yaml
  codeintel update          Incrementally index changed files
  codeintel search "query"  Hybrid vector+keyword+graph search
  codeintel impact <id>     Find what depends on a symbol
  codeintel diff a b        Compare two branches' symbol graphs`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
