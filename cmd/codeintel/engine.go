package main

import (
	"context"
	"fmt"
	"os"

	"github.com/codeintel/engine/internal/engine"
	"github.com/codeintel/engine/internal/gitutil"
)

var rootBranch string

func init() {
	rootCmd.PersistentFlags().StringVar(&rootBranch, "branch", "", "Branch to operate on (defaults to the current git branch, or \"main\" outside a git repository)")
}

// openEngine opens the engine over the current working directory,
// relSrc is always nil here: this CLI has no LSP/SCIP integration wired.
func openEngine(ctx context.Context) (*engine.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	branch := rootBranch
	if branch == "" {
		if detected, err := gitutil.CurrentBranch(cwd); err == nil {
			branch = detected
		}
	}
	e, err := engine.Open(ctx, cwd, branch, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return e, nil
}
