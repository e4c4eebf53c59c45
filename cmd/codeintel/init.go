package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeintel/engine/internal/config"
)

var (
	initProvider       string
	initBackend        string
	initNonInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize codeintel in the current directory",
	Long: `Initialize codeintel by creating a .opencode/code-intel directory with
a config.yaml.

This command will:
- Create .opencode/code-intel/config.yaml with default settings
- Prompt for an embedder provider (synthetic or http) and store backend
- Add .opencode/code-intel/ to .gitignore if present`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initProvider, "provider", "p", "", "Embedder provider (synthetic or http)")
	initCmd.Flags().StringVarP(&initBackend, "backend", "b", "", "Storage backend (sqlite, postgres, or qdrant)")
	initCmd.Flags().BoolVar(&initNonInteractive, "yes", false, "Use defaults without prompting")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	if config.Exists(cwd) {
		fmt.Println("codeintel is already initialized in this directory.")
		fmt.Printf("Configuration: %s\n", config.Path(cwd))
		return nil
	}

	cfg := config.DefaultConfig()

	if !initNonInteractive {
		reader := bufio.NewReader(os.Stdin)

		if initProvider == "" {
			fmt.Println("\nSelect embedder provider:")
			fmt.Println("  1) synthetic (deterministic, offline, no API key)")
			fmt.Println("  2) http (OpenAI-compatible /embeddings endpoint)")
			fmt.Print("Choice [1]: ")
			input, _ := reader.ReadString('\n')
			input = strings.TrimSpace(input)
			if input == "2" || input == "http" {
				initProvider = "http"
			} else {
				initProvider = "synthetic"
			}
		}

		if initBackend == "" {
			fmt.Println("\nSelect storage backend:")
			fmt.Println("  1) sqlite (embedded, no external services)")
			fmt.Println("  2) postgres (shared, requires DSN)")
			fmt.Println("  3) qdrant (shared vector index, requires address)")
			fmt.Print("Choice [1]: ")
			input, _ := reader.ReadString('\n')
			switch strings.TrimSpace(input) {
			case "2", "postgres":
				initBackend = "postgres"
			case "3", "qdrant":
				initBackend = "qdrant"
			default:
				initBackend = "sqlite"
			}
		}
	}

	if initProvider != "" {
		cfg.Embedder.Provider = initProvider
	}
	if initBackend != "" {
		cfg.Store.Backend = initBackend
	}

	if err := cfg.Save(cwd); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	if err := appendGitignore(cwd); err != nil {
		fmt.Printf("Warning: could not update .gitignore: %v\n", err)
	}

	fmt.Printf("Initialized codeintel in %s\n", config.Dir(cwd))
	fmt.Println("Run 'codeintel update' to build the index.")
	return nil
}

func appendGitignore(root string) error {
	path := root + "/.gitignore"
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil // no .gitignore to extend
	}
	if err != nil {
		return err
	}
	if strings.Contains(string(data), config.ConfigDirName) {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString("\n" + config.ConfigDirName + "/\n")
	return err
}
