package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index health without triggering a refresh",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	status, err := e.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("files:        %d\n", status.FileCount)
	fmt.Printf("symbols:      %d\n", status.ChunkCount)
	fmt.Printf("indexing:     %v\n", status.IsIndexing)
	fmt.Printf("db size:      %d bytes\n", status.DBSizeBytes)
	if !status.LastUpdated.IsZero() {
		fmt.Printf("last updated: %s\n", status.LastUpdated.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("last updated: never")
	}
	return nil
}
