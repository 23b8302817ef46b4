package main

import (
	"context"
	"fmt"

	"github.com/chinchliff/oti/pkg/config"
	"github.com/chinchliff/oti/pkg/driver"
	"github.com/chinchliff/oti/pkg/fixture"
	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load FILE...",
	Short: "Load study fixtures into the store",
	Long: `Load one or more YAML or JSON study files into the configured store.

Each file lists studies with their metadata, trees and tree nodes. Loading
writes the graph and the search indexes, so the embedded badger store can
serve searches without a Neo4j server. Reloading a study replaces it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLoad,
}

var loadConcurrency int

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().IntVar(&loadConcurrency, "concurrency", 0, "Studies written at once (default SEMAPHORE_LIMIT or 8)")
}

func runLoad(cmd *cobra.Command, args []string) error {
	// Parse every file before touching the store.
	files := make([]*fixture.File, 0, len(args))
	for _, path := range args {
		f, err := fixture.Load(path)
		if err != nil {
			return err
		}
		files = append(files, f)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, cmd.ErrOrStderr(), "cli")
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.driver.CreateIndices(ctx); err != nil {
		return fmt.Errorf("failed to create indices: %w", err)
	}

	for i, f := range files {
		n, err := loadFile(ctx, a.driver, f)
		if err != nil {
			return fmt.Errorf("%s: %w", args[i], err)
		}
		a.logger.Info("loaded studies", "file", args[i], "count", n)
		fmt.Fprintf(cmd.OutOrStdout(), "loaded %d studies from %s\n", n, args[i])
	}
	return nil
}

// loadFile writes every study of f and returns how many were loaded.
func loadFile(ctx context.Context, loader driver.StudyLoader, f *fixture.File) (int, error) {
	return driver.LoadStudies(ctx, loader, f.Studies, loadConcurrency)
}
