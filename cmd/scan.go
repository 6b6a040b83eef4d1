package main

import (
	"context"
	"fmt"

	"github.com/panqplex/panqplex/internal/scan"
	"github.com/panqplex/panqplex/internal/shared"
	"github.com/urfave/cli/v3"
)

// Scan walks a directory and ingests discovered media files.
func (r *Runner) Scan(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.StringArg("dir")
	if dir == "" {
		return fmt.Errorf("%w: directory argument is required", shared.ErrMissingArgument)
	}

	engine, err := r.ensureEngine(cmd)
	if err != nil {
		return err
	}

	scanner := scan.NewScanner(r.config.Scan.Extensions)
	discoveries, err := scanner.Directory(dir)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	r.logger.Info("scanned directory", "dir", dir, "files", len(discoveries))

	result, err := engine.Ingest(ctx, discoveries)
	if err != nil {
		return fmt.Errorf("failed to ingest: %w", err)
	}

	return r.writePlain("Discovered %d new, refreshed %d, unchanged %d\n",
		result.Discovered, result.Refreshed, result.Unchanged)
}
