package main

import (
	"context"
	"fmt"

	"github.com/panqplex/panqplex/internal/formatter"
	"github.com/panqplex/panqplex/internal/models"
	"github.com/panqplex/panqplex/internal/shared"
	"github.com/urfave/cli/v3"
)

// List prints tracked files, optionally filtered by status.
func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.ensureEngine(cmd)
	if err != nil {
		return err
	}

	var statuses []models.Status
	for _, raw := range cmd.StringSlice("status") {
		status := models.StatusFromString(raw)
		if status == models.StatusUndefined && raw != string(models.StatusUndefined) {
			return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidArgument, raw)
		}
		statuses = append(statuses, status)
	}

	files, err := engine.List(statuses...)
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	if cmd.Bool("csv") {
		data, err := formatter.ExportToCSV(files)
		if err != nil {
			return fmt.Errorf("failed to export CSV: %w", err)
		}
		_, err = r.output.Write(data)
		return err
	}

	return r.writePlain("%s\n", formatter.FileTable(files))
}

// MetaSet sets one metadata key on a file, driving the edit transition.
func (r *Runner) MetaSet(ctx context.Context, cmd *cli.Command) error {
	ref, key, value := cmd.StringArg("file"), cmd.StringArg("key"), cmd.StringArg("value")
	if ref == "" || key == "" {
		return fmt.Errorf("%w: file and key arguments are required", shared.ErrMissingArgument)
	}

	engine, err := r.ensureEngine(cmd)
	if err != nil {
		return err
	}

	file, err := engine.SetMetadata(ref, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}

	display := formatter.Display(file.Status)
	return r.writePlain("%s %s %s=%s\n", display.Glyph, file.Path, key, value)
}

// MetaDelete removes one metadata key from a file.
func (r *Runner) MetaDelete(ctx context.Context, cmd *cli.Command) error {
	ref, key := cmd.StringArg("file"), cmd.StringArg("key")
	if ref == "" || key == "" {
		return fmt.Errorf("%w: file and key arguments are required", shared.ErrMissingArgument)
	}

	engine, err := r.ensureEngine(cmd)
	if err != nil {
		return err
	}

	file, err := engine.DeleteMetadata(ref, key)
	if err != nil {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}

	display := formatter.Display(file.Status)
	return r.writePlain("%s %s %s removed\n", display.Glyph, file.Path, key)
}

// Ready toggles the upload gate on a file.
func (r *Runner) Ready(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("file")
	if ref == "" {
		return fmt.Errorf("%w: file argument is required", shared.ErrMissingArgument)
	}

	engine, err := r.ensureEngine(cmd)
	if err != nil {
		return err
	}

	ready := !cmd.Bool("unset")
	file, err := engine.SetReady(ref, ready)
	if err != nil {
		return fmt.Errorf("failed to update ready flag: %w", err)
	}

	verb := "ready"
	if !ready {
		verb = "not ready"
	}
	display := formatter.Display(file.Status)
	return r.writePlain("%s %s marked %s (%s)\n", display.Glyph, file.Path, verb, display.Label)
}

// Resolve clears a hindered file back into the queue.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("file")
	if ref == "" {
		return fmt.Errorf("%w: file argument is required", shared.ErrMissingArgument)
	}

	engine, err := r.ensureEngine(cmd)
	if err != nil {
		return err
	}

	file, err := engine.Resolve(ref)
	if err != nil {
		return fmt.Errorf("failed to resolve: %w", err)
	}

	display := formatter.Display(file.Status)
	return r.writePlain("%s %s resolved to %s\n", display.Glyph, file.Path, display.Label)
}
