package main

import (
	"context"
	"fmt"

	"github.com/panqplex/panqplex/internal/formatter"
	"github.com/panqplex/panqplex/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Check reconciles local state and prints a summary without remote calls.
// Exits non-zero when any file is hindered so scripts can react.
func (r *Runner) Check(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.ensureEngine(cmd)
	if err != nil {
		return err
	}

	updates := make(chan tasks.ProgressUpdate, 16)
	done := r.consumeProgress(updates)

	summary, err := engine.Check(ctx, updates)
	close(updates)
	<-done
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	if err := r.writePlain("%s\n", formatter.SummaryText(summary)); err != nil {
		return err
	}

	if len(summary.Hindered) > 0 {
		return cli.Exit(fmt.Sprintf("%d file(s) hindered", len(summary.Hindered)), 1)
	}
	return nil
}

// Sync runs a full synchronization pass: refresh, admission, transfer,
// summary. Exits non-zero when any file ends hindered.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.ensureEngine(cmd)
	if err != nil {
		return err
	}

	opts := tasks.SyncOpts{
		DryRun:     cmd.Bool("dry-run"),
		MaxUploads: cmd.Int("max"),
	}

	updates := make(chan tasks.ProgressUpdate, 16)
	done := r.consumeProgress(updates)

	result, err := engine.Sync(ctx, opts, updates)
	close(updates)
	<-done
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if err := r.writePlain("%s\n", formatter.SyncResultText(result, opts.DryRun)); err != nil {
		return err
	}

	if len(result.Summary.Hindered) > 0 {
		return cli.Exit(fmt.Sprintf("%d file(s) hindered", len(result.Summary.Hindered)), 1)
	}
	return nil
}

// AccountList prints accounts and their quota consumption.
func (r *Runner) AccountList(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.ensureEngine(cmd)
	if err != nil {
		return err
	}

	accounts, err := engine.Accounts()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	return r.writePlain("%s\n", formatter.AccountTable(accounts))
}
