// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func verboseFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable debug logging",
	}
}

// setupCommand initializes the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Initialize configuration and database",
		Flags:  []cli.Flag{configFlag(), verboseFlag()},
		Action: r.Setup,
	}
}

// scanCommand ingests discovered media files into the store.
func scanCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Scan a directory for media files and ingest them",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "dir"},
		},
		Flags:  []cli.Flag{configFlag(), verboseFlag()},
		Action: r.Scan,
	}
}

// lsCommand lists tracked files.
func lsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "ls",
		Aliases: []string{"status"},
		Usage:   "List tracked files and their sync status",
		Flags: []cli.Flag{
			configFlag(),
			verboseFlag(),
			&cli.StringSliceFlag{
				Name:  "status",
				Usage: "Filter by status (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "csv",
				Usage: "Output CSV for scripting",
			},
		},
		Action: r.List,
	}
}

// metaCommand edits per-file metadata keys.
func metaCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "meta",
		Usage: "Edit file metadata",
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Set a metadata key",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "file"},
					&cli.StringArg{Name: "key"},
					&cli.StringArg{Name: "value"},
				},
				Flags:  []cli.Flag{configFlag(), verboseFlag()},
				Action: r.MetaSet,
			},
			{
				Name:    "del",
				Aliases: []string{"delete"},
				Usage:   "Delete a metadata key",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "file"},
					&cli.StringArg{Name: "key"},
				},
				Flags:  []cli.Flag{configFlag(), verboseFlag()},
				Action: r.MetaDelete,
			},
		},
	}
}

// readyCommand gates a file for upload.
func readyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ready",
		Usage: "Mark a file ready for upload (or un-mark with --unset)",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Flags: []cli.Flag{
			configFlag(),
			verboseFlag(),
			&cli.BoolFlag{
				Name:  "unset",
				Usage: "Clear the ready flag instead",
			},
		},
		Action: r.Ready,
	}
}

// resolveCommand clears a hindered file back into the queue.
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Clear a hindered file after fixing the cause",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Flags:  []cli.Flag{configFlag(), verboseFlag()},
		Action: r.Resolve,
	}
}

// checkCommand reconciles local state without remote calls.
func checkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "check",
		Usage:  "Reconcile local state and print a summary (no remote calls)",
		Flags:  []cli.Flag{configFlag(), verboseFlag()},
		Action: r.Check,
	}
}

// syncCommand runs a full synchronization pass.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Upload queued and interrupted files, respecting quotas",
		Flags: []cli.Flag{
			configFlag(),
			verboseFlag(),
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report what would upload without contacting the remote side",
			},
			&cli.IntFlag{
				Name:  "max",
				Usage: "Cap on uploads this pass (0 = unlimited)",
			},
		},
		Action: r.Sync,
	}
}

// accountsCommand lists accounts and their quota consumption.
func accountsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "accounts",
		Usage:  "List accounts and quota usage",
		Flags:  []cli.Flag{configFlag(), verboseFlag()},
		Action: r.AccountList,
	}
}
