// Package tasks implements the synchronization reconciler, the orchestrator
// of the upload queue engine.
//
// A pass loads the store, refreshes attributes of files that changed on
// disk, classifies each file through the lifecycle state machine, asks the
// throttle scheduler for per-account admission, and hands admitted files to
// the transfer manager. Operations emit progress updates via channels for
// non-blocking status reporting to the CLI layer.
//
// Concurrency model: one worker per account, files strictly sequential
// within a worker. The reconciler holds logical ownership of a file for the
// duration of one processing step, so no two transitions for the same file
// ever race.
package tasks
