// Package models defines domain entities and the file lifecycle state machine
// for the PanQPlex synchronization engine.
//
// The package contains two categories of types:
//
// 1. Entities owned by the store:
//   - [MediaFile] : A tracked local media file with metadata and sync state
//   - [Account] : A remote account with daily upload quota bookkeeping
//   - [TransferSession] : Resumable upload progress embedded in a MediaFile
//
// 2. Pure lifecycle logic:
//   - [Status] : The symbolic file state enum
//   - [Trigger] : Events that move a file between states
//
// The state machine performs no I/O; callers apply transitions through
// [MediaFile.Transition], which rejects any edge not in the lifecycle table.
package models
