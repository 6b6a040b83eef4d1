package models

import "fmt"

// Status is the lifecycle state of a tracked media file.
type Status string

const (
	StatusUndefined    Status = "undefined"    // not yet processed
	StatusAcknowledged Status = "acknowledged" // discovered, default metadata only
	StatusProvisioned  Status = "provisioned"  // metadata edited, not marked ready
	StatusQueuedNew    Status = "queued_new"   // ready for first upload
	StatusUploading    Status = "uploading"    // transfer in flight or interrupted
	StatusFinished     Status = "finished"     // uploaded and in sync with remote
	StatusQueuedEdit   Status = "queued_edit"  // local changes pending re-sync
	StatusHindered     Status = "hindered"     // needs operator intervention
)

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusUndefined, StatusAcknowledged, StatusProvisioned, StatusQueuedNew,
		StatusUploading, StatusFinished, StatusQueuedEdit, StatusHindered,
	}
}

// StatusFromString parses a stored status value, returning StatusUndefined
// for anything unknown.
func StatusFromString(s string) Status {
	for _, st := range AllStatuses() {
		if string(st) == s {
			return st
		}
	}
	return StatusUndefined
}

// Actionable reports whether a sync pass should do work for this status.
func (s Status) Actionable() bool {
	return s == StatusQueuedNew || s == StatusQueuedEdit || s == StatusUploading
}

// Terminal reports whether the status absorbs files until something external
// changes (a local edit for finished files, an operator for hindered ones).
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusHindered
}

// Trigger is an event that may move a file from one status to another.
type Trigger string

const (
	TriggerDiscovered      Trigger = "discovered"       // first scan found the file
	TriggerMetadataEdited  Trigger = "metadata_edited"  // a metadata key was set or changed
	TriggerMarkedReady     Trigger = "marked_ready"     // readyFlag set true
	TriggerUnmarkedReady   Trigger = "unmarked_ready"   // readyFlag cleared
	TriggerTransferStarted Trigger = "transfer_started" // admitted by throttle, transfer begins
	TriggerTransferDone    Trigger = "transfer_done"    // remote confirmed completion
	TriggerTransferResumed Trigger = "transfer_resumed" // restart with a resumable session
	TriggerDrifted         Trigger = "drifted"          // fingerprint or metadata diverged from remote
	TriggerFailed          Trigger = "failed"           // unrecoverable error
	TriggerResolved        Trigger = "resolved"         // operator cleared a hindered file
)

// edge identifies one row of the transition table.
type edge struct {
	from    Status
	trigger Trigger
}

// transitions is the strict lifecycle table. No edge outside it is valid,
// so a caller cannot, for example, jump from provisioned straight to
// uploading without passing through queued_new.
var transitions = map[edge]Status{
	{StatusUndefined, TriggerDiscovered}:        StatusAcknowledged,
	{StatusAcknowledged, TriggerMetadataEdited}: StatusProvisioned,
	{StatusProvisioned, TriggerMetadataEdited}:  StatusProvisioned,
	{StatusProvisioned, TriggerMarkedReady}:     StatusQueuedNew,
	{StatusQueuedNew, TriggerUnmarkedReady}:     StatusProvisioned,
	{StatusQueuedNew, TriggerTransferStarted}:   StatusUploading,
	{StatusUploading, TriggerTransferDone}:      StatusFinished,
	{StatusUploading, TriggerTransferResumed}:   StatusUploading,
	{StatusFinished, TriggerDrifted}:            StatusQueuedEdit,
	{StatusQueuedEdit, TriggerMetadataEdited}:   StatusQueuedEdit,
	{StatusQueuedEdit, TriggerTransferStarted}:  StatusUploading,
	{StatusHindered, TriggerResolved}:           StatusProvisioned,
}

// NextStatus resolves the transition table for one edge.
// The failed trigger (file vanished, fatal validation) is valid from every
// state except hindered itself.
func NextStatus(from Status, trigger Trigger) (Status, error) {
	if trigger == TriggerFailed {
		if from == StatusHindered {
			return "", fmt.Errorf("invalid transition: %s on %s", from, trigger)
		}
		return StatusHindered, nil
	}
	next, ok := transitions[edge{from, trigger}]
	if !ok {
		return "", fmt.Errorf("invalid transition: %s on %s", from, trigger)
	}
	return next, nil
}

// CanTransition reports whether the edge exists without applying it.
func CanTransition(from Status, trigger Trigger) bool {
	_, err := NextStatus(from, trigger)
	return err == nil
}
