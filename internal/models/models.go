package models

import (
	"fmt"
	"maps"
	"path/filepath"
	"strings"
	"time"
)

// MetadataKeyAccount is the metadata key that overrides the owning account
// for a single file. Files without it upload through the default account.
const MetadataKeyAccount = "account"

// TransferSession is the resumable upload handle for one in-flight transfer.
//
// It is fully reconstructable from durable state plus one remote offset
// query, so a crash between chunks never loses more than the chunk that was
// being sent.
type TransferSession struct {
	Token          string // opaque session handle issued by the remote side
	BytesConfirmed int64  // highest offset the remote has acknowledged
	TotalBytes     int64
	Fingerprint    string // content fingerprint the session was opened against
	LastAttemptAt  time.Time
	AttemptCount   int
}

// Progress returns the confirmed/total pair for display. Confirmed never
// regresses within a session.
func (s *TransferSession) Progress() (int64, int64) {
	return s.BytesConfirmed, s.TotalBytes
}

// MediaFile is one tracked local media file and everything the engine knows
// about its remote counterpart.
type MediaFile struct {
	ID                 string
	ContentFingerprint string
	Path               string
	SizeBytes          int64
	DurationSeconds    int
	Status             Status
	Metadata           map[string]string
	Ready              bool
	OwnerAccountID     string
	RemoteID           string
	RemoteMetadata     map[string]string // metadata last known to be reflected remotely
	LastError          string
	TransferState      *TransferSession // non-nil only while uploading
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewMediaFile creates a freshly discovered file in the acknowledged state
// with a default title derived from the filename.
func NewMediaFile(id, path, fingerprint string, sizeBytes int64, durationSeconds int, now time.Time) *MediaFile {
	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	return &MediaFile{
		ID:                 id,
		ContentFingerprint: fingerprint,
		Path:               path,
		SizeBytes:          sizeBytes,
		DurationSeconds:    durationSeconds,
		Status:             StatusAcknowledged,
		Metadata:           map[string]string{"title": title},
		RemoteMetadata:     map[string]string{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Validate checks structural invariants before persisting.
func (f *MediaFile) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("media file has no id")
	}
	if f.Path == "" {
		return fmt.Errorf("media file %s has no path", f.ID)
	}
	if StatusFromString(string(f.Status)) != f.Status {
		return fmt.Errorf("media file %s has unknown status %q", f.ID, f.Status)
	}
	return nil
}

// Transition applies one lifecycle edge, rejecting anything outside the
// transition table. UpdatedAt is stamped on success.
func (f *MediaFile) Transition(trigger Trigger, now time.Time) error {
	next, err := NextStatus(f.Status, trigger)
	if err != nil {
		return err
	}
	f.Status = next
	f.UpdatedAt = now
	return nil
}

// Fail moves the file to hindered and records the cause for listings.
func (f *MediaFile) Fail(cause string, now time.Time) error {
	if err := f.Transition(TriggerFailed, now); err != nil {
		return err
	}
	f.LastError = cause
	return nil
}

// Resolve is the operator exit from hindered: back to queued_edit when the
// file already exists remotely, otherwise back to provisioned so it re-enters
// the queue through the ready flag.
func (f *MediaFile) Resolve(now time.Time) error {
	if f.Status != StatusHindered {
		return fmt.Errorf("cannot resolve %s file %s", f.Status, f.ID)
	}
	if f.RemoteID != "" {
		f.Status = StatusQueuedEdit
	} else {
		f.Status = StatusProvisioned
		// Drop the gate so the operator re-queues explicitly; SetReady
		// would otherwise no-op on an unchanged flag.
		f.Ready = false
	}
	f.LastError = ""
	f.UpdatedAt = now
	return nil
}

// SetMetadata sets one metadata key and applies the edit transition where the
// lifecycle calls for one (acknowledged -> provisioned, finished -> queued_edit).
func (f *MediaFile) SetMetadata(key, value string, now time.Time) error {
	if key == "" {
		return fmt.Errorf("empty metadata key")
	}
	if f.Metadata == nil {
		f.Metadata = map[string]string{}
	}
	if f.Metadata[key] == value {
		return nil
	}
	f.Metadata[key] = value
	return f.noteLocalEdit(now)
}

// DeleteMetadata removes one metadata key, applying the same transitions as
// an edit.
func (f *MediaFile) DeleteMetadata(key string, now time.Time) error {
	if _, ok := f.Metadata[key]; !ok {
		return nil
	}
	delete(f.Metadata, key)
	return f.noteLocalEdit(now)
}

func (f *MediaFile) noteLocalEdit(now time.Time) error {
	switch f.Status {
	case StatusAcknowledged:
		return f.Transition(TriggerMetadataEdited, now)
	case StatusFinished:
		return f.Transition(TriggerDrifted, now)
	case StatusProvisioned, StatusQueuedNew, StatusQueuedEdit:
		f.UpdatedAt = now
		return nil
	default:
		return fmt.Errorf("cannot edit metadata of %s file %s", f.Status, f.ID)
	}
}

// SetReady flips the upload gate and moves the file between provisioned and
// queued_new accordingly.
func (f *MediaFile) SetReady(ready bool, now time.Time) error {
	if f.Ready == ready {
		return nil
	}
	switch {
	case ready && f.Status == StatusProvisioned:
		if err := f.Transition(TriggerMarkedReady, now); err != nil {
			return err
		}
	case !ready && f.Status == StatusQueuedNew:
		if err := f.Transition(TriggerUnmarkedReady, now); err != nil {
			return err
		}
	case ready && (f.Status == StatusQueuedEdit || f.Status == StatusFinished):
		// already past first upload, the gate has no lifecycle effect
		f.UpdatedAt = now
	case !ready && f.Status != StatusUploading:
		f.UpdatedAt = now
	default:
		return fmt.Errorf("cannot change ready flag of %s file %s", f.Status, f.ID)
	}
	f.Ready = ready
	return nil
}

// OwnerAccount resolves the responsible account: the per-file metadata
// override when present, otherwise the supplied default.
func (f *MediaFile) OwnerAccount(defaultAccount string) string {
	if override := f.Metadata[MetadataKeyAccount]; override != "" {
		return override
	}
	if f.OwnerAccountID != "" {
		return f.OwnerAccountID
	}
	return defaultAccount
}

// MetadataInSync reports whether local metadata matches the last state known
// to be reflected remotely.
func (f *MediaFile) MetadataInSync() bool {
	return maps.Equal(f.Metadata, f.RemoteMetadata)
}

// ClearSession drops the transfer state, used on terminal success or when a
// stale session is abandoned.
func (f *MediaFile) ClearSession() {
	f.TransferState = nil
}

// SessionStale reports whether the in-flight session was opened against
// different bytes than the file currently has. Partial progress against
// stale content is never reused.
func (f *MediaFile) SessionStale() bool {
	return f.TransferState != nil && f.TransferState.Fingerprint != f.ContentFingerprint
}

// Account is a remote account with local quota bookkeeping. Quota fields are
// mutated only through the throttle scheduler.
type Account struct {
	ID               string
	DisplayName      string
	CredentialsRef   string // opaque handle for the auth collaborator
	DefaultChannel   string
	MaxDailyUploads  int
	Timezone         string
	QuotaWindowStart time.Time
	UploadsConsumed  int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate checks structural invariants before persisting.
func (a *Account) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("account has no id")
	}
	if a.UploadsConsumed < 0 {
		return fmt.Errorf("account %s has negative quota consumption", a.ID)
	}
	return nil
}

// Suspended reports whether the account may never be admitted.
func (a *Account) Suspended() bool {
	return a.MaxDailyUploads <= 0
}

// Location resolves the account's quota timezone, defaulting to UTC.
func (a *Account) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
