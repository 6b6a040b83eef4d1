package models

import (
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestFile() *MediaFile {
	return NewMediaFile("file-1", "/media/clips/sunrise timelapse.mp4", "fp-1", 1024, 42, testNow)
}

func TestNewMediaFile(t *testing.T) {
	file := newTestFile()

	if file.Status != StatusAcknowledged {
		t.Errorf("expected acknowledged, got %s", file.Status)
	}
	if file.Metadata["title"] != "sunrise timelapse" {
		t.Errorf("expected default title from filename, got %q", file.Metadata["title"])
	}
	if err := file.Validate(); err != nil {
		t.Errorf("fresh file should validate: %v", err)
	}
}

func TestMediaFileValidate(t *testing.T) {
	tc := []struct {
		name   string
		mutate func(*MediaFile)
	}{
		{"missing id", func(f *MediaFile) { f.ID = "" }},
		{"missing path", func(f *MediaFile) { f.Path = "" }},
		{"unknown status", func(f *MediaFile) { f.Status = "half-uploaded" }},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			file := newTestFile()
			tt.mutate(file)
			if err := file.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMetadataEdits(t *testing.T) {
	t.Run("first edit provisions", func(t *testing.T) {
		file := newTestFile()
		if err := file.SetMetadata("description", "dawn over the bay", testNow); err != nil {
			t.Fatalf("SetMetadata: %v", err)
		}
		if file.Status != StatusProvisioned {
			t.Errorf("expected provisioned, got %s", file.Status)
		}
	})

	t.Run("identical value is a no-op", func(t *testing.T) {
		file := newTestFile()
		title := file.Metadata["title"]
		if err := file.SetMetadata("title", title, testNow); err != nil {
			t.Fatalf("SetMetadata: %v", err)
		}
		if file.Status != StatusAcknowledged {
			t.Errorf("no-op edit should not transition, got %s", file.Status)
		}
	})

	t.Run("edit on finished queues re-sync", func(t *testing.T) {
		file := newTestFile()
		file.Status = StatusFinished
		file.RemoteID = "vid-1"
		if err := file.SetMetadata("title", "recut", testNow); err != nil {
			t.Fatalf("SetMetadata: %v", err)
		}
		if file.Status != StatusQueuedEdit {
			t.Errorf("expected queued_edit, got %s", file.Status)
		}
	})

	t.Run("delete missing key is a no-op", func(t *testing.T) {
		file := newTestFile()
		if err := file.DeleteMetadata("nope", testNow); err != nil {
			t.Fatalf("DeleteMetadata: %v", err)
		}
		if file.Status != StatusAcknowledged {
			t.Errorf("expected acknowledged, got %s", file.Status)
		}
	})

	t.Run("no edits mid upload", func(t *testing.T) {
		file := newTestFile()
		file.Status = StatusUploading
		if err := file.SetMetadata("title", "recut", testNow); err == nil {
			t.Error("expected error editing uploading file")
		}
	})
}

func TestSetReady(t *testing.T) {
	file := newTestFile()
	if err := file.SetMetadata("description", "x", testNow); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}

	if err := file.SetReady(true, testNow); err != nil {
		t.Fatalf("SetReady: %v", err)
	}
	if file.Status != StatusQueuedNew || !file.Ready {
		t.Errorf("expected queued_new/ready, got %s/%v", file.Status, file.Ready)
	}

	if err := file.SetReady(false, testNow); err != nil {
		t.Fatalf("SetReady(false): %v", err)
	}
	if file.Status != StatusProvisioned || file.Ready {
		t.Errorf("expected provisioned/unready, got %s/%v", file.Status, file.Ready)
	}

	t.Run("gate has no effect past first upload", func(t *testing.T) {
		file := newTestFile()
		file.Status = StatusQueuedEdit
		file.RemoteID = "vid-1"
		if err := file.SetReady(true, testNow); err != nil {
			t.Fatalf("SetReady: %v", err)
		}
		if file.Status != StatusQueuedEdit {
			t.Errorf("expected queued_edit, got %s", file.Status)
		}
	})
}

func TestFailAndResolve(t *testing.T) {
	t.Run("resolve without remote id goes to provisioned", func(t *testing.T) {
		file := newTestFile()
		if err := file.Fail("file missing on disk", testNow); err != nil {
			t.Fatalf("Fail: %v", err)
		}
		if file.Status != StatusHindered || file.LastError == "" {
			t.Fatalf("expected hindered with cause, got %s %q", file.Status, file.LastError)
		}

		if err := file.Resolve(testNow); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if file.Status != StatusProvisioned {
			t.Errorf("expected provisioned, got %s", file.Status)
		}
		if file.LastError != "" {
			t.Errorf("resolve should clear the cause, got %q", file.LastError)
		}
	})

	t.Run("resolve drops the ready gate so the file can re-queue", func(t *testing.T) {
		file := newTestFile()
		if err := file.SetMetadata("title", "clip", testNow); err != nil {
			t.Fatalf("SetMetadata: %v", err)
		}
		if err := file.SetReady(true, testNow); err != nil {
			t.Fatalf("SetReady: %v", err)
		}
		if err := file.Fail("file missing on disk", testNow); err != nil {
			t.Fatalf("Fail: %v", err)
		}

		if err := file.Resolve(testNow); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if file.Ready {
			t.Error("resolve should clear the ready flag")
		}

		if err := file.SetReady(true, testNow); err != nil {
			t.Fatalf("SetReady after resolve: %v", err)
		}
		if file.Status != StatusQueuedNew {
			t.Errorf("expected queued_new after re-marking ready, got %s", file.Status)
		}
	})

	t.Run("resolve with remote id goes to queued_edit", func(t *testing.T) {
		file := newTestFile()
		file.RemoteID = "vid-1"
		if err := file.Fail("quota investigation", testNow); err != nil {
			t.Fatalf("Fail: %v", err)
		}
		if err := file.Resolve(testNow); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if file.Status != StatusQueuedEdit {
			t.Errorf("expected queued_edit, got %s", file.Status)
		}
	})

	t.Run("resolve rejects non-hindered files", func(t *testing.T) {
		file := newTestFile()
		if err := file.Resolve(testNow); err == nil {
			t.Error("expected error resolving acknowledged file")
		}
	})
}

func TestOwnerAccount(t *testing.T) {
	file := newTestFile()

	if got := file.OwnerAccount("default"); got != "default" {
		t.Errorf("expected default owner, got %s", got)
	}

	file.OwnerAccountID = "studio"
	if got := file.OwnerAccount("default"); got != "studio" {
		t.Errorf("expected recorded owner, got %s", got)
	}

	file.Metadata[MetadataKeyAccount] = "archive"
	if got := file.OwnerAccount("default"); got != "archive" {
		t.Errorf("metadata override should win, got %s", got)
	}
}

func TestSessionState(t *testing.T) {
	file := newTestFile()
	file.TransferState = &TransferSession{Token: "sess", Fingerprint: "fp-1", BytesConfirmed: 10, TotalBytes: 100}

	if file.SessionStale() {
		t.Error("matching fingerprint should not be stale")
	}

	file.ContentFingerprint = "fp-2"
	if !file.SessionStale() {
		t.Error("changed content should mark the session stale")
	}

	confirmed, total := file.TransferState.Progress()
	if confirmed != 10 || total != 100 {
		t.Errorf("Progress() = %d/%d", confirmed, total)
	}

	file.ClearSession()
	if file.TransferState != nil || file.SessionStale() {
		t.Error("cleared session should be gone")
	}
}

func TestMetadataInSync(t *testing.T) {
	file := newTestFile()
	file.RemoteMetadata = map[string]string{"title": file.Metadata["title"]}
	if !file.MetadataInSync() {
		t.Error("identical maps should be in sync")
	}

	file.Metadata["description"] = "new"
	if file.MetadataInSync() {
		t.Error("diverged maps should not be in sync")
	}
}

func TestAccount(t *testing.T) {
	account := &Account{ID: "studio", MaxDailyUploads: 5, Timezone: "America/Chicago"}

	if err := account.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if account.Suspended() {
		t.Error("quota of 5 is not suspended")
	}
	if account.Location().String() != "America/Chicago" {
		t.Errorf("Location() = %s", account.Location())
	}

	account.MaxDailyUploads = 0
	if !account.Suspended() {
		t.Error("zero quota suspends the account")
	}

	account.UploadsConsumed = -1
	if err := account.Validate(); err == nil {
		t.Error("negative consumption should fail validation")
	}

	account.Timezone = "Mars/OlympusMons"
	if account.Location() != time.UTC {
		t.Error("bad timezone should fall back to UTC")
	}
}
