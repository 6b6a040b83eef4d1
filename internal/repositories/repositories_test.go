package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/panqplex/panqplex/internal/models"
	"github.com/panqplex/panqplex/internal/shared"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func seedFile(t *testing.T, repo *FileRepository, path string) *models.MediaFile {
	t.Helper()
	file := models.NewMediaFile("", path, "fp-"+path, 2048, 30, testNow)
	if err := repo.Create(file); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	return file
}

func TestFileRepository(t *testing.T) {
	t.Run("Create assigns id", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewFileRepository(db)
		file := seedFile(t, repo, "/media/a.mp4")

		if file.ID == "" {
			t.Error("file ID should be set after creation")
		}
	})

	t.Run("Get round-trips every field", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewFileRepository(db)
		file := seedFile(t, repo, "/media/a.mp4")

		file.Status = models.StatusUploading
		file.Ready = true
		file.OwnerAccountID = "studio"
		file.RemoteID = "vid-1"
		file.Metadata["description"] = "dawn over the bay"
		file.RemoteMetadata = map[string]string{"title": "a"}
		file.LastError = "previous attempt"
		file.TransferState = &models.TransferSession{
			Token:          "sess-1",
			BytesConfirmed: 8 << 20,
			TotalBytes:     95 << 20,
			Fingerprint:    file.ContentFingerprint,
			LastAttemptAt:  testNow,
			AttemptCount:   2,
		}
		if err := repo.Save(file); err != nil {
			t.Fatalf("failed to save file: %v", err)
		}

		got, err := repo.Get(file.ID)
		if err != nil {
			t.Fatalf("failed to get file: %v", err)
		}

		if got.Status != models.StatusUploading {
			t.Errorf("status = %s", got.Status)
		}
		if !got.Ready || got.OwnerAccountID != "studio" || got.RemoteID != "vid-1" {
			t.Errorf("flags lost: ready=%v owner=%s remote=%s", got.Ready, got.OwnerAccountID, got.RemoteID)
		}
		if got.Metadata["description"] != "dawn over the bay" {
			t.Errorf("metadata lost: %+v", got.Metadata)
		}
		if got.RemoteMetadata["title"] != "a" {
			t.Errorf("remote metadata lost: %+v", got.RemoteMetadata)
		}
		if got.LastError != "previous attempt" {
			t.Errorf("last error lost: %q", got.LastError)
		}
		session := got.TransferState
		if session == nil {
			t.Fatal("transfer session lost")
		}
		if session.Token != "sess-1" || session.BytesConfirmed != 8<<20 || session.TotalBytes != 95<<20 {
			t.Errorf("session fields lost: %+v", session)
		}
		if session.AttemptCount != 2 || !session.LastAttemptAt.Equal(testNow) {
			t.Errorf("attempt bookkeeping lost: %+v", session)
		}
	})

	t.Run("clearing a session persists", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewFileRepository(db)
		file := seedFile(t, repo, "/media/a.mp4")
		file.TransferState = &models.TransferSession{Token: "sess-1", TotalBytes: 10}
		if err := repo.Save(file); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		file.ClearSession()
		if err := repo.Save(file); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		got, err := repo.Get(file.ID)
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got.TransferState != nil {
			t.Errorf("expected session cleared, got %+v", got.TransferState)
		}
	})

	t.Run("Get missing file", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewFileRepository(db)
		if _, err := repo.Get("nope"); !errors.Is(err, shared.ErrFileNotFound) {
			t.Errorf("expected ErrFileNotFound, got %v", err)
		}
	})

	t.Run("FindByPath", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewFileRepository(db)
		file := seedFile(t, repo, "/media/a.mp4")

		got, err := repo.FindByPath("/media/a.mp4")
		if err != nil {
			t.Fatalf("failed to find by path: %v", err)
		}
		if got.ID != file.ID {
			t.Errorf("got %s, want %s", got.ID, file.ID)
		}

		if _, err := repo.FindByPath("/media/missing.mp4"); !errors.Is(err, shared.ErrFileNotFound) {
			t.Errorf("expected ErrFileNotFound, got %v", err)
		}
	})

	t.Run("duplicate path rejected", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewFileRepository(db)
		seedFile(t, repo, "/media/a.mp4")

		dupe := models.NewMediaFile("", "/media/a.mp4", "fp-2", 1, 1, testNow)
		if err := repo.Create(dupe); err == nil {
			t.Error("expected unique path violation")
		}
	})

	t.Run("Load orders by discovery time", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewFileRepository(db)
		older := models.NewMediaFile("", "/media/a.mp4", "fp-a", 1, 1, testNow.Add(-time.Hour))
		newer := models.NewMediaFile("", "/media/b.mp4", "fp-b", 1, 1, testNow)
		if err := repo.Create(newer); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := repo.Create(older); err != nil {
			t.Fatalf("create: %v", err)
		}

		files, err := repo.Load()
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}
		if len(files) != 2 {
			t.Fatalf("expected 2 files, got %d", len(files))
		}
		if files[0].Path != "/media/a.mp4" {
			t.Errorf("expected oldest first, got %s", files[0].Path)
		}
	})

	t.Run("FindByStatus", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewFileRepository(db)
		queued := seedFile(t, repo, "/media/a.mp4")
		queued.Status = models.StatusQueuedNew
		if err := repo.Save(queued); err != nil {
			t.Fatalf("save: %v", err)
		}
		seedFile(t, repo, "/media/b.mp4")

		files, err := repo.FindByStatus(models.StatusQueuedNew, models.StatusUploading)
		if err != nil {
			t.Fatalf("failed to find by status: %v", err)
		}
		if len(files) != 1 || files[0].ID != queued.ID {
			t.Errorf("expected only the queued file, got %d", len(files))
		}

		none, err := repo.FindByStatus()
		if err != nil || none != nil {
			t.Errorf("no statuses should return nothing, got %v %v", none, err)
		}
	})
}

func TestAccountRepository(t *testing.T) {
	newAccount := func() *models.Account {
		return &models.Account{
			ID:              "studio",
			DisplayName:     "Studio Channel",
			CredentialsRef:  "/tmp/studio.json",
			DefaultChannel:  "UC123",
			MaxDailyUploads: 5,
			Timezone:        "America/Chicago",
			CreatedAt:       testNow,
			UpdatedAt:       testNow,
		}
	}

	t.Run("Save and Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewAccountRepository(db)
		account := newAccount()
		account.QuotaWindowStart = testNow
		account.UploadsConsumed = 3

		if err := repo.Save(account); err != nil {
			t.Fatalf("failed to save account: %v", err)
		}

		got, err := repo.Get("studio")
		if err != nil {
			t.Fatalf("failed to get account: %v", err)
		}
		if got.DisplayName != "Studio Channel" || got.MaxDailyUploads != 5 {
			t.Errorf("identity lost: %+v", got)
		}
		if got.UploadsConsumed != 3 || !got.QuotaWindowStart.Equal(testNow) {
			t.Errorf("quota bookkeeping lost: consumed=%d window=%v", got.UploadsConsumed, got.QuotaWindowStart)
		}
	})

	t.Run("Get missing account", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewAccountRepository(db)
		if _, err := repo.Get("nope"); !errors.Is(err, shared.ErrAccountNotFound) {
			t.Errorf("expected ErrAccountNotFound, got %v", err)
		}
	})

	t.Run("List orders by id", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewAccountRepository(db)
		second := newAccount()
		if err := repo.Save(second); err != nil {
			t.Fatalf("save: %v", err)
		}
		first := newAccount()
		first.ID = "archive"
		if err := repo.Save(first); err != nil {
			t.Fatalf("save: %v", err)
		}

		accounts, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(accounts) != 2 || accounts[0].ID != "archive" {
			t.Errorf("expected archive first, got %+v", accounts)
		}
	})

	t.Run("Ensure preserves quota bookkeeping", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewAccountRepository(db)
		cfg := shared.AccountConfig{
			ID:              "studio",
			DisplayName:     "Studio Channel",
			CredentialsFile: "/tmp/studio.json",
			MaxDailyUploads: 5,
			Timezone:        "America/Chicago",
		}

		account, err := repo.Ensure(cfg, testNow)
		if err != nil {
			t.Fatalf("failed to ensure account: %v", err)
		}
		if account.UploadsConsumed != 0 {
			t.Errorf("fresh account should have no consumption")
		}

		account.UploadsConsumed = 4
		account.QuotaWindowStart = testNow
		if err := repo.Save(account); err != nil {
			t.Fatalf("save: %v", err)
		}

		cfg.MaxDailyUploads = 10
		again, err := repo.Ensure(cfg, testNow.Add(time.Hour))
		if err != nil {
			t.Fatalf("failed to re-ensure account: %v", err)
		}
		if again.MaxDailyUploads != 10 {
			t.Errorf("config should win on limits, got %d", again.MaxDailyUploads)
		}
		if again.UploadsConsumed != 4 || !again.QuotaWindowStart.Equal(testNow) {
			t.Errorf("quota bookkeeping should survive: consumed=%d window=%v", again.UploadsConsumed, again.QuotaWindowStart)
		}
		if !again.CreatedAt.Equal(testNow) {
			t.Errorf("created_at should survive, got %v", again.CreatedAt)
		}
	})
}
