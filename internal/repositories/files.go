package repositories

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/panqplex/panqplex/internal/models"
	"github.com/panqplex/panqplex/internal/shared"
)

// fileColumns is the column list shared by every media_files query.
const fileColumns = `id, content_fingerprint, path, size_bytes, duration_seconds, status,
	metadata, ready, owner_account_id, remote_id, remote_metadata, last_error,
	session_token, session_bytes_confirmed, session_total_bytes, session_fingerprint,
	session_last_attempt_at, session_attempt_count, created_at, updated_at`

// FileRepository persists [models.MediaFile] records.
type FileRepository struct {
	db *sql.DB
}

// NewFileRepository creates a new FileRepository with the given database connection
func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create inserts a newly discovered file, generating an id when none is set.
func (r *FileRepository) Create(file *models.MediaFile) error {
	if file.ID == "" {
		file.ID = shared.GenerateID()
	}
	if err := file.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return r.Save(file)
}

// Save upserts a file keyed by id. The single statement commits atomically.
func (r *FileRepository) Save(file *models.MediaFile) error {
	if err := file.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	meta, err := marshalMeta(file.Metadata)
	if err != nil {
		return err
	}
	remoteMeta, err := marshalMeta(file.RemoteMetadata)
	if err != nil {
		return err
	}

	var (
		token       sql.NullString
		confirmed   sql.NullInt64
		total       sql.NullInt64
		fingerprint sql.NullString
		lastAttempt sql.NullTime
		attempts    sql.NullInt64
	)
	if s := file.TransferState; s != nil {
		token = sql.NullString{String: s.Token, Valid: true}
		confirmed = sql.NullInt64{Int64: s.BytesConfirmed, Valid: true}
		total = sql.NullInt64{Int64: s.TotalBytes, Valid: true}
		fingerprint = sql.NullString{String: s.Fingerprint, Valid: true}
		lastAttempt = sql.NullTime{Time: s.LastAttemptAt, Valid: !s.LastAttemptAt.IsZero()}
		attempts = sql.NullInt64{Int64: int64(s.AttemptCount), Valid: true}
	}

	query := `
		INSERT INTO media_files (` + fileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content_fingerprint = excluded.content_fingerprint,
			path = excluded.path,
			size_bytes = excluded.size_bytes,
			duration_seconds = excluded.duration_seconds,
			status = excluded.status,
			metadata = excluded.metadata,
			ready = excluded.ready,
			owner_account_id = excluded.owner_account_id,
			remote_id = excluded.remote_id,
			remote_metadata = excluded.remote_metadata,
			last_error = excluded.last_error,
			session_token = excluded.session_token,
			session_bytes_confirmed = excluded.session_bytes_confirmed,
			session_total_bytes = excluded.session_total_bytes,
			session_fingerprint = excluded.session_fingerprint,
			session_last_attempt_at = excluded.session_last_attempt_at,
			session_attempt_count = excluded.session_attempt_count,
			updated_at = excluded.updated_at
	`

	_, err = r.db.Exec(query,
		file.ID,
		file.ContentFingerprint,
		file.Path,
		file.SizeBytes,
		file.DurationSeconds,
		string(file.Status),
		meta,
		file.Ready,
		file.OwnerAccountID,
		file.RemoteID,
		remoteMeta,
		file.LastError,
		token,
		confirmed,
		total,
		fingerprint,
		lastAttempt,
		attempts,
		file.CreatedAt,
		file.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save media file: %w", err)
	}

	return nil
}

// Get retrieves a file by id.
func (r *FileRepository) Get(id string) (*models.MediaFile, error) {
	query := `SELECT ` + fileColumns + ` FROM media_files WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// FindByPath retrieves a file by its local path.
func (r *FileRepository) FindByPath(path string) (*models.MediaFile, error) {
	query := `SELECT ` + fileColumns + ` FROM media_files WHERE path = ?`
	return r.scanOne(r.db.QueryRow(query, path))
}

// Load retrieves every tracked file ordered by discovery time, oldest first.
// That order is the per-account FIFO the reconciler relies on.
func (r *FileRepository) Load() ([]*models.MediaFile, error) {
	query := `SELECT ` + fileColumns + ` FROM media_files ORDER BY created_at ASC, id ASC`
	return r.query(query)
}

// FindByStatus retrieves files in any of the given statuses, oldest first.
func (r *FileRepository) FindByStatus(statuses ...models.Status) ([]*models.MediaFile, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?, ", len(statuses)-1) + "?"
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}

	query := `SELECT ` + fileColumns + ` FROM media_files WHERE status IN (` + placeholders + `) ORDER BY created_at ASC, id ASC`
	return r.query(query, args...)
}

func (r *FileRepository) query(query string, args ...any) ([]*models.MediaFile, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query media files: %w", err)
	}
	defer rows.Close()

	var files []*models.MediaFile
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return files, nil
}

func (r *FileRepository) scanOne(row *sql.Row) (*models.MediaFile, error) {
	file, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, shared.ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*models.MediaFile, error) {
	var (
		file        models.MediaFile
		status      string
		meta        string
		remoteMeta  string
		token       sql.NullString
		confirmed   sql.NullInt64
		total       sql.NullInt64
		fingerprint sql.NullString
		lastAttempt sql.NullTime
		attempts    sql.NullInt64
	)

	err := row.Scan(
		&file.ID,
		&file.ContentFingerprint,
		&file.Path,
		&file.SizeBytes,
		&file.DurationSeconds,
		&status,
		&meta,
		&file.Ready,
		&file.OwnerAccountID,
		&file.RemoteID,
		&remoteMeta,
		&file.LastError,
		&token,
		&confirmed,
		&total,
		&fingerprint,
		&lastAttempt,
		&attempts,
		&file.CreatedAt,
		&file.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan media file: %w", err)
	}

	file.Status = models.StatusFromString(status)
	if file.Metadata, err = unmarshalMeta(meta); err != nil {
		return nil, err
	}
	if file.RemoteMetadata, err = unmarshalMeta(remoteMeta); err != nil {
		return nil, err
	}

	if token.Valid {
		session := &models.TransferSession{
			Token:          token.String,
			BytesConfirmed: confirmed.Int64,
			TotalBytes:     total.Int64,
			Fingerprint:    fingerprint.String,
			AttemptCount:   int(attempts.Int64),
		}
		if lastAttempt.Valid {
			session.LastAttemptAt = lastAttempt.Time
		}
		file.TransferState = session
	}

	file.CreatedAt = file.CreatedAt.UTC()
	file.UpdatedAt = file.UpdatedAt.UTC()

	return &file, nil
}
