package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/panqplex/panqplex/internal/models"
	"github.com/panqplex/panqplex/internal/shared"
)

const accountColumns = `id, display_name, credentials_ref, default_channel,
	max_daily_uploads, timezone, quota_window_start, uploads_consumed, created_at, updated_at`

// AccountRepository persists [models.Account] records, including the quota
// counters the throttle scheduler mutates.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new AccountRepository with the given database connection
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Save upserts an account keyed by id.
func (r *AccountRepository) Save(account *models.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	var windowStart sql.NullTime
	if !account.QuotaWindowStart.IsZero() {
		windowStart = sql.NullTime{Time: account.QuotaWindowStart, Valid: true}
	}

	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			credentials_ref = excluded.credentials_ref,
			default_channel = excluded.default_channel,
			max_daily_uploads = excluded.max_daily_uploads,
			timezone = excluded.timezone,
			quota_window_start = excluded.quota_window_start,
			uploads_consumed = excluded.uploads_consumed,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		account.ID,
		account.DisplayName,
		account.CredentialsRef,
		account.DefaultChannel,
		account.MaxDailyUploads,
		account.Timezone,
		windowStart,
		account.UploadsConsumed,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	return nil
}

// Get retrieves an account by id.
func (r *AccountRepository) Get(id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	account, err := scanAccount(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, shared.ErrAccountNotFound
	}
	return account, err
}

// List retrieves all accounts ordered by id.
func (r *AccountRepository) List() ([]*models.Account, error) {
	rows, err := r.db.Query(`SELECT ` + accountColumns + ` FROM accounts ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return accounts, nil
}

// Ensure upserts the account described by one config entry while preserving
// any quota bookkeeping already on disk. Config is authoritative for limits
// and identity, the database for consumption.
func (r *AccountRepository) Ensure(cfg shared.AccountConfig, now time.Time) (*models.Account, error) {
	existing, err := r.Get(cfg.ID)
	if err != nil && err != shared.ErrAccountNotFound {
		return nil, err
	}

	account := &models.Account{
		ID:              cfg.ID,
		DisplayName:     cfg.DisplayName,
		CredentialsRef:  cfg.CredentialsFile,
		DefaultChannel:  cfg.DefaultChannel,
		MaxDailyUploads: cfg.MaxDailyUploads,
		Timezone:        cfg.Timezone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if existing != nil {
		account.QuotaWindowStart = existing.QuotaWindowStart
		account.UploadsConsumed = existing.UploadsConsumed
		account.CreatedAt = existing.CreatedAt
	}

	if err := r.Save(account); err != nil {
		return nil, err
	}
	return account, nil
}

func scanAccount(row scanner) (*models.Account, error) {
	var (
		account     models.Account
		windowStart sql.NullTime
	)

	err := row.Scan(
		&account.ID,
		&account.DisplayName,
		&account.CredentialsRef,
		&account.DefaultChannel,
		&account.MaxDailyUploads,
		&account.Timezone,
		&windowStart,
		&account.UploadsConsumed,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	if windowStart.Valid {
		account.QuotaWindowStart = windowStart.Time.UTC()
	}
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()

	return &account, nil
}
