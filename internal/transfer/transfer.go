// Package transfer drives a single file's bytes to the remote platform over
// a chunked, resumable session.
//
// The session token and confirmed offset are persisted before and after
// every chunk, so interrupting the process between chunk sends always leaves
// the file resumable. On resume the remote side is asked for its confirmed
// offset rather than trusting possibly-stale local bookkeeping.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/panqplex/panqplex/internal/models"
	"github.com/panqplex/panqplex/internal/services"
	"github.com/panqplex/panqplex/internal/shared"
)

// ErrNotStarted marks a failure before the first byte went out. The caller
// releases the admitted quota slot in that case.
var ErrNotStarted = errors.New("transfer never started")

// FileStore is the slice of the store the manager needs to persist session
// progress between chunks.
type FileStore interface {
	Save(file *models.MediaFile) error
}

// Progress is a monotonically non-decreasing confirmed/total pair for
// display.
type Progress struct {
	FileID         string
	BytesConfirmed int64
	TotalBytes     int64
}

// Options tunes the manager. Zero values fall back to defaults.
type Options struct {
	ChunkSize      int64         // bytes per chunk, default 8 MiB
	RetryAttempts  int           // bounded retries per chunk, default 3
	RetryBaseDelay time.Duration // first backoff interval, default 500ms
	RequestTimeout time.Duration // per network call, default 60s
	Clock          func() time.Time
}

func (o *Options) fill() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 8 * 1024 * 1024
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 500 * time.Millisecond
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 60 * time.Second
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// Manager uploads one file at a time through a [services.Transport].
type Manager struct {
	transport services.Transport
	store     FileStore
	logger    *log.Logger
	opts      Options
}

// NewManager creates a Manager.
func NewManager(transport services.Transport, store FileStore, logger *log.Logger, opts Options) *Manager {
	opts.fill()
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Manager{transport: transport, store: store, logger: logger, opts: opts}
}

// Run drives the file's upload to completion, beginning a fresh session or
// resuming an existing one as appropriate. On success the file carries its
// remote id and a cleared session; the caller applies the lifecycle
// transition. Progress updates are sent without blocking when progress is
// non-nil.
func (m *Manager) Run(ctx context.Context, file *models.MediaFile, account *models.Account, progress chan<- Progress) error {
	src, err := os.Open(file.Path)
	if err != nil {
		if file.TransferState == nil {
			return fmt.Errorf("%w: %v", ErrNotStarted, err)
		}
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if info.Size() != file.SizeBytes {
		return fmt.Errorf("%w: %s changed size on disk (%d != %d)", shared.ErrValidation, file.Path, info.Size(), file.SizeBytes)
	}

	// Progress against stale bytes is never reused.
	if file.SessionStale() {
		m.logger.Info("abandoning stale session", "file", file.ID)
		file.ClearSession()
		if err := m.store.Save(file); err != nil {
			return err
		}
	}

	if file.TransferState == nil {
		if err := m.begin(ctx, file, account); err != nil {
			return err
		}
	} else {
		if err := m.resume(ctx, file, account); err != nil {
			return err
		}
	}

	return m.sendChunks(ctx, file, src, progress)
}

// begin opens a creation or update session depending on whether the file has
// been uploaded before, and persists the token before any byte goes out.
func (m *Manager) begin(ctx context.Context, file *models.MediaFile, account *models.Account) error {
	callCtx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	defer cancel()

	var token string
	var err error
	if file.RemoteID == "" {
		token, err = m.transport.CreateUploadSession(callCtx, account, file.Metadata, file.SizeBytes)
	} else {
		token, err = m.transport.UpdateSession(callCtx, account, file.RemoteID, file.Metadata, file.SizeBytes)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotStarted, err)
	}

	file.TransferState = &models.TransferSession{
		Token:         token,
		TotalBytes:    file.SizeBytes,
		Fingerprint:   file.ContentFingerprint,
		LastAttemptAt: m.opts.Clock(),
		AttemptCount:  1,
	}
	return m.store.Save(file)
}

// resume re-queries the remote confirmed offset; the remote is authoritative
// after a crash.
func (m *Manager) resume(ctx context.Context, file *models.MediaFile, account *models.Account) error {
	session := file.TransferState

	// The session was initiated by a previous process; re-bind its
	// credentials before touching the remote.
	if reg, ok := m.transport.(services.SessionRegistrar); ok {
		reg.RegisterSession(session.Token, account)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	defer cancel()

	confirmed, err := m.transport.QueryConfirmedOffset(callCtx, session.Token, session.TotalBytes)
	if err != nil {
		if errors.Is(err, shared.ErrValidation) {
			// The remote no longer knows the session; start over next pass.
			m.logger.Warn("session rejected by remote, discarding", "file", file.ID)
			file.ClearSession()
			if saveErr := m.store.Save(file); saveErr != nil {
				return saveErr
			}
			return fmt.Errorf("%w: %v", shared.ErrSessionExpired, err)
		}
		return err
	}

	if confirmed > session.TotalBytes {
		confirmed = session.TotalBytes
	}
	session.BytesConfirmed = confirmed
	session.LastAttemptAt = m.opts.Clock()
	session.AttemptCount++
	m.logger.Info("resuming upload", "file", file.ID, "confirmed", confirmed, "total", session.TotalBytes)
	return m.store.Save(file)
}

// sendChunks streams the remainder of the file, one bounded chunk at a time.
// Cancellation is honored only between chunks so the persisted state stays
// coherent.
func (m *Manager) sendChunks(ctx context.Context, file *models.MediaFile, src *os.File, progress chan<- Progress) error {
	session := file.TransferState
	buf := make([]byte, m.opts.ChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		offset := session.BytesConfirmed
		remaining := session.TotalBytes - offset
		if remaining <= 0 && session.TotalBytes > 0 {
			// Everything is confirmed but completion was not observed;
			// ask the remote to finalize with an empty range probe.
			remaining = 0
		}

		size := remaining
		if size > m.opts.ChunkSize {
			size = m.opts.ChunkSize
		}

		chunk := buf[:size]
		if size > 0 {
			if _, err := src.ReadAt(chunk, offset); err != nil && err != io.EOF {
				return fmt.Errorf("%w: read %s at %d: %v", shared.ErrValidation, file.Path, offset, err)
			}
		}

		result, err := m.sendWithRetry(ctx, session.Token, offset, chunk, session.TotalBytes)
		if err != nil {
			return err
		}

		// The confirmed offset never regresses within a session.
		if result.ConfirmedOffset > session.BytesConfirmed {
			session.BytesConfirmed = result.ConfirmedOffset
		}
		session.LastAttemptAt = m.opts.Clock()

		if result.Done {
			if file.RemoteID == "" {
				file.RemoteID = result.RemoteID
			}
			file.ClearSession()
			if err := m.store.Save(file); err != nil {
				return err
			}
			m.notify(progress, file.ID, session.TotalBytes, session.TotalBytes)
			return nil
		}

		if err := m.store.Save(file); err != nil {
			return err
		}
		m.notify(progress, file.ID, session.BytesConfirmed, session.TotalBytes)

		if size == 0 {
			// A probe for a fully-confirmed session must finalize; a 308
			// here means the remote lost bytes it once acknowledged.
			return fmt.Errorf("%w: session did not finalize at %d/%d",
				shared.ErrTransient, session.BytesConfirmed, session.TotalBytes)
		}
	}
}

// sendWithRetry retries one chunk on transient failures with exponential
// backoff, up to the bounded attempt count. Anything else escalates
// immediately.
func (m *Manager) sendWithRetry(ctx context.Context, token string, offset int64, chunk []byte, total int64) (services.ChunkResult, error) {
	var result services.ChunkResult

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.opts.RetryBaseDelay

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
		defer cancel()

		res, err := m.transport.SendChunk(callCtx, token, offset, chunk, total)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				// A timed-out call is transient like any other network blip.
				return fmt.Errorf("%w: %v", shared.ErrTransient, err)
			}
			if errors.Is(err, shared.ErrTransient) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(m.opts.RetryAttempts)), ctx))
	if err != nil {
		return services.ChunkResult{}, err
	}
	return result, nil
}

// notify sends a progress update without ever blocking the transfer.
func (m *Manager) notify(progress chan<- Progress, fileID string, confirmed, total int64) {
	if progress == nil {
		return
	}
	select {
	case progress <- Progress{FileID: fileID, BytesConfirmed: confirmed, TotalBytes: total}:
	default:
	}
}
