package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/panqplex/panqplex/internal/models"
	"github.com/panqplex/panqplex/internal/repositories"
	"github.com/panqplex/panqplex/internal/scan"
	"github.com/panqplex/panqplex/internal/shared"
	"github.com/panqplex/panqplex/internal/throttle"
	"github.com/panqplex/panqplex/internal/transfer"
	"golang.org/x/sync/errgroup"
)

// Summary aggregates the store per status bucket. It is pure local
// aggregation: producing one performs no remote calls.
type Summary struct {
	Total            int
	ByStatus         map[models.Status]int
	PendingAdmission int            // actionable files waiting on quota
	Hindered         []HinderedFile // files needing operator attention
}

// HinderedFile surfaces a hindered file with its recorded cause.
type HinderedFile struct {
	ID    string
	Path  string
	Cause string
}

// IngestResult reports one scan-ingest operation.
type IngestResult struct {
	Discovered int // new files acknowledged
	Refreshed  int // known files whose attributes changed
	Unchanged  int
}

// SyncOpts tunes one sync pass.
type SyncOpts struct {
	DryRun     bool // classify and report without contacting the remote side
	MaxUploads int  // cap on uploads this pass, 0 = unlimited
}

// SyncResult reports one full sync pass.
type SyncResult struct {
	Summary     Summary
	Uploaded    int // transfers that reached finished
	Resumed     int // of those, how many continued an interrupted session
	Failed      int // files that ended hindered during this pass
	Refused     int // admissions refused by quota, not an error
	WouldUpload int // dry-run only
}

// SyncEngine defines the operations of the synchronization engine.
type SyncEngine interface {
	// Ingest records scanner discoveries in the store, acknowledging new
	// files and refreshing attributes of known ones.
	Ingest(ctx context.Context, discoveries []scan.Discovery) (*IngestResult, error)

	// Check reconciles local state only (no remote calls) and summarizes.
	// Running it twice with no intervening local changes yields identical
	// summaries and zero transitions on the second run.
	Check(ctx context.Context, progress chan<- ProgressUpdate) (*Summary, error)

	// Sync runs a full pass: refresh, admission, transfer, summary.
	Sync(ctx context.Context, opts SyncOpts, progress chan<- ProgressUpdate) (*SyncResult, error)
}

// Reconciler implements [SyncEngine] over the store, throttle scheduler, and
// transfer manager.
type Reconciler struct {
	files    *repositories.FileRepository
	accounts *repositories.AccountRepository
	throttle *throttle.Scheduler
	transfer *transfer.Manager
	scanner  *scan.Scanner
	logger   *log.Logger
	defaults string // default owner account id
	now      func() time.Time
}

// ReconcilerOpts contains dependencies for creating a Reconciler.
type ReconcilerOpts struct {
	Files          *repositories.FileRepository
	Accounts       *repositories.AccountRepository
	Throttle       *throttle.Scheduler
	Transfer       *transfer.Manager
	Scanner        *scan.Scanner
	Logger         *log.Logger
	DefaultAccount string
	Clock          func() time.Time
}

// NewReconciler creates a Reconciler.
func NewReconciler(opts ReconcilerOpts) *Reconciler {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Scanner == nil {
		opts.Scanner = scan.NewScanner(nil)
	}
	return &Reconciler{
		files:    opts.Files,
		accounts: opts.Accounts,
		throttle: opts.Throttle,
		transfer: opts.Transfer,
		scanner:  opts.Scanner,
		logger:   opts.Logger,
		defaults: opts.DefaultAccount,
		now:      opts.Clock,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (r *Reconciler) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Ingest records scanner discoveries in the store.
func (r *Reconciler) Ingest(ctx context.Context, discoveries []scan.Discovery) (*IngestResult, error) {
	result := &IngestResult{}
	now := r.now()

	for _, disc := range discoveries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		existing, err := r.files.FindByPath(disc.Path)
		if err != nil && !errors.Is(err, shared.ErrFileNotFound) {
			return result, err
		}

		if existing == nil {
			file := models.NewMediaFile(shared.GenerateID(), disc.Path, disc.Fingerprint, disc.SizeBytes, disc.DurationSeconds, now)
			if err := r.files.Create(file); err != nil {
				return result, err
			}
			r.logger.Info("acknowledged new file", "path", disc.Path, "id", file.ID)
			result.Discovered++
			continue
		}

		changed, err := r.applyAttributes(existing, disc, now)
		if err != nil {
			return result, err
		}
		if changed {
			result.Refreshed++
		} else {
			result.Unchanged++
		}
	}

	return result, nil
}

// applyAttributes folds freshly probed attributes into a known file,
// applying the drift transition when a finished file's content changed.
// Returns whether anything was persisted.
func (r *Reconciler) applyAttributes(file *models.MediaFile, disc scan.Discovery, now time.Time) (bool, error) {
	drifted := disc.Fingerprint != file.ContentFingerprint
	sizeChanged := disc.SizeBytes != file.SizeBytes
	durationChanged := disc.DurationSeconds != 0 && disc.DurationSeconds != file.DurationSeconds

	if !drifted && !sizeChanged && !durationChanged {
		return false, nil
	}

	file.ContentFingerprint = disc.Fingerprint
	file.SizeBytes = disc.SizeBytes
	if disc.DurationSeconds != 0 {
		file.DurationSeconds = disc.DurationSeconds
	}
	file.UpdatedAt = now

	if drifted && file.Status == models.StatusFinished {
		if err := file.Transition(models.TriggerDrifted, now); err != nil {
			return false, err
		}
		r.logger.Info("content drifted, queued for re-sync", "id", file.ID)
	}

	return true, r.files.Save(file)
}

// refreshAll re-probes every tracked file that may have changed, marking
// vanished files hindered and queueing drifted finished files. Purely local.
func (r *Reconciler) refreshAll(ctx context.Context, progress chan<- ProgressUpdate) error {
	files, err := r.files.Load()
	if err != nil {
		return err
	}
	now := r.now()

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.sendProgress(progress, refreshUpdate(i+1, len(files), file.ID))

		if file.Status == models.StatusHindered {
			continue
		}

		disc, err := r.scanner.Probe(file.Path)
		if err != nil {
			if file.Status == models.StatusUndefined {
				continue
			}
			r.logger.Warn("file missing on disk", "id", file.ID, "path", file.Path)
			if ferr := file.Fail(fmt.Sprintf("file missing on disk: %v", err), now); ferr != nil {
				return ferr
			}
			if err := r.files.Save(file); err != nil {
				return err
			}
			continue
		}

		if _, err := r.applyAttributes(file, disc, now); err != nil {
			return err
		}

		// Metadata drift on a finished file queues it for re-sync even when
		// the bytes are unchanged.
		if file.Status == models.StatusFinished && !file.MetadataInSync() {
			if err := file.Transition(models.TriggerDrifted, now); err != nil {
				return err
			}
			if err := r.files.Save(file); err != nil {
				return err
			}
		}
	}

	return nil
}

// summarize aggregates the store per status bucket.
func (r *Reconciler) summarize() (*Summary, error) {
	files, err := r.files.Load()
	if err != nil {
		return nil, err
	}

	summary := &Summary{ByStatus: map[models.Status]int{}}
	for _, file := range files {
		summary.Total++
		summary.ByStatus[file.Status]++
		switch file.Status {
		case models.StatusQueuedNew, models.StatusQueuedEdit:
			summary.PendingAdmission++
		case models.StatusHindered:
			summary.Hindered = append(summary.Hindered, HinderedFile{ID: file.ID, Path: file.Path, Cause: file.LastError})
		}
	}
	return summary, nil
}

// Check reconciles local state and summarizes without remote calls.
func (r *Reconciler) Check(ctx context.Context, progress chan<- ProgressUpdate) (*Summary, error) {
	if err := r.refreshAll(ctx, progress); err != nil {
		return nil, err
	}
	r.sendProgress(progress, ProgressUpdate{Phase: PhaseSummary, Message: "Summarizing..."})
	return r.summarize()
}

// Sync runs a full synchronization pass.
func (r *Reconciler) Sync(ctx context.Context, opts SyncOpts, progress chan<- ProgressUpdate) (*SyncResult, error) {
	if err := r.refreshAll(ctx, progress); err != nil {
		return nil, err
	}

	actionable, err := r.files.FindByStatus(models.StatusQueuedNew, models.StatusQueuedEdit, models.StatusUploading)
	if err != nil {
		return nil, err
	}

	// Partition per owning account; order within each partition is already
	// oldest-first from the store.
	byAccount := map[string][]*models.MediaFile{}
	for _, file := range actionable {
		owner := file.OwnerAccount(r.defaults)
		byAccount[owner] = append(byAccount[owner], file)
	}

	result := &SyncResult{}
	var mu sync.Mutex
	budget := newUploadBudget(opts.MaxUploads)

	// One worker per account; workers never share files, and the counters
	// are the only shared state.
	group, groupCtx := errgroup.WithContext(ctx)
	for accountID, queue := range byAccount {
		group.Go(func() error {
			return r.syncAccount(groupCtx, accountID, queue, opts, budget, result, &mu, progress)
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return nil, err
	}

	r.sendProgress(progress, ProgressUpdate{Phase: PhaseSummary, Message: "Summarizing..."})
	summary, err := r.summarize()
	if err != nil {
		return nil, err
	}
	result.Summary = *summary
	return result, nil
}

// syncAccount processes one account's queue strictly sequentially. A
// credential failure pauses the whole account; per-file errors only hinder
// that file.
func (r *Reconciler) syncAccount(ctx context.Context, accountID string, queue []*models.MediaFile, opts SyncOpts, budget *uploadBudget, result *SyncResult, mu *sync.Mutex, progress chan<- ProgressUpdate) error {
	logger := shared.WithLogger(r.logger, "account", accountID)

	account, err := r.accounts.Get(accountID)
	if err != nil {
		if !errors.Is(err, shared.ErrAccountNotFound) {
			return err
		}
		// Files pointing at an unconfigured account are a validation error.
		now := r.now()
		for _, file := range queue {
			if file.Status == models.StatusHindered {
				continue
			}
			if ferr := file.Fail(fmt.Sprintf("unknown account %q", accountID), now); ferr != nil {
				return ferr
			}
			if err := r.files.Save(file); err != nil {
				return err
			}
			mu.Lock()
			result.Failed++
			mu.Unlock()
		}
		return nil
	}

	for _, file := range queue {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !budget.take() {
			logger.Info("upload cap reached, leaving remainder queued")
			return nil
		}

		outcome, err := r.syncFile(ctx, file, account, opts, logger, progress)
		if err != nil {
			return err
		}

		mu.Lock()
		switch outcome {
		case outcomeUploaded:
			result.Uploaded++
		case outcomeResumed:
			result.Uploaded++
			result.Resumed++
		case outcomeRefused:
			result.Refused++
			budget.put()
		case outcomeFailed:
			result.Failed++
		case outcomeWould:
			result.WouldUpload++
		}
		mu.Unlock()

		if outcome == outcomePaused {
			logger.Warn("credentials expired, pausing account until re-authentication")
			return nil
		}
	}
	return nil
}

type outcome int

const (
	outcomeUploaded outcome = iota
	outcomeResumed
	outcomeRefused
	outcomeFailed
	outcomeWould
	outcomePaused
)

// syncFile owns one file for one processing step: admission, transfer, and
// the resulting transitions.
func (r *Reconciler) syncFile(ctx context.Context, file *models.MediaFile, account *models.Account, opts SyncOpts, logger *log.Logger, progress chan<- ProgressUpdate) (outcome, error) {
	now := r.now()
	resuming := file.Status == models.StatusUploading

	if opts.DryRun {
		logger.Info("would upload", "id", file.ID, "path", file.Path, "resume", resuming)
		return outcomeWould, nil
	}

	// A file already uploading was charged when it was first admitted;
	// resuming its session does not consume quota again.
	if !resuming {
		admitted, err := r.throttle.TryAdmit(account)
		if err != nil {
			return 0, err
		}
		r.sendProgress(progress, admissionUpdate(file.ID, account.ID, admitted))
		if !admitted {
			logger.Info("refused by quota, staying queued", "id", file.ID)
			return outcomeRefused, nil
		}

		previous := file.Status
		if err := file.Transition(models.TriggerTransferStarted, now); err != nil {
			if rerr := r.throttle.Release(account); rerr != nil {
				return 0, rerr
			}
			return 0, err
		}
		if err := r.files.Save(file); err != nil {
			file.Status = previous
			if rerr := r.throttle.Release(account); rerr != nil {
				return 0, rerr
			}
			return 0, err
		}
	}

	transferProgress := make(chan transfer.Progress, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range transferProgress {
			r.sendProgress(progress, uploadUpdate(p.FileID, p.BytesConfirmed, p.TotalBytes))
		}
	}()

	err := r.transfer.Run(ctx, file, account, transferProgress)
	close(transferProgress)
	<-done

	switch {
	case err == nil:
		if terr := file.Transition(models.TriggerTransferDone, r.now()); terr != nil {
			return 0, terr
		}
		file.RemoteMetadata = cloneMeta(file.Metadata)
		file.LastError = ""
		if serr := r.files.Save(file); serr != nil {
			return 0, serr
		}
		logger.Info("upload finished", "id", file.ID, "remote", file.RemoteID)
		if resuming {
			return outcomeResumed, nil
		}
		return outcomeUploaded, nil

	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Interrupted between chunks; everything needed to resume is
		// already durable.
		return 0, context.Canceled

	case errors.Is(err, transfer.ErrNotStarted):
		return r.handleNotStarted(file, account, err, resuming, logger)

	case errors.Is(err, shared.ErrSessionExpired):
		// The remote discarded the session. It is already cleared from the
		// file, so requeue it for a fresh admission next pass.
		if file.RemoteID != "" {
			file.Status = models.StatusQueuedEdit
		} else {
			file.Status = models.StatusQueuedNew
		}
		if serr := r.files.Save(file); serr != nil {
			return 0, serr
		}
		logger.Warn("upload session expired, requeued", "id", file.ID)
		return outcomeRefused, nil

	case errors.Is(err, shared.ErrQuotaExhausted):
		// Remote-side quota: not an error, the file stays resumable and is
		// reported as pending admission.
		logger.Info("remote quota exhausted, staying queued", "id", file.ID)
		return outcomeRefused, nil

	case errors.Is(err, shared.ErrCredentialExpired):
		logger.Warn("credential expired mid-transfer", "id", file.ID)
		return outcomePaused, nil

	default:
		// Transient retries exhausted or a validation failure: hindered,
		// with any session progress preserved for a manual retry.
		if ferr := file.Fail(err.Error(), r.now()); ferr != nil {
			return 0, ferr
		}
		if serr := r.files.Save(file); serr != nil {
			return 0, serr
		}
		logger.Error("upload failed", "id", file.ID, "err", err)
		return outcomeFailed, nil
	}
}

// handleNotStarted rolls back an admission whose transfer never sent a byte.
func (r *Reconciler) handleNotStarted(file *models.MediaFile, account *models.Account, err error, resuming bool, logger *log.Logger) (outcome, error) {
	if !resuming {
		if rerr := r.throttle.Release(account); rerr != nil {
			return 0, rerr
		}
		// Undo the uploading transition: the transfer never began, so the
		// admission is treated as if it had not happened.
		if file.RemoteID != "" {
			file.Status = models.StatusQueuedEdit
		} else {
			file.Status = models.StatusQueuedNew
		}
	}

	switch {
	case errors.Is(err, shared.ErrQuotaExhausted):
		if serr := r.files.Save(file); serr != nil {
			return 0, serr
		}
		logger.Info("remote quota refused session, staying queued", "id", file.ID)
		return outcomeRefused, nil
	case errors.Is(err, shared.ErrCredentialExpired):
		if serr := r.files.Save(file); serr != nil {
			return 0, serr
		}
		return outcomePaused, nil
	case errors.Is(err, shared.ErrTransient):
		if serr := r.files.Save(file); serr != nil {
			return 0, serr
		}
		logger.Warn("session could not be opened, will retry next pass", "id", file.ID, "err", err)
		return outcomeRefused, nil
	default:
		if ferr := file.Fail(err.Error(), r.now()); ferr != nil {
			return 0, ferr
		}
		if serr := r.files.Save(file); serr != nil {
			return 0, serr
		}
		logger.Error("upload could not start", "id", file.ID, "err", err)
		return outcomeFailed, nil
	}
}

func cloneMeta(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// uploadBudget caps uploads across all account workers for one pass.
type uploadBudget struct {
	mu        sync.Mutex
	remaining int
	unlimited bool
}

func newUploadBudget(max int) *uploadBudget {
	return &uploadBudget{remaining: max, unlimited: max <= 0}
}

func (b *uploadBudget) take() bool {
	if b.unlimited {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

func (b *uploadBudget) put() {
	if b.unlimited {
		return
	}
	b.mu.Lock()
	b.remaining++
	b.mu.Unlock()
}
