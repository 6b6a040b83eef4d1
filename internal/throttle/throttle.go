// Package throttle implements per-account admission control against a daily
// upload quota.
//
// The quota window is the calendar day in the account's configured timezone;
// crossing midnight resets consumption. Quota is charged at admission time,
// so a transfer that starts and later fails still counts. Only a transfer
// that never sent a byte gets its slot back through Release.
package throttle

import (
	"fmt"
	"time"

	"github.com/panqplex/panqplex/internal/models"
)

// AccountStore is the slice of the store the scheduler needs to persist
// counter changes.
type AccountStore interface {
	Save(account *models.Account) error
}

// Scheduler decides whether an account may start another upload.
type Scheduler struct {
	store AccountStore
	now   func() time.Time
}

// NewScheduler creates a Scheduler persisting counters through store.
// The clock defaults to time.Now and is injectable for tests.
func NewScheduler(store AccountStore, clock func() time.Time) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{store: store, now: clock}
}

// WindowReset zeroes the consumption counter when now has crossed a calendar
// day boundary in the account's timezone since the window started.
func (s *Scheduler) WindowReset(account *models.Account, now time.Time) bool {
	if account.QuotaWindowStart.IsZero() {
		return false
	}
	loc := account.Location()
	wy, wm, wd := account.QuotaWindowStart.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	if wy == ny && wm == nm && wd == nd {
		return false
	}
	account.QuotaWindowStart = now
	account.UploadsConsumed = 0
	account.UpdatedAt = now
	return true
}

// TryAdmit checks the quota and, when under the ceiling, charges one upload
// and persists the counter. Refusal has no side effects. Suspended accounts
// (ceiling <= 0) are always refused.
func (s *Scheduler) TryAdmit(account *models.Account) (bool, error) {
	if account.Suspended() {
		return false, nil
	}

	now := s.now()
	s.WindowReset(account, now)

	if account.UploadsConsumed >= account.MaxDailyUploads {
		return false, nil
	}

	if account.QuotaWindowStart.IsZero() {
		account.QuotaWindowStart = now
	}
	account.UploadsConsumed++
	account.UpdatedAt = now

	if err := s.store.Save(account); err != nil {
		account.UploadsConsumed--
		return false, fmt.Errorf("failed to persist admission: %w", err)
	}
	return true, nil
}

// Release rolls back one admission. Only called when an admitted transfer
// failed before the first byte went out, so a genuine non-attempt does not
// consume quota.
func (s *Scheduler) Release(account *models.Account) error {
	if account.UploadsConsumed <= 0 {
		return nil
	}
	account.UploadsConsumed--
	account.UpdatedAt = s.now()
	if err := s.store.Save(account); err != nil {
		return fmt.Errorf("failed to persist release: %w", err)
	}
	return nil
}
