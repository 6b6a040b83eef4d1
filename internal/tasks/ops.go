package tasks

import (
	"errors"

	"github.com/panqplex/panqplex/internal/models"
	"github.com/panqplex/panqplex/internal/shared"
)

// Lookup finds a file by id first, then by path. CLI commands accept either.
func (r *Reconciler) Lookup(ref string) (*models.MediaFile, error) {
	file, err := r.files.Get(ref)
	if err == nil {
		return file, nil
	}
	if !errors.Is(err, shared.ErrFileNotFound) {
		return nil, err
	}
	return r.files.FindByPath(ref)
}

// List returns tracked files, optionally filtered to a status set.
func (r *Reconciler) List(statuses ...models.Status) ([]*models.MediaFile, error) {
	if len(statuses) == 0 {
		return r.files.Load()
	}
	return r.files.FindByStatus(statuses...)
}

// SetMetadata sets one metadata key on a file and persists the resulting
// transition.
func (r *Reconciler) SetMetadata(ref, key, value string) (*models.MediaFile, error) {
	file, err := r.Lookup(ref)
	if err != nil {
		return nil, err
	}
	if err := file.SetMetadata(key, value, r.now()); err != nil {
		return nil, err
	}
	return file, r.files.Save(file)
}

// DeleteMetadata removes one metadata key from a file.
func (r *Reconciler) DeleteMetadata(ref, key string) (*models.MediaFile, error) {
	file, err := r.Lookup(ref)
	if err != nil {
		return nil, err
	}
	if err := file.DeleteMetadata(key, r.now()); err != nil {
		return nil, err
	}
	return file, r.files.Save(file)
}

// SetReady flips the upload gate on a file.
func (r *Reconciler) SetReady(ref string, ready bool) (*models.MediaFile, error) {
	file, err := r.Lookup(ref)
	if err != nil {
		return nil, err
	}
	if err := file.SetReady(ready, r.now()); err != nil {
		return nil, err
	}
	return file, r.files.Save(file)
}

// Resolve clears a hindered file back into the queue after the operator has
// addressed the cause.
func (r *Reconciler) Resolve(ref string) (*models.MediaFile, error) {
	file, err := r.Lookup(ref)
	if err != nil {
		return nil, err
	}
	if err := file.Resolve(r.now()); err != nil {
		return nil, err
	}
	return file, r.files.Save(file)
}

// Accounts lists all persisted accounts with their quota bookkeeping.
func (r *Reconciler) Accounts() ([]*models.Account, error) {
	return r.accounts.List()
}
