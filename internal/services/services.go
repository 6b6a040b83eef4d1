package services

import (
	"context"

	"github.com/panqplex/panqplex/internal/models"
)

// ChunkResult is the remote side's answer to one chunk send.
type ChunkResult struct {
	ConfirmedOffset int64  // highest byte offset the remote has durably received
	Done            bool   // the upload is complete
	RemoteID        string // remote-assigned identifier, set when Done on a creation session
}

// Transport is the remote upload collaborator. Every call may fail with one
// of the shared error kinds (transient, quota, credential, validation) and
// carries a bounded timeout via ctx.
type Transport interface {
	// CreateUploadSession opens a resumable session for a first upload and
	// returns its opaque token.
	CreateUploadSession(ctx context.Context, account *models.Account, metadata map[string]string, totalBytes int64) (string, error)

	// UpdateSession opens a resumable session replacing the content and
	// metadata of an already-published remote object.
	UpdateSession(ctx context.Context, account *models.Account, remoteID string, metadata map[string]string, totalBytes int64) (string, error)

	// SendChunk transmits one bounded chunk starting at offset.
	SendChunk(ctx context.Context, sessionToken string, offset int64, chunk []byte, totalBytes int64) (ChunkResult, error)

	// QueryConfirmedOffset asks the remote side how much of the session it
	// has. The remote answer is authoritative over any local bookkeeping.
	QueryConfirmedOffset(ctx context.Context, sessionToken string, totalBytes int64) (int64, error)
}

// SessionRegistrar is implemented by transports that bind an account's
// credentials to a session token. Sessions resumed from the store were
// initiated by a previous process, so the caller re-binds them before use.
type SessionRegistrar interface {
	RegisterSession(sessionToken string, account *models.Account)
}

// Credentials supplies a live bearer token for an account on demand. The
// engine treats the token as opaque and a credential-expired error as
// retryable after out-of-band re-authentication.
type Credentials interface {
	Token(ctx context.Context, account *models.Account) (string, error)
}
