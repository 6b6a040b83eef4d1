package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/panqplex/panqplex/internal/models"
	"github.com/panqplex/panqplex/internal/shared"
	"golang.org/x/oauth2"
)

// FileCredentials reads an [oauth2.Token] from the JSON file named by each
// account's credential reference, as written by the auth command. It only
// consumes tokens and reports expiry so the caller can trigger
// re-authentication.
type FileCredentials struct {
	mu     sync.Mutex
	cached map[string]*oauth2.Token
}

// NewFileCredentials creates an empty credential source.
func NewFileCredentials() *FileCredentials {
	return &FileCredentials{cached: map[string]*oauth2.Token{}}
}

// Token returns a live bearer token for the account.
func (c *FileCredentials) Token(ctx context.Context, account *models.Account) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tok := c.cached[account.ID]; tok != nil && tok.Valid() {
		return tok.AccessToken, nil
	}

	tok, err := readTokenFile(account.CredentialsRef)
	if err != nil {
		return "", err
	}
	if !tok.Valid() {
		return "", fmt.Errorf("%w: account %s, re-authenticate and retry", shared.ErrCredentialExpired, account.ID)
	}

	c.cached[account.ID] = tok
	return tok.AccessToken, nil
}

// Invalidate drops the cached token for an account, forcing the next Token
// call back to the file. Called after the transport sees a 401.
func (c *FileCredentials) Invalidate(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cached, accountID)
}

// WriteTokenFile persists a token as JSON at the account's credential
// reference, creating parent directories as needed. The file is written
// with owner-only permissions.
func WriteTokenFile(ref string, tok *oauth2.Token) error {
	if ref == "" {
		return fmt.Errorf("%w: account has no credential reference", shared.ErrCredentialExpired)
	}

	path := shared.ExpandHome(ref)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create credential directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}

func readTokenFile(ref string) (*oauth2.Token, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: account has no credential reference", shared.ErrCredentialExpired)
	}

	path := shared.ExpandHome(ref)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read credential file %s: %v", shared.ErrCredentialExpired, path, err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("%w: malformed credential file %s: %v", shared.ErrCredentialExpired, path, err)
	}
	return &tok, nil
}

// StaticCredentials serves a fixed token per account id. Test double and
// escape hatch for environments that inject tokens directly.
type StaticCredentials map[string]string

// Token returns the configured token for the account.
func (c StaticCredentials) Token(_ context.Context, account *models.Account) (string, error) {
	tok, ok := c[account.ID]
	if !ok || tok == "" {
		return "", fmt.Errorf("%w: no token for account %s", shared.ErrCredentialExpired, account.ID)
	}
	return tok, nil
}
