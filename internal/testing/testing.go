// Package testing contains shared testing utilities
package testing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/panqplex/panqplex/internal/models"
	"github.com/panqplex/panqplex/internal/services"
)

// MockTransport is a scriptable in-memory implementation of
// [services.Transport]. It models the remote side of the resumable
// protocol: sessions hold confirmed bytes, and helpers inject failures at
// chosen points.
type MockTransport struct {
	mu sync.Mutex

	sessions map[string]*mockSession
	nextID   int

	// CreateErr / UpdateErr / QueryErr fail the corresponding call once set.
	CreateErr error
	UpdateErr error
	QueryErr  error

	// ChunkErrs returns an error for the nth SendChunk call (0-based); nil
	// entries and calls past the slice succeed.
	ChunkErrs []error

	// RemoteOffsets overrides the offset reported by QueryConfirmedOffset
	// per session token, simulating a remote that knows less (or more)
	// than local bookkeeping.
	RemoteOffsets map[string]int64

	chunkCalls int
	Creates    int
	Updates    int
	Queries    int
}

type mockSession struct {
	confirmed int64
	total     int64
	update    bool
	remoteID  string
}

// NewMockTransport creates an empty MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{sessions: map[string]*mockSession{}}
}

func (m *MockTransport) CreateUploadSession(_ context.Context, _ *models.Account, _ map[string]string, totalBytes int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	m.Creates++
	m.nextID++
	token := fmt.Sprintf("session-%d", m.nextID)
	m.sessions[token] = &mockSession{total: totalBytes}
	return token, nil
}

func (m *MockTransport) UpdateSession(_ context.Context, _ *models.Account, remoteID string, _ map[string]string, totalBytes int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return "", m.UpdateErr
	}
	m.Updates++
	m.nextID++
	token := fmt.Sprintf("session-%d", m.nextID)
	m.sessions[token] = &mockSession{total: totalBytes, update: true, remoteID: remoteID}
	return token, nil
}

func (m *MockTransport) SendChunk(_ context.Context, token string, offset int64, chunk []byte, totalBytes int64) (services.ChunkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := m.chunkCalls
	m.chunkCalls++
	if call < len(m.ChunkErrs) && m.ChunkErrs[call] != nil {
		return services.ChunkResult{}, m.ChunkErrs[call]
	}

	session, ok := m.sessions[token]
	if !ok {
		return services.ChunkResult{}, fmt.Errorf("unknown session %s", token)
	}

	if offset == session.confirmed {
		session.confirmed += int64(len(chunk))
	}

	if session.confirmed >= totalBytes {
		remoteID := session.remoteID
		if remoteID == "" {
			remoteID = "remote-" + token
		}
		return services.ChunkResult{ConfirmedOffset: totalBytes, Done: true, RemoteID: remoteID}, nil
	}
	return services.ChunkResult{ConfirmedOffset: session.confirmed}, nil
}

func (m *MockTransport) QueryConfirmedOffset(_ context.Context, token string, _ int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return 0, m.QueryErr
	}
	m.Queries++
	if override, ok := m.RemoteOffsets[token]; ok {
		if session, exists := m.sessions[token]; exists {
			session.confirmed = override
		} else {
			m.sessions[token] = &mockSession{confirmed: override}
		}
		return override, nil
	}
	if session, ok := m.sessions[token]; ok {
		return session.confirmed, nil
	}
	return 0, nil
}

// Confirmed reports the bytes a session holds, for assertions.
func (m *MockTransport) Confirmed(token string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[token]; ok {
		return session.confirmed
	}
	return 0
}

// Seed installs a session as if a previous process had created it.
func (m *MockTransport) Seed(token string, confirmed, total int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = &mockSession{confirmed: confirmed, total: total}
}

// MockCredentials serves a fixed token and never expires.
type MockCredentials struct{}

func (MockCredentials) Token(context.Context, *models.Account) (string, error) {
	return "test-token", nil
}

// FWriter is an io.Writer that always fails.
type FWriter struct{}

func (FWriter) Write([]byte) (int, error) {
	return 0, fmt.Errorf("write failed")
}

// WriteTempFile creates a file with the given content under t.TempDir and
// returns its path.
func WriteTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to write temp file %s: %v", name, err)
	}
	return path
}

// AssertFileExists fails the test when path does not exist.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
