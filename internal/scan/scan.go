// Package scan discovers local media files and computes their raw
// attributes. It is the filesystem collaborator at the engine boundary: the
// engine itself never touches the filesystem for discovery.
package scan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discovery is one found media file with its raw attributes.
type Discovery struct {
	Path            string
	SizeBytes       int64
	DurationSeconds int
	Fingerprint     string
}

// Scanner walks directories for media files by extension.
type Scanner struct {
	Extensions []string
	// Duration probes a file's playback length in seconds. Optional; left
	// nil the duration stays zero until an external probe fills it in.
	Duration func(path string) int
}

// DefaultExtensions are the media containers ingested when no configuration
// overrides them.
var DefaultExtensions = []string{".mp4", ".mov", ".mkv", ".avi", ".webm"}

// NewScanner creates a Scanner for the given extensions, falling back to
// [DefaultExtensions].
func NewScanner(extensions []string) *Scanner {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		normalized[i] = strings.ToLower(ext)
	}
	return &Scanner{Extensions: normalized}
}

// Directory walks root and returns every matching media file with size and
// content fingerprint, sorted by path for deterministic ingest order.
func (s *Scanner) Directory(root string) ([]Discovery, error) {
	var found []Discovery

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !s.matches(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		fingerprint, err := Fingerprint(path)
		if err != nil {
			return err
		}

		disc := Discovery{
			Path:        path,
			SizeBytes:   info.Size(),
			Fingerprint: fingerprint,
		}
		if s.Duration != nil {
			disc.DurationSeconds = s.Duration(path)
		}
		found = append(found, disc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return found, nil
}

// Probe re-reads the raw attributes of a single known file.
func (s *Scanner) Probe(path string) (Discovery, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Discovery{}, err
	}
	fingerprint, err := Fingerprint(path)
	if err != nil {
		return Discovery{}, err
	}
	disc := Discovery{Path: path, SizeBytes: info.Size(), Fingerprint: fingerprint}
	if s.Duration != nil {
		disc.DurationSeconds = s.Duration(path)
	}
	return disc, nil
}

func (s *Scanner) matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range s.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// Fingerprint hashes a file's bytes with SHA-256, identifying content
// independent of filesystem timestamps.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to fingerprint %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
