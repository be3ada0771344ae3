// Package artifact maps job identifiers to namespaced directories of typed
// artifacts. It is the single source of truth for artifact addressing; no
// other component derives paths from a job id.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Kind names a typed artifact within a job directory.
type Kind string

const (
	KindMetadata Kind = "metadata"
	KindScrape   Kind = "scrape"
	KindSummary  Kind = "summary"
	KindResult   Kind = "result"
)

// ErrNotExist is returned by Get when the requested artifact is absent.
var ErrNotExist = errors.New("artifact: does not exist")

var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// Store persists job artifacts on the local filesystem. Writes go to a
// temporary file first and are renamed into place, so concurrent readers
// never observe a partially written artifact. Writes for the same job are
// serialized; distinct jobs do not contend.
type Store struct {
	basePath string

	mu      sync.Mutex
	jobLock map[string]*sync.Mutex
}

// NewStore initializes a Store rooted at basePath.
func NewStore(basePath string) (*Store, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("artifact: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: ensure base path: %w", err)
	}
	return &Store{basePath: basePath, jobLock: make(map[string]*sync.Mutex)}, nil
}

// BasePath returns the configured root directory.
func (s *Store) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Ensure creates the per-job directory tree, including the images subpath.
// It is idempotent and returns the job directory.
func (s *Store) Ensure(jobID string) (string, error) {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Join(dir, "images"), 0o755); err != nil {
		return "", fmt.Errorf("artifact: ensure job dir: %w", err)
	}
	return dir, nil
}

// Put writes a typed artifact for the job, replacing any previous content.
func (s *Store) Put(jobID string, kind Kind, data []byte) error {
	path, err := s.kindPath(jobID, kind)
	if err != nil {
		return err
	}
	return s.writeFile(jobID, path, data)
}

// Get reads a typed artifact. Absent artifacts return ErrNotExist.
func (s *Store) Get(jobID string, kind Kind) ([]byte, error) {
	path, err := s.kindPath(jobID, kind)
	if err != nil {
		return nil, err
	}
	return readFile(path)
}

// PutImage writes the image blob for a variant.
func (s *Store) PutImage(jobID, variantID string, data []byte) error {
	path, err := s.imagePath(jobID, variantID)
	if err != nil {
		return err
	}
	return s.writeFile(jobID, path, data)
}

// GetImage reads the image blob for a variant.
func (s *Store) GetImage(jobID, variantID string) ([]byte, error) {
	path, err := s.imagePath(jobID, variantID)
	if err != nil {
		return nil, err
	}
	return readFile(path)
}

// ImageExists reports whether the variant's image artifact is present.
func (s *Store) ImageExists(jobID, variantID string) bool {
	path, err := s.imagePath(jobID, variantID)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Exists reports whether a job directory has been created.
func (s *Store) Exists(jobID string) bool {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Delete removes a job's entire artifact set.
func (s *Store) Delete(jobID string) error {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// Sweep deletes per-job artifact sets whose directories are older than maxAge
// and returns the number removed.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return 0, fmt.Errorf("artifact: read base dir: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.basePath, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (s *Store) jobDir(jobID string) (string, error) {
	if !jobIDPattern.MatchString(jobID) {
		return "", fmt.Errorf("artifact: invalid job id %q", jobID)
	}
	return filepath.Join(s.basePath, jobID), nil
}

func (s *Store) kindPath(jobID string, kind Kind) (string, error) {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return "", err
	}
	switch kind {
	case KindMetadata:
		return filepath.Join(dir, "metadata.json"), nil
	case KindScrape:
		return filepath.Join(dir, "scrape.json"), nil
	case KindSummary:
		return filepath.Join(dir, "summary.json"), nil
	case KindResult:
		return filepath.Join(dir, "result.json"), nil
	default:
		return "", fmt.Errorf("artifact: unknown kind %q", kind)
	}
}

func (s *Store) imagePath(jobID, variantID string) (string, error) {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return "", err
	}
	if !jobIDPattern.MatchString(variantID) {
		return "", fmt.Errorf("artifact: invalid variant id %q", variantID)
	}
	return filepath.Join(dir, "images", variantID+".png"), nil
}

func (s *Store) lockFor(jobID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.jobLock[jobID]
	if !ok {
		l = &sync.Mutex{}
		s.jobLock[jobID] = l
	}
	return l
}

// writeFile writes the full payload to a temp file and renames it into place.
func (s *Store) writeFile(jobID, path string, data []byte) error {
	l := s.lockFor(jobID)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("artifact: ensure directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("artifact: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("artifact: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("artifact: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("artifact: rename into place: %w", err)
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("artifact: read file: %w", err)
	}
	return data, nil
}
