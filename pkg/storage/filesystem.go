package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MediaStore persists uploaded answer files on disk under a base directory.
// Stored references are paths relative to the base dir, resolvable to a URL
// by the serving layer.
type MediaStore struct {
	baseDir string
}

// NewMediaStore ensures the base directory exists and returns a handle.
func NewMediaStore(baseDir string) (*MediaStore, error) {
	if baseDir == "" {
		baseDir = "./media"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &MediaStore{baseDir: baseDir}, nil
}

// Key builds a dated, collision-free relative path for an uploaded file.
func (s *MediaStore) Key(filename string) string {
	now := time.Now().UTC()
	base := filepath.Base(filename)
	base = strings.ReplaceAll(base, " ", "_")
	return filepath.Join("uploads", now.Format("2006/01/02"), uuid.NewString()+"_"+base)
}

// SaveStream copies the reader into the file at the given relative key and
// returns the key as the stored reference.
func (s *MediaStore) SaveStream(key string, r io.Reader) (string, error) {
	path := s.resolve(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare media directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return "", fmt.Errorf("write media stream: %w", err)
	}
	return key, nil
}

// Open returns a read-only handle for the stored file.
func (s *MediaStore) Open(key string) (*os.File, error) {
	file, err := os.Open(s.resolve(key))
	if err != nil {
		return nil, fmt.Errorf("open media file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present.
func (s *MediaStore) Delete(key string) error {
	if err := os.Remove(s.resolve(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete media file: %w", err)
	}
	return nil
}

// SweepExcept removes every stored file whose key is not in the referenced
// set and returns the removed keys. Schema replacement orphans file answers;
// this is the reconciliation sweep run out of band.
func (s *MediaStore) SweepExcept(referenced map[string]struct{}) ([]string, error) {
	removed := make([]string, 0)
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		if _, ok := referenced[rel]; ok {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		removed = append(removed, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sweep media files: %w", err)
	}
	return removed, nil
}

// BaseDir exposes the root directory for static serving.
func (s *MediaStore) BaseDir() string {
	return s.baseDir
}

func (s *MediaStore) resolve(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(s.baseDir, key)
}
