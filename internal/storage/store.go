// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

// Package storage persists blobs as checksummed, gzip-compressed gob files.
//
// It is shared by the trained-artifact store and the dataset store. Each
// file carries its metadata next to the compressed payload, so integrity can
// be verified on every load and listings do not need to decode payloads.
//
// # Storage Format
//
// A file is a single gob-encoded record holding Metadata and the gzip
// compressed gob encoding of the payload. The SHA-256 checksum covers the
// uncompressed payload bytes.
//
// # Thread Safety
//
// Store operations are safe for concurrent use within one process. Writes go
// through a temporary file and an atomic rename, so readers in other
// processes never observe a partially written file.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Extension is the suffix of every file written by the store.
const Extension = ".gob.gz"

// ErrNotFound is returned when a blob does not exist.
var ErrNotFound = errors.New("blob not found")

// ErrChecksumMismatch is returned when a blob fails integrity verification.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Metadata describes a stored blob.
type Metadata struct {
	// Name is the logical name of the blob (relative path without extension).
	Name string `json:"name"`

	// Kind is a free-form type tag, e.g. "trained_recommender" or "sparse_matrix".
	Kind string `json:"kind"`

	// SavedAt is when the blob was written.
	SavedAt time.Time `json:"saved_at"`

	// Checksum is the SHA-256 checksum of the uncompressed payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size in bytes.
	SizeBytes int64 `json:"size_bytes"`

	// Attributes carries caller-defined labels.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// storedFile is the on-disk format.
type storedFile struct {
	Metadata       Metadata
	CompressedData []byte
}

// Store manages blobs below a base directory.
type Store struct {
	baseDir string
	mu      sync.RWMutex
}

// NewStore creates a store rooted at baseDir, creating the directory if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for experiment data
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// BaseDir returns the root directory of the store.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Path returns the absolute file path of a blob name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(name)+Extension)
}

// Save encodes data and writes it under name.
//
//nolint:gocritic // meta passed by value is acceptable for this write operation
func (s *Store) Save(ctx context.Context, name string, data interface{}, meta Metadata) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	rawData := buf.Bytes()

	hash := sha256.Sum256(rawData)
	meta.Checksum = hex.EncodeToString(hash[:])

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(rawData); err != nil {
		return nil, fmt.Errorf("compress %s: %w", name, err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}

	meta.Name = name
	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil { //nolint:gosec // 0750 is acceptable for experiment data
		return nil, fmt.Errorf("create directory for %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() //nolint:errcheck // no-op after a successful rename

	if err := gob.NewEncoder(tmp).Encode(storedFile{Metadata: meta, CompressedData: compressed.Bytes()}); err != nil {
		_ = tmp.Close() //nolint:errcheck // the encode error is reported instead
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return nil, fmt.Errorf("rename %s: %w", name, err)
	}

	return &meta, nil
}

// Load reads the blob stored under name into target.
// Returns ErrNotFound when the blob does not exist.
func (s *Store) Load(ctx context.Context, name string, target interface{}) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sf, err := s.readFile(name)
	if err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", name, err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	rawData, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(rawData)
	if checksum := hex.EncodeToString(hash[:]); checksum != sf.Metadata.Checksum {
		return nil, fmt.Errorf("%w: %s expected %s, got %s", ErrChecksumMismatch, name, sf.Metadata.Checksum, checksum)
	}

	if err := gob.NewDecoder(bytes.NewReader(rawData)).Decode(target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	return &sf.Metadata, nil
}

// Stat returns the metadata of a blob without decoding its payload.
func (s *Store) Stat(name string) (*Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sf, err := s.readFile(name)
	if err != nil {
		return nil, err
	}
	return &sf.Metadata, nil
}

// Exists reports whether a blob is stored under name.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// List returns the metadata of every blob whose name starts with prefix,
// sorted by name. Unreadable files are skipped.
func (s *Store) List(ctx context.Context, prefix string) ([]Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Metadata
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.HasSuffix(path, Extension) {
			return nil
		}

		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return nil //nolint:nilerr // skip paths outside the base directory
		}
		name := filepath.ToSlash(strings.TrimSuffix(rel, Extension))
		if !strings.HasPrefix(name, prefix) {
			return nil
		}

		sf, err := s.readFile(name)
		if err != nil {
			return nil //nolint:nilerr // unreadable files are skipped
		}
		out = append(out, sf.Metadata)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes a blob. Deleting a missing blob returns ErrNotFound.
func (s *Store) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// readFile decodes the on-disk record (must be called with mu held).
func (s *Store) readFile(name string) (*storedFile, error) {
	f, err := os.Open(s.Path(name)) //nolint:gosec // path is built from trusted identifiers
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return &sf, nil
}
