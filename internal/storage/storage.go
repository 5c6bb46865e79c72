// Package storage implements the file storage collaborator for document
// uploads.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("file not found")

// Key addresses one upload. Every upload gets a fresh object so a replaced
// document never overwrites the file an earlier review looked at.
type Key struct {
	ProcessID uuid.UUID
	SlotID    uuid.UUID
	UploadID  uuid.UUID
	FileName  string
}

func (k Key) ObjectName() string {
	name := sanitizeFileName(k.FileName)
	if name == "" {
		name = "document"
	}
	return path.Join("processes", k.ProcessID.String(), "slots", k.SlotID.String(), k.UploadID.String()+"-"+name)
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_', r == '.':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-.")
}

// MemoryStore keeps files in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, key Key, r io.Reader, size int64, contentType string) (string, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return "", err
	}
	if size >= 0 && n != size {
		return "", fmt.Errorf("short upload: got %d of %d bytes", n, size)
	}
	ref := key.ObjectName()
	s.mu.Lock()
	s.files[ref] = buf.Bytes()
	s.mu.Unlock()
	return ref, nil
}

func (s *MemoryStore) Get(ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (s *MemoryStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[ref]; !ok {
		return ErrNotFound
	}
	delete(s.files, ref)
	return nil
}
