package baseline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/timsvoice/specimin/internal/utils"
)

// FileStore keeps the log in a local JSON file, gzip-compressed when the path
// ends in ".gz". Saves replace the file atomically.
type FileStore struct {
	path string
}

// NewFileStore creates a [FileStore] at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) compressed() bool { return strings.HasSuffix(s.path, ".gz") }

// Load implements [Store].
func (s *FileStore) Load(context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !s.compressed() || len(data) == 0 {
		return data, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close() //nolint:errcheck

	return io.ReadAll(zr)
}

// Save implements [Store].
func (s *FileStore) Save(_ context.Context, data []byte) error {
	if s.compressed() {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		data = buf.Bytes()
	}
	return utils.WriteFileAtomic(s.path, data, 0o644)
}

// Close implements [Store].
func (s *FileStore) Close() error { return nil }

func (s *FileStore) String() string { return "file:" + s.path }

// MemoryStore keeps the log in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements [Store].
func (s *MemoryStore) Load(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.data), nil
}

// Save implements [Store].
func (s *MemoryStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = bytes.Clone(data)
	return nil
}

// Close implements [Store].
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) String() string { return "memory" }
