package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/timsvoice/specimin/internal/models"
)

// entryExt is the suffix of every cache entry: zstd-compressed JSON.
const entryExt = ".json.zst"

// Cache stores execution results keyed by everything that can change the
// outcome of running a case. A Cache with an empty dir is disabled.
type Cache struct {
	dir string
	mu  sync.Mutex

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New creates a new cache instance with the specified directory
func New(dir string) *Cache {
	c := &Cache{dir: dir}
	if dir == "" {
		return c
	}

	// nil writer/reader: both are only used through EncodeAll/DecodeAll
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("creating zstd encoder: %v", err))
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("creating zstd decoder: %v", err))
	}

	c.encoder = enc
	c.decoder = dec
	return c
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// KeyOptions are the executor settings that participate in the cache key.
type KeyOptions struct {
	ImportName    string
	RunnerCommand []string
	Timeout       time.Duration
	SyntaxChecker string
}

// CacheKey generates a unique cache key for one execution of tc.
// The key is based on:
// - the case identity
// - implementation and test sources, including whether each exists
// - the import name, runner argv, timeout and syntax checker
func CacheKey(tc *models.TestCase, opts KeyOptions) (string, error) {
	h := sha256.New()

	if err := writeString(h, tc.ID); err != nil {
		return "", err
	}
	if err := writeBlob(h, tc.Implementation); err != nil {
		return "", err
	}
	if err := writeBlob(h, tc.Tests); err != nil {
		return "", err
	}
	if err := writeString(h, opts.ImportName); err != nil {
		return "", err
	}

	argvJSON, err := json.Marshal(opts.RunnerCommand)
	if err != nil {
		return "", fmt.Errorf("marshaling runner command: %w", err)
	}
	if err := writeString(h, string(argvJSON)); err != nil {
		return "", err
	}
	if err := writeInt(h, int64(opts.Timeout)); err != nil {
		return "", err
	}
	if err := writeString(h, opts.SyntaxChecker); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get retrieves a cached execution result if it exists
func (c *Cache) Get(key string) (*models.ExecutionResult, bool) {
	if c.dir == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.cachePath(key))
	if err != nil {
		// Cache miss
		return nil, false
	}

	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		// Corrupt entry, treat as miss
		return nil, false
	}

	var result models.ExecutionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false
	}

	return &result, true
}

// Put stores an execution result in the cache
func (c *Cache) Put(key string, result *models.ExecutionResult) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	if err := os.WriteFile(c.cachePath(key), c.encoder.EncodeAll(data, nil), 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return nil
}

// Clear removes all cached results
func (c *Cache) Clear() error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	// Safety check: only delete a directory that holds nothing but cache entries
	for _, entry := range entries {
		if entry.IsDir() {
			return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
		}
		if !strings.HasSuffix(entry.Name(), entryExt) {
			return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	if c.dir == "" {
		return 0
	}

	matches, err := filepath.Glob(filepath.Join(c.dir, "*"+entryExt))
	if err != nil {
		return 0
	}
	return len(matches)
}

// cachePath returns the file path for a cache key
func (c *Cache) cachePath(key string) string {
	return filepath.Join(c.dir, key+entryExt)
}

// Helper functions

func writeString(w io.Writer, s string) error {
	// Write string with null byte delimiter to prevent hash collisions
	_, err := w.Write([]byte(s + "\x00"))
	return err
}

func writeInt(w io.Writer, i int64) error {
	_, err := fmt.Fprintf(w, "%d\x00", i)
	return err
}

// writeBlob length-prefixes b, distinguishing a missing file (nil) from an empty one.
func writeBlob(w io.Writer, b []byte) error {
	if b == nil {
		return writeInt(w, -1)
	}
	if err := writeInt(w, int64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}
