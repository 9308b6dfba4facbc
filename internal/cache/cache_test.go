package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timsvoice/specimin/internal/models"
)

func testCase() *models.TestCase {
	return &models.TestCase{
		ID:             "case-001",
		Implementation: []byte("def add(a, b):\n    return a + b\n"),
		Tests:          []byte("from implementation import add\n"),
	}
}

func keyOptions() KeyOptions {
	return KeyOptions{
		ImportName:    "implementation",
		RunnerCommand: []string{"python3", "-m", "pytest", "{test_file}"},
		Timeout:       30 * time.Second,
		SyntaxChecker: "treesitter",
	}
}

func TestCacheKey(t *testing.T) {
	key1, err := CacheKey(testCase(), keyOptions())
	require.NoError(t, err)
	assert.Len(t, key1, 64) // SHA256 hex is 64 chars

	// Same inputs should produce same key
	key2, err := CacheKey(testCase(), keyOptions())
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
}

func TestCacheKey_InputsChangeKey(t *testing.T) {
	base, err := CacheKey(testCase(), keyOptions())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(tc *models.TestCase, opts *KeyOptions)
	}{
		{name: "case id", mutate: func(tc *models.TestCase, _ *KeyOptions) { tc.ID = "case-002" }},
		{name: "implementation", mutate: func(tc *models.TestCase, _ *KeyOptions) { tc.Implementation = []byte("def add(a, b): return 0\n") }},
		{name: "tests", mutate: func(tc *models.TestCase, _ *KeyOptions) { tc.Tests = append(tc.Tests, '\n') }},
		{name: "missing implementation", mutate: func(tc *models.TestCase, _ *KeyOptions) { tc.Implementation = nil }},
		{name: "import name", mutate: func(_ *models.TestCase, opts *KeyOptions) { opts.ImportName = "solution" }},
		{name: "runner", mutate: func(_ *models.TestCase, opts *KeyOptions) { opts.RunnerCommand = []string{"python3", "{test_file}"} }},
		{name: "timeout", mutate: func(_ *models.TestCase, opts *KeyOptions) { opts.Timeout = time.Minute }},
		{name: "syntax checker", mutate: func(_ *models.TestCase, opts *KeyOptions) { opts.SyntaxChecker = "python" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, opts := testCase(), keyOptions()
			tt.mutate(tc, &opts)

			key, err := CacheKey(tc, opts)
			require.NoError(t, err)
			assert.NotEqual(t, base, key)
		})
	}
}

func TestCacheKey_EmptyVersusMissing(t *testing.T) {
	tc := testCase()
	tc.Tests = []byte{}
	empty, err := CacheKey(tc, keyOptions())
	require.NoError(t, err)

	tc.Tests = nil
	missing, err := CacheKey(tc, keyOptions())
	require.NoError(t, err)

	assert.NotEqual(t, empty, missing)
}

func TestCacheKey_NoHashCollision(t *testing.T) {
	// Without length prefixes these two would hash the same byte stream.
	a := &models.TestCase{ID: "x", Implementation: []byte("ab"), Tests: []byte("c")}
	b := &models.TestCase{ID: "x", Implementation: []byte("a"), Tests: []byte("bc")}

	keyA, err := CacheKey(a, keyOptions())
	require.NoError(t, err)
	keyB, err := CacheKey(b, keyOptions())
	require.NoError(t, err)

	assert.NotEqual(t, keyA, keyB, "field delimiters should prevent hash collisions")
}

func TestCache_GetPut(t *testing.T) {
	c := New(t.TempDir())

	_, found := c.Get("missing")
	assert.False(t, found)

	detail := "AssertionError: assert 3 == 4"
	result := &models.ExecutionResult{
		TestID:      "case-001",
		Passed:      false,
		ErrorKind:   models.ErrorKindAssertionFailure,
		ErrorDetail: &detail,
		Stderr:      detail,
	}
	require.NoError(t, c.Put("key1", result))
	assert.Equal(t, 1, c.Len())

	got, found := c.Get("key1")
	require.True(t, found)
	assert.Equal(t, result, got)
}

func TestCache_EntriesAreCompressed(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	stdout := ""
	for i := 0; i < 200; i++ {
		stdout += "PASSED test_implementation.py::test_add\n"
	}
	require.NoError(t, c.Put("key1", &models.ExecutionResult{TestID: "c", Passed: true, Stdout: stdout}))

	info, err := os.Stat(filepath.Join(dir, "key1"+entryExt))
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(stdout)/4))
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad"+entryExt), []byte("not zstd"), 0o644))

	_, found := c.Get("bad")
	assert.False(t, found)
}

func TestCache_EmptyDir(t *testing.T) {
	c := New("")

	require.NoError(t, c.Put("key", &models.ExecutionResult{TestID: "x"}))
	_, found := c.Get("key")
	assert.False(t, found)
	assert.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Len())
}

func TestCache_Clear_SafetyChecks(t *testing.T) {
	result := &models.ExecutionResult{TestID: "test", Passed: true}

	t.Run("refuses to clear directory with subdirectories", func(t *testing.T) {
		cacheDir := t.TempDir()
		c := New(cacheDir)
		require.NoError(t, c.Put("key1", result))
		require.NoError(t, os.Mkdir(filepath.Join(cacheDir, "subdir"), 0755))

		err := c.Clear()
		assert.ErrorContains(t, err, "subdirectories")
		assert.DirExists(t, cacheDir)
	})

	t.Run("refuses to clear directory with non-cache files", func(t *testing.T) {
		cacheDir := t.TempDir()
		c := New(cacheDir)
		require.NoError(t, c.Put("key1", result))
		require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "README.txt"), []byte("test"), 0644))

		err := c.Clear()
		assert.ErrorContains(t, err, "non-cache files")
		assert.DirExists(t, cacheDir)
	})

	t.Run("successfully clears valid cache directory", func(t *testing.T) {
		cacheDir := t.TempDir()
		c := New(cacheDir)
		require.NoError(t, c.Put("key1", result))
		require.NoError(t, c.Put("key2", result))

		assert.NoError(t, c.Clear())
		assert.NoDirExists(t, cacheDir)
	})

	t.Run("missing directory is a no-op", func(t *testing.T) {
		c := New(filepath.Join(t.TempDir(), "never-created"))
		assert.NoError(t, c.Clear())
	})
}

func TestCache_ConcurrentOperations(t *testing.T) {
	cacheDir := t.TempDir()
	c := New(cacheDir)

	numGoroutines := 10
	numOperations := 20

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				key := fmt.Sprintf("key-%d-%d", id, j)
				assert.NoError(t, c.Put(key, &models.ExecutionResult{TestID: key, Passed: true}))

				got, found := c.Get(key)
				if assert.True(t, found) {
					assert.Equal(t, key, got.TestID)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, numGoroutines*numOperations, c.Len())
}
