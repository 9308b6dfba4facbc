package execution

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/timsvoice/specimin/internal/projectconfig"
)

func TestLoadCase(t *testing.T) {
	layout := projectconfig.New().Layout

	t.Run("all files present", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "case-001")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		writeFile(t, dir, layout.ImplementationFile, "def add(a, b):\n    return a + b\n")
		writeFile(t, dir, layout.TestFile, "from implementation import add\n")
		writeFile(t, dir, layout.CaseFile, "name: Adds numbers\ndescription: trivial\n")

		tc, err := LoadCase(dir, layout)
		require.NoError(t, err)
		require.Equal(t, "case-001", tc.ID)
		require.Equal(t, "Adds numbers", tc.Name)
		require.Equal(t, dir, tc.CaseDir)
		require.Contains(t, string(tc.Implementation), "def add")
		require.NotNil(t, tc.Tests)
	})

	t.Run("id override from case file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, layout.CaseFile, "id: custom-id\n")

		tc, err := LoadCase(dir, layout)
		require.NoError(t, err)
		require.Equal(t, "custom-id", tc.ID)
	})

	t.Run("missing files are nil", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, layout.TestFile, "")

		tc, err := LoadCase(dir, layout)
		require.NoError(t, err)
		require.Nil(t, tc.Implementation)
		require.NotNil(t, tc.Tests, "empty file is still present")
	})

	t.Run("directory does not exist", func(t *testing.T) {
		tc, err := LoadCase(filepath.Join(t.TempDir(), "nope"), layout)
		require.NoError(t, err)
		require.Equal(t, "nope", tc.ID)
		require.Nil(t, tc.Implementation)
		require.Nil(t, tc.Tests)
	})

	t.Run("malformed case file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, layout.CaseFile, "name: [unclosed\n")

		_, err := LoadCase(dir, layout)
		require.Error(t, err)
		require.Contains(t, err.Error(), layout.CaseFile)
	})
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
