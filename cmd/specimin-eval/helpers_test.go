package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// newProject creates a project directory with the given .specimin.yaml contents
// (none when empty) and makes it the working directory.
func newProject(t *testing.T, config string) string {
	t.Helper()
	dir := t.TempDir()
	if config != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".specimin.yaml"), []byte(config), 0o644))
	}
	t.Chdir(dir)
	return dir
}

// shellRunner configures a runner command that ignores the test file and runs script.
func shellRunner(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("runner scripts need a POSIX shell")
	}
	return "execution:\n  runner_command: [\"sh\", \"-c\", " + quoteYAML(script) + "]\n"
}

func quoteYAML(s string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
}

// writeCase creates a case directory with an implementation and tests. An empty
// impl leaves the implementation file out.
func writeCase(t *testing.T, runDir, id, impl string) string {
	t.Helper()
	caseDir := filepath.Join(runDir, id)
	require.NoError(t, os.MkdirAll(caseDir, 0o755))
	if impl != "" {
		require.NoError(t, os.WriteFile(filepath.Join(caseDir, "implementation.py"), []byte(impl), 0o644))
	}
	tests := "from implementation import add\n\ndef test_add():\n    assert add(1, 2) == 3\n"
	require.NoError(t, os.WriteFile(filepath.Join(caseDir, "test_implementation.py"), []byte(tests), 0o644))
	return caseDir
}

const validImpl = "def add(a, b):\n    return a + b\n"
