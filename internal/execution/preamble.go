package execution

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// importPreamble registers the implementation file as a module named importName,
// so generated tests can `import <importName>` or `from <importName> import ...`
// no matter what the file is called on disk.
func importPreamble(importName, implementationPath, caseDir string) string {
	return fmt.Sprintf(`# --- specimin import preamble ---
import importlib.util as _specimin_util
import sys as _specimin_sys
_specimin_sys.path.insert(0, %[3]s)
_specimin_spec = _specimin_util.spec_from_file_location(%[1]s, %[2]s)
_specimin_module = _specimin_util.module_from_spec(_specimin_spec)
_specimin_sys.modules[%[1]s] = _specimin_module
_specimin_spec.loader.exec_module(_specimin_module)
# --- end preamble ---
`, pyString(importName), pyString(implementationPath), pyString(caseDir))
}

// pyString quotes s as a Python string literal. Go's escapes are a subset of
// Python's, so strconv.Quote output is valid Python.
func pyString(s string) string {
	return strconv.Quote(s)
}

// writeSplicedTestFile writes the preamble followed by the test source to a new,
// uniquely named file in dir. Leading `from __future__` imports stay above the
// preamble, since Python rejects them anywhere else. The caller owns removal of
// the returned path.
func writeSplicedTestFile(dir, preamble string, tests []byte) (string, error) {
	f, err := os.CreateTemp(dir, "test_specimin_*.py")
	if err != nil {
		return "", fmt.Errorf("creating spliced test file: %w", err)
	}

	path := f.Name()
	head, body := splitFutureImports(tests)

	if _, err := f.Write(head); err != nil {
		f.Close()       //nolint:errcheck
		os.Remove(path) //nolint:errcheck
		return "", fmt.Errorf("writing spliced test file: %w", err)
	}
	if _, err := f.WriteString(preamble); err != nil {
		f.Close()       //nolint:errcheck
		os.Remove(path) //nolint:errcheck
		return "", fmt.Errorf("writing spliced test file: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()       //nolint:errcheck
		os.Remove(path) //nolint:errcheck
		return "", fmt.Errorf("writing spliced test file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path) //nolint:errcheck
		return "", fmt.Errorf("closing spliced test file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		os.Remove(path) //nolint:errcheck
		return "", err
	}
	return abs, nil
}

// splitFutureImports returns the prefix of src that must precede any other
// statement: comments, blank lines, a docstring and `from __future__` imports.
// head is empty when src has no future imports.
func splitFutureImports(src []byte) (head, body []byte) {
	end := 0
	offset := 0
	docstringSeen := false
	lines := bytes.SplitAfter(src, []byte("\n"))

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := bytes.TrimSpace(line)

		switch {
		case len(trimmed) == 0 || trimmed[0] == '#':
			offset += len(line)

		case bytes.HasPrefix(trimmed, []byte("from __future__ import")):
			offset += len(line)
			// parenthesized lists may span lines
			if bytes.Contains(trimmed, []byte("(")) && !bytes.Contains(trimmed, []byte(")")) {
				for i+1 < len(lines) {
					i++
					offset += len(lines[i])
					if bytes.Contains(lines[i], []byte(")")) {
						break
					}
				}
			}
			end = offset

		case !docstringSeen && isStringStart(trimmed):
			docstringSeen = true
			n := docstringLines(lines[i:])
			if n == 0 {
				return nil, src
			}
			for _, l := range lines[i : i+n] {
				offset += len(l)
			}
			i += n - 1

		default:
			return src[:end], src[end:]
		}
	}
	return src[:end], src[end:]
}

func isStringStart(line []byte) bool {
	line = bytes.TrimLeft(line, "rRuUbB")
	return len(line) > 0 && (line[0] == '"' || line[0] == '\'')
}

// docstringLines counts the lines the string literal opening lines[0] spans,
// or returns 0 when it never closes.
func docstringLines(lines [][]byte) int {
	first := bytes.TrimLeft(bytes.TrimSpace(lines[0]), "rRuUbB")
	for _, quote := range [][]byte{[]byte(`"""`), []byte("'''")} {
		if !bytes.HasPrefix(first, quote) {
			continue
		}
		if bytes.Contains(first[len(quote):], quote) {
			return 1
		}
		for n := 1; n < len(lines); n++ {
			if bytes.Contains(lines[n], quote) {
				return n + 1
			}
		}
		return 0
	}
	return 1
}
