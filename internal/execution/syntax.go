package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// SyntaxChecker verifies that source code parses, without executing any of it.
// Check returns a *SyntaxError when the source is invalid, and any other error
// when the checker itself could not run.
type SyntaxChecker interface {
	Check(ctx context.Context, filename string, source []byte) error
}

// SyntaxError describes why source failed to parse. Message is the parser's own text.
type SyntaxError struct {
	Message string
}

func (e *SyntaxError) Error() string { return e.Message }

// NewSyntaxChecker returns the checker registered under kind: "python",
// "treesitter" or "none". Empty means "python".
func NewSyntaxChecker(kind, pythonBin string) (SyntaxChecker, error) {
	switch kind {
	case "", "python":
		return defaultChecker(pythonBin), nil
	case "treesitter":
		return TreeSitterChecker{}, nil
	case "none":
		return noopChecker{}, nil
	default:
		return nil, fmt.Errorf("'%s' is not a valid syntax checker", kind)
	}
}

// defaultChecker prefers the interpreter's own parser. The tree-sitter grammar
// accepts some sources Python 3 rejects, so it is only used when pythonBin
// cannot be found.
func defaultChecker(pythonBin string) SyntaxChecker {
	if pythonBin == "" {
		pythonBin = "python3"
	}
	if _, err := exec.LookPath(pythonBin); err != nil {
		slog.Warn("python interpreter not found, falling back to tree-sitter syntax check", "python", pythonBin, "error", err)
		return TreeSitterChecker{}
	}
	return &PythonChecker{Bin: pythonBin}
}

// TreeSitterChecker parses Python in-process with tree-sitter. Its grammar is
// looser than Python 3: unindented blocks and Python 2 statements pass.
type TreeSitterChecker struct{}

// Check implements [SyntaxChecker].
func (TreeSitterChecker) Check(ctx context.Context, filename string, source []byte) error {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", filename, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}

	node := firstErrorNode(root, 0)
	if node == nil {
		// HasError without a reachable ERROR/MISSING node; report the whole file.
		return &SyntaxError{Message: fmt.Sprintf("invalid syntax (%s)", filename)}
	}

	pos := node.StartPoint()
	var what string
	if node.IsMissing() {
		what = fmt.Sprintf("missing '%s'", node.Type())
	} else {
		what = fmt.Sprintf("unexpected '%s'", truncate(strings.TrimSpace(node.Content(source)), 40))
	}

	return &SyntaxError{
		Message: fmt.Sprintf("invalid syntax (%s, line %d, column %d): %s", filename, pos.Row+1, pos.Column+1, what),
	}
}

// firstErrorNode returns the first ERROR or MISSING node in document order.
func firstErrorNode(node *sitter.Node, depth int) *sitter.Node {
	if depth > 1000 {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if found := firstErrorNode(node.Child(i), depth+1); found != nil {
			return found
		}
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// pythonSyntaxScript compiles stdin with ast.parse, which never executes the code.
// Exit code 3 means the source is invalid and stderr holds the exception the
// interpreter raised, e.g. "IndentationError: expected an indented block ...".
const pythonSyntaxScript = `import ast, sys
src = sys.stdin.buffer.read()
try:
    ast.parse(src, filename=sys.argv[1])
except (SyntaxError, ValueError) as e:
    sys.stderr.write(type(e).__name__ + ": " + str(e))
    sys.exit(3)
`

const pythonSyntaxExitCode = 3

// PythonChecker asks the interpreter's own parser, keeping its message verbatim.
type PythonChecker struct {
	// Bin is the interpreter, defaulting to python3.
	Bin string
	// Timeout bounds the check, defaulting to 10 seconds.
	Timeout time.Duration
}

// Check implements [SyntaxChecker].
func (p *PythonChecker) Check(ctx context.Context, filename string, source []byte) error {
	bin := p.Bin
	if bin == "" {
		bin = "python3"
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, "-c", pythonSyntaxScript, filename)
	cmd.Stdin = bytes.NewReader(source)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == pythonSyntaxExitCode {
		return &SyntaxError{Message: strings.TrimSpace(stderr.String())}
	}

	return fmt.Errorf("running python syntax check: %w", err)
}

type noopChecker struct{}

func (noopChecker) Check(context.Context, string, []byte) error { return nil }
