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

	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/projectconfig"
	"github.com/timsvoice/specimin/internal/utils"
)

// processWaitDelay bounds how long Wait blocks on output pipes after the
// runner has been killed.
const processWaitDelay = 2 * time.Second

// Runner command placeholders.
const (
	PlaceholderTestFile       = "{test_file}"
	PlaceholderCaseDir        = "{case_dir}"
	PlaceholderImplementation = "{implementation}"
)

// Options configures an [Executor].
type Options struct {
	// RunnerCommand is the argv used to run the spliced test file. If it does not
	// contain {test_file}, the path is appended.
	RunnerCommand []string
	// Timeout is the hard wall-clock limit for one run.
	Timeout time.Duration
	// ImportName is the module name the tests import the implementation as.
	ImportName string
	// Checker validates implementation syntax before anything is executed.
	Checker SyntaxChecker
	// TempDir holds spliced test files. Empty means the case directory.
	TempDir string
}

// OptionsFromConfig builds executor options from project configuration.
func OptionsFromConfig(cfg *projectconfig.ProjectConfig) (Options, error) {
	pythonBin := "python3"
	if len(cfg.Execution.RunnerCommand) > 0 && strings.Contains(cfg.Execution.RunnerCommand[0], "python") {
		pythonBin = cfg.Execution.RunnerCommand[0]
	}

	checker, err := NewSyntaxChecker(cfg.Execution.SyntaxChecker, pythonBin)
	if err != nil {
		return Options{}, err
	}

	return Options{
		RunnerCommand: cfg.Execution.RunnerCommand,
		Timeout:       time.Duration(cfg.Execution.TimeoutSeconds) * time.Second,
		ImportName:    cfg.Layout.ImportName,
		Checker:       checker,
	}, nil
}

// Executor runs one test case at a time in a child process. It holds no
// mutable state, so a single Executor may be shared across goroutines.
type Executor struct {
	opts Options
}

// New creates an [Executor], filling unset options with defaults.
func New(opts Options) *Executor {
	if len(opts.RunnerCommand) == 0 {
		opts.RunnerCommand = projectconfig.DefaultRunnerCommand
	}
	if opts.Timeout <= 0 {
		opts.Timeout = projectconfig.DefaultTimeoutSeconds * time.Second
	}
	if opts.ImportName == "" {
		opts.ImportName = projectconfig.DefaultImportName
	}
	if opts.Checker == nil {
		opts.Checker = defaultChecker("python3")
	}
	return &Executor{opts: opts}
}

// Options returns the effective options, after defaults.
func (e *Executor) Options() Options {
	return e.opts
}

// TimeoutMessage is the error detail recorded when a run exceeds its limit.
func (e *Executor) TimeoutMessage() string {
	return fmt.Sprintf("Test execution timed out after %d seconds", int(e.opts.Timeout.Seconds()))
}

// Execute runs tc and returns its classified result. It never returns nil and
// never panics: every failure mode is converted into an error kind.
func (e *Executor) Execute(ctx context.Context, tc *models.TestCase) (result *models.ExecutionResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("test execution panicked", "test_id", tc.ID, "panic", r)
			result = failed(tc.ID, models.ErrorKindExecutionError, fmt.Sprintf("%v", r))
		}
		result.DurationMs = time.Since(start).Milliseconds()
	}()

	if tc.Implementation == nil {
		return failed(tc.ID, models.ErrorKindMissingFile, fmt.Sprintf("Implementation file not found: %s", tc.ImplementationPath))
	}
	if tc.Tests == nil {
		return failed(tc.ID, models.ErrorKindMissingFile, fmt.Sprintf("Test file not found: %s", tc.TestPath))
	}

	if err := e.opts.Checker.Check(ctx, tc.ImplementationPath, tc.Implementation); err != nil {
		var syntaxErr *SyntaxError
		if errors.As(err, &syntaxErr) {
			return failed(tc.ID, models.ErrorKindSyntaxError, syntaxErr.Message)
		}
		return failed(tc.ID, models.ErrorKindExecutionError, err.Error())
	}

	return e.run(ctx, tc)
}

func (e *Executor) run(ctx context.Context, tc *models.TestCase) *models.ExecutionResult {
	tempDir := e.opts.TempDir
	if tempDir == "" {
		tempDir = tc.CaseDir
	}

	testFile, err := writeSplicedTestFile(tempDir, importPreamble(e.opts.ImportName, tc.ImplementationPath, tc.CaseDir), tc.Tests)
	if err != nil {
		return failed(tc.ID, models.ErrorKindExecutionError, err.Error())
	}
	defer removeSplicedTestFile(testFile)

	argv := e.expandCommand(testFile, tc)

	timeoutCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, argv[0], argv[1:]...)
	cmd.Dir = tc.CaseDir
	configureProcess(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("running test case", "test_id", tc.ID, "argv", argv)

	runErr := cmd.Run()

	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return failed(tc.ID, models.ErrorKindTimeout, e.TimeoutMessage())
	}

	if runErr == nil {
		return &models.ExecutionResult{
			TestID: tc.ID,
			Passed: true,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
		}
	}

	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) || ctx.Err() != nil {
		res := failed(tc.ID, models.ErrorKindExecutionError, runErr.Error())
		res.Stdout = stdout.String()
		res.Stderr = stderr.String()
		return res
	}

	stderrText := stderr.String()
	res := failed(tc.ID, ClassifyFailure(stderrText), failureDetail(stderrText, stdout.String(), exitErr.ExitCode()))
	res.Stdout = stdout.String()
	res.Stderr = stderrText
	return res
}

func (e *Executor) expandCommand(testFile string, tc *models.TestCase) []string {
	replacer := strings.NewReplacer(
		PlaceholderTestFile, testFile,
		PlaceholderCaseDir, tc.CaseDir,
		PlaceholderImplementation, tc.ImplementationPath,
	)

	argv := make([]string, 0, len(e.opts.RunnerCommand)+1)
	hasTestFile := false
	for _, arg := range e.opts.RunnerCommand {
		if strings.Contains(arg, PlaceholderTestFile) {
			hasTestFile = true
		}
		argv = append(argv, replacer.Replace(arg))
	}
	if !hasTestFile {
		argv = append(argv, testFile)
	}
	return argv
}

func removeSplicedTestFile(path string) {
	if err := utils.RemoveIfExists(path); err != nil {
		slog.Warn("failed to remove spliced test file", "path", path, "error", err)
	}
}

func failed(testID string, kind models.ErrorKind, detail string) *models.ExecutionResult {
	return &models.ExecutionResult{
		TestID:      testID,
		Passed:      false,
		ErrorKind:   kind,
		ErrorDetail: utils.Ptr(detail),
	}
}
