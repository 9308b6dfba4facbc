// Package projectconfig provides the ProjectConfig struct and loader for
// .specimin.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/timsvoice/specimin/internal/hooks"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up by [Load].
const FileName = ".specimin.yaml"

// Default values for project configuration. These are the single source of
// truth; New() references them.
const (
	DefaultImplementationFile = "implementation.py"
	DefaultTestFile           = "test_implementation.py"
	DefaultCaseFile           = "case.yaml"
	DefaultSpecFile           = "spec.md"
	DefaultPlanFile           = "plan.md"
	DefaultResultFile         = "result.json"
	DefaultReportBaseName     = "evaluation_report"
	DefaultImportName         = "implementation"

	DefaultTimeoutSeconds = 30
	DefaultSyntaxChecker  = "python"
	DefaultWorkers        = 4

	DefaultPassThreshold       = 80.0
	DefaultRegressionThreshold = -5.0

	DefaultBaselineStore = "file"
	DefaultBaselinePath  = "baseline_history.json"

	DefaultCacheDir = ".specimin-cache"

	DefaultJudge      = "copilot"
	DefaultJudgeModel = "claude-sonnet-4.6"

	DefaultServerPort = 3000
)

// DefaultRunnerCommand runs the spliced test file. "{test_file}" is replaced by its path.
var DefaultRunnerCommand = []string{"python3", "-m", "pytest", "-q", "-p", "no:cacheprovider", "{test_file}"}

// LayoutConfig holds the file names used inside a case directory.
type LayoutConfig struct {
	ImplementationFile string `yaml:"implementation_file,omitempty" validate:"required"`
	TestFile           string `yaml:"test_file,omitempty" validate:"required"`
	CaseFile           string `yaml:"case_file,omitempty" validate:"required"`
	SpecFile           string `yaml:"spec_file,omitempty" validate:"required"`
	PlanFile           string `yaml:"plan_file,omitempty" validate:"required"`
	ResultFile         string `yaml:"result_file,omitempty" validate:"required"`
	ReportBaseName     string `yaml:"report_base_name,omitempty" validate:"required"`
	ImportName         string `yaml:"import_name,omitempty" validate:"required"`
}

// ExecutionConfig holds test-execution parameters.
type ExecutionConfig struct {
	RunnerCommand  []string `yaml:"runner_command,omitempty" validate:"min=1"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty" validate:"gt=0"`
	SyntaxChecker  string   `yaml:"syntax_checker,omitempty" validate:"oneof=python treesitter none"`
	Parallel       *bool    `yaml:"parallel,omitempty"`
	Workers        int      `yaml:"workers,omitempty" validate:"gt=0"`
}

// PolicyConfig holds the acceptance and regression thresholds.
type PolicyConfig struct {
	PassThreshold       float64 `yaml:"pass_threshold,omitempty" validate:"gte=0,lte=100"`
	RegressionThreshold float64 `yaml:"regression_threshold,omitempty" validate:"lte=0"`
}

// BaselineConfig selects the baseline store and its backend-specific options.
type BaselineConfig struct {
	Store   string         `yaml:"store,omitempty" validate:"oneof=file memory azblob s3 badger"`
	Path    string         `yaml:"path,omitempty"`
	Options map[string]any `yaml:"options,omitempty"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
}

// JudgeConfig selects the artifact-scoring judge.
type JudgeConfig struct {
	Kind    string `yaml:"kind,omitempty" validate:"oneof=copilot openai"`
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"base_url,omitempty" validate:"omitempty,url"`
	// RubricsDir holds optional <kind>.yaml rubric overrides.
	RubricsDir string `yaml:"rubrics_dir,omitempty"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Port       int    `yaml:"port,omitempty" validate:"gt=0,lt=65536"`
	ResultsDir string `yaml:"results_dir,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .specimin.yaml.
type ProjectConfig struct {
	Layout    LayoutConfig      `yaml:"layout,omitempty"`
	Execution ExecutionConfig   `yaml:"execution,omitempty"`
	Policy    PolicyConfig      `yaml:"policy,omitempty"`
	Baseline  BaselineConfig    `yaml:"baseline,omitempty"`
	Cache     CacheConfig       `yaml:"cache,omitempty"`
	Judge     JudgeConfig       `yaml:"judge,omitempty"`
	Server    ServerConfig      `yaml:"server,omitempty"`
	Hooks     hooks.HooksConfig `yaml:"hooks,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Layout: LayoutConfig{
			ImplementationFile: DefaultImplementationFile,
			TestFile:           DefaultTestFile,
			CaseFile:           DefaultCaseFile,
			SpecFile:           DefaultSpecFile,
			PlanFile:           DefaultPlanFile,
			ResultFile:         DefaultResultFile,
			ReportBaseName:     DefaultReportBaseName,
			ImportName:         DefaultImportName,
		},
		Execution: ExecutionConfig{
			RunnerCommand:  append([]string(nil), DefaultRunnerCommand...),
			TimeoutSeconds: DefaultTimeoutSeconds,
			SyntaxChecker:  DefaultSyntaxChecker,
			Parallel:       boolPtr(false),
			Workers:        DefaultWorkers,
		},
		Policy: PolicyConfig{
			PassThreshold:       DefaultPassThreshold,
			RegressionThreshold: DefaultRegressionThreshold,
		},
		Baseline: BaselineConfig{
			Store: DefaultBaselineStore,
			Path:  DefaultBaselinePath,
		},
		Cache: CacheConfig{
			Enabled: boolPtr(false),
			Dir:     DefaultCacheDir,
		},
		Judge: JudgeConfig{
			Kind:  DefaultJudge,
			Model: DefaultJudgeModel,
		},
		Server: ServerConfig{
			Port:       DefaultServerPort,
			ResultsDir: ".",
		},
	}
}

// Load finds .specimin.yaml by walking up from startDir (max 10 levels),
// unmarshals it, fills in missing fields with defaults and validates the result.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	mergeConfig(cfg, &fileCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	return cfg, nil
}

// Validate checks field constraints declared in the struct tags.
func (c *ProjectConfig) Validate() error {
	return validator.New().Struct(c)
}

// findConfigFile walks up from dir looking for .specimin.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found.
func findConfigFile(dir string) ([]byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Layout
	if src.Layout.ImplementationFile != "" {
		dst.Layout.ImplementationFile = src.Layout.ImplementationFile
	}
	if src.Layout.TestFile != "" {
		dst.Layout.TestFile = src.Layout.TestFile
	}
	if src.Layout.CaseFile != "" {
		dst.Layout.CaseFile = src.Layout.CaseFile
	}
	if src.Layout.SpecFile != "" {
		dst.Layout.SpecFile = src.Layout.SpecFile
	}
	if src.Layout.PlanFile != "" {
		dst.Layout.PlanFile = src.Layout.PlanFile
	}
	if src.Layout.ResultFile != "" {
		dst.Layout.ResultFile = src.Layout.ResultFile
	}
	if src.Layout.ReportBaseName != "" {
		dst.Layout.ReportBaseName = src.Layout.ReportBaseName
	}
	if src.Layout.ImportName != "" {
		dst.Layout.ImportName = src.Layout.ImportName
	}

	// Execution
	if len(src.Execution.RunnerCommand) > 0 {
		dst.Execution.RunnerCommand = src.Execution.RunnerCommand
	}
	if src.Execution.TimeoutSeconds != 0 {
		dst.Execution.TimeoutSeconds = src.Execution.TimeoutSeconds
	}
	if src.Execution.SyntaxChecker != "" {
		dst.Execution.SyntaxChecker = src.Execution.SyntaxChecker
	}
	if src.Execution.Parallel != nil {
		dst.Execution.Parallel = src.Execution.Parallel
	}
	if src.Execution.Workers != 0 {
		dst.Execution.Workers = src.Execution.Workers
	}

	// Policy
	if src.Policy.PassThreshold != 0 {
		dst.Policy.PassThreshold = src.Policy.PassThreshold
	}
	if src.Policy.RegressionThreshold != 0 {
		dst.Policy.RegressionThreshold = src.Policy.RegressionThreshold
	}

	// Baseline
	if src.Baseline.Store != "" {
		dst.Baseline.Store = src.Baseline.Store
	}
	if src.Baseline.Path != "" {
		dst.Baseline.Path = src.Baseline.Path
	}
	if src.Baseline.Options != nil {
		dst.Baseline.Options = src.Baseline.Options
	}

	// Cache
	if src.Cache.Enabled != nil {
		dst.Cache.Enabled = src.Cache.Enabled
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}

	// Judge
	if src.Judge.Kind != "" {
		dst.Judge.Kind = src.Judge.Kind
	}
	if src.Judge.Model != "" {
		dst.Judge.Model = src.Judge.Model
	}
	if src.Judge.BaseURL != "" {
		dst.Judge.BaseURL = src.Judge.BaseURL
	}
	if src.Judge.RubricsDir != "" {
		dst.Judge.RubricsDir = src.Judge.RubricsDir
	}

	// Hooks replace per lifecycle point
	if src.Hooks.BeforeRun != nil {
		dst.Hooks.BeforeRun = src.Hooks.BeforeRun
	}
	if src.Hooks.AfterRun != nil {
		dst.Hooks.AfterRun = src.Hooks.AfterRun
	}
	if src.Hooks.BeforeCase != nil {
		dst.Hooks.BeforeCase = src.Hooks.BeforeCase
	}
	if src.Hooks.AfterCase != nil {
		dst.Hooks.AfterCase = src.Hooks.AfterCase
	}

	// Server
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Server.ResultsDir != "" {
		dst.Server.ResultsDir = src.Server.ResultsDir
	}
}

func boolPtr(b bool) *bool {
	return &b
}
