package execution

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/projectconfig"
	"gopkg.in/yaml.v3"
)

// CaseMetadata is the optional case.yaml that sits next to the generated files.
type CaseMetadata struct {
	ID          string `yaml:"id,omitempty"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// LoadCase materializes the test case stored in dir. Missing implementation or
// test files are not an error: the corresponding field is left nil so the
// executor can classify it. A directory that does not exist yields a case with
// both files missing.
func LoadCase(dir string, layout projectconfig.LayoutConfig) (*models.TestCase, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving case directory %s: %w", dir, err)
	}

	tc := &models.TestCase{
		ID:                 filepath.Base(absDir),
		CaseDir:            absDir,
		ImplementationPath: filepath.Join(absDir, layout.ImplementationFile),
		TestPath:           filepath.Join(absDir, layout.TestFile),
	}

	if tc.Implementation, err = readOptional(tc.ImplementationPath); err != nil {
		return nil, err
	}
	if tc.Tests, err = readOptional(tc.TestPath); err != nil {
		return nil, err
	}

	meta, err := readCaseMetadata(filepath.Join(absDir, layout.CaseFile))
	if err != nil {
		return nil, err
	}
	if meta != nil {
		if meta.ID != "" {
			tc.ID = meta.ID
		}
		tc.Name = meta.Name
	}

	return tc, nil
}

func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if data == nil {
		// present but empty is still present
		data = []byte{}
	}
	return data, nil
}

func readCaseMetadata(path string) (*CaseMetadata, error) {
	data, err := readOptional(path)
	if err != nil || data == nil {
		return nil, err
	}

	var meta CaseMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &meta, nil
}
