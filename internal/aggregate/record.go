package aggregate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/utils"
	"github.com/timsvoice/specimin/internal/validation"
)

// ReadRecordFile loads and validates the result record at path. A missing file
// returns an error satisfying errors.Is(err, fs.ErrNotExist).
func ReadRecordFile(path string) (*models.ResultRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	record, err := DecodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return record, nil
}

// WriteRecordFile validates record and replaces the file at path with it.
func WriteRecordFile(path string, record *models.ResultRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result record %s: %w", record.TestID, err)
	}

	if errs := validation.ValidateResultBytes(data); len(errs) > 0 {
		return validation.Error("result record", errs)
	}

	return utils.WriteFileAtomic(path, append(data, '\n'), 0o644)
}
