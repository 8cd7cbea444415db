package encoders

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// ValidationResults represents the complete validation results
type ValidationResults struct {
	Timestamp      string          `toml:"timestamp" json:"timestamp"`
	FFmpegVersion  string          `toml:"ffmpeg_version" json:"ffmpeg_version"`
	TestResolution string          `toml:"test_resolution" json:"test_resolution"`
	LUID           int64           `toml:"luid" json:"luid"`
	H264           CodecValidation `toml:"h264" json:"h264"`
	H265           CodecValidation `toml:"h265" json:"h265"`
}

// CodecValidation represents validation results for a specific codec
type CodecValidation struct {
	Working []string `toml:"working" json:"working"`
	Failed  []string `toml:"failed" json:"failed"`
}

// Best returns the first working encoder, which is the highest priority one.
func (c CodecValidation) Best() (string, bool) {
	if len(c.Working) == 0 {
		return "", false
	}
	return c.Working[0], true
}

// SaveValidationResults writes results to path as TOML, replacing the file atomically.
func SaveValidationResults(path string, results *ValidationResults) error {
	data, err := toml.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal validation results: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create results directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write validation results: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace validation results: %w", err)
	}
	return nil
}

// LoadValidationResults reads results saved by SaveValidationResults.
func LoadValidationResults(path string) (*ValidationResults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read validation results: %w", err)
	}

	var results ValidationResults
	if err := toml.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to parse validation results: %w", err)
	}
	return &results, nil
}
