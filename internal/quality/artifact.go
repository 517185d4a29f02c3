package quality

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/mod/semver"
)

// FormatVersion is the classifier artifact format written by this build.
const FormatVersion = "v1.0.0"

// ModelLoadError reports a persisted classifier that could not be read.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load quality model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

type artifact struct {
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"created_at"`
	Model     *Model    `json:"model"`
}

// Save writes the model as JSON.
func Save(path string, m *Model) error {
	data, err := json.MarshalIndent(artifact{
		Format:    FormatVersion,
		CreatedAt: time.Now().UTC(),
		Model:     m,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode quality model: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write quality model: %w", err)
	}
	return nil
}

// Load reads a model written by Save. Any failure is a *ModelLoadError.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, &ModelLoadError{Path: path, Err: fmt.Errorf("decode: %w", err)}
	}
	if !semver.IsValid(a.Format) || semver.Major(a.Format) != semver.Major(FormatVersion) ||
		semver.Compare(a.Format, FormatVersion) > 0 {
		return nil, &ModelLoadError{Path: path, Err: fmt.Errorf("unsupported format %q", a.Format)}
	}
	if a.Model == nil {
		return nil, &ModelLoadError{Path: path, Err: fmt.Errorf("artifact has no model")}
	}
	if err := a.Model.validate(); err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}
	return a.Model, nil
}
