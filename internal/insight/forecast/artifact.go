package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/mod/semver"
)

// FormatVersion is the artifact format written by this build. Artifacts
// with the same major version and an equal or older minor version load.
const FormatVersion = "v1.0.0"

const artifactKind = "additive"

type artifact struct {
	Format    string        `json:"format"`
	Kind      string        `json:"kind"`
	CreatedAt time.Time     `json:"created_at"`
	Model     additiveState `json:"model"`
}

// WriteArtifact persists a fitted model as JSON. The file is written to a
// temporary name first and renamed into place.
func WriteArtifact(path string, m *AdditiveModel) error {
	if !m.fitted {
		return ErrModelNotLoaded
	}
	data, err := json.MarshalIndent(artifact{
		Format:    FormatVersion,
		Kind:      artifactKind,
		CreatedAt: time.Now().UTC(),
		Model:     m.st,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}

// ReadArtifact loads a persisted model. Any failure is a *ModelLoadError.
func ReadArtifact(path string) (*AdditiveModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, &ModelLoadError{Path: path, Err: fmt.Errorf("decode: %w", err)}
	}
	if err := checkFormat(a.Format); err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}
	if a.Kind != artifactKind {
		return nil, &ModelLoadError{Path: path, Err: fmt.Errorf("unsupported model kind %q", a.Kind)}
	}
	if err := a.Model.validate(); err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}
	return &AdditiveModel{st: a.Model, fitted: true}, nil
}

func checkFormat(v string) error {
	if !semver.IsValid(v) {
		return fmt.Errorf("invalid format version %q", v)
	}
	if semver.Major(v) != semver.Major(FormatVersion) || semver.Compare(v, FormatVersion) > 0 {
		return fmt.Errorf("format %s is not readable by %s", v, FormatVersion)
	}
	return nil
}

func (st *additiveState) validate() error {
	cfg := Config{
		Growth:        st.Growth,
		Cap:           st.Capacity,
		FourierOrder:  st.FourierOrder,
		Ridge:         st.Ridge,
		IntervalWidth: st.IntervalWidth,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch {
	case len(st.Coef) != st.features():
		return fmt.Errorf("coefficient count %d, want %d", len(st.Coef), st.features())
	case len(st.Mean) != len(st.Regressors) || len(st.Std) != len(st.Regressors):
		return errors.New("regressor scaling does not match regressors")
	case st.N < 1 || st.SpanDays <= 0:
		return errors.New("model is missing its training extent")
	}
	for _, s := range st.Std {
		if s == 0 {
			return errors.New("regressor scale is zero")
		}
	}
	return nil
}
