// Package manifest reads the swinfo manifest that describes a mod package and
// applies the field rules of the manifest's declared spec version.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/modloader/internal/spec"
)

// File names searched for by LoadDir, in order.
const (
	JSONFile = "swinfo.json"
	YAMLFile = "swinfo.yaml"
)

// ErrNoManifest is returned by LoadDir when a directory holds no manifest.
var ErrNoManifest = errors.New("no manifest found")

// Manifest is the validated description of one mod package.
type Manifest struct {
	Spec        spec.Version
	ModID       string
	ID          string
	Name        string
	Author      string
	Description string
	Version     string
	// Source is the file the manifest was read from; empty for in-memory input.
	Source string
}

// Identity returns the mod identity for the manifest's spec version: the
// legacy mod_id before 1.2, the plugin id from 1.2 on.
func (m *Manifest) Identity() string {
	if m.Spec.GreaterOrEqual(spec.BepInExGUID) {
		return m.ID
	}
	return m.ModID
}

// rawManifest is the on-disk representation shared by the JSON and YAML forms.
type rawManifest struct {
	Spec        *spec.Version `json:"spec" yaml:"spec"`
	ModID       *string       `json:"mod_id" yaml:"mod_id"`
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Author      string        `json:"author" yaml:"author"`
	Description string        `json:"description" yaml:"description"`
	Version     string        `json:"version" yaml:"version"`
}

// ParseJSON parses and validates a JSON manifest.
//
// Postcondition: Returns a validated Manifest or a non-nil error.
func ParseJSON(data []byte) (*Manifest, error) {
	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing manifest JSON: %w", err)
	}
	return convert(raw)
}

// ParseYAML parses and validates a YAML manifest.
//
// Postcondition: Returns a validated Manifest or a non-nil error.
func ParseYAML(data []byte) (*Manifest, error) {
	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing manifest YAML: %w", err)
	}
	return convert(raw)
}

// LoadFile reads the manifest at path, choosing the decoder by extension.
//
// Precondition: path ends in .json, .yaml, or .yml.
// Postcondition: Returns a validated Manifest with Source set, or a non-nil error.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var m *Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		m, err = ParseJSON(data)
	case ".yaml", ".yml":
		m, err = ParseYAML(data)
	default:
		return nil, fmt.Errorf("manifest %s: unsupported extension", path)
	}
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	m.Source = path
	return m, nil
}

// LoadDir loads swinfo.json, or swinfo.yaml when no JSON manifest exists, from dir.
//
// Postcondition: Returns ErrNoManifest (wrapped) when neither file exists.
func LoadDir(dir string) (*Manifest, error) {
	for _, name := range []string{JSONFile, YAMLFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, fmt.Errorf("%s: %w", dir, ErrNoManifest)
}

// convert applies spec-version rules and produces the domain Manifest.
func convert(raw rawManifest) (*Manifest, error) {
	m := &Manifest{
		Spec:        spec.Default,
		ID:          strings.TrimSpace(raw.ID),
		Name:        strings.TrimSpace(raw.Name),
		Author:      raw.Author,
		Description: strings.TrimSpace(raw.Description),
		Version:     strings.TrimSpace(raw.Version),
	}
	if raw.Spec != nil {
		m.Spec = *raw.Spec
	}
	if raw.ModID != nil {
		m.ModID = strings.TrimSpace(*raw.ModID)
	}

	if m.Spec.GreaterOrEqual(spec.BepInExGUID) && raw.ModID != nil {
		return nil, &spec.DeprecatedPropertyError{Property: "mod_id", Since: spec.BepInExGUID}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the fields required by the manifest's spec version.
//
// Postcondition: Returns nil if valid, or an error describing every violation.
func (m *Manifest) Validate() error {
	var errs []string
	if m.Name == "" {
		errs = append(errs, "name must not be empty")
	}
	if m.Spec.GreaterOrEqual(spec.BepInExGUID) {
		if m.ID == "" {
			errs = append(errs, fmt.Sprintf("id must not be empty for spec %s", m.Spec))
		}
	} else if m.ModID == "" {
		errs = append(errs, fmt.Sprintf("mod_id must not be empty for spec %s", m.Spec))
	}
	if len(errs) > 0 {
		return fmt.Errorf("validating manifest: %s", strings.Join(errs, "; "))
	}
	return nil
}
