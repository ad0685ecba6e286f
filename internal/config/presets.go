package config

import (
	"embed"
	"fmt"
	"sort"
	"time"

	"github.com/ethosgate/ethosgate/internal/models"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// presetFiles maps preset names to embedded file paths
var presetFiles = map[string]string{
	"baseline": "presets/baseline.yaml",
	"strict":   "presets/strict.yaml",
}

// GetPreset returns the raw preset configuration, or nil if not found
func GetPreset(name string) *models.GateConfig {
	path, ok := presetFiles[name]
	if !ok {
		return nil
	}

	data, err := presetFS.ReadFile(path)
	if err != nil {
		return nil
	}

	cfg, err := decode(data)
	if err != nil {
		return nil
	}
	return &cfg
}

// Preset builds a validated snapshot from a built-in preset
func Preset(name string) (*Snapshot, error) {
	return presetAt(name, time.Now().UTC())
}

func presetAt(name string, loadedAt time.Time) (*Snapshot, error) {
	cfg := GetPreset(name)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s (valid: %v)", name, ListPresetNames())
	}
	return Build(*cfg, "preset:"+name, loadedAt)
}

// ListPresetNames sorted
func ListPresetNames() []string {
	names := make([]string, 0, len(presetFiles))
	for name := range presetFiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve loads a preset when ref names one, otherwise treats ref as a file path.
func Resolve(ref string) (*Snapshot, error) {
	return ResolveAt(ref, time.Now().UTC())
}

// ResolveAt is Resolve with an explicit start of the validity window.
func ResolveAt(ref string, loadedAt time.Time) (*Snapshot, error) {
	if ref == "" {
		ref = "baseline"
	}
	if _, ok := presetFiles[ref]; ok {
		return presetAt(ref, loadedAt)
	}
	return loadAt(ref, loadedAt)
}
