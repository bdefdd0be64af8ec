// Package registry loads the static GPU-model-name-to-VRAM-class mapping
// once, at process start, and serves it read-only for the process lifetime.
package registry

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/leoho0722/gpu-delegater/internal/gpudispatch"
)

// Registry is a read-only lookup from a driver-reported GPU display name to
// its VRAM class.
type Registry struct {
	entries map[string]gpudispatch.GPUModelEntry
}

// Load reads gpu_models.yaml (a list of {model, vram} rows) and builds a
// Registry keyed by display name.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read GPU model registry %q: %w", path, err)
	}

	var rows []gpudispatch.GPUModelEntry
	if err := yaml.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse GPU model registry %q: %w", path, err)
	}

	return New(rows), nil
}

// New builds a Registry directly from entries, for tests and callers that
// already have the rows in memory.
func New(rows []gpudispatch.GPUModelEntry) *Registry {
	entries := make(map[string]gpudispatch.GPUModelEntry, len(rows))
	for _, row := range rows {
		entries[row.DisplayName] = row
	}
	return &Registry{entries: entries}
}

// Lookup returns the registry entry for a display name.
func (r *Registry) Lookup(displayName string) (gpudispatch.GPUModelEntry, bool) {
	entry, ok := r.entries[displayName]
	return entry, ok
}
