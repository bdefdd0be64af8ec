// Package profile synthesizes the KubeAI resourceProfile token from a
// Dispatch Planner Selection.
package profile

import (
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/leoho0722/gpu-delegater/internal/gpudispatch"
	"github.com/leoho0722/gpu-delegater/internal/gpudispatch/registry"
)

// Synthesize derives a ResourceProfile from a Selection. It rejects
// selections spanning more than one GPU display name with
// HeterogeneousSelection, and selections whose display name is missing
// from the registry or has no RTX token with UnsupportedGPUModel.
func Synthesize(reg *registry.Registry, sel *gpudispatch.Selection) (gpudispatch.ResourceProfile, error) {
	distinct := lo.Uniq(lo.Map(sel.GPUs, func(gpu gpudispatch.GPU, _ int) string {
		return gpu.DisplayName
	}))
	if len(distinct) > 1 {
		return "", gpudispatch.HeterogeneousSelection(distinct)
	}

	displayName := sel.DisplayName()

	entry, ok := reg.Lookup(displayName)
	if !ok {
		return "", gpudispatch.UnsupportedGPUModel(displayName)
	}

	parts := strings.SplitN(displayName, "RTX", 2)
	if len(parts) != 2 {
		return "", gpudispatch.UnsupportedGPUModel(displayName)
	}
	modelToken := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(parts[1]), " ", ""))

	profile := gpudispatch.ResourceProfile(
		"nvidia-gpu-" + modelToken + "-" + strconv.Itoa(entry.VRAMGiB) + "gb:" + strconv.Itoa(len(sel.GPUs)),
	)
	return profile, nil
}
