// Package planner implements the Dispatch Planner's deterministic
// bin-packing selection of the minimal GPU set on a single node.
package planner

import (
	"slices"

	"github.com/leoho0722/gpu-delegater/internal/gpudispatch"
)

// Select picks the fewest GPUs on the first qualifying node (in inventory
// order) whose combined free memory covers requiredMiB. GPUs within a node
// are consumed smallest-free-memory-first. Returns nil when no node
// qualifies — this is a planning outcome, not an error.
func Select(inventory *gpudispatch.InventorySnapshot, requiredMiB int) *gpudispatch.Selection {
	if inventory == nil || requiredMiB <= 0 {
		return nil
	}

	for _, node := range inventory.Nodes {
		if node.TotalFreeMiB() < requiredMiB {
			continue
		}

		sorted := append([]gpudispatch.GPU(nil), node.GPUs...)
		slices.SortStableFunc(sorted, func(a, b gpudispatch.GPU) int {
			if a.FreeMemoryMiB != b.FreeMemoryMiB {
				return a.FreeMemoryMiB - b.FreeMemoryMiB
			}
			return a.CUDAIndex - b.CUDAIndex
		})

		chosen := make([]gpudispatch.GPU, 0, len(sorted))
		total := 0
		for _, gpu := range sorted {
			chosen = append(chosen, gpu)
			total += gpu.FreeMemoryMiB
			if total >= requiredMiB {
				break
			}
		}

		if total >= requiredMiB {
			return &gpudispatch.Selection{
				NodeName:     node.Name,
				GPUs:         chosen,
				TotalFreeMiB: total,
				RequiredMiB:  requiredMiB,
			}
		}
	}

	return nil
}
