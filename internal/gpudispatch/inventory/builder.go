// Package inventory turns a raw telemetry snapshot into an InventorySnapshot.
package inventory

import (
	"math"
	"sort"

	"github.com/leoho0722/gpu-delegater/internal/gpudispatch"
	"github.com/leoho0722/gpu-delegater/internal/gpudispatch/telemetry"
)

type key struct {
	node      string
	cudaIndex int
}

// Build consumes a telemetry snapshot and produces an InventorySnapshot.
// Nodes are ordered by first sight; GPUs within a node are ordered by
// cuda-index. Every GPU must have all five metrics populated, or Build fails
// with TelemetryIncomplete.
func Build(snapshot telemetry.Snapshot) (*gpudispatch.InventorySnapshot, error) {
	seen := map[key]*gpudispatch.GPU{}
	order := []key{}
	seenMetrics := map[key]map[telemetry.MetricName]bool{}

	record := func(metric telemetry.MetricName, s telemetry.Sample) {
		k := key{node: s.Node, cudaIndex: s.CUDAIndex}
		gpu, ok := seen[k]
		if !ok {
			gpu = &gpudispatch.GPU{
				Node:        s.Node,
				CUDAIndex:   s.CUDAIndex,
				UUID:        s.UUID,
				DisplayName: s.ModelName,
			}
			seen[k] = gpu
			order = append(order, k)
			seenMetrics[k] = map[telemetry.MetricName]bool{}
		}
		value := int(math.Floor(s.Value))
		switch metric {
		case telemetry.FreeMemory:
			gpu.FreeMemoryMiB = value
		case telemetry.UsedMemory:
			gpu.UsedMemoryMiB = value
		case telemetry.Temperature:
			gpu.TemperatureC = value
		case telemetry.Util:
			gpu.UtilPercent = value
		case telemetry.Power:
			gpu.PowerW = value
		}
		seenMetrics[k][metric] = true
	}

	for _, metric := range []telemetry.MetricName{
		telemetry.FreeMemory, telemetry.UsedMemory, telemetry.Temperature,
		telemetry.Util, telemetry.Power,
	} {
		for _, sample := range snapshot[metric] {
			record(metric, sample)
		}
	}

	required := []telemetry.MetricName{
		telemetry.FreeMemory, telemetry.UsedMemory, telemetry.Temperature,
		telemetry.Util, telemetry.Power,
	}
	for _, k := range order {
		for _, metric := range required {
			if !seenMetrics[k][metric] {
				return nil, gpudispatch.TelemetryIncomplete(nil)
			}
		}
	}

	nodeOrder := []string{}
	nodeIndex := map[string]int{}
	nodesGPUs := map[string][]gpudispatch.GPU{}
	for _, k := range order {
		if _, ok := nodeIndex[k.node]; !ok {
			nodeIndex[k.node] = len(nodeOrder)
			nodeOrder = append(nodeOrder, k.node)
		}
		nodesGPUs[k.node] = append(nodesGPUs[k.node], *seen[k])
	}

	nodes := make([]gpudispatch.GPUNode, 0, len(nodeOrder))
	for _, name := range nodeOrder {
		gpus := nodesGPUs[name]
		sort.SliceStable(gpus, func(i, j int) bool {
			return gpus[i].CUDAIndex < gpus[j].CUDAIndex
		})
		nodes = append(nodes, gpudispatch.GPUNode{Name: name, GPUs: gpus})
	}

	return &gpudispatch.InventorySnapshot{Nodes: nodes}, nil
}
