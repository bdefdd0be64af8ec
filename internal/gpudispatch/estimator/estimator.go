// Package estimator computes the VRAM a model requires at a given
// quantization. It is pure and total given valid inputs.
package estimator

import (
	"math"

	"github.com/leoho0722/gpu-delegater/internal/gpudispatch"
)

// EstimateVRAM computes the required MiB for a model descriptor:
//
//	mib = ceil( (P_billion * 4 / (32 / Q_bits)) * 1.2 * 1024 )
//
// Weights at 32-bit occupy 4*P bytes per-billion; quantization scales by
// Q/32; a 20% headroom absorbs activations/KV-cache; 1024 converts the
// GiB-valued formula to MiB.
//
// Panics if ParameterSizeB <= 0 or QuantizationBits is out of [1, 32] —
// these are contract violations, not runtime errors.
func EstimateVRAM(d gpudispatch.ModelDescriptor) int {
	if d.ParameterSizeB <= 0 {
		panic("estimator: parameter size must be positive")
	}
	if d.QuantizationBits < 1 || d.QuantizationBits > 32 {
		panic("estimator: quantization bits must be in [1, 32]")
	}

	gib := (d.ParameterSizeB * 4 / (32 / float64(d.QuantizationBits))) * 1.2
	return int(math.Ceil(gib * 1024))
}
