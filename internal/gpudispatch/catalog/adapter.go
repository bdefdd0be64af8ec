// Package catalog resolves a model name and runtime into a ModelDescriptor.
package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/leoho0722/gpu-delegater/internal/gpudispatch"
)

// OllamaModel mirrors the subset of an Ollama /api/tags entry the adapter
// needs: the catalog key and the two detail strings the parsers split apart.
type OllamaModel struct {
	Model             string
	ParameterSize     string
	QuantizationLevel string
}

// OllamaCatalog is the boundary contract for an injected Ollama-compatible
// catalog client.
type OllamaCatalog interface {
	List(ctx context.Context) ([]OllamaModel, error)
}

var (
	parameterSizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)([KMB])`)
	quantBitsPattern     = regexp.MustCompile(`\d+`)
)

// ParseParameterSize parses strings like "9B", "2.7B", "500M", "1.2K" into a
// value expressed in billions of parameters. M and K scale by 1e-3 and 1e-6
// relative to B.
func ParseParameterSize(raw string) (float64, error) {
	m := parameterSizePattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("parameter size %q does not match the expected <number><K|M|B> shape", raw)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parameter size %q has an unparseable magnitude: %w", raw, err)
	}
	switch m[2] {
	case "B":
		return value, nil
	case "M":
		return value * 1e-3, nil
	case "K":
		return value * 1e-6, nil
	default:
		return 0, fmt.Errorf("parameter size %q has an unrecognized unit %q", raw, m[2])
	}
}

// ParseQuantBits extracts the first integer found in a quantization-level
// string such as "Q4_K_M" (-> 4) or "Q5_0" (-> 5).
func ParseQuantBits(raw string) (int, error) {
	m := quantBitsPattern.FindString(raw)
	if m == "" {
		return 0, fmt.Errorf("quantization level %q contains no digits", raw)
	}
	bits, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("quantization level %q has an unparseable digit run: %w", raw, err)
	}
	return bits, nil
}

// Adapter resolves model descriptors against an injected Ollama catalog.
// The vllm runtime is explicitly unimplemented in this iteration.
type Adapter struct {
	Ollama OllamaCatalog
}

func NewAdapter(ollama OllamaCatalog) *Adapter {
	return &Adapter{Ollama: ollama}
}

// Resolve looks up modelName under the given runtime and returns its
// descriptor.
func (a *Adapter) Resolve(ctx context.Context, modelName, runtime string) (*gpudispatch.ModelDescriptor, error) {
	switch runtime {
	case "ollama":
		return a.resolveOllama(ctx, modelName)
	case "vllm":
		return nil, gpudispatch.UnsupportedRuntime(runtime)
	default:
		return nil, gpudispatch.UnsupportedRuntime(runtime)
	}
}

func (a *Adapter) resolveOllama(ctx context.Context, modelName string) (*gpudispatch.ModelDescriptor, error) {
	models, err := a.Ollama.List(ctx)
	if err != nil {
		return nil, gpudispatch.CatalogLookupFailed(modelName, err)
	}

	for _, m := range models {
		if m.Model != modelName {
			continue
		}
		paramSize, err := ParseParameterSize(m.ParameterSize)
		if err != nil {
			return nil, gpudispatch.CatalogLookupFailed(modelName, err)
		}
		quantBits, err := ParseQuantBits(m.QuantizationLevel)
		if err != nil {
			return nil, gpudispatch.CatalogLookupFailed(modelName, err)
		}
		return &gpudispatch.ModelDescriptor{
			Name:             modelName,
			ParameterSizeB:   paramSize,
			QuantizationBits: quantBits,
		}, nil
	}

	return nil, gpudispatch.CatalogLookupFailed(modelName, fmt.Errorf("model not found in catalog"))
}
