package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leoho0722/gpu-delegater/internal/gpudispatch"
)

func TestParseParameterSize(t *testing.T) {
	cases := map[string]float64{
		"9B":    9.0,
		"1.2B":  1.2,
		"500M":  500.0 * 1e-3,
		"1.2K":  1.2 * 1e-6,
	}
	for raw, want := range cases {
		got, err := ParseParameterSize(raw)
		require.NoError(t, err, raw)
		assert.InDelta(t, want, got, 1e-9, raw)
	}
}

func TestParseParameterSize_Rejects(t *testing.T) {
	for _, raw := range []string{"9", "9X", ""} {
		_, err := ParseParameterSize(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseQuantBits(t *testing.T) {
	got, err := ParseQuantBits("Q4_K_M")
	require.NoError(t, err)
	assert.Equal(t, 4, got)

	got, err = ParseQuantBits("Q5_0")
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestParseQuantBits_RejectsNoDigits(t *testing.T) {
	_, err := ParseQuantBits("QK_M")
	assert.Error(t, err)
}

type fakeOllamaCatalog struct {
	models []OllamaModel
	err    error
}

func (f *fakeOllamaCatalog) List(ctx context.Context) ([]OllamaModel, error) {
	return f.models, f.err
}

func TestAdapter_ResolveOllama(t *testing.T) {
	adapter := NewAdapter(&fakeOllamaCatalog{models: []OllamaModel{
		{Model: "gemma2:9b", ParameterSize: "9B", QuantizationLevel: "Q4_K_M"},
	}})

	desc, err := adapter.Resolve(context.Background(), "gemma2:9b", "ollama")
	require.NoError(t, err)
	assert.Equal(t, 9.0, desc.ParameterSizeB)
	assert.Equal(t, 4, desc.QuantizationBits)
}

func TestAdapter_ResolveOllama_NotFound(t *testing.T) {
	adapter := NewAdapter(&fakeOllamaCatalog{models: []OllamaModel{}})
	_, err := adapter.Resolve(context.Background(), "missing:1b", "ollama")
	var dispatchErr *gpudispatch.DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, "CatalogLookupFailed", dispatchErr.Kind)
}

func TestAdapter_ResolveVLLM_Unsupported(t *testing.T) {
	adapter := NewAdapter(&fakeOllamaCatalog{})
	_, err := adapter.Resolve(context.Background(), "anything", "vllm")
	var dispatchErr *gpudispatch.DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, "UnsupportedRuntime", dispatchErr.Kind)
}
