package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPOllamaCatalog_List(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Write([]byte(`{"models":[{"name":"gemma2:9b","model":"gemma2:9b","details":{"parameter_size":"9B","quantization_level":"Q4_K_M"}}]}`))
	}))
	defer server.Close()

	catalog := NewHTTPOllamaCatalog(server.Client(), server.URL)
	models, err := catalog.List(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "gemma2:9b", models[0].Model)
	assert.Equal(t, "9B", models[0].ParameterSize)
	assert.Equal(t, "Q4_K_M", models[0].QuantizationLevel)
}

func TestHTTPOllamaCatalog_List_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	catalog := NewHTTPOllamaCatalog(server.Client(), server.URL)
	_, err := catalog.List(context.Background())
	assert.Error(t, err)
}
