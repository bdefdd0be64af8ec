package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leoho0722/gpu-delegater/internal/gpudispatch"
	"github.com/leoho0722/gpu-delegater/internal/inference/chat"
	"github.com/leoho0722/gpu-delegater/internal/inference/orchestrator"
)

type fakeRunner struct {
	chunks chan chat.Chunk
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, req orchestrator.Request) (<-chan chat.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

func TestServer_Version(t *testing.T) {
	s := NewServer(&fakeRunner{}, "v1.2.3")
	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body versionEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "v1.2.3", body.Message)
}

func TestServer_RootRedirectsToVersion(t *testing.T) {
	s := NewServer(&fakeRunner{}, "v1")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/api/version", rec.Header().Get("Location"))
}

func TestServer_InferenceRejectsMissingUserPrompt(t *testing.T) {
	s := NewServer(&fakeRunner{}, "v1")
	body, _ := json.Marshal(map[string]string{"model": "gemma2:9b"})
	req := httptest.NewRequest(http.MethodPost, "/api/llm/inference", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_InferenceReturnsDispatchErrorStatus(t *testing.T) {
	runner := &fakeRunner{err: gpudispatch.NoAvailableGPU()}
	s := NewServer(runner, "v1")
	body, _ := json.Marshal(map[string]string{"model": "gemma2:9b", "user_prompt": "hi"})
	req := httptest.NewRequest(http.MethodPost, "/api/llm/inference", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body2 envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body2))
	assert.Equal(t, "failed", body2.Status)
}

func TestServer_InferenceStreamsNDJSONChunks(t *testing.T) {
	chunks := make(chan chat.Chunk, 3)
	chunks <- chat.Chunk{Content: "Hello"}
	chunks <- chat.Chunk{Content: " world"}
	close(chunks)

	runner := &fakeRunner{chunks: chunks}
	s := NewServer(runner, "v1")
	body, _ := json.Marshal(map[string]string{"model": "gemma2:9b", "user_prompt": "hi"})
	req := httptest.NewRequest(http.MethodPost, "/api/llm/inference", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	scanner := bufio.NewScanner(rec.Body)
	var got []string
	for scanner.Scan() {
		var e envelope
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		got = append(got, e.Chunk)
	}
	assert.Equal(t, []string{"Hello", " world"}, got)
}

func TestServer_InferenceStreamEndsOnChunkError(t *testing.T) {
	chunks := make(chan chat.Chunk, 1)
	chunks <- chat.Chunk{Err: errors.New("boom")}
	close(chunks)

	runner := &fakeRunner{chunks: chunks}
	s := NewServer(runner, "v1")
	body, _ := json.Marshal(map[string]string{"model": "gemma2:9b", "user_prompt": "hi"})
	req := httptest.NewRequest(http.MethodPost, "/api/llm/inference", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")
}
