package kubeai

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateLoader_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gemma2-9b-builtin.yaml"), []byte(`
apiVersion: kubeai.org/v1
kind: Model
metadata:
  name: gemma2-9b
  namespace: kubeai
spec:
  owner: google
  url: ollama://gemma2:9b
`), 0o644))

	loader := NewTemplateLoader(dir)
	doc, err := loader.Load("gemma2:9b")
	require.NoError(t, err)

	meta, ok := doc["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "gemma2-9b", meta["name"])
}

func TestTemplateLoader_Load_MissingFile(t *testing.T) {
	loader := NewTemplateLoader(t.TempDir())
	_, err := loader.Load("missing:model")
	assert.Error(t, err)
}
