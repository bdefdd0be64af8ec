package kubeai

import (
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// TemplateLoader reads canned Model CR templates from a directory of
// <model>-builtin.yaml files, one per supported model name (colons replaced
// with dashes to stay filesystem-friendly).
type TemplateLoader struct {
	dir string
}

// NewTemplateLoader builds a TemplateLoader rooted at dir.
func NewTemplateLoader(dir string) *TemplateLoader {
	return &TemplateLoader{dir: dir}
}

// Load reads <dir>/<model>-builtin.yaml (with ':' in model replaced by '-')
// and decodes it into a generic document suitable for FromTemplate.
func (l *TemplateLoader) Load(model string) (map[string]interface{}, error) {
	fileName := sanitizeModelName(model) + "-builtin.yaml"
	path := filepath.Join(l.dir, fileName)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read Model CR template %q: %w", path, err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse Model CR template %q: %w", path, err)
	}
	return doc, nil
}

func sanitizeModelName(model string) string {
	out := make([]byte, len(model))
	for i := 0; i < len(model); i++ {
		c := model[i]
		if c == ':' || c == '/' {
			c = '-'
		}
		out[i] = c
	}
	return string(out)
}
