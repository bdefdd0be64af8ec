// Package kubeai reconciles the opaque kubeai.org/v1 Model custom resource
// that pins a model to a GPU resource profile.
package kubeai

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// GroupVersionResource identifies the KubeAI Model CR on the dynamic client.
var GroupVersionResource = schema.GroupVersionResource{
	Group:    "kubeai.org",
	Version:  "v1",
	Resource: "models",
}

// ModelDocument is an opaque KubeAI Model CR document. The core never
// mirrors the full KubeAI schema; it only reads identity and mutates
// spec.resourceProfile through this narrow accessor surface.
type ModelDocument struct {
	obj *unstructured.Unstructured
}

// NewModelDocument wraps a raw unstructured object as a ModelDocument.
func NewModelDocument(obj *unstructured.Unstructured) *ModelDocument {
	return &ModelDocument{obj: obj}
}

// FromTemplate parses a YAML/JSON-decoded map (as produced by sigs.k8s.io/yaml
// unmarshalling a builtin model template) into a ModelDocument.
func FromTemplate(template map[string]interface{}) *ModelDocument {
	return &ModelDocument{obj: &unstructured.Unstructured{Object: template}}
}

func (d *ModelDocument) Name() string {
	return d.obj.GetName()
}

func (d *ModelDocument) Namespace() string {
	return d.obj.GetNamespace()
}

// SetResourceProfile sets spec.resourceProfile on the document.
func (d *ModelDocument) SetResourceProfile(profile string) error {
	if err := unstructured.SetNestedField(d.obj.Object, profile, "spec", "resourceProfile"); err != nil {
		return fmt.Errorf("failed to set spec.resourceProfile: %w", err)
	}
	return nil
}

// ToWire returns the underlying unstructured object ready for the dynamic
// client.
func (d *ModelDocument) ToWire() (*unstructured.Unstructured, error) {
	if d.obj == nil {
		return nil, fmt.Errorf("model document has no backing object")
	}
	return d.obj, nil
}
