package kubeai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
)

func newFakeClient(objs ...runtime.Object) *dynamicfake.FakeDynamicClient {
	scheme := runtime.NewScheme()
	gvrToListKind := map[schema.GroupVersionResource]string{
		GroupVersionResource: "ModelList",
	}
	return dynamicfake.NewSimpleDynamicClientWithCustomListKinds(scheme, gvrToListKind, objs...)
}

func modelDoc(name, namespace string) *ModelDocument {
	return FromTemplate(map[string]interface{}{
		"apiVersion": "kubeai.org/v1",
		"kind":       "Model",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": namespace,
		},
		"spec": map[string]interface{}{
			"resourceProfile": "nvidia-gpu-4090-24gb:1",
		},
	})
}

// Scenario 5: reconciliation path.
func TestReconciler_CreatesWhenNoneExist(t *testing.T) {
	client := newFakeClient()
	r := NewReconciler(client)

	err := r.Apply(context.Background(), modelDoc("gemma2-9b", "default"))
	require.NoError(t, err)

	list, err := client.Resource(GroupVersionResource).Namespace("default").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "gemma2-9b", list.Items[0].GetName())
}

func TestReconciler_PatchesWhenNameMatches(t *testing.T) {
	existing := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "kubeai.org/v1",
		"kind":       "Model",
		"metadata": map[string]interface{}{
			"name":      "gemma2-9b",
			"namespace": "default",
		},
		"spec": map[string]interface{}{
			"resourceProfile": "nvidia-gpu-3090-24gb:1",
		},
	}}
	client := newFakeClient(existing)

	r := NewReconciler(client)
	err := r.Apply(context.Background(), modelDoc("gemma2-9b", "default"))
	require.NoError(t, err)

	got, err := client.Resource(GroupVersionResource).Namespace("default").Get(context.Background(), "gemma2-9b", metav1.GetOptions{})
	require.NoError(t, err)
	profile, _, _ := unstructured.NestedString(got.Object, "spec", "resourceProfile")
	assert.Equal(t, "nvidia-gpu-4090-24gb:1", profile)
}

func TestReconciler_CreatesWhenNamesDoNotMatch(t *testing.T) {
	existing := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "kubeai.org/v1",
		"kind":       "Model",
		"metadata": map[string]interface{}{
			"name":      "llama3-70b",
			"namespace": "default",
		},
	}}
	client := newFakeClient(existing)

	r := NewReconciler(client)
	err := r.Apply(context.Background(), modelDoc("gemma2-9b", "default"))
	require.NoError(t, err)

	list, err := client.Resource(GroupVersionResource).Namespace("default").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
}
