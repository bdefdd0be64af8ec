package diagnostics

import (
	"context"
	"regexp"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspector_ListKubeAIPods_FiltersByLabel(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "kubeai-operator-0",
				Namespace: "kubeai",
				Labels:    map[string]string{"app.kubernetes.io/name": "kubeai"},
			},
		},
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "unrelated-0",
				Namespace: "kubeai",
				Labels:    map[string]string{"app.kubernetes.io/name": "other"},
			},
		},
	)

	inspector := NewInspector(clientset, "kubeai")
	pods, err := inspector.ListKubeAIPods(context.Background())
	require.NoError(t, err)
	require.Len(t, pods, 1)
	assert.Equal(t, "kubeai-operator-0", pods[0].Name)
}

func TestGrepLog_FindsMatchingLine(t *testing.T) {
	log := "starting up\nfailed to reconcile Model gemma2-9b: conflict\ndone\n"
	found := GrepLog(log, regexp.MustCompile(`failed to reconcile Model`))
	assert.True(t, found)
}

func TestGrepLog_NoMatch(t *testing.T) {
	log := "starting up\ndone\n"
	found := GrepLog(log, regexp.MustCompile(`failed to reconcile`))
	assert.False(t, found)
}
