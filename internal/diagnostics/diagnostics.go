// Package diagnostics lists KubeAI-labelled pods and tails their logs, for
// attaching operator-facing context to a dispatch failure. It is never
// consulted on the success path.
package diagnostics

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const kubeaiNameLabel = "app.kubernetes.io/name=kubeai"

// Inspector lists and reads logs from the KubeAI operator's own pods.
type Inspector struct {
	clientset kubernetes.Interface
	namespace string
}

// NewInspector builds an Inspector scoped to one namespace.
func NewInspector(clientset kubernetes.Interface, namespace string) *Inspector {
	return &Inspector{clientset: clientset, namespace: namespace}
}

// ListKubeAIPods returns every pod in the namespace carrying the KubeAI
// operator's app.kubernetes.io/name=kubeai label.
func (i *Inspector) ListKubeAIPods(ctx context.Context) ([]corev1.Pod, error) {
	list, err := i.clientset.CoreV1().Pods(i.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: kubeaiNameLabel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list kubeai pods: %w", err)
	}
	return list.Items, nil
}

// TailPodLog streams the most recent tailLines of a pod's log.
func (i *Inspector) TailPodLog(ctx context.Context, podName string, tailLines int64) (string, error) {
	req := i.clientset.CoreV1().Pods(i.namespace).GetLogs(podName, &corev1.PodLogOptions{
		TailLines: &tailLines,
	})

	stream, err := req.Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open log stream for pod %q: %w", podName, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return "", fmt.Errorf("failed to read log stream for pod %q: %w", podName, err)
	}
	return string(data), nil
}

// GrepLog reports whether pattern matches at least one line of logData.
func GrepLog(logData string, pattern *regexp.Regexp) bool {
	scanner := bufio.NewScanner(strings.NewReader(logData))
	for scanner.Scan() {
		if pattern.MatchString(scanner.Text()) {
			return true
		}
	}
	return false
}
