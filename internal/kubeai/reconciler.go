package kubeai

import (
	"context"
	"encoding/json"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	"k8s.io/klog/v2"

	"github.com/leoho0722/gpu-delegater/internal/gpudispatch"
)

// Reconciler applies-or-patches a Model CR: list existing resources in the
// document's namespace, create if none match by name, patch if one does.
type Reconciler struct {
	client dynamic.Interface
	logger klog.Logger
}

func NewReconciler(client dynamic.Interface) *Reconciler {
	return &Reconciler{client: client, logger: klog.NewKlogr().WithName("kubeai-reconciler")}
}

// Apply lists Model resources in the document's namespace and either
// creates the document (no existing resources, or none match by name) or
// patches the matching existing resource. A 409 from either call is
// terminal for this request.
func (r *Reconciler) Apply(ctx context.Context, doc *ModelDocument) error {
	wire, err := doc.ToWire()
	if err != nil {
		return gpudispatch.ReconciliationFailed("invalid model document", err)
	}

	ns := r.client.Resource(GroupVersionResource).Namespace(doc.Namespace())

	existing, err := ns.List(ctx, metav1.ListOptions{})
	if err != nil {
		return gpudispatch.ReconciliationFailed("failed to list existing Model resources", err)
	}

	if len(existing.Items) == 0 {
		return r.create(ctx, ns, wire)
	}

	for _, item := range existing.Items {
		if NewModelDocument(&item).Name() == doc.Name() {
			return r.patch(ctx, ns, doc.Name(), wire)
		}
	}

	return r.create(ctx, ns, wire)
}

func (r *Reconciler) create(ctx context.Context, ns dynamic.ResourceInterface, wire *unstructured.Unstructured) error {
	r.logger.Info("creating Model CR", "name", wire.GetName(), "namespace", wire.GetNamespace())
	if _, err := ns.Create(ctx, wire, metav1.CreateOptions{}); err != nil {
		if apierrors.IsConflict(err) {
			return gpudispatch.ReconciliationFailed("conflict creating Model CR", err)
		}
		return gpudispatch.ReconciliationFailed("failed to create Model CR", err)
	}
	return nil
}

func (r *Reconciler) patch(ctx context.Context, ns dynamic.ResourceInterface, name string, wire *unstructured.Unstructured) error {
	spec, found, err := unstructured.NestedMap(wire.Object, "spec")
	if err != nil || !found {
		return gpudispatch.ReconciliationFailed("model document has no spec to patch", err)
	}

	patchBody, err := json.Marshal(map[string]interface{}{"spec": spec})
	if err != nil {
		return gpudispatch.ReconciliationFailed("failed to marshal patch body", err)
	}

	r.logger.Info("patching Model CR", "name", name, "namespace", wire.GetNamespace())
	if _, err := ns.Patch(ctx, name, types.MergePatchType, patchBody, metav1.PatchOptions{}); err != nil {
		if apierrors.IsConflict(err) {
			return gpudispatch.ReconciliationFailed(fmt.Sprintf("conflict patching Model CR %q", name), err)
		}
		return gpudispatch.ReconciliationFailed(fmt.Sprintf("failed to patch Model CR %q", name), err)
	}
	return nil
}
