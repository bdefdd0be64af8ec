// Package orchestrator wires the GPU dispatch pipeline and the chat stream
// into the per-request state machine described for the Inference
// Orchestrator: INIT -> VALIDATED -> PLANNED -> PATCHED -> STREAMING -> DONE.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"slices"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"

	"github.com/leoho0722/gpu-delegater/internal/diagnostics"
	"github.com/leoho0722/gpu-delegater/internal/gpudispatch"
	"github.com/leoho0722/gpu-delegater/internal/gpudispatch/estimator"
	"github.com/leoho0722/gpu-delegater/internal/gpudispatch/inventory"
	"github.com/leoho0722/gpu-delegater/internal/gpudispatch/planner"
	"github.com/leoho0722/gpu-delegater/internal/gpudispatch/profile"
	"github.com/leoho0722/gpu-delegater/internal/gpudispatch/registry"
	"github.com/leoho0722/gpu-delegater/internal/gpudispatch/telemetry"
	"github.com/leoho0722/gpu-delegater/internal/inference/chat"
	"github.com/leoho0722/gpu-delegater/internal/kubeai"
	"github.com/leoho0722/gpu-delegater/internal/observability/tracing"
)

// errorLogPattern flags the lines of a tailed KubeAI pod log worth surfacing
// alongside a dispatch failure.
var errorLogPattern = regexp.MustCompile(`(?i)error|panic|fatal|failed`)

// AllowList is the {ollama: [...], vllm: [...]} shape mandated for the
// supported-model registry: a model is rejected unless it is listed under
// the requested runtime.
type AllowList struct {
	Ollama []string `json:"ollama"`
	VLLM   []string `json:"vllm"`
}

// Allows reports whether model is listed under the given runtime.
func (a AllowList) Allows(runtime, model string) bool {
	switch runtime {
	case "ollama":
		return slices.Contains(a.Ollama, model)
	case "vllm":
		return slices.Contains(a.VLLM, model)
	default:
		return false
	}
}

// LoadAllowList reads the {ollama: [...], vllm: [...]} supported-model.yaml
// registry from disk.
func LoadAllowList(path string) (AllowList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return AllowList{}, fmt.Errorf("failed to read supported-model registry %q: %w", path, err)
	}

	var allow AllowList
	if err := yaml.Unmarshal(raw, &allow); err != nil {
		return AllowList{}, fmt.Errorf("failed to parse supported-model registry %q: %w", path, err)
	}
	return allow, nil
}

// Request is one inference dispatch request.
type Request struct {
	Model        string
	Runtime      string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// State names the per-request state machine position.
type State string

const (
	StateInit       State = "INIT"
	StateValidated  State = "VALIDATED"
	StatePlanned    State = "PLANNED"
	StatePatched    State = "PATCHED"
	StateStreaming  State = "STREAMING"
	StateDone       State = "DONE"
	StateRejected   State = "REJECTED"
	StateNoGPU      State = "NO_GPU"
	StatePatchFail  State = "PATCH_FAIL"
	StateStreamFail State = "STREAM_FAIL"
)

// TemplateLoader resolves a model name to its canned
// Model-CR template, as loaded from kubeai/<model>-builtin.yaml.
type TemplateLoader interface {
	Load(model string) (map[string]interface{}, error)
}

// TelemetrySource is the boundary the orchestrator pulls a fresh snapshot
// through; satisfied by *telemetry.Gateway in production and by fakes in
// tests.
type TelemetrySource interface {
	Snapshot(ctx context.Context) (telemetry.Snapshot, error)
}

// CatalogResolver is the boundary the orchestrator resolves model
// descriptors through; satisfied by *catalog.Adapter.
type CatalogResolver interface {
	Resolve(ctx context.Context, modelName, runtime string) (*gpudispatch.ModelDescriptor, error)
}

// Reconciler is the boundary the orchestrator patches the Model CR through;
// satisfied by *kubeai.Reconciler.
type Reconciler interface {
	Apply(ctx context.Context, doc *kubeai.ModelDocument) error
}

// Authenticator is the boundary the orchestrator bootstraps auth through;
// satisfied by *auth.Bootstrapper.
type Authenticator interface {
	APIKey(ctx context.Context) (string, error)
}

// ChatStreamer is the boundary the orchestrator opens the chat stream
// through; satisfied by *chat.Client.
type ChatStreamer interface {
	Stream(ctx context.Context, apiKey string, req chat.Request) (<-chan chat.Chunk, error)
}

// Diagnostician is consulted only after a ReconciliationFailed or
// StreamFailed error, to attach operator-facing pod log context; satisfied
// by *diagnostics.Inspector. A nil Diagnostician disables this entirely.
type Diagnostician interface {
	ListKubeAIPods(ctx context.Context) ([]corev1.Pod, error)
	TailPodLog(ctx context.Context, podName string, tailLines int64) (string, error)
}

// Orchestrator wires every dispatch stage plus the chat stream behind one
// per-request entry point. All fields are explicitly constructed by the
// composition root in cmd/ — there are no package-level singletons.
type Orchestrator struct {
	Telemetry   TelemetrySource
	Catalog     CatalogResolver
	Registry    *registry.Registry
	Reconciler  Reconciler
	Templates   TemplateLoader
	Auth        Authenticator
	Chat        ChatStreamer
	AllowList   AllowList
	Diagnostics Diagnostician

	logger klog.Logger
}

func New(
	telemetryGateway TelemetrySource,
	catalogAdapter CatalogResolver,
	gpuRegistry *registry.Registry,
	reconciler Reconciler,
	templates TemplateLoader,
	bootstrapper Authenticator,
	chatClient ChatStreamer,
	allowList AllowList,
) *Orchestrator {
	return &Orchestrator{
		Telemetry:  telemetryGateway,
		Catalog:    catalogAdapter,
		Registry:   gpuRegistry,
		Reconciler: reconciler,
		Templates:  templates,
		Auth:       bootstrapper,
		Chat:       chatClient,
		AllowList:  allowList,
		logger:     klog.NewKlogr().WithName("orchestrator"),
	}
}

// WithDiagnostics attaches a Diagnostician for failure-path pod log context.
func (o *Orchestrator) WithDiagnostics(d Diagnostician) *Orchestrator {
	o.Diagnostics = d
	return o
}

// attachDiagnostics lists KubeAI pods and tails the first one's log,
// logging whatever it finds. Any diagnostics-layer error is itself only
// logged; it must never mask the original dispatch failure.
func (o *Orchestrator) attachDiagnostics(ctx context.Context, cause error) {
	if o.Diagnostics == nil {
		return
	}
	pods, err := o.Diagnostics.ListKubeAIPods(ctx)
	if err != nil {
		o.logger.Info("diagnostics: failed to list kubeai pods", "cause", cause.Error(), "error", err.Error())
		return
	}
	if len(pods) == 0 {
		o.logger.Info("diagnostics: no kubeai pods found", "cause", cause.Error())
		return
	}
	logTail, err := o.Diagnostics.TailPodLog(ctx, pods[0].Name, 200)
	if err != nil {
		o.logger.Info("diagnostics: failed to tail kubeai pod log", "pod", pods[0].Name, "error", err.Error())
		return
	}
	matched := diagnostics.GrepLog(logTail, errorLogPattern)
	o.logger.Info("diagnostics: attached kubeai pod log", "pod", pods[0].Name, "cause", cause.Error(), "log_tail", logTail, "matched_error_pattern", matched)
}

// Run validates the request, plans a GPU selection, patches the Model CR,
// and opens the streaming chat completion. It returns the chunk channel on
// success; any failure before streaming returns a terminal error instead.
func (o *Orchestrator) Run(ctx context.Context, req Request) (<-chan chat.Chunk, error) {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.Run")
	defer span.End()

	state := StateInit

	if req.Runtime != "ollama" && req.Runtime != "vllm" {
		state = StateRejected
		err := gpudispatch.UnsupportedRuntime(req.Runtime)
		tracing.RecordError(span, err)
		o.logger.Info("request rejected", "state", state, "reason", err.Error())
		return nil, err
	}
	if !o.AllowList.Allows(req.Runtime, req.Model) {
		state = StateRejected
		err := gpudispatch.UnsupportedModel(req.Model)
		tracing.RecordError(span, err)
		o.logger.Info("request rejected", "state", state, "reason", err.Error())
		return nil, err
	}
	if req.UserPrompt == "" {
		state = StateRejected
		err := gpudispatch.InvalidRequest("user_prompt is required")
		tracing.RecordError(span, err)
		return nil, err
	}
	state = StateValidated

	apiKey, err := o.Auth.APIKey(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	descriptor, err := o.Catalog.Resolve(ctx, req.Model, req.Runtime)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	requiredMiB := estimator.EstimateVRAM(*descriptor)

	snapshot, err := o.Telemetry.Snapshot(ctx)
	if err != nil {
		err = gpudispatch.TelemetryIncomplete(err)
		tracing.RecordError(span, err)
		return nil, err
	}

	inv, err := inventory.Build(snapshot)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	selection := planner.Select(inv, requiredMiB)
	if selection == nil {
		state = StateNoGPU
		err := gpudispatch.NoAvailableGPU()
		tracing.RecordError(span, err)
		o.logger.Info("no GPU selection available", "state", state, "model", req.Model, "required_mib", requiredMiB)
		return nil, err
	}

	resourceProfile, err := profile.Synthesize(o.Registry, selection)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	state = StatePlanned

	tracing.EnrichWithDispatchContext(span, tracing.DispatchContext{
		NodeName:     selection.NodeName,
		GPUCount:     len(selection.GPUs),
		DisplayName:  selection.DisplayName(),
		RequiredMiB:  selection.RequiredMiB,
		TotalFreeMiB: selection.TotalFreeMiB,
	})

	template, err := o.Templates.Load(req.Model)
	if err != nil {
		state = StatePatchFail
		err = gpudispatch.ReconciliationFailed("failed to load Model CR template", err)
		tracing.RecordError(span, err)
		return nil, err
	}

	doc := kubeai.FromTemplate(template)
	if err := doc.SetResourceProfile(resourceProfile.String()); err != nil {
		state = StatePatchFail
		err = gpudispatch.ReconciliationFailed("failed to set resourceProfile", err)
		tracing.RecordError(span, err)
		return nil, err
	}

	if err := o.Reconciler.Apply(ctx, doc); err != nil {
		state = StatePatchFail
		tracing.RecordError(span, err)
		o.attachDiagnostics(ctx, err)
		return nil, err
	}
	state = StatePatched

	chunks, err := o.Chat.Stream(ctx, apiKey, chat.Request{
		Model:        doc.Name(),
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.UserPrompt,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	})
	if err != nil {
		state = StateStreamFail
		tracing.RecordError(span, err)
		o.attachDiagnostics(ctx, err)
		return nil, err
	}
	state = StateStreaming

	o.logger.Info("streaming chat completion", "state", state, "model", doc.Name(), "profile", resourceProfile)
	return chunks, nil
}
