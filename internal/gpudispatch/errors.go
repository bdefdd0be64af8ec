package gpudispatch

import "fmt"

// DispatchError is the common shape of every error the dispatch subsystem
// and the orchestrator surface to an HTTP/CLI caller: a message plus the
// status code the boundary layer should respond with.
type DispatchError struct {
	Kind       string
	Message    string
	StatusCode int
	Retriable  bool
	Cause      error
}

func (e *DispatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DispatchError) Unwrap() error { return e.Cause }

func newErr(kind, msg string, status int, retriable bool, cause error) *DispatchError {
	return &DispatchError{Kind: kind, Message: msg, StatusCode: status, Retriable: retriable, Cause: cause}
}

// Constructors for the taxonomy in the error handling design.

func InvalidRequest(msg string) *DispatchError {
	return newErr("InvalidRequest", msg, 400, false, nil)
}

func UnsupportedModel(model string) *DispatchError {
	return newErr("UnsupportedModel", fmt.Sprintf("model %q is not on the allow-list for the requested runtime", model), 400, false, nil)
}

func UnsupportedRuntime(runtime string) *DispatchError {
	return newErr("UnsupportedRuntime", fmt.Sprintf("runtime %q is not supported", runtime), 400, false, nil)
}

func UnsupportedGPUModel(displayName string) *DispatchError {
	return newErr("UnsupportedGPUModel", fmt.Sprintf("GPU display name %q is not in the GPU model registry or has no RTX token to derive a profile from", displayName), 500, false, nil)
}

func HeterogeneousSelection(names []string) *DispatchError {
	return newErr("HeterogeneousSelection", fmt.Sprintf("selection spans more than one GPU model: %v", names), 500, false, nil)
}

func TelemetryIncomplete(cause error) *DispatchError {
	return newErr("TelemetryIncomplete", "one or more GPUs are missing a metric after the telemetry pull", 500, true, cause)
}

func CatalogLookupFailed(model string, cause error) *DispatchError {
	return newErr("CatalogLookupFailed", fmt.Sprintf("could not resolve catalog entry for %q", model), 500, true, cause)
}

func NoAvailableGPU() *DispatchError {
	return newErr("NoAvailableGPU", "no node has enough free VRAM to satisfy the request", 500, true, nil)
}

func ReconciliationFailed(reason string, cause error) *DispatchError {
	return newErr("ReconciliationFailed", reason, 500, false, cause)
}

func AuthFailed(cause error) *DispatchError {
	return newErr("AuthFailed", "auth bootstrap failed, service is non-operational", 500, false, cause)
}

func StreamFailed(cause error) *DispatchError {
	return newErr("StreamFailed", "chat stream terminated with an error", 500, false, cause)
}

func NetworkErr(cause error) *DispatchError {
	return newErr("NetworkError", "upstream HTTP call failed", 500, true, cause)
}
