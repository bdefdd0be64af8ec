// Package telemetry fans out the DCGM PromQL queries that feed the GPU
// inventory builder.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"k8s.io/klog/v2"
)

// MetricName enumerates the DCGM metrics pulled into one snapshot.
type MetricName string

const (
	FreeMemory  MetricName = "free_memory_mib"
	UsedMemory  MetricName = "used_memory_mib"
	Temperature MetricName = "temperature_c"
	Util        MetricName = "util_percent"
	Power       MetricName = "power_w"
)

var dcgmQueries = map[MetricName]string{
	FreeMemory:  "DCGM_FI_DEV_FB_FREE",
	UsedMemory:  "DCGM_FI_DEV_FB_USED",
	Temperature: "DCGM_FI_DEV_GPU_TEMP",
	Util:        "DCGM_FI_DEV_GPU_UTIL",
	Power:       "DCGM_FI_DEV_POWER_USAGE",
}

// Sample is one labeled scalar observation from a PromQL query result.
type Sample struct {
	Node      string
	CUDAIndex int
	UUID      string
	ModelName string
	Value     float64
}

// Snapshot maps each metric to the samples returned for it.
type Snapshot map[MetricName][]Sample

// DefaultBatchTimeout bounds the whole five-query batch, per the telemetry
// gateway's default deadline.
const DefaultBatchTimeout = 60 * time.Second

// Gateway issues the DCGM queries concurrently against a Prometheus server.
type Gateway struct {
	api    promv1.API
	logger klog.Logger
}

// NewGateway builds a Gateway against the given Prometheus address.
func NewGateway(address string) (*Gateway, error) {
	client, err := promapi.NewClient(promapi.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}
	return &Gateway{
		api:    promv1.NewAPI(client),
		logger: klog.NewKlogr().WithName("telemetry-gateway"),
	}, nil
}

type queryResult struct {
	name    MetricName
	samples []Sample
	err     error
}

// Snapshot issues the five DCGM queries concurrently and joins them by
// query->result association. Any single query failure fails the whole
// snapshot.
func (g *Gateway) Snapshot(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultBatchTimeout)
	defer cancel()

	results := make(chan queryResult, len(dcgmQueries))
	var wg sync.WaitGroup

	for name, query := range dcgmQueries {
		wg.Add(1)
		go func(name MetricName, query string) {
			defer wg.Done()
			samples, err := g.query(ctx, query)
			results <- queryResult{name: name, samples: samples, err: err}
		}(name, query)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	snapshot := make(Snapshot, len(dcgmQueries))
	for res := range results {
		if res.err != nil {
			return nil, fmt.Errorf("query for %s failed: %w", res.name, res.err)
		}
		snapshot[res.name] = res.samples
	}
	return snapshot, nil
}

func (g *Gateway) query(ctx context.Context, query string) ([]Sample, error) {
	value, warnings, err := g.api.Query(ctx, query, time.Now())
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		g.logger.Info("prometheus query warning", "query", query, "warning", w)
	}

	vector, ok := value.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T for query %q", value, query)
	}

	samples := make([]Sample, 0, len(vector))
	for _, sample := range vector {
		cudaIndex, err := parseInt(string(sample.Metric["gpu"]))
		if err != nil {
			continue
		}
		samples = append(samples, Sample{
			Node:      string(sample.Metric["kubernetes_node"]),
			CUDAIndex: cudaIndex,
			UUID:      string(sample.Metric["UUID"]),
			ModelName: string(sample.Metric["modelName"]),
			Value:     float64(sample.Value),
		})
	}
	return samples, nil
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
