// Command gpu-delegater-cli runs one GPU-aware inference dispatch request
// (or N concurrent copies of it) and prints the streamed completion.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"

	"github.com/leoho0722/gpu-delegater/internal/config"
	"github.com/leoho0722/gpu-delegater/internal/fanout"
	"github.com/leoho0722/gpu-delegater/internal/gpudispatch/catalog"
	"github.com/leoho0722/gpu-delegater/internal/gpudispatch/registry"
	"github.com/leoho0722/gpu-delegater/internal/gpudispatch/telemetry"
	"github.com/leoho0722/gpu-delegater/internal/inference/auth"
	"github.com/leoho0722/gpu-delegater/internal/inference/chat"
	"github.com/leoho0722/gpu-delegater/internal/inference/orchestrator"
	"github.com/leoho0722/gpu-delegater/internal/kubeai"
	"github.com/leoho0722/gpu-delegater/internal/logging"
)

func main() {
	var systemPrompt, userPrompt, model, runtime, envFile string
	var concurrent int

	flag.StringVar(&systemPrompt, "system_prompt", "", "optional system prompt")
	flag.StringVar(&userPrompt, "user_prompt", "", "user prompt (required)")
	flag.StringVar(&model, "m", "gemma2:9b", "model name")
	flag.StringVar(&model, "model", "gemma2:9b", "model name")
	flag.StringVar(&runtime, "runtime", "ollama", "runtime: ollama or vllm")
	flag.IntVar(&concurrent, "concurrent", 1, "number of concurrent copies of this request to run (overrides CONCURRENT)")
	flag.StringVar(&envFile, "env-file", "", "optional .env style configuration file")
	flag.Parse()

	logging.InitDevMode()
	logger := klog.NewKlogr().WithName("gpu-delegater-cli")

	if userPrompt == "" {
		logger.Error(nil, "--user_prompt is required")
		os.Exit(1)
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		logger.Error(err, "failed to load configuration")
		os.Exit(1)
	}

	concurrentSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "concurrent" {
			concurrentSet = true
		}
	})
	if !concurrentSet {
		concurrent = cfg.Concurrent
	}

	restConfig, err := buildKubeConfig(cfg.KubeConfigPath)
	if err != nil {
		logger.Error(err, "failed to build kubernetes config")
		os.Exit(1)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		logger.Error(err, "failed to create dynamic client")
		os.Exit(1)
	}

	telemetryGateway, err := telemetry.NewGateway(cfg.PrometheusURL)
	if err != nil {
		logger.Error(err, "failed to create telemetry gateway")
		os.Exit(1)
	}

	gpuRegistry, err := registry.Load(cfg.GPUModelsRegistryPath)
	if err != nil {
		logger.Error(err, "failed to load GPU model registry")
		os.Exit(1)
	}

	allowList, err := orchestrator.LoadAllowList(cfg.SupportedModelsPath)
	if err != nil {
		logger.Error(err, "failed to load supported-model registry")
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	catalogAdapter := catalog.NewAdapter(catalog.NewHTTPOllamaCatalog(httpClient, cfg.OllamaParametersWorkerURL))
	reconciler := kubeai.NewReconciler(dynamicClient)
	templateLoader := kubeai.NewTemplateLoader(cfg.KubeAITemplatesDir)
	bootstrapper := auth.NewBootstrapper(httpClient, cfg.WebUIURL, auth.Credentials{Email: cfg.User.Email, Password: cfg.User.Password})
	chatClient := chat.NewClient(httpClient, cfg.BaseURL)

	orch := orchestrator.New(telemetryGateway, catalogAdapter, gpuRegistry, reconciler, templateLoader, bootstrapper, chatClient, allowList)

	req := orchestrator.Request{
		Model:        model,
		Runtime:      runtime,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
	}

	ctx := context.Background()

	if concurrent <= 1 {
		chunks, err := orch.Run(ctx, req)
		if err != nil {
			logger.Error(err, "inference request failed")
			os.Exit(1)
		}
		printChunks(chunks)
		return
	}

	harness := fanout.New(orch)
	jobs := harness.Run(ctx, req, concurrent)

	exitCode := 0
	for _, job := range jobs {
		fmt.Printf("=== job %s ===\n", job.ID)
		if job.Err != nil {
			logger.Error(job.Err, "job failed", "job_id", job.ID)
			exitCode = 1
			continue
		}
		printChunks(job.Chunks)
	}
	os.Exit(exitCode)
}

func printChunks(chunks <-chan chat.Chunk) {
	for c := range chunks {
		if c.Err != nil {
			fmt.Println()
			fmt.Fprintln(os.Stderr, c.Err.Error())
			return
		}
		fmt.Print(c.Content)
		if c.Done {
			break
		}
	}
	fmt.Println()
}

func buildKubeConfig(kubeConfigPath string) (*rest.Config, error) {
	if kubeConfigPath != "" {
		return clientcmd.BuildConfigFromFlags("", kubeConfigPath)
	}
	return rest.InClusterConfig()
}
