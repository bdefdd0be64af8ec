// Command gpu-delegater runs the GPU-aware inference delegator as a
// long-running HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"

	"github.com/leoho0722/gpu-delegater/internal/config"
	"github.com/leoho0722/gpu-delegater/internal/diagnostics"
	"github.com/leoho0722/gpu-delegater/internal/gpudispatch/catalog"
	"github.com/leoho0722/gpu-delegater/internal/gpudispatch/registry"
	"github.com/leoho0722/gpu-delegater/internal/gpudispatch/telemetry"
	"github.com/leoho0722/gpu-delegater/internal/httpapi"
	"github.com/leoho0722/gpu-delegater/internal/inference/auth"
	"github.com/leoho0722/gpu-delegater/internal/inference/chat"
	"github.com/leoho0722/gpu-delegater/internal/inference/orchestrator"
	"github.com/leoho0722/gpu-delegater/internal/kubeai"
	"github.com/leoho0722/gpu-delegater/internal/logging"
	"github.com/leoho0722/gpu-delegater/internal/observability/tracing"
)

func main() {
	var envFile string
	var devMode bool
	var logFilePath string
	flag.StringVar(&envFile, "env-file", "", "optional .env style configuration file")
	flag.BoolVar(&devMode, "dev", false, "console logging instead of rotated file logging")
	flag.StringVar(&logFilePath, "log-file", "/var/log/gpu-delegater/service.log", "rotated log file path in service mode")
	flag.Parse()

	if devMode {
		logging.InitDevMode()
	} else {
		logging.InitServiceMode(logging.FileSink{Path: logFilePath})
	}
	logger := klog.NewKlogr().WithName("gpu-delegater")

	cfg, err := config.Load(envFile)
	if err != nil {
		logger.Error(err, "failed to load configuration")
		os.Exit(1)
	}

	shutdownTracing, err := tracing.Init(context.Background(), tracing.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    "gpu-delegater",
		ServiceVersion: cfg.Version,
		OTLPEndpoint:   cfg.TracingOTLPEndpoint,
		SamplingRate:   cfg.TracingSampleRate,
	})
	if err != nil {
		logger.Error(err, "failed to initialize tracing")
		os.Exit(1)
	}
	defer shutdownTracing()

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

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		logger.Error(err, "failed to create kubernetes clientset")
		os.Exit(1)
	}
	inspector := diagnostics.NewInspector(clientset, cfg.Namespace)

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

	orch := orchestrator.New(telemetryGateway, catalogAdapter, gpuRegistry, reconciler, templateLoader, bootstrapper, chatClient, allowList).
		WithDiagnostics(inspector)

	server := httpapi.NewServer(orch, cfg.Version)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: server.Handler(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(err, "error shutting down http server")
		}
		cancel()
	}()

	logger.Info("gpu-delegater ready", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error(err, "http server stopped with error")
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("gpu-delegater stopped")
}

func buildKubeConfig(kubeConfigPath string) (*rest.Config, error) {
	if kubeConfigPath != "" {
		return clientcmd.BuildConfigFromFlags("", kubeConfigPath)
	}
	return rest.InClusterConfig()
}
