// Package config loads the service's runtime configuration from the
// environment (and an optional .env-style file), using cleanenv the way the
// pack's KubeAI-adjacent tooling does.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// UserCredentials are the WebUI sign-in credentials the auth bootstrapper
// exchanges for a session token and API key.
type UserCredentials struct {
	Email    string `env:"USER_EMAIL"`
	Password string `env:"USER_PASSWORD"`
}

// Config is the full set of environment-driven knobs for both the service
// and CLI entry points.
type Config struct {
	Version string `env:"VERSION" env-default:"dev"`
	Host    string `env:"HOST" env-default:"0.0.0.0"`
	Port    int    `env:"PORT" env-default:"8080"`

	BaseURL                  string        `env:"BASE_URL" env-default:"http://localhost:11434"`
	WebUIURL                 string        `env:"WEBUI_URL" env-default:"http://localhost:8081"`
	Timeout                  time.Duration `env:"TIMEOUT" env-default:"60s"`
	OllamaParametersWorkerURL string       `env:"OLLAMA_PARAMETERS_WORKER_URL"`
	Concurrent               int           `env:"CONCURRENT" env-default:"1"`

	PrometheusURL  string `env:"PROMETHEUS_URL" env-default:"http://localhost:9090"`
	KubeConfigPath string `env:"KUBECONFIG"`
	Namespace      string `env:"NAMESPACE" env-default:"kubeai"`

	GPUModelsRegistryPath    string `env:"GPU_MODELS_REGISTRY" env-default:"configs/gpu_models.yaml"`
	SupportedModelsPath      string `env:"SUPPORTED_MODELS" env-default:"configs/supported-model.yaml"`
	KubeAITemplatesDir       string `env:"KUBEAI_TEMPLATES_DIR" env-default:"configs/kubeai"`

	TracingEnabled      bool    `env:"TRACING_ENABLED" env-default:"false"`
	TracingOTLPEndpoint string  `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4317"`
	TracingSampleRate   float64 `env:"TRACING_SAMPLE_RATE" env-default:"1.0"`

	User UserCredentials
}

// Load reads the environment into a Config, falling back to defaults for
// anything unset. envFile may be empty, in which case only process
// environment variables are consulted.
func Load(envFile string) (*Config, error) {
	cfg := &Config{}

	var err error
	if envFile != "" {
		err = cleanenv.ReadConfig(envFile, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}
