package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	WorkspaceDir      string
	MaxIterations     int
	MaxClarifications int
	GenerateTests     bool
	// Relevance selects how existing workspace files become interview
	// context: "none", "all" or "llm".
	Relevance       string
	OperatingSystem string
	Browser         string
	MessagesFile    string
	MetricsAddr     string
	// HubAddr serves the websocket progress hub when set.
	HubAddr  string
	LLM      LLMConfig
	Sandbox  SandboxConfig
	Artifact ArtifactConfig
}

type LLMConfig struct {
	// Provider is "gemini", "openai", "huggingface" or "fake".
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	RPS      float64
	Burst    int
	Retries  int
}

type SandboxConfig struct {
	BasePython     string
	ExecTimeout    time.Duration
	InstallTimeout time.Duration
}

type ArtifactConfig struct {
	// Backend is "s3", "postgres", "disk" or "none". When unset it is
	// derived from which settings are present.
	Backend     string
	Endpoint    string
	Region      string
	AccessKey   string
	SecretKey   string
	Bucket      string
	UseSSL      bool
	PostgresDSN string
	DiskDir     string
}

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []string
	intVar := func(key string, def int) int {
		v, err := envInt(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	durVar := func(key string, def time.Duration) time.Duration {
		v, err := envDuration(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	provider := strings.ToLower(firstNonEmpty(env("LLM_PROVIDER"), "gemini"))
	rps, err := envFloat("LLM_RPS", 1)
	if err != nil {
		errs = append(errs, err.Error())
	}

	cfg := &Config{
		WorkspaceDir:      firstNonEmpty(env("WORKSPACE_DIR"), "workspace"),
		MaxIterations:     intVar("MAX_ITERATIONS", 15),
		MaxClarifications: intVar("MAX_CLARIFICATIONS", 10),
		GenerateTests:     envBool("GENERATE_TESTS", false),
		Relevance:         strings.ToLower(firstNonEmpty(env("RELEVANCE"), "none")),
		OperatingSystem:   env("CLARIFY_OS"),
		Browser:           env("CLARIFY_BROWSER"),
		MessagesFile:      env("MESSAGES_FILE"),
		MetricsAddr:       env("METRICS_ADDR"),
		HubAddr:           env("HUB_ADDR"),
		LLM: LLMConfig{
			Provider: provider,
			Model:    env("LLM_MODEL"),
			BaseURL:  env("LLM_BASE_URL"),
			APIKey:   apiKeyFor(provider),
			RPS:      rps,
			Burst:    intVar("LLM_BURST", 1),
			Retries:  intVar("LLM_RETRIES", 3),
		},
		Sandbox: SandboxConfig{
			BasePython:     firstNonEmpty(env("SANDBOX_PYTHON"), "python3"),
			ExecTimeout:    durVar("EXEC_TIMEOUT", 5*time.Minute),
			InstallTimeout: durVar("INSTALL_TIMEOUT", 10*time.Minute),
		},
		Artifact: loadArtifactConfig(),
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func loadArtifactConfig() ArtifactConfig {
	c := ArtifactConfig{
		Backend:     strings.ToLower(env("ARTIFACT_BACKEND")),
		Endpoint:    firstNonEmpty(env("ARTIFACT_S3_ENDPOINT"), env("ARTIFACT_MINIO_ENDPOINT")),
		Region:      firstNonEmpty(env("ARTIFACT_S3_REGION"), "us-east-1"),
		AccessKey:   firstNonEmpty(env("ARTIFACT_S3_ACCESS_KEY"), env("MINIO_ROOT_USER")),
		SecretKey:   firstNonEmpty(env("ARTIFACT_S3_SECRET_KEY"), env("MINIO_ROOT_PASSWORD")),
		Bucket:      firstNonEmpty(env("ARTIFACT_S3_BUCKET"), "workeragent-artifacts"),
		UseSSL:      envBool("ARTIFACT_S3_USE_SSL", true),
		PostgresDSN: firstNonEmpty(env("ARTIFACT_PG_DSN"), env("DATABASE_URL")),
		DiskDir:     firstNonEmpty(env("ARTIFACT_DISK_DIR"), ".workeragent/runs"),
	}
	if c.Backend == "" {
		switch {
		case c.Endpoint != "":
			c.Backend = "s3"
		case c.PostgresDSN != "":
			c.Backend = "postgres"
		default:
			c.Backend = "disk"
		}
	}
	return c
}

func apiKeyFor(provider string) string {
	switch provider {
	case "openai":
		return firstNonEmpty(env("LLM_API_KEY"), env("OPENAI_API_KEY"))
	case "huggingface":
		return firstNonEmpty(env("LLM_API_KEY"), env("HF_TOKEN"))
	default:
		return firstNonEmpty(env("LLM_API_KEY"), env("GEMINI_API_KEY"))
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string, def int) (int, error) {
	raw := env(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %q is not an integer", key, raw)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := env(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def, fmt.Errorf("%s: %q is not a number", key, raw)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := env(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %q is not a duration", key, raw)
	}
	return v, nil
}

// envBool falls back to def on unparsable values, like the artifact SSL flag.
func envBool(key string, def bool) bool {
	raw := env(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
