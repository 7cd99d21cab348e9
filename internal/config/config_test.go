package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var knobs = []string{
	"WORKSPACE_DIR", "MAX_ITERATIONS", "MAX_CLARIFICATIONS", "GENERATE_TESTS", "RELEVANCE",
	"LLM_PROVIDER", "LLM_MODEL", "LLM_BASE_URL", "LLM_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY",
	"HF_TOKEN", "LLM_RPS", "LLM_BURST", "LLM_RETRIES", "SANDBOX_PYTHON", "EXEC_TIMEOUT",
	"INSTALL_TIMEOUT", "ARTIFACT_BACKEND", "ARTIFACT_S3_ENDPOINT", "ARTIFACT_MINIO_ENDPOINT",
	"ARTIFACT_PG_DSN", "DATABASE_URL", "ARTIFACT_S3_USE_SSL",
}

// isolate clears every knob and runs Load from an empty directory so a
// developer .env cannot leak in.
func isolate(t *testing.T) {
	t.Helper()
	for _, k := range knobs {
		t.Setenv(k, "")
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "workspace", cfg.WorkspaceDir)
	require.Equal(t, 15, cfg.MaxIterations)
	require.Equal(t, 10, cfg.MaxClarifications)
	require.False(t, cfg.GenerateTests)
	require.Equal(t, "none", cfg.Relevance)
	require.Equal(t, "gemini", cfg.LLM.Provider)
	require.Equal(t, "python3", cfg.Sandbox.BasePython)
	require.Equal(t, 5*time.Minute, cfg.Sandbox.ExecTimeout)
	require.Equal(t, "disk", cfg.Artifact.Backend)
	require.Equal(t, ".workeragent/runs", cfg.Artifact.DiskDir)
}

func TestLoadOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("MAX_ITERATIONS", "3")
	t.Setenv("GENERATE_TESTS", "true")
	t.Setenv("LLM_PROVIDER", "HuggingFace")
	t.Setenv("HF_TOKEN", "hf_x")
	t.Setenv("EXEC_TIMEOUT", "30s")
	t.Setenv("ARTIFACT_PG_DSN", "postgres://x")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.MaxIterations)
	require.True(t, cfg.GenerateTests)
	require.Equal(t, "huggingface", cfg.LLM.Provider)
	require.Equal(t, "hf_x", cfg.LLM.APIKey)
	require.Equal(t, 30*time.Second, cfg.Sandbox.ExecTimeout)
	require.Equal(t, "postgres", cfg.Artifact.Backend)
}

func TestLoadPrefersS3WhenEndpointSet(t *testing.T) {
	isolate(t)
	t.Setenv("ARTIFACT_MINIO_ENDPOINT", "minio:9000")
	t.Setenv("ARTIFACT_PG_DSN", "postgres://x")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "s3", cfg.Artifact.Backend)
	require.Equal(t, "minio:9000", cfg.Artifact.Endpoint)
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	isolate(t)
	t.Setenv("MAX_ITERATIONS", "many")
	t.Setenv("EXEC_TIMEOUT", "soon")
	_, err := Load()
	if err == nil {
		t.Fatalf("expected error")
	}
	require.Contains(t, err.Error(), "MAX_ITERATIONS")
	require.Contains(t, err.Error(), "EXEC_TIMEOUT")
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "  ", "x", "y"); got != "x" {
		t.Fatalf("got %q", got)
	}
	if got := firstNonEmpty(); got != "" {
		t.Fatalf("got %q", got)
	}
}
