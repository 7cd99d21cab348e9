package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	artifactcache "workeragent/internal/cache/artifact"
	"workeragent/internal/config"
	"workeragent/internal/llm"
	"workeragent/internal/llmclient"
	"workeragent/internal/metrics"
	"workeragent/internal/prompt"
	"workeragent/internal/relevance"
	artifactrepo "workeragent/internal/repository/artifact"
)

const retryBaseDelay = 2 * time.Second

// newOracle builds the provider client and layers the middleware chain over
// it: hooks and metrics see one call per request, retries sit under the
// logger so every attempt is logged, and the limiter paces each attempt.
func newOracle(ctx context.Context, cfg config.LLMConfig, reg *metrics.Registry, logger *log.Logger) (llmclient.LLMClient, error) {
	var (
		base llmclient.LLMClient
		err  error
	)
	switch cfg.Provider {
	case "gemini":
		base, err = llmclient.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	case "openai":
		base, err = llmclient.NewOpenAIClient(llmclient.OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Name:    "OpenAI",
		})
	case "huggingface":
		if cfg.BaseURL != "" {
			base, err = llmclient.NewOpenAIClient(llmclient.OpenAIConfig{
				APIKey:  cfg.APIKey,
				BaseURL: cfg.BaseURL,
				Model:   cfg.Model,
				Name:    "HuggingFace",
			})
		} else {
			base, err = llmclient.NewHuggingFaceClient(cfg.APIKey, cfg.Model)
		}
	case "fake":
		// Offline dry run: no questions, no files.
		base = llmclient.NewFakeClient(prompt.NothingToClarify)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	retries := cfg.Retries
	if retries < 1 {
		retries = 1
	}
	return llm.Wrap(base,
		llm.WithHooks(),
		reg.Middleware(),
		llm.WithLogging(logger),
		llm.Retry(retries, retryBaseDelay),
		llm.RateLimit(cfg.RPS, cfg.Burst),
	), nil
}

// newMirror opens the artifact mirror selected by cfg behind a read cache.
// A nil store means mirroring is off. The returned func releases the backend.
func newMirror(cfg config.ArtifactConfig, logger *log.Logger) (*artifactcache.CachedStore, func() error, error) {
	noop := func() error { return nil }
	closer := noop
	var origin artifactrepo.Store
	switch cfg.Backend {
	case "none", "off":
		return nil, noop, nil
	case "s3":
		s3cfg := artifactrepo.S3Config{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		}
		if !s3cfg.CanUse() {
			return nil, noop, fmt.Errorf("artifact store: s3 endpoint, credentials and bucket are required")
		}
		s3, err := artifactrepo.NewS3Store(s3cfg)
		if err != nil {
			return nil, noop, err
		}
		logger.Printf("artifact store: s3 endpoint=%s bucket=%s", cfg.Endpoint, cfg.Bucket)
		origin = s3
	case "postgres":
		pg, err := artifactrepo.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("artifact store: %w", err)
		}
		logger.Printf("artifact store: postgres")
		origin = pg
		closer = pg.Close
	case "disk", "":
		logger.Printf("artifact store: disk dir=%s", cfg.DiskDir)
		origin = artifactrepo.NewDiskStore(cfg.DiskDir)
	default:
		return nil, noop, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
	return artifactcache.NewCachedStore(origin, artifactcache.DefaultCacheConfig()), closer, nil
}

// newRelevance picks how existing workspace files become interview context.
// The sandbox environment directory is never considered.
func newRelevance(mode string, oracle llmclient.LLMClient, envDir string, logger *log.Logger) (relevance.Filter, error) {
	skip := []string{filepath.Base(envDir), "__pycache__", ".git"}
	switch mode {
	case "", "none":
		return relevance.NoneFilter{}, nil
	case "all":
		return relevance.AllFilter{Skip: skip}, nil
	case "llm":
		return &relevance.LLMFilter{LLM: oracle, Skip: skip, Logger: logger}, nil
	}
	return nil, fmt.Errorf("unknown relevance mode %q", mode)
}
