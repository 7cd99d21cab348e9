package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"workeragent/internal/clarify"
	"workeragent/internal/codegen"
	"workeragent/internal/config"
	"workeragent/internal/deps"
	"workeragent/internal/metrics"
	"workeragent/internal/notify"
	"workeragent/internal/prompt"
	"workeragent/internal/safeio"
	"workeragent/internal/sandbox"
	"workeragent/internal/telemetry"
	"workeragent/internal/workspace"
)

var runFlags struct {
	workspace         string
	maxIterations     int
	maxClarifications int
	generateTests     bool
	keep              bool
	provider          string
	model             string
	relevance         string
	serve             string
	metricsAddr       string
	messages          string
}

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run the interview and the generation loop for one task",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTask,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.workspace, "workspace", "", "workspace directory (WORKSPACE_DIR)")
	f.IntVar(&runFlags.maxIterations, "max-iterations", 0, "iteration budget (MAX_ITERATIONS)")
	f.IntVar(&runFlags.maxClarifications, "max-clarifications", 0, "clarification question budget (MAX_CLARIFICATIONS)")
	f.BoolVar(&runFlags.generateTests, "tests", false, "generate and run unit tests (GENERATE_TESTS)")
	f.BoolVar(&runFlags.keep, "keep", false, "keep the existing workspace instead of wiping it")
	f.StringVar(&runFlags.provider, "provider", "", "gemini, openai, huggingface or fake (LLM_PROVIDER)")
	f.StringVar(&runFlags.model, "model", "", "model id (LLM_MODEL)")
	f.StringVar(&runFlags.relevance, "relevance", "", "context selection for --keep runs: none, all or llm (RELEVANCE)")
	f.StringVar(&runFlags.serve, "serve", "", "serve the websocket progress hub on this address (HUB_ADDR)")
	f.StringVar(&runFlags.metricsAddr, "metrics-addr", "", "serve /metrics on this address (METRICS_ADDR)")
	f.StringVar(&runFlags.messages, "messages", "", "YAML file overriding notification texts (MESSAGES_FILE)")
}

// applyFlags lays explicitly set flags over the environment config.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("workspace") {
		cfg.WorkspaceDir = runFlags.workspace
	}
	if f.Changed("max-iterations") {
		cfg.MaxIterations = runFlags.maxIterations
	}
	if f.Changed("max-clarifications") {
		cfg.MaxClarifications = runFlags.maxClarifications
	}
	if f.Changed("tests") {
		cfg.GenerateTests = runFlags.generateTests
	}
	if f.Changed("provider") {
		cfg.LLM.Provider = strings.ToLower(runFlags.provider)
	}
	if f.Changed("model") {
		cfg.LLM.Model = runFlags.model
	}
	if f.Changed("relevance") {
		cfg.Relevance = strings.ToLower(runFlags.relevance)
	}
	if f.Changed("serve") {
		cfg.HubAddr = runFlags.serve
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr = runFlags.metricsAddr
	}
	if f.Changed("messages") {
		cfg.MessagesFile = runFlags.messages
	}
}

func runTask(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	logger := log.New(os.Stderr, "workeragent: ", log.LstdFlags|log.Lmsgprefix)

	userPrompt, err := taskPrompt(args)
	if err != nil {
		return err
	}

	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Printf("telemetry shutdown: %v", err)
		}
	}()

	reg := metrics.New()
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		srv := startServer(cfg.MetricsAddr, mux, logger)
		defer srv.Close()
	}

	oracle, err := newOracle(ctx, cfg.LLM, reg, logger)
	if err != nil {
		return err
	}
	defer oracle.Close()

	if !runFlags.keep {
		if err := os.RemoveAll(cfg.WorkspaceDir); err != nil {
			return fmt.Errorf("wipe workspace: %w", err)
		}
	}
	root, err := safeio.NewSafeFS(cfg.WorkspaceDir)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	mirror, closeMirror, err := newMirror(cfg.Artifact, logger)
	if err != nil {
		return err
	}
	defer closeMirror()
	storeOpts := []workspace.Option{workspace.WithLogger(logger)}
	if mirror != nil {
		storeOpts = append(storeOpts, workspace.WithMirror(mirror, runID))
	}
	store := workspace.NewStore(root, storeOpts...)

	sb := sandbox.New(sandbox.Config{
		WorkDir:        root.Root(),
		BasePython:     cfg.Sandbox.BasePython,
		ExecTimeout:    cfg.Sandbox.ExecTimeout,
		InstallTimeout: cfg.Sandbox.InstallTimeout,
	}, nil, logger)

	gen, err := codegen.New(ctx, codegen.Config{
		LLM:     oracle,
		Store:   store,
		Sandbox: sb,
		ResolveDeps: func(ctx context.Context) *deps.Resolver {
			return stdlibResolver(ctx, sb, logger)
		},
		Metrics: reg,
		Logger:  logger,
		RunID:   runID,
	})
	if err != nil {
		return err
	}

	messages := notify.DefaultMessages()
	if cfg.MessagesFile != "" {
		if messages, err = notify.LoadMessages(cfg.MessagesFile); err != nil {
			return err
		}
	}

	var sink notify.Sink = notify.ConsoleSink{W: cmd.OutOrStdout()}
	answer := clarify.StdinAnswerer(cmd.InOrStdin(), cmd.OutOrStdout())
	if cfg.HubAddr != "" {
		hub := notify.NewHub(logger)
		defer hub.Close()
		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		srv := startServer(cfg.HubAddr, mux, logger)
		defer srv.Close()
		sink = notify.Multi{sink, hub}
		answer = hubAnswerer(hub)
	}

	filter, err := newRelevance(cfg.Relevance, oracle, sb.EnvDir(), logger)
	if err != nil {
		return err
	}
	files, err := filter.Relevant(ctx, userPrompt, root)
	if err != nil {
		return err
	}

	iv := &clarify.Interviewer{
		LLM:               oracle,
		MaxClarifications: cfg.MaxClarifications,
		OperatingSystem:   cfg.OperatingSystem,
		Browser:           cfg.Browser,
		Logger:            logger,
	}
	interview, err := iv.Interview(ctx, userPrompt, files, answer)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Roadmap:\n%s\n", interview.Roadmap)

	out, err := gen.Run(ctx, userPrompt, codegen.Options{
		Roadmap:       interview.Roadmap,
		MaxIterations: cfg.MaxIterations,
		GenerateTests: cfg.GenerateTests,
		Messages:      &messages,
		Sink:          sink,
	})
	if err != nil {
		return err
	}
	logger.Printf("run %s: %s after %d iterations, %d artifacts in %s",
		out.RunID, out.State, out.Iterations, len(out.Artifacts), root.Root())
	if mirror != nil {
		st := mirror.Stats()
		logger.Printf("run %s: recorded %d revisions (%d origin errors); list them with: artifacts %s",
			out.RunID, st.OriginWrites, st.OriginErrors, out.RunID)
	}
	return nil
}

// taskPrompt takes the prompt from args or asks for it on stdin.
func taskPrompt(args []string) (string, error) {
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	fmt.Print("Enter your prompt for code generation: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	p := strings.TrimSpace(line)
	if p == "" {
		return "", errors.New("empty prompt")
	}
	return p, nil
}

// stdlibResolver prefers the module list of the environment interpreter and
// falls back to the embedded list for its version.
func stdlibResolver(ctx context.Context, sb *sandbox.Runner, logger *log.Logger) *deps.Resolver {
	mods, err := sb.StdlibModules(ctx)
	if err == nil && len(mods) > 0 {
		return deps.NewResolverFromModules(mods)
	}
	logger.Printf("stdlib lookup failed, using embedded list: %v", err)
	version, err := sb.Version(ctx)
	if err != nil {
		logger.Printf("python version lookup failed: %v", err)
	}
	return deps.NewResolver(version)
}

func hubAnswerer(hub *notify.Hub) clarify.AnswerFunc {
	return func(ctx context.Context, question string) (string, error) {
		a, err := hub.Ask(ctx, question)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(a) == "" {
			return prompt.DefaultAnswer, nil
		}
		return a, nil
	}
}

func startServer(addr string, h http.Handler, logger *log.Logger) *http.Server {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Printf("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server %s: %v", addr, err)
		}
	}()
	return srv
}
