// Package codegen drives the generate, persist, install, execute and
// evaluate loop until the task succeeds or the iteration budget runs out.
package codegen

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"workeragent/internal/codeblock"
	"workeragent/internal/deps"
	"workeragent/internal/llm"
	"workeragent/internal/llmclient"
	"workeragent/internal/metrics"
	"workeragent/internal/notify"
	"workeragent/internal/prompt"
	"workeragent/internal/sandbox"
	"workeragent/internal/telemetry"
	"workeragent/internal/workspace"
)

const (
	DefaultMaxIterations = 15
	RequirementsFile     = "requirements.txt"

	generateTemperature float32 = 0.1
	goalTemperature     float32 = 0.1
	// minRequirementsLen is the reply length below which the requirements
	// answer is treated as empty.
	minRequirementsLen = 3
)

// State is the terminal state of a run.
type State string

const (
	StateSuccess   State = "success"
	StateExhausted State = "exhausted"
	// StateAborted accompanies a non-nil error from Run.
	StateAborted State = "aborted"
)

// Outcome summarizes a finished run.
type Outcome struct {
	RunID      string
	State      State
	Iterations int
	Artifacts  []workspace.Artifact
	// PendingFeedback is the feedback the next round would have received.
	PendingFeedback string
	// FeedbackHistory holds the feedback produced by every round, in order.
	FeedbackHistory []string
}

// Sandbox is the isolated environment generated code runs in.
type Sandbox interface {
	Provision(ctx context.Context) error
	Install(ctx context.Context, requirementsFile string)
	Execute(ctx context.Context, path string) sandbox.ExecutionResult
}

type Config struct {
	LLM     llmclient.LLMClient
	Store   *workspace.Store
	Sandbox Sandbox
	Deps    *deps.Resolver
	// ResolveDeps builds the resolver once the sandbox is provisioned. Used
	// only when Deps is nil.
	ResolveDeps func(ctx context.Context) *deps.Resolver
	Metrics     *metrics.Registry
	Logger      *log.Logger
	// RunID tags events and mirrored artifacts. Generated when empty.
	RunID string
}

type Options struct {
	Roadmap       string
	MaxIterations int
	GenerateTests bool
	Messages      *notify.Messages
	// Sink receives progress events; defaults to notify.ConsoleSink.
	Sink notify.Sink
}

// Generator owns one workspace. Concurrent runs over the same workspace are
// not supported.
type Generator struct {
	llm     llmclient.LLMClient
	store   *workspace.Store
	sandbox Sandbox
	deps    *deps.Resolver
	metrics *metrics.Registry
	logger  *log.Logger
	runID   string
}

// New provisions the sandbox and returns a Generator. Provisioning failures
// are returned before any iteration runs.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	if cfg.LLM == nil || cfg.Store == nil || cfg.Sandbox == nil {
		return nil, errors.New("codegen: LLM, Store and Sandbox are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = uuid.NewString()
	}
	if err := cfg.Sandbox.Provision(ctx); err != nil {
		return nil, err
	}
	if cfg.Deps == nil && cfg.ResolveDeps != nil {
		cfg.Deps = cfg.ResolveDeps(ctx)
	}
	if cfg.Deps == nil {
		cfg.Deps = deps.NewResolver("")
	}
	return &Generator{
		llm:     cfg.LLM,
		store:   cfg.Store,
		sandbox: cfg.Sandbox,
		deps:    cfg.Deps,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		runID:   cfg.RunID,
	}, nil
}

func (g *Generator) RunID() string { return g.runID }

// run is the state of one Run call.
type run struct {
	userPrompt string
	opts       Options
	messages   notify.Messages
	sink       notify.Sink
	set        *workspace.Set
	round      int
	pending    string
	history    []string
}

// Run executes up to MaxIterations rounds. It returns an error only for a
// missing output path or an oracle that keeps failing after the client's own
// retries. Sink failures are logged. Failed rounds and exhaustion are
// reported through Outcome.
func (g *Generator) Run(ctx context.Context, userPrompt string, opts Options) (Outcome, error) {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	r := &run{
		userPrompt: userPrompt,
		opts:       opts,
		messages:   notify.DefaultMessages(),
		sink:       opts.Sink,
		set:        workspace.NewSet(),
	}
	if opts.Messages != nil {
		r.messages = *opts.Messages
	}
	if r.sink == nil {
		r.sink = notify.ConsoleSink{}
	}

	ctx, span := telemetry.Tracer().Start(ctx, "codegen.run")
	span.SetAttributes(attribute.String("run.id", g.runID), attribute.Int("run.max_iterations", opts.MaxIterations))
	defer span.End()

	for it := 1; it <= opts.MaxIterations; it++ {
		done, err := g.iteration(ctx, r, it)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			g.metrics.RunFinished(string(StateAborted))
			return g.outcome(r, StateAborted, it), err
		}
		if done {
			g.metrics.RunFinished(string(StateSuccess))
			span.SetAttributes(attribute.String("run.state", string(StateSuccess)))
			return g.outcome(r, StateSuccess, it), nil
		}
	}

	g.metrics.RunFinished(string(StateExhausted))
	span.SetAttributes(attribute.String("run.state", string(StateExhausted)))
	g.notify(ctx, r, notify.KindTaskFailed, opts.MaxIterations)
	return g.outcome(r, StateExhausted, opts.MaxIterations), nil
}

func (g *Generator) outcome(r *run, state State, iterations int) Outcome {
	return Outcome{
		RunID:           g.runID,
		State:           state,
		Iterations:      iterations,
		Artifacts:       r.set.All(),
		PendingFeedback: r.pending,
		FeedbackHistory: append([]string(nil), r.history...),
	}
}

// iteration runs one round and reports whether the goal was reached.
func (g *Generator) iteration(ctx context.Context, r *run, it int) (bool, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "codegen.iteration")
	span.SetAttributes(attribute.Int("iteration", it))
	defer span.End()

	r.round = it
	g.notify(ctx, r, notify.KindStartingIteration, it)
	g.metrics.IterationStarted()
	r.set.Prune()

	if err := g.generate(ctx, r); err != nil {
		return false, err
	}
	if err := g.requirements(ctx, r); err != nil {
		return false, err
	}

	if feedback, ok := g.runKind(ctx, workspace.KindTest, r); !ok {
		g.fail(r, feedback)
		g.notify(ctx, r, notify.KindTestsFailed, it)
		return false, nil
	}
	if feedback, ok := g.runKind(ctx, workspace.KindCode, r); !ok {
		g.fail(r, feedback)
		g.notify(ctx, r, notify.KindScriptExecutionFailed, it)
		return false, nil
	}

	achieved, err := g.goalAchieved(ctx, r)
	if err != nil {
		return false, err
	}
	if achieved {
		r.pending = ""
		g.notify(ctx, r, notify.KindTaskCompleted, it)
		return true, nil
	}
	g.fail(r, prompt.RefineFeedback)
	return false, nil
}

func (g *Generator) fail(r *run, feedback string) {
	g.logger.Printf("codegen: %s", feedback)
	r.pending = feedback
	r.history = append(r.history, feedback)
}

// generate asks the programmer for files and, when enabled, the tester for
// one test per generated file.
func (g *Generator) generate(ctx context.Context, r *run) error {
	task := prompt.Task(r.userPrompt, r.opts.Roadmap)
	if r.pending != "" {
		task = prompt.Retry(task)
	}
	reply, err := g.complete(ctx, prompt.RoleProgrammer, task, r.set.Files(), r.pending)
	if err != nil {
		return err
	}
	for _, blk := range codeblock.Extract(reply) {
		written, err := g.store.Write(ctx, r.round, workspace.KindCode, blk.Path, blk.Content)
		if err != nil {
			return err
		}
		r.set.Upsert(blk.Path, workspace.KindCode, written)

		if !r.opts.GenerateTests {
			continue
		}
		testReply, err := g.complete(ctx, prompt.RoleTester, prompt.TestRequest, r.set.Files(), "")
		if err != nil {
			return err
		}
		tests := codeblock.Extract(testReply)
		if len(tests) == 0 {
			continue
		}
		written, err = g.store.Write(ctx, r.round, workspace.KindTest, tests[0].Path, tests[0].Content)
		if err != nil {
			return err
		}
		r.set.Upsert(tests[0].Path, workspace.KindTest, written)
	}
	return nil
}

// requirements regenerates the dependency manifest and installs it. A
// manifest that filters down to nothing is neither written nor installed.
func (g *Generator) requirements(ctx context.Context, r *run) error {
	reply, err := g.complete(ctx, prompt.RoleRequirements, prompt.RequirementsRequest, r.set.Files(), "")
	if err != nil {
		return err
	}
	if len(reply) <= minRequirementsLen {
		return nil
	}
	filtered := g.deps.Filter(reply)
	if strings.TrimSpace(filtered) == "" {
		return nil
	}
	written, err := g.store.Write(ctx, r.round, workspace.KindRequirements, RequirementsFile, filtered)
	if err != nil {
		return err
	}
	r.set.Upsert(RequirementsFile, workspace.KindRequirements, written)

	abs, err := g.store.Abs(RequirementsFile)
	if err != nil {
		return err
	}
	g.sandbox.Install(ctx, abs)
	return nil
}

// runKind executes every artifact of kind in order and stops at the first
// failure, returning its feedback.
func (g *Generator) runKind(ctx context.Context, kind workspace.Kind, r *run) (string, bool) {
	for _, a := range r.set.OfKind(kind) {
		abs, err := g.store.Abs(a.Path)
		if err != nil {
			abs = a.Path
		}
		res := g.sandbox.Execute(ctx, abs)
		g.metrics.Execution(string(kind), res.Succeeded())
		if res.Succeeded() {
			continue
		}
		if kind == workspace.KindTest {
			return TestFeedback(a.Path, res.RunInfo()), false
		}
		return ScriptFeedback(a.Path, res.RunInfo()), false
	}
	return "", true
}

func (g *Generator) goalAchieved(ctx context.Context, r *run) (bool, error) {
	var files []string
	for _, a := range r.set.All() {
		if a.Kind == workspace.KindCode || a.Kind == workspace.KindTest {
			files = append(files, prompt.GoalFile(a.Path, a.Content))
		}
	}
	reply, err := g.llm.Complete(llm.WithPhase(ctx, llm.PhaseGoal), []llmclient.Message{
		llmclient.System(prompt.GoalAchieved),
		llmclient.User(prompt.Goal(r.userPrompt, files)),
	}, goalTemperature)
	if err != nil {
		return false, fmt.Errorf("goal check: %w", err)
	}
	return prompt.IsTrue(reply), nil
}

// complete sends one code-generation request. Feedback, when present, is the
// last message of the conversation.
func (g *Generator) complete(ctx context.Context, role prompt.Role, task string, files []workspace.File, feedback string) (string, error) {
	system, err := role.SystemPrompt()
	if err != nil {
		return "", err
	}
	msgs := []llmclient.Message{llmclient.System(system), llmclient.User(task)}
	if fc := workspace.RenderContext(files, workspace.ContextBudget); fc != "" {
		msgs = append(msgs, llmclient.User(fc))
	}
	if feedback != "" {
		msgs = append(msgs, llmclient.User(prompt.ErrorFeedback(feedback)))
	}
	out, err := g.llm.Complete(llm.WithPhase(ctx, role.String()), msgs, generateTemperature)
	if err != nil {
		return "", fmt.Errorf("%s: %w", role, err)
	}
	return out, nil
}

func (g *Generator) notify(ctx context.Context, r *run, kind notify.Kind, it int) {
	ev := r.messages.Event(kind, it)
	ev.RunID = g.runID
	if err := r.sink.Notify(ctx, ev); err != nil {
		g.logger.Printf("codegen: notify %s (iteration %d): %v", kind, it, err)
	}
}
