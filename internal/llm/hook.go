package llm

import (
	"context"

	"workeragent/internal/llmclient"
)

// Phases tag every oracle call with the step that issued it.
const (
	PhaseClarify      = "clarify"
	PhaseRoadmap      = "roadmap"
	PhaseProgrammer   = "programmer"
	PhaseTester       = "tester"
	PhaseRequirements = "requirements"
	PhaseGoal         = "goal"
	PhaseRelevance    = "relevance"
)

type PromptHook interface {
	Before(ctx context.Context, phase string, messages []llmclient.Message)
	After(ctx context.Context, phase string, reply string, err error)
}

type ctxKeyHook struct{}
type ctxKeyPhase struct{}

// WithHook attaches a PromptHook to the context seen by WithHooks.
func WithHook(ctx context.Context, hook PromptHook) context.Context {
	return context.WithValue(ctx, ctxKeyHook{}, hook)
}

func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, ctxKeyPhase{}, phase)
}

// HookFrom returns the hook stored in the context.
func HookFrom(ctx context.Context) PromptHook {
	if v := ctx.Value(ctxKeyHook{}); v != nil {
		if h, ok := v.(PromptHook); ok {
			return h
		}
	}
	return nil
}

// PhaseFrom returns the phase string stored in the context.
func PhaseFrom(ctx context.Context) string {
	if v := ctx.Value(ctxKeyPhase{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "unknown"
}
