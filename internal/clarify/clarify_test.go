package clarify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"workeragent/internal/llmclient"
	"workeragent/internal/prompt"
	"workeragent/internal/workspace"
)

func TestInterviewNothingToClarify(t *testing.T) {
	fake := llmclient.NewFakeClient("  Nothing to clarify \n", "1. write the script")
	iv := &Interviewer{LLM: fake, MaxClarifications: 5}

	answered := false
	res, err := iv.Interview(context.Background(), "print hello", nil, func(context.Context, string) (string, error) {
		answered = true
		return "", nil
	})
	require.NoError(t, err)
	require.False(t, answered, "no question should be asked")
	require.Empty(t, res.Turns)
	require.Equal(t, "Prompt: print hello", res.Prompt)
	require.Equal(t, "1. write the script", res.Roadmap)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	roadmapCall := calls[1]
	require.Equal(t, prompt.Roadmap, roadmapCall[0].Content)
	require.Equal(t, "Prompt: print hello", roadmapCall[1].Content)
}

func TestInterviewReplaysTurnsInOrder(t *testing.T) {
	fake := llmclient.NewFakeClient("Which OS?", "Which browser?", "Nothing to clarify", "roadmap")
	iv := &Interviewer{LLM: fake, MaxClarifications: 10}
	answers := map[string]string{"Which OS?": "linux", "Which browser?": "firefox"}

	res, err := iv.Interview(context.Background(), "open a page", nil, func(_ context.Context, q string) (string, error) {
		return answers[q], nil
	})
	require.NoError(t, err)
	require.Equal(t, []Turn{{"Which OS?", "linux"}, {"Which browser?", "firefox"}}, res.Turns)
	require.Equal(t, "Prompt: open a page\nClarifications:\nQ: Which OS?\nA: linux\nQ: Which browser?\nA: firefox", res.Prompt)

	third := fake.Calls()[2]
	require.Len(t, third, 6)
	require.Equal(t, llmclient.RoleAssistant, third[2].Role)
	require.Equal(t, "Which OS?", third[2].Content)
	require.Equal(t, llmclient.RoleUser, third[3].Role)
	require.Equal(t, "linux", third[3].Content)
	require.Equal(t, "Which browser?", third[4].Content)
}

func TestInterviewBudgetExhaustionIsNotAnError(t *testing.T) {
	fake := llmclient.NewFakeResponder(func(msgs []llmclient.Message, _ float32) (string, error) {
		if msgs[0].Content == prompt.Roadmap {
			return "roadmap", nil
		}
		return "Another question?", nil
	})
	iv := &Interviewer{LLM: fake, MaxClarifications: 2}
	res, err := iv.Interview(context.Background(), "task", nil, func(context.Context, string) (string, error) {
		return "yes", nil
	})
	require.NoError(t, err)
	require.Len(t, res.Turns, 2)
	require.Equal(t, "roadmap", res.Roadmap)
	require.Len(t, fake.Calls(), 3)
}

func TestInterviewIncludesFileContext(t *testing.T) {
	fake := llmclient.NewFakeClient("Nothing to clarify", "roadmap")
	iv := &Interviewer{LLM: fake}
	files := []workspace.File{{Path: "app.py", Content: "print(1)"}}
	_, err := iv.Interview(context.Background(), "task", files, nil)
	require.NoError(t, err)
	for _, call := range fake.Calls() {
		last := call[len(call)-1]
		require.True(t, strings.HasPrefix(last.Content, "Relevant project files:\nFile: app.py\n"), "got %q", last.Content)
	}
}

func TestInterviewPropagatesAnswerError(t *testing.T) {
	fake := llmclient.NewFakeClient("Question?")
	iv := &Interviewer{LLM: fake}
	boom := errors.New("operator left")
	_, err := iv.Interview(context.Background(), "task", nil, func(context.Context, string) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
}

func TestStdinAnswererDefaultsEmptyAnswer(t *testing.T) {
	var out strings.Builder
	answer := StdinAnswerer(strings.NewReader("chrome\n\n"), &out)

	a, err := answer(context.Background(), "Browser?")
	require.NoError(t, err)
	require.Equal(t, "chrome", a)

	a, err = answer(context.Background(), "Anything else?")
	require.NoError(t, err)
	require.Equal(t, prompt.DefaultAnswer, a)

	a, err = answer(context.Background(), "At EOF?")
	require.NoError(t, err)
	require.Equal(t, prompt.DefaultAnswer, a)
	require.Contains(t, out.String(), "Please answer the clarification question: Browser?\n")
}
