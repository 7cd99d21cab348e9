// Package clarify runs the clarification interview that precedes code
// generation and turns its transcript into a roadmap.
package clarify

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"

	"workeragent/internal/llm"
	"workeragent/internal/llmclient"
	"workeragent/internal/prompt"
	"workeragent/internal/workspace"
)

const (
	DefaultMaxClarifications = 10

	clarifyTemperature float32 = 0.1
	roadmapTemperature float32 = 0.2
)

// Turn is one question and its answer, kept in interview order.
type Turn struct {
	Question string
	Answer   string
}

// AnswerFunc obtains the answer to one question. It may block; the
// interview waits for it.
type AnswerFunc func(ctx context.Context, question string) (string, error)

// Result is the outcome of an interview.
type Result struct {
	// Prompt is the original instructions plus the Q/A transcript.
	Prompt  string
	Roadmap string
	Turns   []Turn
}

type Interviewer struct {
	LLM               llmclient.LLMClient
	MaxClarifications int
	// OperatingSystem and Browser describe the operator's machine to the
	// oracle. They default to runtime.GOOS and "chrome".
	OperatingSystem string
	Browser         string
	Logger          *log.Logger
}

// Interview asks up to MaxClarifications questions and then requests a
// roadmap. files are shown to the oracle within workspace.ContextBudget.
// A nil answer reads from standard input.
func (iv *Interviewer) Interview(ctx context.Context, instructions string, files []workspace.File, answer AnswerFunc) (Result, error) {
	if answer == nil {
		answer = StdinAnswerer(nil, nil)
	}
	max := iv.MaxClarifications
	if max <= 0 {
		max = DefaultMaxClarifications
	}
	fileContext := workspace.RenderContext(files, workspace.ContextBudget)

	var turns []Turn
	for i := 0; i < max; i++ {
		question, err := iv.ask(ctx, instructions, turns, fileContext)
		if err != nil {
			return Result{}, fmt.Errorf("clarify: %w", err)
		}
		if question == prompt.NothingToClarify {
			break
		}
		a, err := answer(ctx, question)
		if err != nil {
			return Result{}, fmt.Errorf("clarify: answer: %w", err)
		}
		turns = append(turns, Turn{Question: question, Answer: a})
	}

	composite := Composite(instructions, turns)
	roadmap, err := iv.roadmap(ctx, composite, fileContext)
	if err != nil {
		return Result{}, fmt.Errorf("roadmap: %w", err)
	}
	iv.logger().Printf("clarify: %d clarification(s), roadmap %d bytes", len(turns), len(roadmap))
	return Result{Prompt: composite, Roadmap: roadmap, Turns: turns}, nil
}

func (iv *Interviewer) ask(ctx context.Context, instructions string, turns []Turn, fileContext string) (string, error) {
	msgs := []llmclient.Message{
		llmclient.System(prompt.Clarify(iv.os(), iv.browser())),
		llmclient.User(instructions),
	}
	for _, t := range turns {
		msgs = append(msgs, llmclient.Assistant(t.Question), llmclient.User(t.Answer))
	}
	if fileContext != "" {
		msgs = append(msgs, llmclient.User(fileContext))
	}
	out, err := iv.LLM.Complete(llm.WithPhase(ctx, llm.PhaseClarify), msgs, clarifyTemperature)
	return strings.TrimSpace(out), err
}

func (iv *Interviewer) roadmap(ctx context.Context, composite, fileContext string) (string, error) {
	msgs := []llmclient.Message{
		llmclient.System(prompt.Roadmap),
		llmclient.User(composite),
	}
	if fileContext != "" {
		msgs = append(msgs, llmclient.User(fileContext))
	}
	out, err := iv.LLM.Complete(llm.WithPhase(ctx, llm.PhaseRoadmap), msgs, roadmapTemperature)
	return strings.TrimSpace(out), err
}

// Composite renders "Prompt: <instructions>" followed by the transcript when
// there is one.
func Composite(instructions string, turns []Turn) string {
	if len(turns) == 0 {
		return "Prompt: " + instructions
	}
	qa := make([]string, 0, len(turns))
	for _, t := range turns {
		qa = append(qa, "Q: "+t.Question+"\nA: "+t.Answer)
	}
	return "Prompt: " + instructions + "\nClarifications:\n" + strings.Join(qa, "\n")
}

func (iv *Interviewer) os() string {
	if iv.OperatingSystem != "" {
		return iv.OperatingSystem
	}
	return runtime.GOOS
}

func (iv *Interviewer) browser() string {
	if iv.Browser != "" {
		return iv.Browser
	}
	return "chrome"
}

func (iv *Interviewer) logger() *log.Logger {
	if iv.Logger != nil {
		return iv.Logger
	}
	return log.Default()
}

// StdinAnswerer prompts on w and reads one line from r per question. nil
// streams mean os.Stdin and os.Stdout. An empty line answers with
// prompt.DefaultAnswer.
func StdinAnswerer(r io.Reader, w io.Writer) AnswerFunc {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	br := bufio.NewReader(r)
	return func(ctx context.Context, question string) (string, error) {
		if _, err := fmt.Fprintf(w, "Please answer the clarification question: %s\n", question); err != nil {
			return "", err
		}
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		if err == io.EOF && line == "" {
			return prompt.DefaultAnswer, nil
		}
		if line = strings.TrimSpace(line); line == "" {
			return prompt.DefaultAnswer, nil
		}
		return line, nil
	}
}
