package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIModel      = "gpt-4o-mini"
	DefaultHuggingFaceModel = "Qwen/Qwen2.5-Coder-32B-Instruct"
	HuggingFaceBaseURL      = "https://router.huggingface.co/v1"

	// maxContinuations bounds the "Continue." follow-ups sent while a reply
	// is cut off by the token limit.
	maxContinuations = 5
	continuePrompt   = "Continue."
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	name      string
	maxTokens int
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Name prefixes Name(); defaults to "OpenAI".
	Name      string
	MaxTokens int
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, NewPermanentError(errors.New("openai: API key is not set"))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Name == "" {
		cfg.Name = "OpenAI"
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAIClient{
		client:    openai.NewClientWithConfig(oc),
		model:     cfg.Model,
		name:      cfg.Name,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// NewHuggingFaceClient targets the Hugging Face inference router.
func NewHuggingFaceClient(token, model string) (*OpenAIClient, error) {
	if model == "" {
		model = DefaultHuggingFaceModel
	}
	return NewOpenAIClient(OpenAIConfig{
		APIKey:    token,
		BaseURL:   HuggingFaceBaseURL,
		Model:     model,
		Name:      "HuggingFace",
		MaxTokens: geminiMaxOutput,
	})
}

func (o *OpenAIClient) Name() string { return o.name + ":" + o.model }
func (o *OpenAIClient) Close() error { return nil }

// Complete returns the reply text. A reply cut off by the token limit is
// continued with a "Continue." turn and the pieces are concatenated. An empty
// message is a valid reply; only a response without choices is an error.
func (o *OpenAIClient) Complete(ctx context.Context, messages []Message, temperature float32) (string, error) {
	if len(messages) == 0 {
		return "", NewPermanentError(ErrNoMessages)
	}
	conv := make([]openai.ChatCompletionMessage, 0, len(messages)+2*maxContinuations)
	for _, m := range messages {
		conv = append(conv, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	var out strings.Builder
	for i := 0; i <= maxContinuations; i++ {
		req := openai.ChatCompletionRequest{
			Model:       o.model,
			Messages:    conv,
			Temperature: temperature,
		}
		if o.maxTokens > 0 {
			req.MaxTokens = o.maxTokens
		}
		resp, err := o.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", classifyOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyResponse
		}
		choice := resp.Choices[0]
		out.WriteString(choice.Message.Content)
		if choice.FinishReason != openai.FinishReasonLength {
			break
		}
		conv = append(conv,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: choice.Message.Content},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: continuePrompt},
		)
	}
	return out.String(), nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return NewPermanentError(fmt.Errorf("openai: %w", err))
		}
	}
	return fmt.Errorf("openai: %w", err)
}
