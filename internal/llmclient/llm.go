// Package llmclient holds the oracle backends: a conversation in, text out.
package llmclient

import (
	"context"
	"errors"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

func System(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message      { return Message{Role: RoleUser, Content: content} }
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// LLMClient completes a conversation. Implementations only make the API
// call; retries, rate limits, logging and hooks are layered on by the llm
// package middleware.
type LLMClient interface {
	Name() string
	Complete(ctx context.Context, messages []Message, temperature float32) (string, error)
	Close() error
}

var (
	ErrEmptyResponse = errors.New("empty response from LLM")
	ErrNoMessages    = errors.New("no messages")
)

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
