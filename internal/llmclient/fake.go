package llmclient

import (
	"context"
	"errors"
	"sync"
)

var ErrScriptExhausted = errors.New("fake llm: no scripted reply left")

// Responder produces a reply for one call. Returning an error fails the call.
type Responder func(messages []Message, temperature float32) (string, error)

// FakeClient replays scripted replies for offline runs and tests. Calls are
// recorded so tests can inspect the conversations sent.
type FakeClient struct {
	mu       sync.Mutex
	replies  []string
	respond  Responder
	fallback string
	calls    [][]Message
}

// NewFakeClient replays replies in order; once they run out the last one is
// repeated. With no replies every call fails with ErrScriptExhausted.
func NewFakeClient(replies ...string) *FakeClient {
	f := &FakeClient{replies: replies}
	if n := len(replies); n > 0 {
		f.fallback = replies[n-1]
	}
	return f
}

// NewFakeResponder answers every call through fn.
func NewFakeResponder(fn Responder) *FakeClient {
	return &FakeClient{respond: fn}
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Complete(_ context.Context, messages []Message, temperature float32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]Message(nil), messages...))
	if f.respond != nil {
		return f.respond(messages, temperature)
	}
	if len(f.replies) == 0 {
		if f.fallback == "" {
			return "", ErrScriptExhausted
		}
		return f.fallback, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

// Calls returns the conversations received so far.
func (f *FakeClient) Calls() [][]Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]Message, len(f.calls))
	copy(out, f.calls)
	return out
}
