// Package notify delivers progress events of a generation run to the caller.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Kind identifies a progress event.
type Kind string

const (
	KindStartingIteration     Kind = "starting_iteration"
	KindTestsFailed           Kind = "tests_failed"
	KindScriptExecutionFailed Kind = "script_execution_failed"
	KindTaskCompleted         Kind = "task_completed"
	KindTaskFailed            Kind = "task_failed"
)

// Event is one progress notification. Message is the rendered template.
type Event struct {
	Kind      Kind   `json:"kind"`
	RunID     string `json:"runId,omitempty"`
	Iteration int    `json:"iteration"`
	Message   string `json:"message"`
}

// Sink receives events. The controller waits for Notify to return before it
// moves on; an error aborts the run.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// FuncSink adapts a function to Sink.
type FuncSink func(ctx context.Context, ev Event) error

func (f FuncSink) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

// ConsoleSink prints the message of each event on its own line.
type ConsoleSink struct {
	W io.Writer
}

func (c ConsoleSink) Notify(_ context.Context, ev Event) error {
	w := c.W
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprintln(w, ev.Message)
	return err
}

// ChannelSink sends events to a channel, blocking until the event is taken
// or ctx ends.
type ChannelSink struct {
	Ch chan<- Event
}

func (c ChannelSink) Notify(ctx context.Context, ev Event) error {
	select {
	case c.Ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Multi fans an event out to every sink in order and stops at the first error.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, ev Event) error {
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

type noop struct{}

func (noop) Notify(context.Context, Event) error { return nil }

// Discard drops every event.
var Discard Sink = noop{}
