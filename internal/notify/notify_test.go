package notify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMessagesRenderIteration(t *testing.T) {
	ev := DefaultMessages().Event(KindStartingIteration, 3)
	if ev.Message != "Starting iteration 3..." || ev.Iteration != 3 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestLoadMessagesKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	body := "starting_iteration: \"Round {iteration} begins\"\ntask_failed: \"gave up\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := LoadMessages(path)
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if got := m.Event(KindStartingIteration, 2).Message; got != "Round 2 begins" {
		t.Fatalf("override not applied: %q", got)
	}
	if m.TaskFailed != "gave up" {
		t.Fatalf("override not applied: %q", m.TaskFailed)
	}
	if m.TestsFailed != DefaultMessages().TestsFailed {
		t.Fatalf("missing key should keep default, got %q", m.TestsFailed)
	}
}

func TestLoadMessagesBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	if err := os.WriteFile(path, []byte("starting_iteration: [unclosed"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadMessages(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	if err := (ConsoleSink{W: &buf}).Notify(context.Background(), Event{Message: "hello"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if buf.String() != "hello\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestChannelSinkBlocksUntilReceived(t *testing.T) {
	ch := make(chan Event)
	done := make(chan error, 1)
	go func() { done <- (ChannelSink{Ch: ch}).Notify(context.Background(), Event{Kind: KindTaskCompleted}) }()

	select {
	case <-done:
		t.Fatalf("Notify returned before the event was received")
	case <-time.After(20 * time.Millisecond):
	}
	if ev := <-ch; ev.Kind != KindTaskCompleted {
		t.Fatalf("unexpected event %+v", ev)
	}
	if err := <-done; err != nil {
		t.Fatalf("Notify: %v", err)
	}
}

func TestChannelSinkHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (ChannelSink{Ch: make(chan Event)}).Notify(ctx, Event{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMultiStopsAtFirstError(t *testing.T) {
	var seen []string
	boom := errors.New("boom")
	m := Multi{
		FuncSink(func(context.Context, Event) error { seen = append(seen, "a"); return nil }),
		nil,
		FuncSink(func(context.Context, Event) error { seen = append(seen, "b"); return boom }),
		FuncSink(func(context.Context, Event) error { seen = append(seen, "c"); return nil }),
	}
	if err := m.Notify(context.Background(), Event{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected to stop after b, saw %v", seen)
	}
}
