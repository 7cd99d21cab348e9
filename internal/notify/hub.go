package notify

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	hubWriteWait = 10 * time.Second
	hubPongWait  = 60 * time.Second
	hubPingEvery = (hubPongWait * 9) / 10
	hubQueueSize = 32
)

var hubUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type hubInbound struct {
	Type  string `json:"type"`
	Input string `json:"input,omitempty"`
}

type hubOutbound struct {
	Type      string `json:"type"`
	RunID     string `json:"runId,omitempty"`
	Kind      Kind   `json:"kind,omitempty"`
	Iteration int    `json:"iteration,omitempty"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
}

var ErrHubClosed = errors.New("notify: hub closed")

// Hub streams events to websocket clients and collects answers to
// clarification questions from them. It implements Sink.
type Hub struct {
	mu       sync.Mutex
	clients  map[chan hubOutbound]struct{}
	question string
	answers  chan string
	closed   chan struct{}
	once     sync.Once
	logger   *log.Logger
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		clients: map[chan hubOutbound]struct{}{},
		answers: make(chan string),
		closed:  make(chan struct{}),
		logger:  logger,
	}
}

// Notify broadcasts ev to every connected client. Slow clients lose their
// oldest queued message rather than blocking the run.
func (h *Hub) Notify(_ context.Context, ev Event) error {
	h.broadcast(hubOutbound{Type: "event", RunID: ev.RunID, Kind: ev.Kind, Iteration: ev.Iteration, Message: ev.Message})
	return nil
}

// Ask broadcasts question and waits for the first "answer" message from any
// client. Clients that connect while a question is open receive it too.
func (h *Hub) Ask(ctx context.Context, question string) (string, error) {
	h.mu.Lock()
	h.question = question
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.question = ""
		h.mu.Unlock()
	}()

	h.broadcast(hubOutbound{Type: "question", Message: question})
	select {
	case a := <-h.answers:
		return a, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-h.closed:
		return "", ErrHubClosed
	}
}

// Close disconnects every client and fails pending Ask calls.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.closed) })
}

func (h *Hub) broadcast(out hubOutbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		push(ch, out)
	}
}

func (h *Hub) register() (chan hubOutbound, string) {
	ch := make(chan hubOutbound, hubQueueSize)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[ch] = struct{}{}
	return ch, h.question
}

func (h *Hub) waiting() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.question != ""
}

func (h *Hub) unregister(ch chan hubOutbound) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// ServeHTTP upgrades the request to a websocket subscription.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := hubUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(hubPongWait)); err != nil {
		h.logger.Printf("notify hub: set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(hubPongWait))
	})

	writeCh, open := h.register()
	defer h.unregister(writeCh)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(hubPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.closed:
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
					time.Now().Add(hubWriteWait))
				_ = conn.Close()
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(hubWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(hubWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	push(writeCh, hubOutbound{Type: "subscribed"})
	if open != "" {
		push(writeCh, hubOutbound{Type: "question", Message: open})
	}

	for {
		var in hubInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			push(writeCh, hubOutbound{Type: "pong"})
		case "answer":
			if !h.waiting() {
				push(writeCh, hubOutbound{Type: "error", Code: "failed_precondition", Message: "no question is waiting for an answer"})
				continue
			}
			select {
			case h.answers <- in.Input:
				push(writeCh, hubOutbound{Type: "accepted"})
			case <-time.After(hubWriteWait):
				push(writeCh, hubOutbound{Type: "error", Code: "deadline_exceeded", Message: "question already answered"})
			case <-ctx.Done():
			}
		default:
			push(writeCh, hubOutbound{Type: "error", Code: "invalid_argument", Message: "unknown message type"})
		}
	}
}

func push(ch chan hubOutbound, out hubOutbound) {
	select {
	case ch <- out:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- out:
	default:
	}
}
