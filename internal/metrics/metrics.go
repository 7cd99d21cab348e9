// Package metrics exposes Prometheus counters of generation runs.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"workeragent/internal/llm"
	"workeragent/internal/llmclient"
)

const namespace = "workeragent"

// Registry owns the collectors of one process. A nil *Registry is a valid
// no-op recorder.
type Registry struct {
	reg *prometheus.Registry

	iterations  prometheus.Counter
	executions  *prometheus.CounterVec
	runs        *prometheus.CounterVec
	llmCalls    *prometheus.CounterVec
	llmDuration *prometheus.HistogramVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Generation iterations started",
		}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "executions_total",
			Help:      "Sandbox executions by artifact kind and result",
		}, []string{"kind", "result"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by outcome",
		}, []string{"outcome"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Oracle calls by phase and status",
		}, []string{"phase", "status"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Oracle call latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"phase"}),
	}
	r.reg.MustRegister(r.iterations, r.executions, r.runs, r.llmCalls, r.llmDuration)
	return r
}

func (r *Registry) IterationStarted() {
	if r == nil {
		return
	}
	r.iterations.Inc()
}

func (r *Registry) Execution(kind string, succeeded bool) {
	if r == nil {
		return
	}
	result := "failure"
	if succeeded {
		result = "success"
	}
	r.executions.WithLabelValues(kind, result).Inc()
}

func (r *Registry) RunFinished(outcome string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Middleware counts oracle calls by the phase found in the context.
func (r *Registry) Middleware() llm.Middleware {
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		if r == nil {
			return next
		}
		return &counted{next: next, r: r}
	}
}

type counted struct {
	next llmclient.LLMClient
	r    *Registry
}

func (c *counted) Name() string { return c.next.Name() }
func (c *counted) Close() error { return c.next.Close() }
func (c *counted) Complete(ctx context.Context, messages []llmclient.Message, temperature float32) (string, error) {
	phase := llm.PhaseFrom(ctx)
	start := time.Now()
	out, err := c.next.Complete(ctx, messages, temperature)
	c.r.llmDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.r.llmCalls.WithLabelValues(phase, status).Inc()
	return out, err
}
