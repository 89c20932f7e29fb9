// Package health exposes the /livez and /readyz probes of the order backend.
//
// Probes are registered before Start and evaluated by a single background
// sweeper at a fixed interval. A probe flips to unhealthy only after three
// consecutive failures, so a transient postgres hiccup does not bounce the
// pod, and recovers on the first success. Readiness is additionally gated by
// SetReady, which graceful shutdown flips to false to drain traffic.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports the state of one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// failureStreak is how many consecutive failures flip a probe to unhealthy.
const failureStreak = 3

type kind int

const (
	liveness kind = iota
	readiness
)

type probe struct {
	name    string
	kind    kind
	timeout time.Duration
	check   CheckFunc

	// mu guards the sweep results; the sweeper writes, HTTP handlers read.
	mu      sync.Mutex
	healthy bool
	streak  int
	lastErr error
}

func (p *probe) sweep(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.check(checkCtx)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastErr = err
	if err != nil {
		p.streak++
		if p.streak >= failureStreak {
			p.healthy = false
		}
		return
	}
	p.streak = 0
	p.healthy = true
}

func (p *probe) state() (healthy bool, lastErr error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy, p.lastErr
}

// Health is the probe registry. The zero value is unusable; create it with
// New, register checks, then Start.
type Health struct {
	ready atomic.Bool

	mu     sync.Mutex
	probes []*probe
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an empty registry. The service starts not ready; call
// SetReady(true) once wiring is complete.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a probe for /livez: is the process itself
// functional (goroutine leaks, stuck internal queues).
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.add(liveness, name, timeout, check)
}

// AddReadinessCheck registers a probe for /readyz: can the service take
// traffic (database reachable, dependencies up).
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.add(readiness, name, timeout, check)
}

func (h *Health) add(k kind, name string, timeout time.Duration, check CheckFunc) {
	p := &probe{
		name:    name,
		kind:    k,
		timeout: timeout,
		check:   check,
		healthy: true,
	}

	h.mu.Lock()
	h.probes = append(h.probes, p)
	h.mu.Unlock()
}

// Start launches the sweeper goroutine. All probes are evaluated once
// immediately and then every interval. Each probe's timeout bounds its share
// of a sweep, so one stalled dependency cannot block the loop indefinitely.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	h.mu.Lock()
	h.cancel = cancel
	h.done = done
	probes := append([]*probe(nil), h.probes...)
	h.mu.Unlock()

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		sweepAll(ctx, probes)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepAll(ctx, probes)
			}
		}
	}()
}

func sweepAll(ctx context.Context, probes []*probe) {
	for _, p := range probes {
		if ctx.Err() != nil {
			return
		}
		p.sweep(ctx)
	}
}

// Stop cancels the sweeper and waits for it to exit. Safe to call twice.
func (h *Health) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// SetReady gates /readyz. Wiring sets it true once the server is up; graceful
// shutdown sets it false before draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is gated ready and every readiness
// probe is healthy.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, p := range h.snapshot(readiness) {
		if ok, _ := p.state(); !ok {
			return false
		}
	}
	return true
}

func (h *Health) snapshot(k kind) []*probe {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*probe
	for _, p := range h.probes {
		if p.kind == k {
			out = append(out, p)
		}
	}
	return out
}

// report is the JSON body of both endpoints. Every probe appears in Checks,
// healthy ones as "ok", so operators see the full picture on one curl.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 while every liveness probe is healthy,
// 503 otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.serve(w, liveness, true)
}

// ReadyEndpoint serves /readyz: 200 only when the service is gated ready and
// every readiness probe is healthy.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.serve(w, readiness, h.ready.Load())
}

func (h *Health) serve(w http.ResponseWriter, k kind, gate bool) {
	healthy := gate

	checks := make(map[string]string)
	if !gate {
		checks["service"] = "not accepting traffic"
	}
	for _, p := range h.snapshot(k) {
		ok, err := p.state()
		switch {
		case ok:
			checks[p.name] = "ok"
		case err != nil:
			checks[p.name] = err.Error()
			healthy = false
		default:
			checks[p.name] = "unhealthy"
			healthy = false
		}
	}

	resp := report{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
