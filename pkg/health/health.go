// Package health provides Kubernetes-style liveness and readiness probes.
// Registered checks run periodically in the background; the HTTP endpoints
// report the last observed state instead of probing inline, so a slow
// dependency cannot stall the kubelet.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// CheckFunc is a health check. It returns nil when the checked component is
// healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc
}

// Health manages liveness and readiness checks for a service.
type Health struct {
	mu        sync.RWMutex
	ready     bool
	liveness  []check
	readiness []check
	results   map[string]error
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates an empty Health service. Register checks before Start.
func New() *Health {
	return &Health{results: make(map[string]error)}
}

// AddLivenessCheck registers a check that gates the /livez endpoint.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, check{name: name, timeout: timeout, fn: fn})
}

// AddReadinessCheck registers a check that gates the /readyz endpoint.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, check{name: name, timeout: timeout, fn: fn})
}

// SetReady flips the top-level readiness gate. Readiness checks only matter
// while the gate is open; the gate is closed during startup and drain.
func (h *Health) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// Start launches the background check loop with the given interval. All
// checks run once immediately so the endpoints have data before the first
// tick.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.done = make(chan struct{})
	h.mu.Unlock()

	go func() {
		defer close(h.done)
		h.runAll(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.runAll(ctx)
			}
		}
	}()
}

// Stop terminates the background loop and waits for it to exit.
func (h *Health) Stop() {
	h.mu.RLock()
	cancel, done := h.cancel, h.done
	h.mu.RUnlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (h *Health) runAll(ctx context.Context) {
	h.mu.RLock()
	checks := make([]check, 0, len(h.liveness)+len(h.readiness))
	checks = append(checks, h.liveness...)
	checks = append(checks, h.readiness...)
	h.mu.RUnlock()

	for _, c := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.fn(checkCtx)
		cancel()

		h.mu.Lock()
		h.results[c.name] = err
		h.mu.Unlock()
	}
}

// LiveEndpoint reports process liveness: 200 while every liveness check
// passes, 503 otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.respond(w, h.liveness, true)
}

// ReadyEndpoint reports readiness to take traffic: 200 only while the
// readiness gate is open and every readiness check passes.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.respond(w, h.readiness, h.ready)
}

func (h *Health) respond(w http.ResponseWriter, checks []check, gate bool) {
	status := "ok"
	code := http.StatusOK
	results := make(map[string]string, len(checks))
	for _, c := range checks {
		if err, ok := h.results[c.name]; ok && err != nil {
			results[c.name] = err.Error()
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		} else {
			results[c.name] = "ok"
		}
	}
	if !gate {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": results,
	})
}
