// Package exchange holds the per-exchange adapters. Each adapter normalizes
// its venue's REST payloads into the domain models and tracks its own
// rolling health from the calls it makes.
package exchange

import (
	"sync"
	"time"

	"ExFuse/internal/domain/models"
)

const (
	healthWindow       = 50
	maxHealthyErrRate  = 50.0
	healthCheckTimeout = 3 * time.Second
)

type sample struct {
	ok      bool
	latency time.Duration
}

// healthTracker keeps a ring of recent call outcomes. Adapters feed it on
// every REST call so HealthCheck answers from real traffic, not just pings.
type healthTracker struct {
	mu      sync.Mutex
	samples []sample
	next    int
	lastErr string
}

func newHealthTracker() *healthTracker {
	return &healthTracker{samples: make([]sample, 0, healthWindow)}
}

func (h *healthTracker) observe(latency time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := sample{ok: err == nil, latency: latency}
	if len(h.samples) < healthWindow {
		h.samples = append(h.samples, s)
	} else {
		h.samples[h.next] = s
		h.next = (h.next + 1) % healthWindow
	}
	if err != nil {
		h.lastErr = err.Error()
	}
}

func (h *healthTracker) snapshot(name string) models.ExchangeHealth {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := models.ExchangeHealth{
		Exchange:     name,
		Healthy:      true,
		CheckedAt:    time.Now(),
		SampleWindow: len(h.samples),
		LastError:    h.lastErr,
	}
	if len(h.samples) == 0 {
		return out
	}

	var failed int
	var total time.Duration
	for _, s := range h.samples {
		if !s.ok {
			failed++
		}
		total += s.latency
	}
	out.Latency = total / time.Duration(len(h.samples))
	out.ErrorRate = float64(failed) / float64(len(h.samples)) * 100
	out.Healthy = out.ErrorRate < maxHealthyErrRate
	return out
}
