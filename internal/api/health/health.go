// Package health aggregates component reachability for the /health
// endpoint.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status is the reported health of a component or of the whole service.
type Status string

const (
	// StatusHealthy indicates the component is fully operational.
	StatusHealthy Status = "healthy"
	// StatusDegraded indicates the service is usable but a non-critical
	// dependency is down.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy indicates the service cannot do useful work.
	StatusUnhealthy Status = "unhealthy"
)

// ComponentStatus is the health of a single registered component.
type ComponentStatus struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the health check response body.
type Response struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
}

// Pinger is a component that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type component struct {
	name     string
	pinger   Pinger
	critical bool
}

// Checker probes registered components and aggregates their status. A
// failing critical component makes the service unhealthy; a failing
// non-critical one only degrades it.
type Checker struct {
	mu         sync.RWMutex
	components []component
	startTime  time.Time
	version    string
	timeout    time.Duration
}

// NewChecker creates a checker with no components registered.
func NewChecker(version string) *Checker {
	return &Checker{
		startTime: time.Now(),
		version:   version,
		timeout:   5 * time.Second,
	}
}

// Register adds a named component. A nil pinger reports the component as
// not configured.
func (c *Checker) Register(name string, p Pinger, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components = append(c.components, component{name: name, pinger: p, critical: critical})
}

// SetTimeout bounds the total time spent probing components.
func (c *Checker) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// Check probes every registered component and returns the aggregate.
func (c *Checker) Check(ctx context.Context) *Response {
	c.mu.RLock()
	timeout := c.timeout
	components := make([]component, len(c.components))
	copy(components, c.components)
	c.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	overall := StatusHealthy
	statuses := make(map[string]ComponentStatus, len(components))
	for _, comp := range components {
		st := probe(checkCtx, comp.pinger)
		statuses[comp.name] = st
		if st.Status != StatusUnhealthy {
			continue
		}
		if comp.critical {
			overall = StatusUnhealthy
		} else if overall == StatusHealthy {
			overall = StatusDegraded
		}
	}

	return &Response{
		Status:     overall,
		Components: statuses,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
	}
}

func probe(ctx context.Context, p Pinger) ComponentStatus {
	if p == nil {
		return ComponentStatus{Status: StatusUnhealthy, Message: "not configured"}
	}
	if err := p.Ping(ctx); err != nil {
		return ComponentStatus{Status: StatusUnhealthy, Message: err.Error()}
	}
	return ComponentStatus{Status: StatusHealthy, Message: "connected"}
}

// Handler serves the health check over HTTP. Degraded still returns 200
// so load balancers keep routing while a non-critical dependency is
// down.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if response.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(response)
	}
}
