package observability

import (
	"sync"
	"time"
)

type routeKey struct {
	Path   string
	Method string
}

type routeStats struct {
	Requests      int64
	Errors        int64
	TotalDuration time.Duration
}

// Metrics keeps in-memory per-route request counters. Nil receivers are
// tolerated so handlers can run without metrics wired.
type Metrics struct {
	mu     sync.Mutex
	routes map[routeKey]*routeStats
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{routes: make(map[routeKey]*routeStats)}
}

// RecordRequest counts one completed request and its latency.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.stats(routeKey{Path: path, Method: method})
	stats.Requests++
	stats.TotalDuration += duration
}

// RecordError counts one failed request by its error code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats(routeKey{Path: path, Method: method}).Errors++
}

// RequestCount returns the number of requests recorded for a route.
func (m *Metrics) RequestCount(path, method string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if stats, ok := m.routes[routeKey{Path: path, Method: method}]; ok {
		return stats.Requests
	}
	return 0
}

func (m *Metrics) stats(key routeKey) *routeStats {
	stats, ok := m.routes[key]
	if !ok {
		stats = &routeStats{}
		m.routes[key] = stats
	}
	return stats
}
