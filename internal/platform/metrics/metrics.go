// Package metrics collects lightweight operational counters for the
// game server and serves them as a JSON snapshot.
package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Collector accumulates named counters. Safe for concurrent use.
type Collector struct {
	mu       sync.RWMutex
	counters map[string]int64
	started  time.Time
}

// NewCollector returns an empty collector stamped with the start time.
func NewCollector() *Collector {
	return &Collector{
		counters: make(map[string]int64),
		started:  time.Now(),
	}
}

// Inc bumps a counter by one.
func (c *Collector) Inc(name string) {
	c.Add(name, 1)
}

// Add bumps a counter by n.
func (c *Collector) Add(name string, n int64) {
	c.mu.Lock()
	c.counters[name] += n
	c.mu.Unlock()
}

// Get returns the current value of a counter.
func (c *Collector) Get(name string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[name]
}

// Snapshot copies the counter set.
func (c *Collector) Snapshot() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int64, len(c.counters))
	for k, v := range c.counters {
		out[k] = v
	}
	return out
}

// report is the wire shape of the /metrics response.
type report struct {
	Uptime    string           `json:"uptime"`
	StartedAt string           `json:"startedAt"`
	Counters  map[string]int64 `json:"counters"`
	Names     []string         `json:"names"`
}

// Handler serves the snapshot as JSON.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := c.Snapshot()
		names := make([]string, 0, len(snap))
		for k := range snap {
			names = append(names, k)
		}
		sort.Strings(names)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report{
			Uptime:    humanize.Time(c.started),
			StartedAt: c.started.UTC().Format(time.RFC3339),
			Counters:  snap,
			Names:     names,
		})
	})
}
