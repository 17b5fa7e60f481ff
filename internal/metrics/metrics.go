// Package metrics provides lightweight, lock-free counters for tracking
// runtime statistics of a fortuned process.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for sessions and connections.
// A nil Collector is safe to use: all methods become no-ops.
type Collector struct {
	sessionsActive    atomic.Int64
	sessionsTotal     atomic.Int64
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	reads             atomic.Int64
	bytesOut          atomic.Int64
	errorsTotal       atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	selections   map[int]int64
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{
		startTime:  time.Now(),
		selections: make(map[int]int64),
	}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened records a new session that selected catalog entry idx.
func (c *Collector) SessionOpened(idx int) {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
	c.mu.Lock()
	c.selections[idx]++
	c.mu.Unlock()
}

// SessionClosed decrements the active session counter.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// ActiveSessions returns the number of sessions currently open.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime session count.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// Selections returns how many sessions picked catalog entry idx.
func (c *Collector) Selections(idx int) int64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selections[idx]
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// Read records one read call that delivered n bytes.
func (c *Collector) Read(n int64) {
	if c == nil {
		return
	}
	c.reads.Add(1)
	c.bytesOut.Add(n)
}

// TotalReads returns the number of reads that delivered data.
func (c *Collector) TotalReads() int64 {
	if c == nil {
		return 0
	}
	return c.reads.Load()
}

// TotalBytesOut returns total fortune bytes delivered.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string           `json:"uptime"`
	SessionsActive    int64            `json:"sessions_active"`
	SessionsTotal     int64            `json:"sessions_total"`
	ConnectionsActive int64            `json:"connections_active"`
	ConnectionsTotal  int64            `json:"connections_total"`
	Reads             int64            `json:"reads"`
	BytesOut          int64            `json:"bytes_out"`
	ErrorsTotal       int64            `json:"errors_total"`
	Selections        map[string]int64 `json:"selections,omitempty"`
	LastError         string           `json:"last_error,omitempty"`
	LastErrorMessage  string           `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsActive:    c.sessionsActive.Load(),
		SessionsTotal:     c.sessionsTotal.Load(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		Reads:             c.reads.Load(),
		BytesOut:          c.bytesOut.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if len(c.selections) > 0 {
		s.Selections = make(map[string]int64, len(c.selections))
		for i, n := range c.selections {
			s.Selections[strconv.Itoa(i)] = n
		}
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
