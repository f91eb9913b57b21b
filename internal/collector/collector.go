// Package collector accumulates member-update marks raised by command
// handlers between driver ticks. The collector is an injected instance
// owned by the hosting context rather than package-level state, so two
// hosts never share or clobber each other's marks.
package collector

import "sync"

// Reason classifies why a member was marked for an update.
type Reason string

const (
	// ReasonNickname requests a bot nickname refresh in the guild.
	ReasonNickname Reason = "nickname"

	// ReasonStatus requests a presence status text refresh.
	ReasonStatus Reason = "status"
)

// Mark is one pending member update.
type Mark struct {
	GuildID string
	UserID  string
	Reason  Reason
	Value   string
}

// Collector is a concurrency-safe accumulator of marks.
// The zero value is ready to use.
type Collector struct {
	mu    sync.Mutex
	marks []Mark
}

// Add records a mark for the next drain.
func (c *Collector) Add(m Mark) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marks = append(c.marks, m)
}

// Drain atomically takes all pending marks and clears the collector.
// A mark added concurrently with Drain lands in exactly one drain, never
// both and never neither.
func (c *Collector) Drain() []Mark {
	c.mu.Lock()
	defer c.mu.Unlock()
	marks := c.marks
	c.marks = nil
	return marks
}

// Len reports the number of pending marks.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.marks)
}
