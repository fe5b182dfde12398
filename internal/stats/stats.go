// Package stats keeps the process-wide counters reported by the status
// endpoint. Init must be called once at process start.
package stats

import (
	"sync/atomic"
	"time"
)

var (
	startedAt atomic.Int64 // unix nanos
	messages  atomic.Int64
)

// Init records the process start time and resets the counters.
func Init(now time.Time) {
	startedAt.Store(now.UnixNano())
	messages.Store(0)
}

// IncMessages counts one accepted sensor message.
func IncMessages() { messages.Add(1) }

// Snapshot is a read-only copy of the counters.
type Snapshot struct {
	StartedAt time.Time
	Messages  int64
}

func Read() Snapshot {
	return Snapshot{
		StartedAt: time.Unix(0, startedAt.Load()).UTC(),
		Messages:  messages.Load(),
	}
}

// UptimeSeconds is the whole number of seconds since Init.
func (s Snapshot) UptimeSeconds(now time.Time) int64 {
	if s.StartedAt.Unix() <= 0 {
		return 0
	}
	return int64(now.Sub(s.StartedAt).Seconds())
}
