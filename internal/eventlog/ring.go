// Package eventlog
// Author: momentics <momentics@gmail.com>
//
// Bounded in-memory activity log. The host keeps the most recent log lines
// so that a connected tool can fetch them over the bridge.

package eventlog

import (
	"strings"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"
	"github.com/sugawarayuuta/sonnet"
)

// DefaultCapacity is the number of entries retained when no capacity is given.
const DefaultCapacity = 500

// Entry is one retained log line.
type Entry struct {
	Time    time.Time     `json:"time"`
	Level   zerolog.Level `json:"-"`
	Message string        `json:"message"`
	Raw     string        `json:"raw,omitempty"`
}

// Ring retains the last N log lines written to it. It implements
// zerolog.LevelWriter so it can be teed next to a console writer.
type Ring struct {
	mu       sync.Mutex
	q        *queue.Queue
	capacity int
	dropped  uint64
	now      func() time.Time
}

var _ zerolog.LevelWriter = (*Ring)(nil)

// NewRing creates a ring retaining up to capacity entries.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		q:        queue.New(),
		capacity: capacity,
		now:      time.Now,
	}
}

// Write stores p as a no-level entry.
func (r *Ring) Write(p []byte) (int, error) {
	return r.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel stores one zerolog event. JSON events are reduced to their
// message field; anything else is kept as plain text.
func (r *Ring) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	e := Entry{Time: r.now(), Level: level}
	line := strings.TrimRight(string(p), "\n")

	var fields map[string]any
	if strings.HasPrefix(line, "{") && sonnet.Unmarshal([]byte(line), &fields) == nil {
		if msg, ok := fields[zerolog.MessageFieldName].(string); ok {
			e.Message = msg
		}
		if lv, ok := fields[zerolog.LevelFieldName].(string); ok && level == zerolog.NoLevel {
			if parsed, err := zerolog.ParseLevel(lv); err == nil {
				e.Level = parsed
			}
		}
		e.Raw = line
	} else {
		e.Message = line
	}
	r.Add(e)
	return len(p), nil
}

// Add appends an entry, evicting the oldest one once the ring is full.
func (r *Ring) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.q.Add(e)
	for r.q.Length() > r.capacity {
		r.q.Remove()
		r.dropped++
	}
}

// Entries returns retained entries at or above minLevel, oldest first.
// zerolog.NoLevel entries are always included.
func (r *Ring) Entries(minLevel zerolog.Level) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, r.q.Length())
	for i := 0; i < r.q.Length(); i++ {
		e := r.q.Get(i).(Entry)
		if e.Level == zerolog.NoLevel || e.Level >= minLevel {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of retained entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.q.Length()
}

// Dropped returns how many entries were evicted so far.
func (r *Ring) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Clear discards all entries.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.q = queue.New()
}

// ParseSeverity maps the severity names used by tool callers ("all", "info",
// "warning", "error") onto a minimum zerolog level.
func ParseSeverity(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "", "all":
		return zerolog.TraceLevel
	case "warning", "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		if lv, err := zerolog.ParseLevel(s); err == nil {
			return lv
		}
		return zerolog.TraceLevel
	}
}
