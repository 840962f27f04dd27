// Package notify delivers short user-facing messages (the CLI counterpart of toasts).
package notify

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Level classifies a notification.
type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Error   Level = "error"
)

// Notifier is the sink for user-facing messages.
type Notifier interface {
	Notify(level Level, msg string)
}

// Writer prints notifications as single lines.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Writer printing to w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (n *Writer) Notify(level Level, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintf(n.w, "[%s] %s\n", level, msg)
}

// Log forwards notifications to a zap logger.
type Log struct{ L *zap.Logger }

func (n Log) Notify(level Level, msg string) {
	if level == Error {
		n.L.Warn("notification", zap.String("msg", msg))
		return
	}
	n.L.Info("notification", zap.String("level", string(level)), zap.String("msg", msg))
}

// Multi fans out to several sinks.
type Multi []Notifier

func (m Multi) Notify(level Level, msg string) {
	for _, n := range m {
		n.Notify(level, msg)
	}
}

// Entry is one recorded notification.
type Entry struct {
	Level Level
	Msg   string
}

// Recorder keeps notifications in memory. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Notify(level Level, msg string) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg})
	r.mu.Unlock()
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Count returns how many notifications of the given level were recorded.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
