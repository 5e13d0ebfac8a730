// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

// Package audit records access-control decisions. Entries are written
// asynchronously through a pluggable Writer; the default writer emits
// structured slog records so deployments without a dedicated audit
// sink still get a decision trail.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mode controls which decisions are logged.
type Mode string

// Audit logging modes.
const (
	ModeAll         Mode = "all"          // every decision
	ModeDenialsOnly Mode = "denials_only" // denied decisions only
	ModeOff         Mode = "off"          // nothing
)

// Entry represents a single access decision.
type Entry struct {
	Subject    string    `json:"subject"`
	Role       string    `json:"role"`
	EntityID   string    `json:"entity_id"`
	RemoteAddr string    `json:"remote_addr"`
	CanRead    bool      `json:"can_read"`
	CanWrite   bool      `json:"can_write"`
	DurationUS int64     `json:"duration_us"`
	Timestamp  time.Time `json:"timestamp"`
}

// Writer persists audit entries.
type Writer interface {
	Write(ctx context.Context, entry Entry) error
	Close() error
}

var (
	droppedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cairn_audit_dropped_total",
		Help: "Total number of audit entries dropped because the async channel was full",
	})

	failuresCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cairn_audit_failures_total",
		Help: "Total number of audit write failures",
	})
)

// Logger routes audit entries based on mode.
type Logger struct {
	mode     Mode
	writer   Writer
	entries  chan Entry
	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewLogger creates a Logger with the given mode and writer.
// A nil writer falls back to the slog writer.
func NewLogger(mode Mode, writer Writer) *Logger {
	if writer == nil {
		writer = NewSlogWriter(slog.Default())
	}
	l := &Logger{
		mode:    mode,
		writer:  writer,
		entries: make(chan Entry, 1024),
		stop:    make(chan struct{}),
	}
	l.wg.Add(1)
	go l.consume()
	return l
}

// Log enqueues an audit entry if the mode admits it. A full queue
// drops the entry rather than blocking the request path.
func (l *Logger) Log(entry Entry) {
	switch l.mode {
	case ModeOff:
		return
	case ModeDenialsOnly:
		if entry.CanRead || entry.CanWrite {
			return
		}
	case ModeAll:
	}

	select {
	case l.entries <- entry:
	default:
		droppedCounter.Inc()
	}
}

// Close drains pending entries and closes the writer.
func (l *Logger) Close() error {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	l.wg.Wait()
	return l.writer.Close()
}

func (l *Logger) consume() {
	defer l.wg.Done()
	for {
		select {
		case entry := <-l.entries:
			l.write(entry)
		case <-l.stop:
			// drain whatever is left
			for {
				select {
				case entry := <-l.entries:
					l.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) write(entry Entry) {
	if err := l.writer.Write(context.Background(), entry); err != nil {
		failuresCounter.Inc()
		slog.Error("audit write failed", "error", err)
	}
}

// SlogWriter writes audit entries as structured log records.
type SlogWriter struct {
	logger *slog.Logger
}

// NewSlogWriter creates a SlogWriter on the given logger.
func NewSlogWriter(logger *slog.Logger) *SlogWriter {
	return &SlogWriter{logger: logger}
}

// Write emits the entry at info level.
func (w *SlogWriter) Write(ctx context.Context, entry Entry) error {
	w.logger.InfoContext(ctx, "access decision",
		"subject", entry.Subject,
		"role", entry.Role,
		"entity_id", entry.EntityID,
		"remote_addr", entry.RemoteAddr,
		"can_read", entry.CanRead,
		"can_write", entry.CanWrite,
		"duration_us", entry.DurationUS,
	)
	return nil
}

// Close is a no-op for slog-backed writers.
func (w *SlogWriter) Close() error {
	return nil
}
