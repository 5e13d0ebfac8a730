// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// captureWriter records entries for assertions.
type captureWriter struct {
	mu      sync.Mutex
	entries []Entry
	closed  bool
}

func (w *captureWriter) Write(_ context.Context, entry Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, entry)
	return nil
}

func (w *captureWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *captureWriter) get() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

func TestLogger_ModeAll(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := &captureWriter{}
	l := NewLogger(ModeAll, w)

	l.Log(Entry{Subject: "alice", CanRead: true, Timestamp: time.Now()})
	l.Log(Entry{Subject: "bob", Timestamp: time.Now()})
	require.NoError(t, l.Close())

	entries := w.get()
	assert.Len(t, entries, 2)
	assert.True(t, w.closed)
}

func TestLogger_ModeDenialsOnly(t *testing.T) {
	w := &captureWriter{}
	l := NewLogger(ModeDenialsOnly, w)

	l.Log(Entry{Subject: "alice", CanRead: true})
	l.Log(Entry{Subject: "bob"}) // denial
	require.NoError(t, l.Close())

	entries := w.get()
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].Subject)
}

func TestLogger_ModeOff(t *testing.T) {
	w := &captureWriter{}
	l := NewLogger(ModeOff, w)

	l.Log(Entry{Subject: "alice"})
	require.NoError(t, l.Close())

	assert.Empty(t, w.get())
}

func TestLogger_CloseIsIdempotent(t *testing.T) {
	l := NewLogger(ModeAll, &captureWriter{})
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
}
