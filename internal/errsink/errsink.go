// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

// Package errsink is the shared sink for background failures. Fetches and
// writes report here instead of returning errors to read-path callers, so
// the cache never throws; consumers that care (the status command, the watch
// view) read the recent entries back out.
package errsink

import (
	"sync"
	"time"

	"github.com/apex/log"
)

// Entry is one reported failure.
type Entry struct {
	Time      time.Time
	Operation string
	Err       error
}

// Sink retains the most recent failures, newest last.
type Sink struct {
	mu      sync.Mutex
	max     int
	entries []Entry
}

// New builds a Sink keeping at most max entries. max <= 0 falls back to 20.
func New(max int) *Sink {
	if max <= 0 {
		max = 20
	}
	return &Sink{max: max}
}

// Report logs the failure and retains it.
func (s *Sink) Report(operation string, err error) {
	if err == nil {
		return
	}

	log.WithError(err).Errorf("%s failed", operation)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, Entry{Time: time.Now(), Operation: operation, Err: err})
	if len(s.entries) > s.max {
		s.entries = s.entries[len(s.entries)-s.max:]
	}
}

// Recent returns a copy of the retained entries, oldest first.
func (s *Sink) Recent() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of retained entries.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
