// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package audit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It keeps at most maxLen entries and
// drops the oldest tenth when full.
type MemoryStore struct {
	entries []Entry
	mu      sync.RWMutex
	maxLen  int
}

// NewMemoryStore creates a new in-memory audit store.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		entries: make([]Entry, 0, maxLen),
		maxLen:  maxLen,
	}
}

// InsertOne persists a single entry.
func (s *MemoryStore) InsertOne(_ context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(entry)
	return nil
}

// InsertBatch persists entries in order.
func (s *MemoryStore) InsertBatch(_ context.Context, entries []*Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e == nil {
			continue
		}
		s.appendLocked(e)
	}
	return nil
}

func (s *MemoryStore) appendLocked(e *Entry) {
	if len(s.entries) >= s.maxLen {
		removeCount := s.maxLen / 10
		if removeCount == 0 {
			removeCount = 1
		}
		s.entries = s.entries[removeCount:]
	}
	s.entries = append(s.entries, *e)
}

// Query returns matching entries, most recent first.
func (s *MemoryStore) Query(_ context.Context, filter QueryFilter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.effectiveLimit()
	skipped := 0
	var results []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if !filter.matches(&s.entries[i]) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		results = append(results, s.entries[i])
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// Count returns the number of matching entries.
func (s *MemoryStore) Count(_ context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.entries {
		if filter.matches(&s.entries[i]) {
			count++
		}
	}
	return count, nil
}

// DeleteOlderThan removes entries recorded before cutoff.
func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	var deleted int64
	for _, e := range s.entries {
		if e.OperationTime.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return deleted, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ Store = (*MemoryStore)(nil)
