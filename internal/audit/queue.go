// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package audit

import "sync"

// boundedQueue is a mutex-guarded FIFO with an adjustable capacity.
type boundedQueue struct {
	mu       sync.Mutex
	items    []*Entry
	capacity int
}

func newBoundedQueue(capacity int) *boundedQueue {
	return &boundedQueue{
		items:    make([]*Entry, 0, min(capacity, 1024)),
		capacity: capacity,
	}
}

// offer appends e unless the queue is at capacity.
func (q *boundedQueue) offer(e *Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, e)
	return true
}

// offerAndLen appends e and returns the resulting length.
func (q *boundedQueue) offerAndLen(e *Entry) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		return len(q.items), false
	}
	q.items = append(q.items, e)
	return len(q.items), true
}

// poll removes and returns up to n entries from the head.
func (q *boundedQueue) poll(n int) []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.items) {
		n = len(q.items)
	}
	if n == 0 {
		return nil
	}
	out := make([]*Entry, n)
	copy(out, q.items[:n])
	clear(q.items[:n])
	q.items = q.items[n:]
	return out
}

func (q *boundedQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *boundedQueue) limit() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity
}

// setCapacity changes the bound. Entries already queued beyond a smaller
// bound are kept; new offers fail until the queue drains below it.
func (q *boundedQueue) setCapacity(n int) {
	q.mu.Lock()
	q.capacity = n
	q.mu.Unlock()
}
