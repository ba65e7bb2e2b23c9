// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package jobqueue

import (
	"sync"
)

// heapEntry is an entry of the priority heap.
type heapEntry[T any] struct {
	Key      string
	Value    T
	Priority int64
	seq      uint64 // insertion order, breaks priority ties
	index    int    // index in the heap array, used for O(log n) removal
}

// PriorityHeap is a max-heap on priority with FIFO order among equal
// priorities. Push and Pop are O(log n); a parallel map gives O(1) key lookup.
type PriorityHeap[T any] struct {
	mu    sync.Mutex
	heap  []*heapEntry[T]
	byKey map[string]*heapEntry[T]
	seq   uint64
}

// NewPriorityHeap creates an empty heap.
func NewPriorityHeap[T any]() *PriorityHeap[T] {
	return &PriorityHeap[T]{
		heap:  make([]*heapEntry[T], 0),
		byKey: make(map[string]*heapEntry[T]),
	}
}

// Push adds an entry. Returns false when the key is already present.
func (h *PriorityHeap[T]) Push(key string, value T, priority int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.byKey[key]; exists {
		return false
	}

	h.seq++
	entry := &heapEntry[T]{
		Key:      key,
		Value:    value,
		Priority: priority,
		seq:      h.seq,
		index:    len(h.heap),
	}
	h.heap = append(h.heap, entry)
	h.byKey[key] = entry
	h.bubbleUp(entry.index)
	return true
}

// Pop removes and returns the highest-priority value.
// ok is false when the heap is empty.
func (h *PriorityHeap[T]) Pop() (value T, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.heap) == 0 {
		return value, false
	}
	return h.removeAt(0).Value, true
}

// Remove removes an entry by key. Returns false if not found.
func (h *PriorityHeap[T]) Remove(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, exists := h.byKey[key]
	if !exists {
		return false
	}
	h.removeAt(entry.index)
	return true
}

// Contains reports whether a key is queued.
func (h *PriorityHeap[T]) Contains(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.byKey[key]
	return ok
}

// Len returns the number of entries.
func (h *PriorityHeap[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.heap)
}

// Drain removes every entry and returns the values in pop order.
func (h *PriorityHeap[T]) Drain() []T {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]T, 0, len(h.heap))
	for len(h.heap) > 0 {
		out = append(out, h.removeAt(0).Value)
	}
	return out
}

// Internal heap operations (must be called with lock held)

// before reports whether a is served before b.
func before[T any](a, b *heapEntry[T]) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.seq < b.seq
}

func (h *PriorityHeap[T]) removeAt(i int) *heapEntry[T] {
	n := len(h.heap) - 1
	entry := h.heap[i]
	delete(h.byKey, entry.Key)

	if i == n {
		h.heap = h.heap[:n]
		return entry
	}

	h.heap[i] = h.heap[n]
	h.heap[i].index = i
	h.heap = h.heap[:n]

	if !h.bubbleUp(i) {
		h.bubbleDown(i)
	}
	return entry
}

// bubbleUp moves element at index i up. Returns true if it moved.
func (h *PriorityHeap[T]) bubbleUp(i int) bool {
	moved := false
	for i > 0 {
		parent := (i - 1) / 2
		if !before(h.heap[i], h.heap[parent]) {
			break
		}
		h.swap(i, parent)
		i = parent
		moved = true
	}
	return moved
}

func (h *PriorityHeap[T]) bubbleDown(i int) {
	n := len(h.heap)
	for {
		first := i
		left := 2*i + 1
		right := 2*i + 2

		if left < n && before(h.heap[left], h.heap[first]) {
			first = left
		}
		if right < n && before(h.heap[right], h.heap[first]) {
			first = right
		}
		if first == i {
			break
		}

		h.swap(i, first)
		i = first
	}
}

func (h *PriorityHeap[T]) swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
	h.heap[i].index = i
	h.heap[j].index = j
}
