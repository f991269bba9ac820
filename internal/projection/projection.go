// Package projection holds the local copy of a remote collection.
//
// A Projection has exactly one mutation, ReplaceAll, which swaps in a full
// snapshot. There is no incremental merge and no optimistic local write:
// the projection always equals the last snapshot it was given.
package projection

import (
	"slices"
	"sync"
)

// Projection is a concurrency-safe, observable copy of a collection.
type Projection[T any] struct {
	mu        sync.RWMutex
	items     []T
	version   uint64
	observers map[chan []T]struct{}
}

func New[T any]() *Projection[T] {
	return &Projection[T]{observers: make(map[chan []T]struct{})}
}

// ReplaceAll swaps in snapshot and notifies observers.
func (p *Projection[T]) ReplaceAll(snapshot []T) {
	items := slices.Clone(snapshot)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = items
	p.version++
	for ch := range p.observers {
		offer(ch, slices.Clone(items))
	}
}

// All returns a copy of the current items.
func (p *Projection[T]) All() []T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.items)
}

// Version counts ReplaceAll calls since creation or the last Reset.
func (p *Projection[T]) Version() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// Find returns the first item matching fn.
func (p *Projection[T]) Find(fn func(T) bool) (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, item := range p.items {
		if fn(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Subscribe returns a channel that receives the items after every
// ReplaceAll. A slow observer only ever holds the newest snapshot. If the
// projection has been loaded, the current items are delivered at once.
// Call cancel to stop observing; it closes the channel.
func (p *Projection[T]) Subscribe() (<-chan []T, func()) {
	ch := make(chan []T, 1)

	p.mu.Lock()
	p.observers[ch] = struct{}{}
	if p.version > 0 {
		ch <- slices.Clone(p.items)
	}
	p.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			if _, ok := p.observers[ch]; ok {
				delete(p.observers, ch)
				close(ch)
			}
			p.mu.Unlock()
		})
	}
	return ch, cancel
}

// Reset empties the projection and closes every observer channel.
func (p *Projection[T]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = nil
	p.version = 0
	for ch := range p.observers {
		delete(p.observers, ch)
		close(ch)
	}
}

// ObserverCount returns the number of live observers.
func (p *Projection[T]) ObserverCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.observers)
}

// offer replaces whatever is pending in ch with v. Callers hold p.mu, so
// nothing else sends on ch concurrently.
func offer[T any](ch chan []T, v []T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
