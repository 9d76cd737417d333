// Package retry holds payloads awaiting re-delivery under a bounded-tries policy.
package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Policy bounds how often and how fast pending items are retried
type Policy struct {
	MaxTries   int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// Delay computes the wait before retry cycle n (0-based) with ±20% jitter
func (p Policy) Delay(cycle int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 2
	}
	wait := float64(p.BaseDelay) * math.Pow(mult, float64(cycle))
	if p.MaxDelay > 0 && wait > float64(p.MaxDelay) {
		wait = float64(p.MaxDelay)
	}
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

// Item wraps a payload with its delivery attempt counter
type Item[T any] struct {
	Key     string
	Payload T
	Tries   int
}

// Queue is an insertion-ordered set of pending items. Items with a non-empty key are unique per key.
// Queue is not safe for concurrent use; its owner serialises access.
type Queue[T any] struct {
	policy Policy
	items  []*Item[T]
}

// NewQueue creates an empty queue governed by p
func NewQueue[T any](p Policy) *Queue[T] {
	return &Queue[T]{policy: p}
}

// Policy returns the queue's retry policy
func (q *Queue[T]) Policy() Policy {
	return q.policy
}

// Len returns the number of pending items
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Add queues payload. A keyed payload replaces an existing item with the same key but keeps its tries.
func (q *Queue[T]) Add(key string, payload T) *Item[T] {
	if key != "" {
		if it := q.find(key); it != nil {
			it.Payload = payload
			return it
		}
	}
	it := &Item[T]{Key: key, Payload: payload}
	q.items = append(q.items, it)
	return it
}

// Requeue puts items back at the tail, preserving their tries
func (q *Queue[T]) Requeue(items ...*Item[T]) {
	for _, it := range items {
		if it.Key != "" {
			if existing := q.find(it.Key); existing != nil {
				// A newer payload was added while this one was out; keep the newer one.
				if it.Tries > existing.Tries {
					existing.Tries = it.Tries
				}
				continue
			}
		}
		q.items = append(q.items, it)
	}
}

// Update applies fn to the payload stored under key and reports whether it existed
func (q *Queue[T]) Update(key string, fn func(*T)) bool {
	it := q.find(key)
	if it == nil {
		return false
	}
	fn(&it.Payload)
	return true
}

// Remove deletes the item stored under key
func (q *Queue[T]) Remove(key string) bool {
	for i, it := range q.items {
		if it.Key == key {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Take empties the queue for one retry cycle. Every item's tries counter is bumped;
// items beyond the policy's MaxTries come back as dropped, the rest as ready.
func (q *Queue[T]) Take() (ready, dropped []*Item[T]) {
	items := q.items
	q.items = nil
	for _, it := range items {
		it.Tries++
		if q.policy.MaxTries > 0 && it.Tries > q.policy.MaxTries {
			dropped = append(dropped, it)
			continue
		}
		ready = append(ready, it)
	}
	return ready, dropped
}

// EvictOldest removes and returns the oldest item
func (q *Queue[T]) EvictOldest() (*Item[T], bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it, true
}

func (q *Queue[T]) find(key string) *Item[T] {
	for _, it := range q.items {
		if it.Key == key {
			return it
		}
	}
	return nil
}
