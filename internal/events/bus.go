// Package events is the in-process notification surface consumed by lesson UIs.
package events

import (
	"sync"
	"time"
)

// Event names emitted by the telemetry client
const (
	AuthReady            = "auth:ready"
	PointsUpdate         = "points:update"
	PointsOptimisticBump = "points:optimistic-bump"
	WASessionEnded       = "wa:session-ended"
	SessionEnded         = "session:ended"
)

// Event is a single notification
type Event struct {
	Name   string
	Detail any
	At     time.Time
}

// Handler receives events synchronously on the emitting goroutine
type Handler func(Event)

// AuthDetail accompanies auth:ready
type AuthDetail struct {
	UserID string
}

// PointsDetail accompanies points:update
type PointsDetail struct {
	Total int
}

// BumpDetail accompanies points:optimistic-bump
type BumpDetail struct {
	SessionID string
	Delta     int
}

// SessionEndedDetail accompanies wa:session-ended and session:ended
type SessionEndedDetail struct {
	SessionID string
	Mode      string
	ListName  string
	Summary   map[string]any
}

type subscription struct {
	id int
	fn Handler
}

// Bus is a synchronous publish/subscribe hub keyed by event name
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscription
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers fn for name and returns a function that removes it
func (b *Bus) Subscribe(name string, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[name]
			for i, s := range list {
				if s.id == id {
					b.subs[name] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Emit delivers detail to every handler subscribed to name.
// Handlers run outside the lock so they may subscribe or emit themselves.
func (b *Bus) Emit(name string, detail any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[name]))
	for _, s := range b.subs[name] {
		handlers = append(handlers, s.fn)
	}
	b.mu.RUnlock()

	ev := Event{Name: name, Detail: detail, At: time.Now()}
	for _, h := range handlers {
		h(ev)
	}
}
