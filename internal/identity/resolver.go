// Package identity resolves and caches the signed-in student.
package identity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"wordrecords/internal/events"
)

const defaultResolveTimeout = 10 * time.Second

// WhoAmIer asks the auth backend who the cookie belongs to
type WhoAmIer interface {
	WhoAmI(ctx context.Context) (string, error)
}

// Resolver caches the current user id. It is the single source of truth for identity;
// other components only read from it.
type Resolver struct {
	src     WhoAmIer
	bus     *events.Bus
	logger  *slog.Logger
	timeout time.Duration

	group singleflight.Group

	mu        sync.RWMutex
	userID    string
	checked   bool
	callbacks []func(string)
	ready     chan struct{}
}

// NewResolver creates a resolver backed by src. bus and logger may be nil.
func NewResolver(src WhoAmIer, bus *events.Bus, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		src:     src,
		bus:     bus,
		logger:  logger,
		timeout: defaultResolveTimeout,
		ready:   make(chan struct{}),
	}
}

// UserID returns the cached id or "" without blocking
func (r *Resolver) UserID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userID
}

// IsAuthChecked reports whether the first resolution has completed, with or without a user
func (r *Resolver) IsAuthChecked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.checked
}

// EnsureUserID returns the cached id, resolving first when there is none
func (r *Resolver) EnsureUserID(ctx context.Context) string {
	if id := r.UserID(); id != "" {
		return id
	}
	return r.Resolve(ctx)
}

// Kick starts a background resolution if auth has never been checked
func (r *Resolver) Kick() {
	if r.IsAuthChecked() {
		return
	}
	go r.Resolve(context.Background())
}

// WaitForAuth blocks until the first resolution completes, the timeout elapses or ctx ends.
// It never hangs: on timeout it returns "".
func (r *Resolver) WaitForAuth(ctx context.Context, timeout time.Duration) string {
	r.Kick()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-r.ready:
		return r.UserID()
	case <-timer.C:
		return ""
	case <-ctx.Done():
		return ""
	}
}

// OnReady registers fn to run once the first resolution completes.
// If that already happened fn runs immediately.
func (r *Resolver) OnReady(fn func(userID string)) {
	r.mu.Lock()
	if !r.checked {
		r.callbacks = append(r.callbacks, fn)
		r.mu.Unlock()
		return
	}
	id := r.userID
	r.mu.Unlock()
	fn(id)
}

// Resolve asks the backend for the current user. Concurrent callers share one in-flight call.
func (r *Resolver) Resolve(ctx context.Context) string {
	ch := r.group.DoChan("whoami", func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.resolveOnce(callCtx), nil
	})
	select {
	case res := <-ch:
		id, _ := res.Val.(string)
		return id
	case <-ctx.Done():
		return r.UserID()
	}
}

func (r *Resolver) resolveOnce(ctx context.Context) string {
	id, err := r.src.WhoAmI(ctx)

	r.mu.Lock()
	if err != nil {
		r.logger.Debug("whoami failed", "error", err)
		// Keep a previously known user; a flaky network is not a sign-out.
		id = r.userID
	}
	r.userID = id
	first := !r.checked
	r.checked = true
	callbacks := r.callbacks
	r.callbacks = nil
	r.mu.Unlock()

	if first {
		close(r.ready)
		r.bus.Emit(events.AuthReady, events.AuthDetail{UserID: id})
		for _, fn := range callbacks {
			fn(id)
		}
	}
	return id
}
