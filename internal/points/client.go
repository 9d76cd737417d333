// Package points keeps the student's running points total in step with the server.
package points

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"wordrecords/internal/events"
)

const refreshTimeout = 10 * time.Second

// Source reads the authoritative total. The bool is false when the server gave no number.
type Source interface {
	Count(ctx context.Context) (int, bool, error)
	Overview(ctx context.Context) (int, bool, error)
}

// Client holds the displayed total. Local bumps are optimistic; server values always win.
type Client struct {
	src    Source
	bus    *events.Bus
	logger *slog.Logger

	limiter *rate.Limiter
	group   singleflight.Group

	mu      sync.Mutex
	total   int
	known   bool
	timer   *time.Timer
	stopped bool
}

// New creates a points client. Zero-delay refreshes are allowed once per throttle window.
func New(src Source, bus *events.Bus, throttle time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if throttle > 0 {
		limit = rate.Every(throttle)
	}
	return &Client{
		src:     src,
		bus:     bus,
		logger:  logger,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Total returns the current total and whether it is known
func (c *Client) Total() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total, c.known
}

// OptimisticBump adds delta (1 when delta is 0) to the local total and broadcasts it.
// Until a server value is known there is nothing to add to, so the bump is skipped.
func (c *Client) OptimisticBump(delta int) {
	if delta == 0 {
		delta = 1
	}
	c.mu.Lock()
	if !c.known {
		c.mu.Unlock()
		return
	}
	c.total += delta
	total := c.total
	c.mu.Unlock()

	c.bus.Emit(events.PointsUpdate, events.PointsDetail{Total: total})
}

// Apply replaces the local total with a server value
func (c *Client) Apply(total int) {
	c.mu.Lock()
	c.total = total
	c.known = true
	c.mu.Unlock()

	c.bus.Emit(events.PointsUpdate, events.PointsDetail{Total: total})
}

// ScheduleRefresh arranges a server refresh after delay, replacing any pending one.
// A zero delay is throttled; an explicit delay always schedules.
func (c *Client) ScheduleRefresh(delay time.Duration) {
	if delay <= 0 && !c.limiter.Allow() {
		return
	}
	if delay < 0 {
		delay = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(delay, func() {
		c.RefreshFromServerOnce(context.Background())
	})
}

// RefreshFromServerOnce fetches the total, preferring the count endpoint and falling back to the overview.
// Concurrent callers share one request. It reports whether a value was applied.
func (c *Client) RefreshFromServerOnce(ctx context.Context) bool {
	ch := c.group.DoChan("refresh", func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return c.fetch(callCtx), nil
	})
	select {
	case res := <-ch:
		ok, _ := res.Val.(bool)
		return ok
	case <-ctx.Done():
		return false
	}
}

func (c *Client) fetch(ctx context.Context) bool {
	total, ok, err := c.src.Count(ctx)
	if err != nil {
		c.logger.Debug("points count failed", "error", err)
	}
	if !ok {
		total, ok, err = c.src.Overview(ctx)
		if err != nil {
			c.logger.Debug("progress overview failed", "error", err)
		}
	}
	if !ok {
		return false
	}
	c.Apply(total)
	return true
}

// Stop cancels any scheduled refresh
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
