package identity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordrecords/internal/events"
)

type fakeWhoAmI struct {
	mu    sync.Mutex
	id    string
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeWhoAmI) WhoAmI(ctx context.Context) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id, f.err
}

func (f *fakeWhoAmI) set(id string, err error) {
	f.mu.Lock()
	f.id, f.err = id, err
	f.mu.Unlock()
}

func TestResolveCachesUser(t *testing.T) {
	src := &fakeWhoAmI{id: "student-1"}
	r := NewResolver(src, nil, nil)

	assert.Empty(t, r.UserID())
	assert.False(t, r.IsAuthChecked())

	assert.Equal(t, "student-1", r.Resolve(context.Background()))
	assert.Equal(t, "student-1", r.UserID())
	assert.True(t, r.IsAuthChecked())

	assert.Equal(t, "student-1", r.EnsureUserID(context.Background()))
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestNetworkErrorKeepsKnownUser(t *testing.T) {
	src := &fakeWhoAmI{id: "student-1"}
	r := NewResolver(src, nil, nil)
	r.Resolve(context.Background())

	src.set("", errors.New("connection reset"))
	assert.Equal(t, "student-1", r.Resolve(context.Background()))

	src.set("", nil)
	assert.Empty(t, r.Resolve(context.Background()), "a clean anonymous answer signs out")
}

func TestConcurrentResolveSharesOneCall(t *testing.T) {
	src := &fakeWhoAmI{id: "student-1", gate: make(chan struct{})}
	r := NewResolver(src, nil, nil)

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, id := range results {
		assert.Equal(t, "student-1", id)
	}
}

func TestAuthReadyEmittedOnce(t *testing.T) {
	bus := events.NewBus()
	var got []string
	var mu sync.Mutex
	bus.Subscribe(events.AuthReady, func(ev events.Event) {
		mu.Lock()
		got = append(got, ev.Detail.(events.AuthDetail).UserID)
		mu.Unlock()
	})

	r := NewResolver(&fakeWhoAmI{id: "student-1"}, bus, nil)
	r.Resolve(context.Background())
	r.Resolve(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"student-1"}, got)
}

func TestOnReadyRunsOnce(t *testing.T) {
	src := &fakeWhoAmI{id: "student-1"}
	r := NewResolver(src, nil, nil)

	var early atomic.Int32
	r.OnReady(func(id string) {
		assert.Equal(t, "student-1", id)
		early.Add(1)
	})
	r.Resolve(context.Background())
	r.Resolve(context.Background())
	assert.Equal(t, int32(1), early.Load())

	var late string
	r.OnReady(func(id string) { late = id })
	assert.Equal(t, "student-1", late)
}

func TestWaitForAuth(t *testing.T) {
	t.Run("returns after first check", func(t *testing.T) {
		r := NewResolver(&fakeWhoAmI{id: "student-1"}, nil, nil)
		assert.Equal(t, "student-1", r.WaitForAuth(context.Background(), time.Second))
	})

	t.Run("times out when backend hangs", func(t *testing.T) {
		src := &fakeWhoAmI{id: "student-1", gate: make(chan struct{})}
		defer close(src.gate)
		r := NewResolver(src, nil, nil)

		start := time.Now()
		assert.Empty(t, r.WaitForAuth(context.Background(), 30*time.Millisecond))
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})
}

func TestKickSkipsAfterCheck(t *testing.T) {
	src := &fakeWhoAmI{id: "student-1"}
	r := NewResolver(src, nil, nil)
	r.Resolve(context.Background())

	r.Kick()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), src.calls.Load())
}
