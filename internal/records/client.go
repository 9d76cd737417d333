// Package records tracks lesson sessions and ships per-word attempts to the logging endpoint.
//
// A Client is created once per page session. Its public methods never block on the network:
// they push commands to a single dispatcher goroutine that owns the batch queue, the pending
// retry queues, the session table and every outbound event request.
package records

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"wordrecords/internal/config"
	"wordrecords/internal/events"
	"wordrecords/internal/models"
	"wordrecords/internal/storage"
)

const commandBuffer = 1024

// ErrClosed is returned by operations on a closed client
var ErrClosed = errors.New("records client closed")

// Sender delivers events to the logging endpoint and its collaborators
type Sender interface {
	Send(ctx context.Context, payload any) (*models.LogResponse, error)
	Beacon(payload any) bool
	Refresh(ctx context.Context) error
	RunToken(ctx context.Context, listName string) (string, error)
}

// Identity exposes the cached signed-in user
type Identity interface {
	UserID() string
	Resolve(ctx context.Context) string
	Kick()
}

// Points receives optimistic bumps and server totals
type Points interface {
	OptimisticBump(delta int)
	Apply(total int)
	ScheduleRefresh(delay time.Duration)
}

// Assignments supplies and remembers the assignment run token
type Assignments interface {
	Get() string
	Persist(token string)
}

// Alerter surfaces the few user-visible warnings the client raises
type Alerter interface {
	Alert(kind, message string)
}

// Alert kinds
const (
	AlertAttemptsFailing = "attempts_failing"
	AlertSessionEndLost  = "session_end_lost"
)

// logAlerter is the default Alerter; it writes warnings to the logger
type logAlerter struct {
	logger *slog.Logger
}

func (a logAlerter) Alert(kind, message string) {
	a.logger.Warn(message, "alert", kind)
}

// StartOptions describe a new session
type StartOptions struct {
	Mode     string
	WordList []string
	ListName string
	Meta     map[string]any
}

// EndOptions describe how a session finished
type EndOptions struct {
	Mode     string
	Summary  map[string]any
	ListName string
	WordList []string
}

// Client is the activity telemetry client
type Client struct {
	cfg      config.ClientConfig
	sender   Sender
	identity Identity
	points   Points
	assign   Assignments
	bus      *events.Bus
	store    storage.Store
	alerter  Alerter
	logger   *slog.Logger

	cmds   chan command
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	// mu orders submissions against Close: once closed is set no command can follow closeCmd
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error

	d *dispatcher
}

// Option customises a Client
type Option func(*Client)

// WithPoints connects a points client
func WithPoints(p Points) Option {
	return func(c *Client) { c.points = p }
}

// WithAssignments connects the assignment run context
func WithAssignments(a Assignments) Option {
	return func(c *Client) { c.assign = a }
}

// WithBus sets the event bus local notifications are emitted on
func WithBus(b *events.Bus) Option {
	return func(c *Client) { c.bus = b }
}

// WithStore sets the storage touched when a session ends
func WithStore(s storage.Store) Option {
	return func(c *Client) { c.store = s }
}

// WithAlerter replaces the default log-based alerter
func WithAlerter(a Alerter) Option {
	return func(c *Client) { c.alerter = a }
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client and starts its dispatcher
func New(cfg config.ClientConfig, sender Sender, identity Identity, opts ...Option) *Client {
	c := &Client{
		cfg:      cfg,
		sender:   sender,
		identity: identity,
		logger:   slog.Default(),
		cmds:     make(chan command, commandBuffer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.alerter == nil {
		c.alerter = logAlerter{logger: c.logger}
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.d = newDispatcher(c)
	go c.d.run()
	return c
}

// StartSession creates a session and returns its id immediately.
// The session_start event is sent in the background.
func (c *Client) StartSession(opts StartOptions) string {
	sess := &models.Session{
		ID:        models.NewSessionID(),
		Mode:      opts.Mode,
		ListName:  opts.ListName,
		Meta:      opts.Meta,
		StartedAt: time.Now(),
	}
	if opts.WordList != nil {
		n := len(opts.WordList)
		sess.ListSize = &n
	}
	if c.assign != nil {
		sess.AssignmentRun = c.assign.Get()
	}

	c.identity.Kick()
	c.submit(startCmd{session: sess})
	return sess.ID
}

// LogAttempt records one answer. Attempts without a word are dropped.
// A correct attempt bumps the displayed points before anything is sent.
func (c *Client) LogAttempt(a models.Attempt) {
	if !a.Valid() {
		c.logger.Debug("dropping attempt without word", "session_id", a.SessionID)
		return
	}
	if c.assign != nil {
		if run := c.assign.Get(); run != "" {
			a = a.WithExtra(models.ExtraAssignmentRun, run)
		}
	}
	if a.IsCorrect {
		delta := a.OptimisticDelta()
		if c.points != nil {
			c.points.OptimisticBump(delta)
		}
		c.bus.Emit(events.PointsOptimisticBump, events.BumpDetail{SessionID: a.SessionID, Delta: delta})
	}
	c.submit(attemptCmd{attempt: a})
}

// EndSession flushes the session's attempts, notifies local listeners and sends session_end.
// An empty id is ignored.
func (c *Client) EndSession(sessionID string, opts EndOptions) {
	if sessionID == "" {
		return
	}
	c.submit(flushCmd{})

	detail := events.SessionEndedDetail{
		SessionID: sessionID,
		Mode:      opts.Mode,
		ListName:  opts.ListName,
		Summary:   opts.Summary,
	}
	c.bus.Emit(events.WASessionEnded, detail)
	c.bus.Emit(events.SessionEnded, detail)
	if c.store != nil {
		c.store.Set(storage.KeySessionEndedAt, strconv.FormatInt(time.Now().UnixMilli(), 10))
	}

	c.submit(endCmd{sessionID: sessionID, opts: opts})
}

// FlushAttempts sends every queued attempt and waits for the sends to finish.
// Delivery failures are handled internally; only ctx or close errors are returned.
func (c *Client) FlushAttempts(ctx context.Context) error {
	done := make(chan struct{})
	if !c.submit(flushCmd{done: done}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reauthenticate re-checks identity, clears the auth failure count and resumes suspended delivery
func (c *Client) Reauthenticate() {
	c.submit(authCmd{reset: true})
}

// SessionState reports the lifecycle state of a session known to this client
func (c *Client) SessionState(ctx context.Context, sessionID string) (State, error) {
	reply := make(chan State, 1)
	if !c.submit(stateCmd{sessionID: sessionID, reply: reply}) {
		return StateUnknown, ErrClosed
	}
	select {
	case st := <-reply:
		return st, nil
	case <-c.done:
		return StateUnknown, ErrClosed
	case <-ctx.Done():
		return StateUnknown, ctx.Err()
	}
}

// Close stops the dispatcher. Commands already submitted are drained and whatever is left
// in the batch queue is beaconed. When ctx ends first the client is still shut down in the
// background and ctx's error is returned.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		finished := make(chan struct{})
		go func() { c.cmds <- closeCmd{done: finished} }()
		select {
		case <-finished:
		case <-ctx.Done():
			c.closeErr = ctx.Err()
		}
		c.cancel()
	})
	return c.closeErr
}

// submit hands cmd to the dispatcher. It reports false once the client is closed.
func (c *Client) submit(cmd command) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	c.cmds <- cmd
	return true
}
