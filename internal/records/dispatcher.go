package records

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"wordrecords/internal/models"
	"wordrecords/internal/retry"
	"wordrecords/internal/transport"
)

type command interface{ isCommand() }

type startCmd struct{ session *models.Session }

type attemptCmd struct{ attempt models.Attempt }

type flushCmd struct{ done chan struct{} }

type endCmd struct {
	sessionID string
	opts      EndOptions
}

type authCmd struct{ reset bool }

type enrichCmd struct {
	sessionID string
	token     string
}

type stateCmd struct {
	sessionID string
	reply     chan State
}

type closeCmd struct{ done chan struct{} }

func (startCmd) isCommand()   {}
func (attemptCmd) isCommand() {}
func (flushCmd) isCommand()   {}
func (endCmd) isCommand()     {}
func (authCmd) isCommand()    {}
func (enrichCmd) isCommand()  {}
func (stateCmd) isCommand()   {}
func (closeCmd) isCommand()   {}

type outcome int

const (
	delivered outcome = iota
	unauthorized
	failed
)

// dispatcher owns all mutable delivery state. Only its goroutine touches these fields.
type dispatcher struct {
	c *Client

	queue           []*retry.Item[models.Attempt]
	pendingAttempts *retry.Queue[models.Attempt]
	pendingEvents   *retry.Queue[models.Event]
	sessions        map[string]*sessionEntry

	flushTimer *time.Timer
	flushC     <-chan time.Time
	retryTimer *time.Timer
	retryC     <-chan time.Time
	retryCycle int

	authFailures  int
	batchFailures int
	suspended     bool

	refreshGate   *rate.Sometimes
	attemptsAlert *rate.Sometimes
	sessionAlert  *rate.Sometimes
}

func newDispatcher(c *Client) *dispatcher {
	policy := retry.Policy{
		MaxTries:   c.cfg.MaxTries,
		BaseDelay:  c.cfg.RetryBaseDelay,
		MaxDelay:   c.cfg.RetryMaxDelay,
		Multiplier: 2,
	}
	return &dispatcher{
		c:               c,
		pendingAttempts: retry.NewQueue[models.Attempt](policy),
		pendingEvents:   retry.NewQueue[models.Event](policy),
		sessions:        make(map[string]*sessionEntry),
		refreshGate:     &rate.Sometimes{Interval: c.cfg.RefreshThrottle},
		attemptsAlert:   &rate.Sometimes{Interval: c.cfg.AlertInterval},
		sessionAlert:    &rate.Sometimes{Interval: c.cfg.AlertInterval},
	}
}

func (d *dispatcher) run() {
	defer close(d.c.done)
	for {
		select {
		case cmd := <-d.c.cmds:
			if done, ok := cmd.(closeCmd); ok {
				d.shutdown()
				close(done.done)
				return
			}
			d.handle(cmd)
		case <-d.flushC:
			d.flushC = nil
			d.flush()
		case <-d.retryC:
			d.retryC = nil
			d.retryPending()
		}
	}
}

func (d *dispatcher) handle(cmd command) {
	switch cmd := cmd.(type) {
	case startCmd:
		d.startSession(cmd.session)
	case attemptCmd:
		d.enqueue(cmd.attempt)
	case flushCmd:
		d.flush()
		if cmd.done != nil {
			close(cmd.done)
		}
	case endCmd:
		d.endSession(cmd.sessionID, cmd.opts)
	case authCmd:
		if cmd.reset {
			d.authFailures = 0
			d.suspended = false
			d.c.identity.Resolve(d.c.ctx)
		}
		d.retryCycle = 0
		d.retryPending()
	case enrichCmd:
		d.enrich(cmd.sessionID, cmd.token)
	case stateCmd:
		cmd.reply <- d.state(cmd.sessionID)
	}
}

// deliver sends one event and classifies the result. A malformed 2xx body counts as delivered.
func (d *dispatcher) deliver(ev models.Event) outcome {
	ctx, cancel := context.WithTimeout(d.c.ctx, d.c.cfg.RequestTimeout)
	defer cancel()

	resp, err := d.c.sender.Send(ctx, ev)
	switch {
	case err == nil:
	case transport.IsMalformed(err):
		d.c.logger.Warn("unreadable response from logging endpoint", "event_type", ev.Type, "session_id", ev.SessionID, "error", err)
		d.authFailures = 0
		return delivered
	case transport.IsUnauthorized(err):
		d.c.logger.Info("logging endpoint rejected credentials", "event_type", ev.Type, "session_id", ev.SessionID)
		return unauthorized
	default:
		if !errors.Is(err, context.Canceled) {
			d.c.logger.Warn("event delivery failed", "event_type", ev.Type, "session_id", ev.SessionID, "error", err)
		}
		return failed
	}

	d.authFailures = 0
	if resp != nil && resp.PointsTotal != nil && d.c.points != nil {
		d.c.points.Apply(*resp.PointsTotal)
	}
	return delivered
}

// noteAuthFailure counts a rejected attempt batch. Past the cap automatic retry stops
// until Reauthenticate is called.
func (d *dispatcher) noteAuthFailure() {
	d.authFailures++
	if d.authFailures > d.c.cfg.AuthRetryCap && !d.suspended {
		d.suspended = true
		d.c.logger.Warn("delivery suspended after repeated auth failures", "failures", d.authFailures, "cap", d.c.cfg.AuthRetryCap)
	}
}

// scheduleRetry arms the retry timer unless it is already armed or delivery is suspended
func (d *dispatcher) scheduleRetry() {
	if d.suspended || d.retryC != nil {
		return
	}
	wait := d.pendingEvents.Policy().Delay(d.retryCycle)
	d.retryCycle++
	if d.retryTimer == nil {
		d.retryTimer = time.NewTimer(wait)
	} else {
		d.retryTimer.Reset(wait)
	}
	d.retryC = d.retryTimer.C
}

// retryPending runs one auth-resolution cycle over the pending queues.
// Order: session starts, then attempts, then session ends and any other events.
func (d *dispatcher) retryPending() {
	if d.suspended {
		return
	}
	if d.pendingEvents.Len() == 0 && d.pendingAttempts.Len() == 0 {
		d.retryCycle = 0
		return
	}

	userID := d.c.identity.UserID()
	if userID == "" {
		d.refreshGate.Do(func() {
			ctx, cancel := context.WithTimeout(d.c.ctx, d.c.cfg.RequestTimeout)
			defer cancel()
			if err := d.c.sender.Refresh(ctx); err != nil {
				d.c.logger.Debug("session refresh failed", "error", err)
			}
		})
		userID = d.c.identity.Resolve(d.c.ctx)
	}

	events, droppedEvents := d.pendingEvents.Take()
	attempts, droppedAttempts := d.pendingAttempts.Take()
	d.reportDropped(droppedEvents, droppedAttempts)

	var starts, rest []*retry.Item[models.Event]
	for _, it := range events {
		if it.Payload.Type == models.EventSessionStart {
			starts = append(starts, it)
		} else {
			rest = append(rest, it)
		}
	}

	d.retryEvents(starts, userID)
	if userID == "" || d.suspended {
		d.pendingAttempts.Requeue(attempts...)
	} else {
		d.queue = append(d.queue, attempts...)
		d.flush()
	}
	d.retryEvents(rest, userID)

	if d.pendingEvents.Len() > 0 || d.pendingAttempts.Len() > 0 {
		d.scheduleRetry()
	} else {
		d.retryCycle = 0
	}
}

func (d *dispatcher) retryEvents(items []*retry.Item[models.Event], userID string) {
	for _, it := range items {
		if userID == "" || d.suspended {
			d.pendingEvents.Requeue(it)
			continue
		}
		ev := it.Payload
		ev.UserID = userID
		if d.deliver(ev) != delivered {
			d.pendingEvents.Requeue(it)
		}
	}
}

func (d *dispatcher) reportDropped(events []*retry.Item[models.Event], attempts []*retry.Item[models.Attempt]) {
	for _, it := range events {
		d.c.logger.Warn("giving up on event", "event_type", it.Payload.Type, "session_id", it.Payload.SessionID, "tries", it.Tries)
		if it.Payload.Type == models.EventSessionEnd {
			d.sessionAlert.Do(func() {
				d.c.alerter.Alert(AlertSessionEndLost, "Your session could not be saved. Please check you are signed in.")
			})
		}
	}
	if len(attempts) > 0 {
		d.c.logger.Warn("giving up on attempts", "count", len(attempts))
	}
}
