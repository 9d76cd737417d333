package records

import (
	"context"

	"wordrecords/internal/models"
)

// State is the lifecycle position of a session
type State int

const (
	StateUnknown State = iota
	StateCreated
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

type sessionEntry struct {
	session *models.Session
	state   State
}

func startKey(id string) string { return "start:" + id }
func endKey(id string) string   { return "end:" + id }

func (d *dispatcher) trackStart(s *models.Session) *sessionEntry {
	e, ok := d.sessions[s.ID]
	if !ok {
		e = &sessionEntry{session: s, state: StateCreated}
		d.sessions[s.ID] = e
	}
	return e
}

func (d *dispatcher) markEnded(id string) {
	if e, ok := d.sessions[id]; ok {
		e.state = StateEnded
	}
}

func (d *dispatcher) state(id string) State {
	if e, ok := d.sessions[id]; ok {
		return e.state
	}
	return StateUnknown
}

// startSession sends session_start with the best-known identity.
// Any failure keeps the payload pending under the session id.
func (d *dispatcher) startSession(s *models.Session) {
	e := d.trackStart(s)
	e.state = StateActive

	ev := s.StartEvent(d.c.identity.UserID())
	if d.suspended || d.deliver(ev) != delivered {
		d.pendingEvents.Add(startKey(s.ID), ev)
		d.scheduleRetry()
	}

	if s.AssignmentRun == "" && s.ListName != "" && d.c.assign != nil {
		go d.lookupRunToken(s.ID, s.ListName)
	}
}

// lookupRunToken asks the homework API for a run token and hands any hit back to the dispatcher
func (d *dispatcher) lookupRunToken(sessionID, listName string) {
	ctx, cancel := context.WithTimeout(d.c.ctx, d.c.cfg.RequestTimeout)
	defer cancel()

	token, err := d.c.sender.RunToken(ctx, listName)
	if err != nil {
		d.c.logger.Debug("run token lookup failed", "list_name", listName, "error", err)
		return
	}
	if token == "" {
		return
	}
	d.c.submit(enrichCmd{sessionID: sessionID, token: token})
}

// enrich attaches a discovered run token to a session: the token is persisted,
// any pending session_start is patched, and the start is re-sent as an upsert.
func (d *dispatcher) enrich(sessionID, token string) {
	d.c.assign.Persist(token)

	e, ok := d.sessions[sessionID]
	if !ok {
		return
	}
	e.session.AssignmentRun = token

	key := startKey(sessionID)
	d.pendingEvents.Update(key, func(ev *models.Event) {
		ev.SetExtra(models.ExtraAssignmentRun, token)
	})

	userID := d.c.identity.UserID()
	if userID == "" || d.suspended {
		return
	}
	ev := e.session.StartEvent(userID)
	if d.deliver(ev) == delivered {
		d.pendingEvents.Remove(key)
		return
	}
	d.pendingEvents.Add(key, ev)
	d.scheduleRetry()
}

// endEvent builds session_end. Options win over what was recorded at start.
func (d *dispatcher) endEvent(sessionID string, opts EndOptions, userID string) models.Event {
	ev := models.Event{
		Type:      models.EventSessionEnd,
		SessionID: sessionID,
		Mode:      opts.Mode,
		UserID:    userID,
		ListName:  opts.ListName,
	}
	if opts.WordList != nil {
		n := len(opts.WordList)
		ev.ListSize = &n
	}

	run := ""
	if e, ok := d.sessions[sessionID]; ok {
		if ev.Mode == "" {
			ev.Mode = e.session.Mode
		}
		if ev.ListName == "" {
			ev.ListName = e.session.ListName
		}
		if ev.ListSize == nil {
			ev.ListSize = e.session.ListSize
		}
		run = e.session.AssignmentRun
	}
	if ev.Mode == "" {
		ev.Mode = models.UnknownMode
	}
	if run == "" && d.c.assign != nil {
		run = d.c.assign.Get()
	}

	for k, v := range opts.Summary {
		ev.SetExtra(k, v)
	}
	if run != "" {
		if _, ok := ev.Extra[models.ExtraAssignmentRun]; !ok {
			ev.SetExtra(models.ExtraAssignmentRun, run)
		}
	}
	return ev
}

// endSession sends session_end after the preceding flush, deferring it while identity is unknown,
// then nudges the points client.
func (d *dispatcher) endSession(sessionID string, opts EndOptions) {
	userID := d.c.identity.UserID()
	ev := d.endEvent(sessionID, opts, userID)
	d.markEnded(sessionID)

	switch {
	case userID == "" || d.suspended:
		d.pendingEvents.Add(endKey(sessionID), ev)
		d.c.identity.Kick()
		d.scheduleRetry()
	case d.deliver(ev) != delivered:
		d.pendingEvents.Add(endKey(sessionID), ev)
		d.scheduleRetry()
	}

	if d.c.points != nil {
		d.c.points.ScheduleRefresh(d.c.cfg.PostSessionRefreshDelay)
	}
}
