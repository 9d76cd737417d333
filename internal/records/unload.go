package records

import (
	"wordrecords/internal/models"
	"wordrecords/internal/retry"
)

// shutdown drains commands already submitted, then beacons what is still queued
func (d *dispatcher) shutdown() {
	for {
		select {
		case cmd := <-d.c.cmds:
			d.drain(cmd)
		default:
			d.stopTimers()
			d.beaconQueue()
			return
		}
	}
}

func (d *dispatcher) stopTimers() {
	if d.flushTimer != nil {
		d.flushTimer.Stop()
	}
	if d.retryTimer != nil {
		d.retryTimer.Stop()
	}
	d.flushC, d.retryC = nil, nil
}

// beaconQueue hands every queued attempt to the beacon, one request per session.
// Nothing is in flight at this point, so no attempt can be sent twice.
func (d *dispatcher) beaconQueue() {
	if len(d.queue) == 0 {
		return
	}
	attempts := make([]models.Attempt, 0, len(d.queue))
	for _, it := range d.queue {
		attempts = append(attempts, it.Payload)
	}
	d.queue = nil

	userID := d.c.identity.UserID()
	for _, group := range models.GroupBySession(attempts) {
		if !d.c.sender.Beacon(group.Event(userID)) {
			d.c.logger.Debug("beacon not accepted", "session_id", group.SessionID, "attempts", len(group.Attempts))
		}
	}
}

// drain applies a command received after Close without touching the network,
// except session events which get a best-effort beacon.
func (d *dispatcher) drain(cmd command) {
	switch cmd := cmd.(type) {
	case attemptCmd:
		d.queue = append(d.queue, &retry.Item[models.Attempt]{Payload: cmd.attempt})
	case startCmd:
		d.trackStart(cmd.session)
		d.c.sender.Beacon(cmd.session.StartEvent(d.c.identity.UserID()))
	case endCmd:
		d.c.sender.Beacon(d.endEvent(cmd.sessionID, cmd.opts, d.c.identity.UserID()))
		d.markEnded(cmd.sessionID)
	case flushCmd:
		if cmd.done != nil {
			close(cmd.done)
		}
	case stateCmd:
		cmd.reply <- d.state(cmd.sessionID)
	}
}
