package records

import (
	"time"

	"wordrecords/internal/models"
	"wordrecords/internal/retry"
)

// enqueue routes an attempt to the batch queue, or to the pending queue while identity is unknown
func (d *dispatcher) enqueue(a models.Attempt) {
	if a.Mode == "" {
		if s, ok := d.sessions[a.SessionID]; ok {
			a.Mode = s.session.Mode
		}
	}

	if d.c.identity.UserID() == "" || d.suspended {
		d.pendingAttempts.Add("", a)
		d.enforceCap()
		d.c.identity.Kick()
		d.scheduleRetry()
		return
	}

	d.queue = append(d.queue, &retry.Item[models.Attempt]{Payload: a})
	d.enforceCap()
	if len(d.queue) >= d.c.cfg.BatchSize {
		d.flush()
		return
	}
	d.armFlushTimer()
}

// armFlushTimer starts the debounce timer on the first enqueue since the last flush.
// Later enqueues do not push it back.
func (d *dispatcher) armFlushTimer() {
	if d.flushC != nil || len(d.queue) == 0 {
		return
	}
	if d.flushTimer == nil {
		d.flushTimer = time.NewTimer(d.c.cfg.FlushInterval)
	} else {
		d.flushTimer.Reset(d.c.cfg.FlushInterval)
	}
	d.flushC = d.flushTimer.C
}

func (d *dispatcher) disarmFlushTimer() {
	if d.flushTimer != nil {
		d.flushTimer.Stop()
	}
	d.flushC = nil
}

// enforceCap evicts attempts beyond MaxQueuedAttempts, pending ones first
func (d *dispatcher) enforceCap() {
	limit := d.c.cfg.MaxQueuedAttempts
	if limit <= 0 {
		return
	}
	evicted := 0
	for len(d.queue)+d.pendingAttempts.Len() > limit {
		if _, ok := d.pendingAttempts.EvictOldest(); ok {
			evicted++
			continue
		}
		d.queue = d.queue[1:]
		evicted++
	}
	if evicted > 0 {
		d.c.logger.Warn("attempt queue full, dropped oldest", "dropped", evicted, "limit", limit)
	}
}

// flush snapshots and clears the batch queue, then sends one attempts_batch per session
func (d *dispatcher) flush() {
	d.disarmFlushTimer()
	if len(d.queue) == 0 {
		return
	}
	snapshot := d.queue
	d.queue = nil

	userID := d.c.identity.UserID()
	if userID == "" || d.suspended {
		d.pendingAttempts.Requeue(snapshot...)
		d.scheduleRetry()
		return
	}

	for _, group := range groupItems(snapshot) {
		if d.suspended {
			d.pendingAttempts.Requeue(group...)
			continue
		}
		batch := models.BatchGroup{SessionID: group[0].Payload.SessionID}
		for _, it := range group {
			if batch.Mode == "" {
				batch.Mode = it.Payload.Mode
			}
			batch.Attempts = append(batch.Attempts, it.Payload)
		}

		switch d.deliver(batch.Event(userID)) {
		case delivered:
			d.batchFailures = 0
		case unauthorized:
			d.pendingAttempts.Requeue(group...)
			d.noteAuthFailure()
			d.scheduleRetry()
		case failed:
			d.pendingAttempts.Requeue(group...)
			d.scheduleRetry()
			d.batchFailures++
			if d.batchFailures >= d.c.cfg.AlertAfterFailures {
				d.attemptsAlert.Do(func() {
					d.c.alerter.Alert(AlertAttemptsFailing, "Progress could not be saved right now. We will keep trying.")
				})
			}
		}
	}
}

// groupItems partitions queued items by session, preserving first-seen order
func groupItems(items []*retry.Item[models.Attempt]) [][]*retry.Item[models.Attempt] {
	index := make(map[string]int)
	var groups [][]*retry.Item[models.Attempt]
	for _, it := range items {
		i, ok := index[it.Payload.SessionID]
		if !ok {
			i = len(groups)
			index[it.Payload.SessionID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], it)
	}
	return groups
}
