// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rabbit-digger/src/rabbit_digger/connection_manager.rs (event broadcast)

package connmgr

import "time"

// eventQueueSize bounds how many raw events a subscriber's coalescing
// goroutine will buffer before it starts dropping (a slow subscriber must
// never block a hot I/O path emitting traffic events).
const eventQueueSize = 256

// Subscribe registers a new subscriber and starts its coalescing
// goroutine, which batches events over m.batchWindow or m.batchSize,
// whichever comes first.
func (m *Manager) Subscribe() *Subscriber {
	raw := make(chan Event, eventQueueSize)
	sub := &Subscriber{ch: make(chan Batch, 1), mgr: m}

	m.subMu.Lock()
	m.subscribers[sub] = raw
	m.subMu.Unlock()

	go m.coalesce(sub, raw)
	return sub
}

// Unsubscribe removes sub and closes its batch channel. Safe to call more
// than once; a second call is a no-op.
func (m *Manager) Unsubscribe(sub *Subscriber) {
	m.subMu.Lock()
	raw, ok := m.subscribers[sub]
	if ok {
		delete(m.subscribers, sub)
	}
	m.subMu.Unlock()
	if ok {
		close(raw)
	}
}

// emit fans out ev to every subscriber's raw queue, dropping the event
// for any subscriber whose queue is full rather than blocking the
// caller's I/O path (a slow consumer loses traffic granularity, not
// correctness: byte counters on the Connection record itself are always
// accurate regardless of whether an event describing the delta was
// delivered).
func (m *Manager) emit(ev Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, raw := range m.subscribers {
		select {
		case raw <- ev:
		default:
		}
	}
}

// coalesce drains raw into batches of at most m.batchSize events, flushed
// at least every m.batchWindow, and delivers each batch to sub.ch. It
// exits once raw is closed by [Manager.Unsubscribe], flushing any
// partial batch first.
func (m *Manager) coalesce(sub *Subscriber, raw <-chan Event) {
	defer close(sub.ch)

	var pending []Event
	timer := time.NewTimer(m.batchWindow)
	defer timer.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := Batch{Events: pending, At: m.timeNow()}
		pending = nil
		select {
		case sub.ch <- batch:
		default:
			// Subscriber isn't draining fast enough; drop the oldest
			// pending batch rather than block event delivery forever.
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- batch
		}
	}

	for {
		select {
		case ev, ok := <-raw:
			if !ok {
				flush()
				return
			}
			pending = append(pending, ev)
			if len(pending) >= m.batchSize {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(m.batchWindow)
			}
		case <-timer.C:
			flush()
			timer.Reset(m.batchWindow)
		}
	}
}
