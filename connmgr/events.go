// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rabbit-digger/src/rabbit_digger/connection_manager.rs (event shape)

package connmgr

import (
	"time"

	"github.com/rdproxy/rdnet"
)

// EventKind tags one lifecycle or traffic transition.
type EventKind int

const (
	EventNewTCP EventKind = iota
	EventNewUDP
	EventClosed
	EventTraffic
)

// String implements [fmt.Stringer].
func (k EventKind) String() string {
	switch k {
	case EventNewTCP:
		return "new_tcp"
	case EventNewUDP:
		return "new_udp"
	case EventClosed:
		return "closed"
	case EventTraffic:
		return "traffic"
	default:
		return "unknown"
	}
}

// Event is one per-flow lifecycle transition or traffic delta.
type Event struct {
	Kind              EventKind
	UUID              string
	Destination       rdnet.Address
	BytesReadDelta    uint64
	BytesWrittenDelta uint64
}

// Batch is a coalesced group of events delivered to a subscriber together,
// over a short time window or up to a configured event count, whichever
// comes first. Events within a batch preserve per-flow order; across
// flows, only the batches themselves are ordered.
type Batch struct {
	Events []Event
	At     time.Time
}

// Subscriber receives coalesced event batches via [Manager.Subscribe].
type Subscriber struct {
	ch  chan Batch
	mgr *Manager
}

// C returns the channel batches arrive on. The channel is closed after the
// subscriber is removed via [Subscriber.Close].
func (s *Subscriber) C() <-chan Batch {
	return s.ch
}

// Close unsubscribes; safe to call more than once ([Manager.Unsubscribe]
// no-ops if s was already removed).
func (s *Subscriber) Close() {
	s.mgr.Unsubscribe(s)
}
