package server

import (
	"sync/atomic"
)

// Metrics counts gateway and session outcomes for /metrics.
type Metrics struct {
	ConnectionsOpened int64
	ConnectionsClosed int64
	JoinsAccepted     int64
	JoinsRefused      int64 // bad token or unknown space
	MovesAccepted     int64
	MovesRejected     int64
	FramesIgnored     int64 // malformed, unknown type, or wrong state
	MessagesDelivered int64
	Evicted           int64 // replaced by a newer session of the same user
	SlowConsumers     int64 // disconnected because the send queue was full
	RateLimited       int64
}

func (m *Metrics) IncOpened()           { atomic.AddInt64(&m.ConnectionsOpened, 1) }
func (m *Metrics) IncClosed()           { atomic.AddInt64(&m.ConnectionsClosed, 1) }
func (m *Metrics) IncJoinAccepted()     { atomic.AddInt64(&m.JoinsAccepted, 1) }
func (m *Metrics) IncJoinRefused()      { atomic.AddInt64(&m.JoinsRefused, 1) }
func (m *Metrics) IncMoveAccepted()     { atomic.AddInt64(&m.MovesAccepted, 1) }
func (m *Metrics) IncMoveRejected()     { atomic.AddInt64(&m.MovesRejected, 1) }
func (m *Metrics) IncIgnored()          { atomic.AddInt64(&m.FramesIgnored, 1) }
func (m *Metrics) IncMessageDelivered() { atomic.AddInt64(&m.MessagesDelivered, 1) }
func (m *Metrics) IncEvicted()          { atomic.AddInt64(&m.Evicted, 1) }
func (m *Metrics) IncSlowConsumer()     { atomic.AddInt64(&m.SlowConsumers, 1) }
func (m *Metrics) IncRateLimited()      { atomic.AddInt64(&m.RateLimited, 1) }

// Snapshot returns a read-only copy for HTTP output.
func (m *Metrics) Snapshot() map[string]any {
	opened := atomic.LoadInt64(&m.ConnectionsOpened)
	closed := atomic.LoadInt64(&m.ConnectionsClosed)
	return map[string]any{
		"connections_opened": opened,
		"connections_closed": closed,
		"connections_live":   opened - closed,
		"joins_accepted":     atomic.LoadInt64(&m.JoinsAccepted),
		"joins_refused":      atomic.LoadInt64(&m.JoinsRefused),
		"moves_accepted":     atomic.LoadInt64(&m.MovesAccepted),
		"moves_rejected":     atomic.LoadInt64(&m.MovesRejected),
		"frames_ignored":     atomic.LoadInt64(&m.FramesIgnored),
		"messages_delivered": atomic.LoadInt64(&m.MessagesDelivered),
		"evicted":            atomic.LoadInt64(&m.Evicted),
		"slow_consumers":     atomic.LoadInt64(&m.SlowConsumers),
		"rate_limited":       atomic.LoadInt64(&m.RateLimited),
	}
}
