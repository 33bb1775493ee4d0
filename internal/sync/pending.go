package sync

import (
	"time"

	"whist/internal/domain"
)

// PlayKey identifies one in-flight play. Typed on purpose: the ad hoc
// string-keyed sets this replaces were cleared at unrelated call sites and
// leaked entries across hands.
type PlayKey struct {
	Seat int
	Card domain.Card
}

// DefaultPendingTTL bounds how long an unconfirmed play stays registered.
// Anything older is stale: either the broadcast was lost or the hand moved
// on, and a lingering key must not swallow a future legitimate event.
const DefaultPendingTTL = 30 * time.Second

// PendingPlays tracks plays submitted locally but not yet observed back from
// the transport. Owned by the session loop; not safe for concurrent use.
type PendingPlays struct {
	ttl     time.Duration
	entries map[PlayKey]time.Time
	now     func() time.Time
}

// NewPendingPlays creates a registry with the given TTL (DefaultPendingTTL
// when zero).
func NewPendingPlays(ttl time.Duration) *PendingPlays {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &PendingPlays{
		ttl:     ttl,
		entries: make(map[PlayKey]time.Time),
		now:     time.Now,
	}
}

// Add registers an in-flight play.
func (p *PendingPlays) Add(seat int, card domain.Card) {
	p.entries[PlayKey{Seat: seat, Card: card}] = p.now()
}

// Observe reports whether the play was pending (i.e. the inbound message is
// this peer's own action echoed back) and clears it if so. Expired entries
// do not count as pending.
func (p *PendingPlays) Observe(seat int, card domain.Card) bool {
	key := PlayKey{Seat: seat, Card: card}
	added, ok := p.entries[key]
	if !ok {
		return false
	}
	delete(p.entries, key)
	return p.now().Sub(added) <= p.ttl
}

// Sweep drops entries older than the TTL and returns how many were removed.
func (p *PendingPlays) Sweep() int {
	cutoff := p.now().Add(-p.ttl)
	removed := 0
	for key, added := range p.entries {
		if added.Before(cutoff) {
			delete(p.entries, key)
			removed++
		}
	}
	return removed
}

// Reset clears the registry wholesale. Called at every hand start so stale
// entries cannot block a future auto-forfeit.
func (p *PendingPlays) Reset() {
	clear(p.entries)
}

// Len returns the number of registered keys.
func (p *PendingPlays) Len() int {
	return len(p.entries)
}
