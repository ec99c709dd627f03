package game

import (
	"sort"
	"time"

	"trivia-live-service/internal/domain"
)

// Presence tracks who is in a room and arbitrates join/leave races. It is
// not safe for concurrent use on its own; the owning room's execution lane
// serializes every call. Grace timers fire through the expire callback,
// which must re-enter the lane before touching state. Each arm carries a
// generation number; a callback whose generation is no longer current is a
// leftover from a window that was since disarmed or re-armed, and removal
// refuses it.
type Presence struct {
	grace        time.Duration
	expire       func(identity string, gen uint64)
	participants map[string]*domain.Participant
	order        []string
	timers       map[string]*time.Timer
	gens         map[string]uint64
	seq          uint64
	now          func() time.Time
}

// JoinOptions carries the flags fixed at first join for an identity.
type JoinOptions struct {
	Host      bool
	Bot       bool
	Guest     bool
	Anonymous bool
}

// NewPresence creates a tracker. expire is invoked after the grace period
// elapses for a disconnected identity, carrying the generation of the arm
// that scheduled it.
func NewPresence(grace time.Duration, expire func(identity string, gen uint64)) *Presence {
	return &Presence{
		grace:        grace,
		expire:       expire,
		participants: make(map[string]*domain.Participant),
		timers:       make(map[string]*time.Timer),
		gens:         make(map[string]uint64),
		now:          time.Now,
	}
}

// Join registers an identity or refreshes an existing record. It is
// idempotent: a known identity is marked connected and returned unchanged;
// the display name is never overwritten on reconnect so the scoreboard
// stays unambiguous mid-game.
func (pr *Presence) Join(identity, displayName string, opts JoinOptions) (*domain.Participant, bool) {
	if p, ok := pr.participants[identity]; ok {
		pr.MarkReconnected(identity)
		return p, false
	}
	p := &domain.Participant{
		ID:          identity,
		DisplayName: displayName,
		Host:        opts.Host,
		Bot:         opts.Bot,
		Guest:       opts.Guest,
		Anonymous:   opts.Anonymous,
		Connected:   true,
		JoinedAt:    pr.now(),
	}
	pr.participants[identity] = p
	pr.order = append(pr.order, identity)
	return p, true
}

// Get returns the participant for an identity.
func (pr *Presence) Get(identity string) (*domain.Participant, bool) {
	p, ok := pr.participants[identity]
	return p, ok
}

// Host returns the host participant, if any.
func (pr *Presence) Host() (*domain.Participant, bool) {
	for _, id := range pr.order {
		if p := pr.participants[id]; p != nil && p.Host {
			return p, true
		}
	}
	return nil, false
}

// MarkDisconnected flags the identity offline and arms the removal timer.
// Re-arming replaces any pending timer and bumps the generation, so a
// callback from the replaced timer can no longer reclaim the seat.
func (pr *Presence) MarkDisconnected(identity string) bool {
	p, ok := pr.participants[identity]
	if !ok {
		return false
	}
	p.Connected = false
	pr.seq++
	gen := pr.seq
	pr.gens[identity] = gen
	if t, ok := pr.timers[identity]; ok {
		t.Stop()
	}
	id := identity
	pr.timers[identity] = time.AfterFunc(pr.grace, func() {
		pr.expire(id, gen)
	})
	return true
}

// MarkReconnected flags the identity online and disarms any pending removal.
func (pr *Presence) MarkReconnected(identity string) bool {
	p, ok := pr.participants[identity]
	if !ok {
		return false
	}
	p.Connected = true
	if t, ok := pr.timers[identity]; ok {
		t.Stop()
		delete(pr.timers, identity)
	}
	delete(pr.gens, identity)
	return true
}

// RemoveIfStillDisconnected reclaims the seat only when gen is the
// currently armed generation and the identity is still offline and is
// neither host nor bot. A stale generation means the window was disarmed
// or re-armed after this callback was scheduled; the current window's own
// timer stays in charge. A disconnected host keeps its record; host
// authority is never abandoned implicitly.
func (pr *Presence) RemoveIfStillDisconnected(identity string, gen uint64) bool {
	if pr.gens[identity] != gen {
		return false
	}
	delete(pr.timers, identity)
	delete(pr.gens, identity)
	p, ok := pr.participants[identity]
	if !ok || p.Connected || p.Host || p.Bot {
		return false
	}
	delete(pr.participants, identity)
	for i, id := range pr.order {
		if id == identity {
			pr.order = append(pr.order[:i], pr.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the roster size.
func (pr *Presence) Len() int {
	return len(pr.participants)
}

// ConnectedNonBots returns the identities currently expected to answer.
func (pr *Presence) ConnectedNonBots() []string {
	ids := make([]string, 0, len(pr.order))
	for _, id := range pr.order {
		if p := pr.participants[id]; p != nil && p.Connected && !p.Bot {
			ids = append(ids, id)
		}
	}
	return ids
}

// Roster returns the full roster snapshot in join order.
func (pr *Presence) Roster() []domain.ParticipantView {
	views := make([]domain.ParticipantView, 0, len(pr.order))
	for _, id := range pr.order {
		if p := pr.participants[id]; p != nil {
			views = append(views, p.View())
		}
	}
	return views
}

// Scoreboard returns the roster ordered by score descending, breaking ties
// by earlier join and then by name.
func (pr *Presence) Scoreboard() []domain.ParticipantView {
	all := make([]*domain.Participant, 0, len(pr.order))
	for _, id := range pr.order {
		if p := pr.participants[id]; p != nil {
			all = append(all, p)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		if !all[i].JoinedAt.Equal(all[j].JoinedAt) {
			return all[i].JoinedAt.Before(all[j].JoinedAt)
		}
		return all[i].DisplayName < all[j].DisplayName
	})
	views := make([]domain.ParticipantView, 0, len(all))
	for _, p := range all {
		views = append(views, p.View())
	}
	return views
}

// Each visits every participant.
func (pr *Presence) Each(fn func(p *domain.Participant)) {
	for _, id := range pr.order {
		if p := pr.participants[id]; p != nil {
			fn(p)
		}
	}
}

// StopTimers disarms all pending removal timers; used during teardown.
func (pr *Presence) StopTimers() {
	for id, t := range pr.timers {
		t.Stop()
		delete(pr.timers, id)
		delete(pr.gens, id)
	}
}
