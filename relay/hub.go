package relay

import (
	"sync"

	"github.com/civicline/civicline-relay/model"
)

// Subscriber is one connected transport endpoint in a broadcast group.
// Deliver must never block; it reports false when the event was dropped
// because the receiver is slow or gone.
type Subscriber interface {
	Deliver(ev model.Event) bool
}

// Hub is the session id to subscriber-set table. Membership is added on join
// and removed on disconnect or termination; broadcasting is a plain loop over
// the set.
type Hub struct {
	mu     sync.Mutex
	groups map[string]map[Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[Subscriber]struct{})}
}

func (h *Hub) Subscribe(sessionID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.groups[sessionID]
	if !ok {
		group = make(map[Subscriber]struct{})
		h.groups[sessionID] = group
	}
	group[sub] = struct{}{}
}

func (h *Hub) Unsubscribe(sessionID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.groups[sessionID]
	if !ok {
		return
	}
	delete(group, sub)
	if len(group) == 0 {
		delete(h.groups, sessionID)
	}
}

// UnsubscribeAll removes sub from every group it belongs to. This is the
// disconnect path; the sessions themselves stay live.
func (h *Hub) UnsubscribeAll(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, group := range h.groups {
		delete(group, sub)
		if len(group) == 0 {
			delete(h.groups, id)
		}
	}
}

// DropGroup removes the whole broadcast group for a session.
func (h *Hub) DropGroup(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.groups, sessionID)
}

// GroupSize reports the number of current members of a session's group.
func (h *Hub) GroupSize(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[sessionID])
}

func (h *Hub) members(sessionID string, except Subscriber) []Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[sessionID]
	members := make([]Subscriber, 0, len(group))
	for sub := range group {
		if sub == except {
			continue
		}
		members = append(members, sub)
	}
	return members
}

// Broadcast delivers ev to every current member of the session, the sender
// included.
func (h *Hub) Broadcast(sessionID string, ev model.Event) {
	for _, sub := range h.members(sessionID, nil) {
		sub.Deliver(ev)
	}
}

// BroadcastExcept delivers ev to every current member other than except.
func (h *Hub) BroadcastExcept(sessionID string, ev model.Event, except Subscriber) {
	for _, sub := range h.members(sessionID, except) {
		sub.Deliver(ev)
	}
}
