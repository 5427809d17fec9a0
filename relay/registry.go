package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/civicline/civicline-relay/model"
)

// SessionID derives the stable session identity for a participant pair.
func SessionID(userID, adminID string) string {
	return fmt.Sprintf("%s-%s", userID, adminID)
}

type sessionEntry struct {
	session    *model.Session
	lastActive time.Time
}

// Registry owns every live session. All access goes through its lock; other
// components hold session ids and copies, never references into the table.
type Registry struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewRegistry returns a registry whose idle sessions expire after ttl. A ttl
// of zero or less disables expiry.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]*sessionEntry),
	}
}

// CreateSession registers a session for the given pair and reports whether it
// was newly created. An existing pair is returned untouched so a rejoin after
// a reconnect does not wipe the message log.
func (r *Registry) CreateSession(userID, adminID string) (string, bool) {
	id := SessionID(userID, adminID)
	now := r.clock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[id]; ok {
		entry.lastActive = now
		return id, false
	}
	r.sessions[id] = &sessionEntry{
		session: &model.Session{
			SessionID: id,
			UserID:    userID,
			AdminID:   adminID,
		},
		lastActive: now,
	}
	return id, true
}

// LookupSession returns a copy of the session, or ErrSessionNotFound.
func (r *Registry) LookupSession(sessionID string) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sessionID]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	s := *entry.session
	s.Messages = append([]model.ChatMessage(nil), entry.session.Messages...)
	return s, nil
}

// Has reports whether a session id has a live entry.
func (r *Registry) Has(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// AppendMessage appends one message to the session's log with a
// server-assigned timestamp. Timestamps never decrease within a session even
// when the wall clock does; the log order is the lock acquisition order.
func (r *Registry) AppendMessage(sessionID, sender string, kind model.MessageKind, content string) (model.ChatMessage, error) {
	now := r.clock()

	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sessionID]
	if !ok {
		return model.ChatMessage{}, ErrSessionNotFound
	}
	if n := len(entry.session.Messages); n > 0 && now.Before(entry.session.Messages[n-1].Timestamp) {
		now = entry.session.Messages[n-1].Timestamp
	}
	msg := model.ChatMessage{
		Sender:    sender,
		Kind:      kind,
		Content:   content,
		Timestamp: now,
	}
	entry.session.Messages = append(entry.session.Messages, msg)
	entry.lastActive = now
	return msg, nil
}

// TerminateSession removes the session and its message log. Terminating an
// unknown id reports ErrSessionNotFound; cleanup paths are free to ignore it.
func (r *Registry) TerminateSession(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, sessionID)
	return nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than the ttl and returns their ids.
func (r *Registry) Sweep(now time.Time) []string {
	if r.ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []string
	for id, entry := range r.sessions {
		if now.Sub(entry.lastActive) > r.ttl {
			delete(r.sessions, id)
			expired = append(expired, id)
		}
	}
	return expired
}

// StartJanitor sweeps on the given interval until ctx is cancelled. Ids of
// expired sessions are passed to onExpire, which may be nil.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration, onExpire func(expired []string)) {
	if r.ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if expired := r.Sweep(now); len(expired) > 0 && onExpire != nil {
					onExpire(expired)
				}
			}
		}
	}()
}
