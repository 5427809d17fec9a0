package relay

import (
	"encoding/json"
	"fmt"

	"github.com/civicline/civicline-relay/model"
)

// IsSignalEvent reports whether an event type is a WebRTC negotiation event
// the signaler will relay.
func IsSignalEvent(t model.EventType) bool {
	switch t {
	case model.EventOffer, model.EventAnswer, model.EventICECandidate:
		return true
	}
	return false
}

// Signaler forwards WebRTC negotiation payloads between the members of a
// session. Payloads are opaque blobs; nothing here parses or validates them.
type Signaler struct {
	registry *Registry
	hub      *Hub
}

func NewSignaler(registry *Registry, hub *Hub) *Signaler {
	return &Signaler{registry: registry, hub: hub}
}

// Relay forwards payload verbatim to every member of the session except
// from. A session with no other connected member is a silent no-op:
// negotiation messages sent before the peer joins are simply dropped, which
// WebRTC setup tolerates.
func (s *Signaler) Relay(sessionID string, kind model.EventType, payload json.RawMessage, from Subscriber) error {
	if !IsSignalEvent(kind) {
		return fmt.Errorf("not a signaling event: %s", kind)
	}
	if !s.registry.Has(sessionID) {
		return ErrSessionNotFound
	}
	s.hub.BroadcastExcept(sessionID, model.Event{
		Event:     kind,
		SessionID: sessionID,
		Payload:   payload,
	}, from)
	return nil
}
