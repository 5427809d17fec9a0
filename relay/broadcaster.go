package relay

import (
	"context"
	"sync"

	"github.com/civicline/civicline-relay/model"
)

// Broadcaster appends messages to a session's log and fans them out to every
// current member connection, the sender included (the sender's own UI renders
// from the broadcast too).
type Broadcaster struct {
	registry *Registry
	hub      *Hub
	recorder Recorder // may be nil

	// mu serializes append and fan-out so every member observes messages in
	// the exact order the appends were accepted. Deliver never blocks, so
	// holding mu across the fan-out is cheap.
	mu sync.Mutex
}

func NewBroadcaster(registry *Registry, hub *Hub, recorder Recorder) *Broadcaster {
	return &Broadcaster{registry: registry, hub: hub, recorder: recorder}
}

// PostMessage stores one message and fans it out. Returns ErrSessionNotFound
// when the session id has no live entry.
func (b *Broadcaster) PostMessage(ctx context.Context, sessionID, sender string, kind model.MessageKind, content string) (model.ChatMessage, error) {
	b.mu.Lock()
	msg, err := b.registry.AppendMessage(sessionID, sender, kind, content)
	if err != nil {
		b.mu.Unlock()
		return model.ChatMessage{}, err
	}
	b.hub.Broadcast(sessionID, model.Event{
		Event:     model.EventMessage,
		SessionID: sessionID,
		Message:   &msg,
	})
	b.mu.Unlock()

	if b.recorder != nil {
		// The in-memory log is authoritative; a failed record is dropped.
		_ = b.recorder.RecordMessage(ctx, sessionID, msg)
	}
	return msg, nil
}
