package relay

import (
	"context"

	"github.com/civicline/civicline-relay/model"
)

// Recorder mirrors session activity to an external store. Recording is best
// effort: the in-memory registry stays authoritative and relay correctness
// never depends on it.
type Recorder interface {
	RecordMessage(ctx context.Context, sessionID string, msg model.ChatMessage) error
	RecordTermination(ctx context.Context, sessionID string) error
}
