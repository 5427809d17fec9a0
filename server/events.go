package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/civicline/civicline-relay/model"
)

// parseEvent strictly decodes one inbound frame. Unknown fields and trailing
// data are rejected so client protocol mistakes surface immediately instead
// of being half-applied.
func parseEvent(data []byte) (*model.Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var ev model.Event
	if err := dec.Decode(&ev); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("unexpected trailing data")
	}
	if ev.Event == "" {
		return nil, fmt.Errorf("missing event type")
	}
	return &ev, nil
}
