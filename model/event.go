package model

import "encoding/json"

// EventType names one frame kind on the gateway's websocket.
type EventType string

// Client-to-server events.
const (
	EventJoinSession      EventType = "joinSession"
	EventSendMessage      EventType = "sendMessage"
	EventOffer            EventType = "offer"
	EventAnswer           EventType = "answer"
	EventICECandidate     EventType = "iceCandidate"
	EventTerminateSession EventType = "terminateSession"
)

// Server-to-client events. The signaling events above are relayed to the
// peer under their original type.
const (
	EventSessionReady      EventType = "sessionReady"
	EventMessage           EventType = "message"
	EventSessionTerminated EventType = "sessionTerminated"
	EventError             EventType = "error"
)

// Event is the envelope for every frame on the gateway's websocket, in both
// directions. Which fields are populated depends on Event.
type Event struct {
	Event EventType `json:"event"`

	SessionID string `json:"session_id,omitempty"`

	// joinSession
	UserID  string `json:"user_id,omitempty"`
	AdminID string `json:"admin_id,omitempty"`

	// sendMessage
	Sender  string      `json:"sender,omitempty"`
	Kind    MessageKind `json:"kind,omitempty"`
	Content string      `json:"content,omitempty"`

	// message (server to client)
	Message *ChatMessage `json:"message,omitempty"`

	// Payload carries WebRTC negotiation blobs verbatim; it is relayed,
	// never interpreted.
	Payload json.RawMessage `json:"payload,omitempty"`

	// error (server to client)
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}
