package model

import "time"

// MessageKind selects how ChatMessage.Content is interpreted: free text for
// KindText, a media URL for KindImage and KindVideo.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindVideo MessageKind = "video"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindVideo:
		return true
	}
	return false
}

// ChatMessage is a single entry in a session's message log. Timestamp is
// assigned by the server at append time, never by the sender.
type ChatMessage struct {
	Sender    string      `json:"sender"`
	Kind      MessageKind `json:"kind"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// Session is a two-party conversation between a citizen and an admin. Its id
// is derived from the participant pair and stays stable across reconnects.
type Session struct {
	SessionID string        `json:"session_id,omitempty"`
	UserID    string        `json:"user_id,omitempty"`
	AdminID   string        `json:"admin_id,omitempty"`
	Messages  []ChatMessage `json:"messages"`
}

// Announcement is a broadcast SMS sent to a list of phone numbers.
type Announcement struct {
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	MediaURLs []string `json:"media_urls,omitempty"`
}
