package domain

import "time"

// DeletedPlaceholder replaces message content on soft delete. Once scrubbed,
// the original content is gone for good.
const DeletedPlaceholder = "Message deleted"

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderUsername string    `json:"sender_username,omitempty"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	Read           bool      `json:"read"`
	Deleted        bool      `json:"deleted"`
}
