package ws

import "time"

// Known event discriminators. Inbound events with any other type are ignored
// so newer clients do not break older servers.
const (
	EventMessage        = "message"
	EventDeleteMessage  = "delete_message"
	EventMessageDeleted = "message_deleted"
	EventNoMessages     = "no_messages"
	EventHistoryInfo    = "history_info"
	EventHistoryMessage = "history_message"
)

// InboundEvent is the superset envelope for client frames. Fields not
// belonging to the decoded type stay empty.
type InboundEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Username  string `json:"username"`
	UserID    string `json:"user_id"`
	MessageID string `json:"message_id"`
}

// Kind resolves the event discriminator; an absent type means "message".
func (e InboundEvent) Kind() string {
	if e.Type == "" {
		return EventMessage
	}
	return e.Type
}

// MessageEvent is broadcast after a message is persisted. Every field comes
// from the store's write result, never from the client payload.
type MessageEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Username  string `json:"username"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
	MessageID string `json:"message_id"`
}

type MessageDeletedEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
}

type NoMessagesEvent struct {
	Type string `json:"type"`
}

type HistoryInfoEvent struct {
	Type          string `json:"type"`
	TotalMessages int    `json:"total_messages"`
}

type HistoryMessageEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Username  string `json:"username"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
	MessageID string `json:"message_id"`
	IsDeleted bool   `json:"is_deleted"`
	CanDelete bool   `json:"can_delete"`
}

func isoTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
