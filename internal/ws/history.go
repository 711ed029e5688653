package ws

import (
	"context"

	"go.uber.org/zap"
)

// replayHistory streams the conversation snapshot to the session right after
// it turns active: either a single no_messages event, or history_info with
// the total followed by one history_message per message in timestamp order.
// can_delete is derived at replay time from ownership, which never changes.
func (s *Session) replayHistory(ctx context.Context) {
	messages, err := s.store.ListVisibleMessages(ctx, s.conversationID)
	if err != nil {
		// The session stays usable without its history.
		s.logger.Error("history load failed",
			zap.String("conversation_id", s.conversationID),
			zap.Error(err),
		)
		return
	}

	if len(messages) == 0 {
		_ = s.Send(NoMessagesEvent{Type: EventNoMessages})
		return
	}

	if err := s.Send(HistoryInfoEvent{
		Type:          EventHistoryInfo,
		TotalMessages: len(messages),
	}); err != nil {
		return
	}

	for _, msg := range messages {
		err := s.Send(HistoryMessageEvent{
			Type:      EventHistoryMessage,
			Message:   msg.Content,
			Username:  msg.SenderUsername,
			UserID:    msg.SenderID,
			Timestamp: isoTimestamp(msg.Timestamp),
			MessageID: msg.ID,
			IsDeleted: msg.Deleted,
			CanDelete: msg.SenderID == s.userID,
		})
		if err != nil {
			return
		}
	}
}
