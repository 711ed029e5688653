package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"messenger/internal/domain"
	"messenger/internal/repository"
)

// ChatService is the message store: it owns conversation and message
// persistence, soft-delete state, and read flags.
type ChatService struct {
	logger        *zap.Logger
	users         repository.UserRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
}

var ErrChatInvalidInput = errors.New("chat invalid input")

func NewChatService(
	logger *zap.Logger,
	users repository.UserRepository,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
) *ChatService {
	return &ChatService{
		logger:        logger,
		users:         users,
		conversations: conversations,
		messages:      messages,
	}
}

// IsParticipant reports whether userID belongs to an active conversation.
func (s *ChatService) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	conversationID = strings.TrimSpace(conversationID)
	userID = strings.TrimSpace(userID)
	if conversationID == "" || userID == "" {
		return false, nil
	}
	return s.conversations.IsParticipant(ctx, conversationID, userID)
}

// CreateMessage persists a message with a server-assigned id and timestamp.
// The conversation and the sender must both exist.
func (s *ChatService) CreateMessage(ctx context.Context, conversationID, senderID, content string) (domain.Message, error) {
	conversationID = strings.TrimSpace(conversationID)
	senderID = strings.TrimSpace(senderID)
	if conversationID == "" || senderID == "" || content == "" {
		return domain.Message{}, ErrChatInvalidInput
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return domain.Message{}, err
	}
	if _, err = s.conversations.GetByID(ctx, conversationID); err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       sender.ID,
		SenderUsername: sender.Username,
		Content:        content,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// SoftDeleteMessage marks the message deleted and scrubs its content, but only
// for the message's own sender. Anything else reports ErrNotFound.
func (s *ChatService) SoftDeleteMessage(ctx context.Context, messageID, requesterID string) (domain.Message, error) {
	messageID = strings.TrimSpace(messageID)
	requesterID = strings.TrimSpace(requesterID)
	if messageID == "" || requesterID == "" {
		return domain.Message{}, repository.ErrNotFound
	}
	return s.messages.SoftDelete(ctx, messageID, requesterID)
}

// ListVisibleMessages returns the conversation's messages in timestamp order.
// Deleted messages are included with their content already scrubbed; an
// absent conversation yields an empty list, not an error.
func (s *ChatService) ListVisibleMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return []domain.Message{}, nil
	}
	return s.messages.ListByConversation(ctx, conversationID)
}

// MarkRead flags every message sent by the other participants as read.
func (s *ChatService) MarkRead(ctx context.Context, conversationID, readerID string) error {
	conversationID = strings.TrimSpace(conversationID)
	readerID = strings.TrimSpace(readerID)
	if conversationID == "" || readerID == "" {
		return ErrChatInvalidInput
	}
	return s.messages.MarkRead(ctx, conversationID, readerID)
}

// OpenConversation finds the active conversation between the two users,
// creating one if none exists, and marks the other side's messages read.
func (s *ChatService) OpenConversation(ctx context.Context, userID, otherUserID string) (domain.Conversation, error) {
	userID = strings.TrimSpace(userID)
	otherUserID = strings.TrimSpace(otherUserID)
	if userID == "" || otherUserID == "" || userID == otherUserID {
		return domain.Conversation{}, ErrChatInvalidInput
	}
	if _, err := s.users.GetByID(ctx, otherUserID); err != nil {
		return domain.Conversation{}, err
	}

	conv, err := s.conversations.FindActiveBetween(ctx, userID, otherUserID)
	if errors.Is(err, repository.ErrNotFound) {
		now := time.Now().UTC()
		conv = domain.Conversation{
			ID:           uuid.NewString(),
			Participants: []string{userID, otherUserID},
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.conversations.Create(ctx, conv); err != nil {
			return domain.Conversation{}, err
		}
	} else if err != nil {
		return domain.Conversation{}, err
	}

	if err := s.messages.MarkRead(ctx, conv.ID, userID); err != nil {
		s.logger.Warn("mark read failed",
			zap.String("conversation_id", conv.ID),
			zap.Error(err),
		)
	}
	return conv, nil
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	Conversation domain.Conversation `json:"conversation"`
	OtherUser    domain.User         `json:"other_user"`
	LastMessage  *domain.Message     `json:"last_message,omitempty"`
}

// ListConversations returns the user's active conversations with the other
// participant and the last visible message, most recent activity first.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return []ConversationSummary{}, nil
	}
	conversations, err := s.conversations.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summary := ConversationSummary{Conversation: conv}

		if others := conv.OtherParticipants(userID); len(others) > 0 {
			other, err := s.users.GetByID(ctx, others[0])
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
			summary.OtherUser = other
		}

		last, err := s.messages.LastVisible(ctx, conv.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if err == nil {
			summary.LastMessage = &last
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaryTime(summaries[i]).After(summaryTime(summaries[j]))
	})
	return summaries, nil
}

// DeleteConversation soft-deletes a conversation on behalf of a participant.
func (s *ChatService) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	conversationID = strings.TrimSpace(conversationID)
	userID = strings.TrimSpace(userID)
	if conversationID == "" || userID == "" {
		return repository.ErrNotFound
	}
	return s.conversations.SoftDelete(ctx, conversationID, userID)
}

func summaryTime(s ConversationSummary) time.Time {
	if s.LastMessage != nil {
		return s.LastMessage.Timestamp
	}
	return s.Conversation.CreatedAt
}
