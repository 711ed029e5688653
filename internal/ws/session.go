package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messenger/internal/domain"
	"messenger/internal/repository"
)

// Store is the persistence surface a session needs. ChatService satisfies it;
// tests substitute an in-memory implementation.
type Store interface {
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	CreateMessage(ctx context.Context, conversationID, senderID, content string) (domain.Message, error)
	SoftDeleteMessage(ctx context.Context, messageID, requesterID string) (domain.Message, error)
	ListVisibleMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
}

// Transport abstracts the websocket so sessions can be driven in tests.
type Transport interface {
	ReadMessage() ([]byte, error)
	Send(payload []byte) error
	Close(code int, reason string)
}

// State is the session lifecycle position. Transitions only move forward.
type State int32

const (
	StateConnecting State = iota
	StateAuthorized
	StateActive
	StateClosed
)

// ErrUnauthorized means the user is not a participant of the conversation the
// connection targeted. The connection is refused before any state is created.
var ErrUnauthorized = errors.New("not a conversation participant")

// Session drives the protocol for one connection: authorize, join the room,
// replay history, then process inbound events until disconnect.
type Session struct {
	logger   *zap.Logger
	store    Store
	registry *Registry
	presence Presence
	conn     Transport

	userID         string
	username       string
	conversationID string

	state atomic.Int32
}

func NewSession(
	logger *zap.Logger,
	store Store,
	registry *Registry,
	presence Presence,
	conn Transport,
	userID, username, conversationID string,
) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if presence == nil {
		presence = NopPresence{}
	}
	return &Session{
		logger:         logger,
		store:          store,
		registry:       registry,
		presence:       presence,
		conn:           conn,
		userID:         userID,
		username:       username,
		conversationID: conversationID,
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Send implements Subscriber: events broadcast to the room are encoded and
// queued on this session's connection.
func (s *Session) Send(event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.conn.Send(payload)
}

// Run executes the session until the connection drops. Room membership is
// released on every exit path, normal or not.
func (s *Session) Run(ctx context.Context) error {
	ok, err := s.store.IsParticipant(ctx, s.conversationID, s.userID)
	if err != nil || !ok {
		s.state.Store(int32(StateClosed))
		s.conn.Close(websocket.ClosePolicyViolation, "unauthorized")
		if err != nil {
			s.logger.Error("participant check failed",
				zap.String("conversation_id", s.conversationID),
				zap.Error(err),
			)
			return err
		}
		return ErrUnauthorized
	}
	s.state.Store(int32(StateAuthorized))

	s.registry.Join(s.conversationID, s)
	s.presence.Connected(ctx, s.userID, s.conversationID)
	defer func() {
		s.registry.Leave(s.conversationID, s)
		s.presence.Disconnected(ctx, s.userID, s.conversationID)
		s.state.Store(int32(StateClosed))
		s.conn.Close(websocket.CloseNormalClosure, "")
	}()

	s.state.Store(int32(StateActive))
	s.replayHistory(ctx)

	return s.readLoop(ctx)
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		payload, err := s.conn.ReadMessage()
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		var event InboundEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			// Malformed frames are a client bug, not a session failure.
			s.logger.Debug("dropping malformed frame", zap.Error(err))
			continue
		}

		switch event.Kind() {
		case EventMessage:
			s.handleMessage(ctx, event)
		case EventDeleteMessage:
			s.handleDelete(ctx, event)
		default:
			// Unknown event types are a forward-compatible no-op.
		}
	}
}

func (s *Session) handleMessage(ctx context.Context, event InboundEvent) {
	if !CanSend(s.userID, event.UserID) {
		s.logger.Debug("dropping spoofed send",
			zap.String("claimed_user_id", event.UserID),
			zap.String("session_user_id", s.userID),
		)
		return
	}
	if event.Message == "" {
		return
	}

	msg, err := s.store.CreateMessage(ctx, s.conversationID, s.userID, event.Message)
	if err != nil {
		s.logStoreFailure("create message", err)
		return
	}

	s.registry.Broadcast(s.conversationID, MessageEvent{
		Type:      EventMessage,
		Message:   msg.Content,
		Username:  msg.SenderUsername,
		UserID:    msg.SenderID,
		Timestamp: isoTimestamp(msg.Timestamp),
		MessageID: msg.ID,
	})
}

func (s *Session) handleDelete(ctx context.Context, event InboundEvent) {
	if !CanDelete(s.userID, event.UserID) {
		s.logger.Debug("dropping spoofed delete",
			zap.String("claimed_user_id", event.UserID),
			zap.String("session_user_id", s.userID),
		)
		return
	}
	if event.MessageID == "" {
		return
	}

	msg, err := s.store.SoftDeleteMessage(ctx, event.MessageID, s.userID)
	if err != nil {
		s.logStoreFailure("delete message", err)
		return
	}
	if msg.ConversationID != s.conversationID {
		// The owner may delete their message from any connection, but the
		// event belongs to the message's conversation, not this room.
		s.logger.Debug("suppressing cross-conversation delete event",
			zap.String("message_conversation_id", msg.ConversationID),
			zap.String("session_conversation_id", s.conversationID),
		)
		return
	}

	s.registry.Broadcast(s.conversationID, MessageDeletedEvent{
		Type:      EventMessageDeleted,
		MessageID: msg.ID,
		UserID:    s.userID,
	})
}

// logStoreFailure keeps the session alive on any store failure. NotFound (which
// also covers ownership mismatches) is the silent-drop policy; everything else
// is an operational error worth surfacing, but still fatal only to the one
// operation.
func (s *Session) logStoreFailure(op string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Debug("store rejected "+op,
			zap.String("conversation_id", s.conversationID),
		)
		return
	}
	s.logger.Error(op+" failed",
		zap.String("conversation_id", s.conversationID),
		zap.Error(err),
	)
}
