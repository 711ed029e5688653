package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"messenger/internal/domain"
	"messenger/internal/repository"
)

// fakeStore implements Store with real soft-delete semantics so the protocol
// can be exercised end to end without a database.
type fakeStore struct {
	mu           sync.Mutex
	participants map[string][]string       // conversationID -> user ids
	usernames    map[string]string         // userID -> username
	messages     []domain.Message
	nextID       int
	base         time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		participants: make(map[string][]string),
		usernames:    make(map[string]string),
		base:         time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) addConversation(conversationID string, userIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[conversationID] = userIDs
	for _, id := range userIDs {
		if _, ok := s.usernames[id]; !ok {
			s.usernames[id] = "user-" + id
		}
	}
}

func (s *fakeStore) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.participants[conversationID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) CreateMessage(_ context.Context, conversationID, senderID, content string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[conversationID]; !ok {
		return domain.Message{}, repository.ErrNotFound
	}
	username, ok := s.usernames[senderID]
	if !ok {
		return domain.Message{}, repository.ErrNotFound
	}
	s.nextID++
	msg := domain.Message{
		ID:             fmt.Sprintf("m%d", s.nextID),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderUsername: username,
		Content:        content,
		Timestamp:      s.base.Add(time.Duration(s.nextID) * time.Second),
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *fakeStore) SoftDeleteMessage(_ context.Context, messageID, requesterID string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, msg := range s.messages {
		if msg.ID != messageID {
			continue
		}
		if msg.SenderID != requesterID || msg.Deleted {
			// Ownership mismatch looks exactly like a missing row.
			return domain.Message{}, repository.ErrNotFound
		}
		s.messages[i].Deleted = true
		s.messages[i].Content = domain.DeletedPlaceholder
		return s.messages[i], nil
	}
	return domain.Message{}, repository.ErrNotFound
}

func (s *fakeStore) ListVisibleMessages(_ context.Context, conversationID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, msg := range s.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *fakeStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// fakeTransport scripts inbound frames and records outbound payloads.
type fakeTransport struct {
	inbound chan []byte

	mu        sync.Mutex
	sent      [][]byte
	closeCode int
	closed    bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(chan []byte, 32)}
}

func (f *fakeTransport) push(t *testing.T, v any) {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal inbound frame: %v", err)
	}
	f.inbound <- payload
}

func (f *fakeTransport) pushRaw(payload string) {
	f.inbound <- []byte(payload)
}

func (f *fakeTransport) disconnect() {
	close(f.inbound)
}

func (f *fakeTransport) ReadMessage() ([]byte, error) {
	payload, ok := <-f.inbound
	if !ok {
		return nil, io.EOF
	}
	return payload, nil
}

func (f *fakeTransport) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), payload...))
	return nil
}

func (f *fakeTransport) Close(code int, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.closeCode = code
	}
}

func (f *fakeTransport) events(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.sent))
	for _, payload := range f.sent {
		var ev map[string]any
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Fatalf("unmarshal outbound frame %q: %v", payload, err)
		}
		out = append(out, ev)
	}
	return out
}

func (f *fakeTransport) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type runningSession struct {
	session   *Session
	transport *fakeTransport
	done      chan error
}

func startSession(t *testing.T, store Store, registry *Registry, userID, conversationID string) *runningSession {
	t.Helper()
	transport := newFakeTransport()
	session := NewSession(nil, store, registry, nil, transport, userID, "user-"+userID, conversationID)
	done := make(chan error, 1)
	go func() {
		done <- session.Run(context.Background())
	}()
	return &runningSession{session: session, transport: transport, done: done}
}

func (r *runningSession) stop(t *testing.T) error {
	t.Helper()
	r.transport.disconnect()
	select {
	case err := <-r.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not stop")
		return nil
	}
}

func TestSessionRejectsNonParticipant(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", "alice", "bob")
	registry := NewRegistry(nil)

	transport := newFakeTransport()
	session := NewSession(nil, store, registry, nil, transport, "mallory", "user-mallory", "c1")

	if err := session.Run(context.Background()); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if session.State() != StateClosed {
		t.Fatalf("expected closed state, got %v", session.State())
	}
	if transport.eventCount() != 0 {
		t.Fatalf("expected no events sent, got %d", transport.eventCount())
	}
	if registry.RoomSize("c1") != 0 {
		t.Fatalf("expected empty room, got %d", registry.RoomSize("c1"))
	}
	if store.messageCount() != 0 {
		t.Fatalf("expected no store mutation")
	}
}

func TestSessionDropsSpoofedSend(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", "alice", "bob")
	registry := NewRegistry(nil)

	alice := startSession(t, store, registry, "alice", "c1")
	waitFor(t, "history replay", func() bool { return alice.transport.eventCount() >= 1 })

	alice.transport.push(t, InboundEvent{Type: EventMessage, Message: "hi", UserID: "bob"})
	alice.transport.push(t, InboundEvent{Type: EventMessage, Message: "real", UserID: "alice"})
	waitFor(t, "legit message", func() bool { return store.messageCount() == 1 })

	if err := alice.stop(t); err != nil {
		t.Fatalf("session error: %v", err)
	}

	events := alice.transport.events(t)
	// no_messages, then only the non-spoofed broadcast.
	if events[0]["type"] != EventNoMessages {
		t.Fatalf("expected no_messages first, got %v", events[0])
	}
	if len(events) != 2 || events[1]["message"] != "real" {
		t.Fatalf("expected exactly the legit broadcast, got %v", events)
	}
}

func TestSessionIgnoresUnknownAndMalformedFrames(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", "alice", "bob")
	registry := NewRegistry(nil)

	alice := startSession(t, store, registry, "alice", "c1")
	waitFor(t, "history replay", func() bool { return alice.transport.eventCount() >= 1 })

	alice.transport.pushRaw("{not json")
	alice.transport.push(t, map[string]any{"type": "typing_indicator", "user_id": "alice"})
	alice.transport.push(t, InboundEvent{Type: EventMessage, Message: "still alive", UserID: "alice"})
	waitFor(t, "message after junk", func() bool { return store.messageCount() == 1 })

	if err := alice.stop(t); err != nil {
		t.Fatalf("session error: %v", err)
	}
}

func TestSessionMissingTypeDefaultsToMessage(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", "alice", "bob")
	registry := NewRegistry(nil)

	alice := startSession(t, store, registry, "alice", "c1")
	waitFor(t, "history replay", func() bool { return alice.transport.eventCount() >= 1 })

	alice.transport.push(t, map[string]any{"message": "untyped", "user_id": "alice"})
	waitFor(t, "untyped message persisted", func() bool { return store.messageCount() == 1 })

	if err := alice.stop(t); err != nil {
		t.Fatalf("session error: %v", err)
	}
}

func TestSessionLeavesRoomOnDisconnect(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", "alice", "bob")
	registry := NewRegistry(nil)

	alice := startSession(t, store, registry, "alice", "c1")
	waitFor(t, "join", func() bool { return registry.RoomSize("c1") == 1 })

	if err := alice.stop(t); err != nil {
		t.Fatalf("session error: %v", err)
	}
	if registry.RoomSize("c1") != 0 {
		t.Fatalf("expected room released, got %d members", registry.RoomSize("c1"))
	}
	if alice.session.State() != StateClosed {
		t.Fatalf("expected closed state, got %v", alice.session.State())
	}
}

func TestSessionDeleteFromOtherConversationStaysQuiet(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", "alice", "bob")
	store.addConversation("c2", "alice", "carol")
	registry := NewRegistry(nil)

	msg, err := store.CreateMessage(context.Background(), "c1", "alice", "wrong room")
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}

	// Alice is connected to c2 but addresses a delete at her c1 message.
	alice := startSession(t, store, registry, "alice", "c2")
	waitFor(t, "history replay", func() bool { return alice.transport.eventCount() >= 1 })

	alice.transport.push(t, InboundEvent{Type: EventDeleteMessage, MessageID: msg.ID, UserID: "alice"})
	waitFor(t, "delete applied", func() bool {
		msgs, _ := store.ListVisibleMessages(context.Background(), "c1")
		return len(msgs) == 1 && msgs[0].Deleted
	})

	if err := alice.stop(t); err != nil {
		t.Fatalf("session error: %v", err)
	}

	// The store delete stands, but c2 never hears a message_deleted event.
	for _, ev := range alice.transport.events(t) {
		if ev["type"] == EventMessageDeleted {
			t.Fatalf("delete event leaked into the wrong conversation: %v", ev)
		}
	}
}

// TestSendDeleteScenario walks the full two-user exchange: send, foreign
// delete attempt, owner delete, and a fresh join seeing the placeholder.
func TestSendDeleteScenario(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", "alice", "bob")
	registry := NewRegistry(nil)

	alice := startSession(t, store, registry, "alice", "c1")
	bob := startSession(t, store, registry, "bob", "c1")
	waitFor(t, "both joined", func() bool { return registry.RoomSize("c1") == 2 })
	waitFor(t, "both replayed", func() bool {
		return alice.transport.eventCount() >= 1 && bob.transport.eventCount() >= 1
	})

	// Alice sends; both sides receive the persisted broadcast.
	alice.transport.push(t, InboundEvent{Type: EventMessage, Message: "hi", UserID: "alice"})
	waitFor(t, "message fan-out", func() bool {
		return alice.transport.eventCount() >= 2 && bob.transport.eventCount() >= 2
	})

	bobEvents := bob.transport.events(t)
	msgEvent := bobEvents[len(bobEvents)-1]
	if msgEvent["type"] != EventMessage || msgEvent["message"] != "hi" || msgEvent["user_id"] != "alice" {
		t.Fatalf("unexpected message event: %v", msgEvent)
	}
	messageID, _ := msgEvent["message_id"].(string)
	if messageID == "" {
		t.Fatalf("expected server-assigned message id, got %v", msgEvent)
	}
	if ts, _ := msgEvent["timestamp"].(string); ts == "" {
		t.Fatalf("expected server timestamp, got %v", msgEvent)
	}

	// Bob tries to delete Alice's message: silent no-op, no event anywhere.
	bob.transport.push(t, InboundEvent{Type: EventDeleteMessage, MessageID: messageID, UserID: "bob"})
	time.Sleep(50 * time.Millisecond)
	if alice.transport.eventCount() != 2 || bob.transport.eventCount() != 2 {
		t.Fatalf("foreign delete must not produce events")
	}

	// Alice deletes her own message; both sides see message_deleted.
	alice.transport.push(t, InboundEvent{Type: EventDeleteMessage, MessageID: messageID, UserID: "alice"})
	waitFor(t, "delete fan-out", func() bool {
		return alice.transport.eventCount() >= 3 && bob.transport.eventCount() >= 3
	})
	deleted := bob.transport.events(t)[2]
	if deleted["type"] != EventMessageDeleted || deleted["message_id"] != messageID || deleted["user_id"] != "alice" {
		t.Fatalf("unexpected delete event: %v", deleted)
	}

	// A second delete of the same message is a no-op.
	alice.transport.push(t, InboundEvent{Type: EventDeleteMessage, MessageID: messageID, UserID: "alice"})
	time.Sleep(50 * time.Millisecond)
	if alice.transport.eventCount() != 3 {
		t.Fatalf("second delete must not broadcast again")
	}

	if err := alice.stop(t); err != nil {
		t.Fatalf("alice session error: %v", err)
	}
	if err := bob.stop(t); err != nil {
		t.Fatalf("bob session error: %v", err)
	}

	// A fresh joiner replays the placeholder, never the original content.
	late := startSession(t, store, registry, "bob", "c1")
	waitFor(t, "late replay", func() bool { return late.transport.eventCount() >= 2 })
	lateEvents := late.transport.events(t)
	if lateEvents[0]["type"] != EventHistoryInfo || lateEvents[0]["total_messages"] != float64(1) {
		t.Fatalf("unexpected history_info: %v", lateEvents[0])
	}
	replayed := lateEvents[1]
	if replayed["type"] != EventHistoryMessage {
		t.Fatalf("unexpected replay event: %v", replayed)
	}
	if replayed["message"] != domain.DeletedPlaceholder || replayed["is_deleted"] != true {
		t.Fatalf("expected scrubbed replay, got %v", replayed)
	}
	if replayed["can_delete"] != false {
		t.Fatalf("bob must not be able to delete alice's message: %v", replayed)
	}

	if err := late.stop(t); err != nil {
		t.Fatalf("late session error: %v", err)
	}
}
