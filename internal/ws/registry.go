package ws

import (
	"sync"

	"go.uber.org/zap"
)

// Subscriber receives room events. Delivery to a subscriber that has since
// disconnected is a best-effort no-op.
type Subscriber interface {
	Send(event any) error
}

// Registry maps conversation ids to the live subscribers of their rooms. It
// is the only shared mutable state across sessions and is safe for concurrent
// use; construct one per process (or per test).
type Registry struct {
	logger *zap.Logger

	mu    sync.RWMutex
	rooms map[string]map[Subscriber]struct{}
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger: logger,
		rooms:  make(map[string]map[Subscriber]struct{}),
	}
}

// Join adds the subscriber to the conversation's room. Concurrent joins
// commute; joining twice is a no-op.
func (r *Registry) Join(conversationID string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.rooms[conversationID]
	if room == nil {
		room = make(map[Subscriber]struct{})
		r.rooms[conversationID] = room
	}
	room[sub] = struct{}{}
}

// Leave removes the subscriber; a no-op when already absent. Empty rooms are
// pruned.
func (r *Registry) Leave(conversationID string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.rooms[conversationID]
	if room == nil {
		return
	}
	delete(room, sub)
	if len(room) == 0 {
		delete(r.rooms, conversationID)
	}
}

// Broadcast delivers the event to every subscriber joined at the time of the
// call and returns the delivered count. The membership snapshot is taken
// under the read lock; delivery happens outside it so a slow subscriber never
// stalls joins or other rooms.
func (r *Registry) Broadcast(conversationID string, event any) int {
	r.mu.RLock()
	room := r.rooms[conversationID]
	members := make([]Subscriber, 0, len(room))
	for sub := range room {
		members = append(members, sub)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, sub := range members {
		if err := sub.Send(event); err != nil {
			r.logger.Debug("broadcast delivery skipped",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered
}

// RoomSize reports the current number of subscribers in a room.
func (r *Registry) RoomSize(conversationID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[conversationID])
}
