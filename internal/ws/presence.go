package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Presence records who is currently connected so other instances (or an
// operator) can see online state. Implementations must never block or fail a
// session: presence is advisory.
type Presence interface {
	Connected(ctx context.Context, userID, conversationID string)
	Disconnected(ctx context.Context, userID, conversationID string)
}

// NopPresence is the default when no presence backend is configured.
type NopPresence struct{}

func (NopPresence) Connected(context.Context, string, string)    {}
func (NopPresence) Disconnected(context.Context, string, string) {}

// RedisPresence writes presence records under presence:<userID>. Online
// records expire after the TTL so a crashed instance cannot leave users
// online forever.
type RedisPresence struct {
	logger *zap.Logger
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisPresence(client *redis.Client, logger *zap.Logger, ttl time.Duration) *RedisPresence {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisPresence{
		logger: logger,
		client: client,
		ttl:    ttl,
		prefix: "presence:",
	}
}

type presenceRecord struct {
	Status         string `json:"status"`
	ConversationID string `json:"conversation_id,omitempty"`
	LastSeen       int64  `json:"last_seen"`
}

func (p *RedisPresence) Connected(ctx context.Context, userID, conversationID string) {
	p.set(ctx, userID, presenceRecord{
		Status:         "online",
		ConversationID: conversationID,
		LastSeen:       time.Now().Unix(),
	}, p.ttl)
}

func (p *RedisPresence) Disconnected(ctx context.Context, userID, _ string) {
	p.set(ctx, userID, presenceRecord{
		Status:   "offline",
		LastSeen: time.Now().Unix(),
	}, 0)
}

func (p *RedisPresence) set(ctx context.Context, userID string, rec presenceRecord, ttl time.Duration) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}
	// Disconnect-time updates arrive on an already-canceled request context.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 500*time.Millisecond)
	defer cancel()
	if err := p.client.Set(ctx, p.prefix+userID, payload, ttl).Err(); err != nil {
		p.logger.Warn("presence update failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
