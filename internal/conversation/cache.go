package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HistoryCache keeps the materialized history window of active
// conversations in Redis so repeated exchanges in one conversation avoid a
// store read. It is strictly best-effort: every failure degrades to the
// store.
type HistoryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewHistoryCache creates a history cache.
func NewHistoryCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *HistoryCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &HistoryCache{client: client, ttl: ttl, logger: logger}
}

type cachedWindow struct {
	Limit    int       `json:"limit"`
	Messages []Message `json:"messages"`
}

func historyKey(convID uuid.UUID) string {
	return fmt.Sprintf("conversation:%s:history", convID)
}

// Get returns the cached window if one exists that covers the requested
// limit, oldest-first.
func (c *HistoryCache) Get(ctx context.Context, convID uuid.UUID, limit int) ([]Message, bool) {
	data, err := c.client.Get(ctx, historyKey(convID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("History cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var window cachedWindow
	if err := json.Unmarshal(data, &window); err != nil {
		c.logger.Debug("History cache entry corrupt, dropping", zap.Error(err))
		c.Invalidate(ctx, convID)
		return nil, false
	}

	// A window built with a smaller limit still covers the request when it
	// was not filled: the conversation simply has no more messages.
	exhausted := len(window.Messages) < window.Limit
	if window.Limit < limit && !exhausted {
		return nil, false
	}
	if len(window.Messages) > limit {
		return window.Messages[len(window.Messages)-limit:], true
	}
	return window.Messages, true
}

// Set stores a window materialized with the given query limit.
func (c *HistoryCache) Set(ctx context.Context, convID uuid.UUID, msgs []Message, limit int) {
	window := cachedWindow{Limit: limit, Messages: msgs}
	if window.Messages == nil {
		window.Messages = []Message{}
	}

	data, err := json.Marshal(window)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, historyKey(convID), data, c.ttl).Err(); err != nil {
		c.logger.Debug("History cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached window for a conversation.
func (c *HistoryCache) Invalidate(ctx context.Context, convID uuid.UUID) {
	if err := c.client.Del(ctx, historyKey(convID)).Err(); err != nil {
		c.logger.Debug("History cache invalidation failed", zap.Error(err))
	}
}
