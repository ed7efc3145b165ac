package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (*HistoryCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewHistoryCache(client, time.Minute, zap.NewNop()), mr
}

func testMessages(convID uuid.UUID, n int) []Message {
	base := time.Now().UTC().Truncate(time.Second)
	msgs := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		msgs = append(msgs, Message{
			ID:             uuid.New(),
			ConversationID: convID,
			UserID:         "user-1",
			Role:           role,
			Content:        "message",
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		})
	}
	return msgs
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	convID := uuid.New()

	msgs := testMessages(convID, 4)
	cache.Set(ctx, convID, msgs, 4)

	got, ok := cache.Get(ctx, convID, 4)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(got))
	}
	for i := range got {
		if got[i].ID != msgs[i].ID {
			t.Errorf("message %d out of order", i)
		}
	}
}

func TestCacheMissOnUnknownConversation(t *testing.T) {
	cache, _ := newTestCache(t)

	if _, ok := cache.Get(context.Background(), uuid.New(), 10); ok {
		t.Error("expected miss for unknown conversation")
	}
}

func TestCacheServesSmallerWindow(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	convID := uuid.New()

	msgs := testMessages(convID, 10)
	cache.Set(ctx, convID, msgs, 10)

	got, ok := cache.Get(ctx, convID, 4)
	if !ok {
		t.Fatal("expected hit: a larger window covers a smaller request")
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(got))
	}
	// The tail of the window, still oldest-first.
	if got[0].ID != msgs[6].ID || got[3].ID != msgs[9].ID {
		t.Error("expected the most recent 4 messages")
	}
}

func TestCacheMissOnWiderRequest(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	convID := uuid.New()

	// A full window built with limit 4 says nothing about older messages.
	cache.Set(ctx, convID, testMessages(convID, 4), 4)

	if _, ok := cache.Get(ctx, convID, 10); ok {
		t.Error("expected miss: cached window may be missing older messages")
	}
}

func TestCacheExhaustedWindowCoversWiderRequest(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	convID := uuid.New()

	// Only 2 messages exist although 4 were asked for: the conversation is
	// exhausted and the window covers any limit.
	cache.Set(ctx, convID, testMessages(convID, 2), 4)

	got, ok := cache.Get(ctx, convID, 10)
	if !ok {
		t.Fatal("expected hit for exhausted window")
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
}

func TestCacheDropsCorruptEntry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	convID := uuid.New()

	mr.Set(historyKey(convID), "not json")

	if _, ok := cache.Get(ctx, convID, 4); ok {
		t.Error("expected miss for corrupt entry")
	}
	if mr.Exists(historyKey(convID)) {
		t.Error("corrupt entry must be dropped")
	}
}

func TestCacheInvalidate(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	convID := uuid.New()

	cache.Set(ctx, convID, testMessages(convID, 2), 2)
	cache.Invalidate(ctx, convID)

	if mr.Exists(historyKey(convID)) {
		t.Error("expected key to be gone")
	}
	if _, ok := cache.Get(ctx, convID, 2); ok {
		t.Error("expected miss after invalidation")
	}
}
