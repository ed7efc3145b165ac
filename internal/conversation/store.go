package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/lumenhq/taskagent/internal/metrics"
	"github.com/lumenhq/taskagent/internal/tools"
)

// Store persists conversations and messages. Both are append-only: one
// exchange (user message plus assistant message) commits atomically, and
// no update or delete path exists.
type Store struct {
	db     *sqlx.DB
	cache  *HistoryCache
	logger *zap.Logger
}

// NewStore creates a conversation store. The cache is optional.
func NewStore(db *sqlx.DB, cache *HistoryCache, logger *zap.Logger) *Store {
	return &Store{db: db, cache: cache, logger: logger}
}

// Resolve returns the conversation the exchange should append to. A
// reference that is absent, unparseable, unknown, or owned by a different
// identity is silently replaced by a fresh conversation owned by the
// caller; ownership mismatch is deliberately not an error, so a foreign
// reference can never surface another identity's history.
func (s *Store) Resolve(ctx context.Context, userID, ref string) (*Conversation, error) {
	if ref != "" {
		convID, err := uuid.Parse(ref)
		if err == nil {
			var conv Conversation
			err = s.db.GetContext(ctx, &conv,
				"SELECT * FROM conversations WHERE id = $1", convID)
			switch {
			case err == nil && conv.UserID == userID:
				return &conv, nil
			case err == nil:
				s.logger.Warn("Conversation reference owned by different identity, substituting new conversation",
					zap.String("requested_conversation_id", ref),
					zap.String("requesting_user", userID),
				)
			case !errors.Is(err, sql.ErrNoRows):
				return nil, fmt.Errorf("failed to look up conversation: %w", err)
			}
		}
	}

	return s.create(ctx, userID)
}

func (s *Store) create(ctx context.Context, userID string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)`,
		conv.ID, conv.UserID, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	s.logger.Info("Created conversation",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("user_id", userID),
	)
	metrics.ConversationsCreated.Inc()

	return conv, nil
}

// History returns the most recent messages of the conversation, at most
// limit of them, ordered oldest-first for prompt consumption. The window
// is always fully materialized.
func (s *Store) History(ctx context.Context, convID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}

	if s.cache != nil {
		if msgs, ok := s.cache.Get(ctx, convID, limit); ok {
			metrics.HistoryCacheHits.WithLabelValues("hit").Inc()
			return msgs, nil
		}
		metrics.HistoryCacheHits.WithLabelValues("miss").Inc()
	}

	var recent []Message
	err := s.db.SelectContext(ctx, &recent, `
		SELECT * FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		convID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	// Stored most-recent-first; the prompt wants oldest-first.
	msgs := make([]Message, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		msgs = append(msgs, recent[i])
	}

	if s.cache != nil {
		s.cache.Set(ctx, convID, msgs, limit)
	}

	return msgs, nil
}

// AppendExchange writes the user message and the resulting assistant
// message in one transaction: both commit or neither does.
func (s *Store) AppendExchange(ctx context.Context, conv *Conversation, userContent, assistantContent string, toolCalls []tools.Record) error {
	now := time.Now().UTC()

	userMsg := Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		UserID:         conv.UserID,
		Role:           RoleUser,
		Content:        userContent,
		CreatedAt:      now,
	}
	assistantMsg := Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		UserID:         conv.UserID,
		Role:           RoleAssistant,
		Content:        assistantContent,
		ToolCalls:      ToolCallList(toolCalls),
		CreatedAt:      now.Add(time.Microsecond),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const insertMsg = `
		INSERT INTO messages (id, conversation_id, user_id, role, content, tool_calls, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, msg := range []Message{userMsg, assistantMsg} {
		if _, err := tx.ExecContext(ctx, insertMsg,
			msg.ID, msg.ConversationID, msg.UserID, msg.Role, msg.Content, msg.ToolCalls, msg.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE conversations SET updated_at = $1 WHERE id = $2",
		now, conv.ID,
	); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit exchange: %w", err)
	}

	// The cached window is stale now; drop it so the next read rebuilds
	// from the store.
	if s.cache != nil {
		s.cache.Invalidate(ctx, conv.ID)
	}

	return nil
}
