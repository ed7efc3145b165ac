package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/lumenhq/taskagent/internal/tools"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewStore(db, nil, zap.NewNop()), mock
}

func conversationRow(id uuid.UUID, userID string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "user_id", "created_at", "updated_at"}).
		AddRow(id, userID, now, now)
}

func TestResolveOwnedConversation(t *testing.T) {
	store, mock := newTestStore(t)
	convID := uuid.New()

	mock.ExpectQuery("SELECT \\* FROM conversations WHERE id = \\$1").
		WithArgs(convID).
		WillReturnRows(conversationRow(convID, "user-1"))

	conv, err := store.Resolve(context.Background(), "user-1", convID.String())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if conv.ID != convID {
		t.Errorf("expected the referenced conversation, got %s", conv.ID)
	}
}

// A reference to someone else's conversation is silently replaced by a
// fresh conversation, indistinguishable from an unknown reference.
func TestResolveForeignConversationSubstituted(t *testing.T) {
	store, mock := newTestStore(t)
	convID := uuid.New()

	mock.ExpectQuery("SELECT \\* FROM conversations WHERE id = \\$1").
		WithArgs(convID).
		WillReturnRows(conversationRow(convID, "someone-else"))
	mock.ExpectExec("INSERT INTO conversations").
		WillReturnResult(sqlmock.NewResult(0, 1))

	conv, err := store.Resolve(context.Background(), "user-1", convID.String())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if conv.ID == convID {
		t.Error("foreign conversation must not be returned")
	}
	if conv.UserID != "user-1" {
		t.Errorf("substitute must belong to the caller, got %s", conv.UserID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResolveCreatesWhenAbsent(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		prep func(mock sqlmock.Sqlmock)
	}{
		{
			name: "empty reference",
			ref:  "",
			prep: func(mock sqlmock.Sqlmock) {},
		},
		{
			name: "unparseable reference",
			ref:  "not-a-uuid",
			prep: func(mock sqlmock.Sqlmock) {},
		},
		{
			name: "unknown reference",
			ref:  uuid.NewString(),
			prep: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT \\* FROM conversations WHERE id = \\$1").
					WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "created_at", "updated_at"}))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newTestStore(t)
			tt.prep(mock)
			mock.ExpectExec("INSERT INTO conversations").
				WillReturnResult(sqlmock.NewResult(0, 1))

			conv, err := store.Resolve(context.Background(), "user-1", tt.ref)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if conv.UserID != "user-1" {
				t.Errorf("expected caller-owned conversation, got %s", conv.UserID)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestHistoryReversesToOldestFirst(t *testing.T) {
	store, mock := newTestStore(t)
	convID := uuid.New()
	now := time.Now()

	// The store query returns most-recent-first.
	mock.ExpectQuery("SELECT \\* FROM messages").
		WithArgs(convID, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "user_id", "role", "content", "tool_calls", "created_at"}).
			AddRow(uuid.New(), convID, "user-1", RoleAssistant, "second", nil, now).
			AddRow(uuid.New(), convID, "user-1", RoleUser, "first", nil, now.Add(-time.Second)))

	msgs, err := store.History(context.Background(), convID, 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "first" || msgs[1].Content != "second" {
		t.Errorf("expected oldest-first order, got [%s, %s]", msgs[0].Content, msgs[1].Content)
	}
}

func TestHistoryZeroLimit(t *testing.T) {
	store, mock := newTestStore(t)

	msgs, err := store.History(context.Background(), uuid.New(), 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty history, got %d messages", len(msgs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected store access: %v", err)
	}
}

func TestAppendExchangeAtomic(t *testing.T) {
	store, mock := newTestStore(t)
	conv := &Conversation{ID: uuid.New(), UserID: "user-1"}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO messages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE conversations SET updated_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.AppendExchange(context.Background(), conv, "add buy milk", "Done!", []tools.Record{
		{Name: "add_task", Parameters: map[string]any{"title": "buy milk"}},
	})
	if err != nil {
		t.Fatalf("AppendExchange failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAppendExchangeRollsBackOnFailure(t *testing.T) {
	store, mock := newTestStore(t)
	conv := &Conversation{ID: uuid.New(), UserID: "user-1"}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO messages").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.AppendExchange(context.Background(), conv, "hello", "reply", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
