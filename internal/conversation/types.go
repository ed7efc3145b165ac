package conversation

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumenhq/taskagent/internal/tools"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is a message thread owned by exactly one identity for its
// lifetime.
type Conversation struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ToolCallList is the ordered tool invocation log stored on an assistant
// message as a jsonb column.
type ToolCallList []tools.Record

// Value implements the driver.Valuer interface.
func (l ToolCallList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface.
func (l *ToolCallList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into ToolCallList", value)
	}
	return json.Unmarshal(bytes, l)
}

// Message is one entry in a conversation. Messages are immutable once
// written and ordered by created_at within their conversation.
type Message struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	ConversationID uuid.UUID    `json:"conversation_id" db:"conversation_id"`
	UserID         string       `json:"user_id" db:"user_id"`
	Role           string       `json:"role" db:"role"`
	Content        string       `json:"content" db:"content"`
	ToolCalls      ToolCallList `json:"tool_calls,omitempty" db:"tool_calls"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}
