package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/lumenhq/taskagent/internal/agent"
	"github.com/lumenhq/taskagent/internal/auth"
	"github.com/lumenhq/taskagent/internal/conversation"
	"github.com/lumenhq/taskagent/internal/llm"
	"github.com/lumenhq/taskagent/internal/tools"
)

// ChatRequest is the chat exchange payload.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the chat exchange result.
type ChatResponse struct {
	Response       string         `json:"response"`
	ConversationID string         `json:"conversation_id"`
	ToolCalls      []tools.Record `json:"tool_calls,omitempty"`
}

// ChatHandler handles conversational exchanges.
type ChatHandler struct {
	orchestrator  *agent.Orchestrator
	store         *conversation.Store
	historyWindow int
	logger        *zap.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(orchestrator *agent.Orchestrator, store *conversation.Store, historyWindow int, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		orchestrator:  orchestrator,
		store:         store,
		historyWindow: historyWindow,
		logger:        logger,
	}
}

// Chat handles POST /api/v1/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		sendError(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		sendError(w, "Message is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	conv, err := h.store.Resolve(ctx, principal.UserID, req.ConversationID)
	if err != nil {
		h.logger.Error("Failed to resolve conversation", zap.Error(err))
		sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	history, err := h.store.History(ctx, conv.ID, h.historyWindow)
	if err != nil {
		h.logger.Error("Failed to load history", zap.Error(err))
		sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	outcome := h.orchestrator.Respond(ctx, principal, req.Message, toPromptHistory(history))

	// The exchange is atomic: the user message and the assistant message
	// commit together or the whole request fails.
	if err := h.store.AppendExchange(ctx, conv, req.Message, outcome.Reply, outcome.ToolCalls); err != nil {
		h.logger.Error("Failed to append exchange",
			zap.String("conversation_id", conv.ID.String()),
			zap.Error(err),
		)
		sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := ChatResponse{
		Response:       outcome.Reply,
		ConversationID: conv.ID.String(),
	}
	if len(outcome.ToolCalls) > 0 {
		resp.ToolCalls = outcome.ToolCalls
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func toPromptHistory(msgs []conversation.Message) []llm.HistoryMessage {
	history := make([]llm.HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, llm.HistoryMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return history
}

// sendError sends a JSON error response.
func sendError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
