// Package llm defines the model capability consumed by the agent
// orchestrator. The capability is a black box: given a message, bounded
// history, and declared tools it returns either plain text or a list of
// proposed tool calls, and a second pass synthesizes a reply from tool
// results. Implementations live in subpackages; the orchestrator accepts
// the interface so tests can substitute a deterministic double.
package llm

import "context"

// HistoryMessage is one prior exchange entry, oldest-first.
type HistoryMessage struct {
	Role    string // "user" or "assistant"
	Content string
}

// ToolDeclaration describes a callable tool. Parameters is a JSON schema
// object.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ProposedCall is a tool invocation proposed by the model.
type ProposedCall struct {
	ID         string
	Name       string
	Parameters map[string]any
}

// ToolOutcome pairs a proposed call with the textual result of executing
// it, for the synthesis pass.
type ToolOutcome struct {
	Call   ProposedCall
	Output string
}

// ChatRequest is the first-pass request.
type ChatRequest struct {
	Preamble string
	Message  string
	History  []HistoryMessage
	Tools    []ToolDeclaration
}

// ChatResponse is the model's answer: either text, or one or more proposed
// tool calls (in which case Text may be empty).
type ChatResponse struct {
	Text      string
	ToolCalls []ProposedCall
}

// SynthesisRequest is the second-pass request that folds tool outcomes
// into a final natural-language reply.
type SynthesisRequest struct {
	Preamble string
	Message  string
	History  []HistoryMessage
	Outcomes []ToolOutcome
}

// Client is the model capability surface.
type Client interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Synthesize(ctx context.Context, req *SynthesisRequest) (string, error)
}
