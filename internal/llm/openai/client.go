// Package openai implements the model capability over an OpenAI-compatible
// chat-completions API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/lumenhq/taskagent/internal/llm"
	"github.com/lumenhq/taskagent/internal/metrics"
)

// Config holds client settings. The request timeout is mandatory: an
// unresponsive provider must surface as an error the orchestrator can
// degrade from, never as a hung request.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

// NewClient creates a model capability client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// Chat runs the first pass: the model sees the message, history, and tool
// declarations and answers with text or proposed tool calls.
func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	msgs := c.baseMessages(req.Preamble, req.History, req.Message)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: msgs,
	}
	if len(req.Tools) > 0 {
		params.Tools = toolParams(req.Tools)
	}

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, params)
	metrics.ModelCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ModelCalls.WithLabelValues("chat", "error").Inc()
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	metrics.ModelCalls.WithLabelValues("chat", "ok").Inc()

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}
	message := completion.Choices[0].Message

	resp := &llm.ChatResponse{Text: message.Content}
	for _, tc := range message.ToolCalls {
		params := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &params); err != nil {
				c.logger.Warn("Tool call arguments are not valid JSON",
					zap.String("tool", tc.Function.Name),
					zap.Error(err),
				)
				params = map[string]any{}
			}
		}
		resp.ToolCalls = append(resp.ToolCalls, llm.ProposedCall{
			ID:         tc.ID,
			Name:       tc.Function.Name,
			Parameters: params,
		})
	}

	return resp, nil
}

// Synthesize runs the second pass: the model sees the tool outcomes and
// produces the final natural-language reply.
func (c *Client) Synthesize(ctx context.Context, req *llm.SynthesisRequest) (string, error) {
	msgs := c.baseMessages(req.Preamble, req.History, req.Message)

	assistantCalls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(req.Outcomes))
	for _, outcome := range req.Outcomes {
		args, err := json.Marshal(outcome.Call.Parameters)
		if err != nil {
			args = []byte("{}")
		}
		assistantCalls = append(assistantCalls, openai.ChatCompletionMessageToolCallParam{
			ID: outcome.Call.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      outcome.Call.Name,
				Arguments: string(args),
			},
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
		OfAssistant: &openai.ChatCompletionAssistantMessageParam{
			ToolCalls: assistantCalls,
		},
	})
	for _, outcome := range req.Outcomes {
		msgs = append(msgs, openai.ToolMessage(outcome.Output, outcome.Call.ID))
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: msgs,
	}

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, params)
	metrics.ModelCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ModelCalls.WithLabelValues("synthesis", "error").Inc()
		return "", fmt.Errorf("synthesis completion failed: %w", err)
	}
	metrics.ModelCalls.WithLabelValues("synthesis", "ok").Inc()

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("synthesis completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

func (c *Client) baseMessages(preamble string, history []llm.HistoryMessage, message string) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if preamble != "" {
		msgs = append(msgs, openai.SystemMessage(preamble))
	}
	for _, h := range history {
		switch h.Role {
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(h.Content))
		default:
			msgs = append(msgs, openai.UserMessage(h.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(message))
	return msgs
}

func toolParams(decls []llm.ToolDeclaration) []openai.ChatCompletionToolParam {
	params := make([]openai.ChatCompletionToolParam, 0, len(decls))
	for _, d := range decls {
		params = append(params, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        d.Name,
				Description: openai.String(d.Description),
				Parameters:  openai.FunctionParameters(d.Parameters),
			},
		})
	}
	return params
}
