// Package agent orchestrates one chat exchange: it decides which tools to
// invoke for a user message, runs them through the registry, and produces
// the reply. With no model capability configured it falls back to a
// deterministic keyword procedure.
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lumenhq/taskagent/internal/auth"
	"github.com/lumenhq/taskagent/internal/llm"
	"github.com/lumenhq/taskagent/internal/metrics"
	"github.com/lumenhq/taskagent/internal/tools"
)

// ApologyReply is the fixed degraded answer used whenever the model
// capability fails. Internal errors never surface as raw faults.
const ApologyReply = "I'm sorry, I'm having trouble processing your request right now. Please try again later."

const preamble = `You are a helpful task assistant.
You help users manage their tasks using the provided tools.
Always verify actions with the user and be concise.
When asked to list tasks, use the list_tasks tool.
When asked to complete or delete a task, use the task_id provided by the user or found in the history.`

// Outcome is the result of one exchange: the reply plus the ordered log of
// every tool invocation attempted, whether or not it succeeded.
type Outcome struct {
	Reply     string
	ToolCalls []tools.Record
}

// Orchestrator runs one terminal pass per request.
type Orchestrator struct {
	model    llm.Client // nil enables fallback mode
	registry *tools.Registry
	logger   *zap.Logger
}

// New creates an orchestrator. Passing a nil model selects the
// deterministic fallback for every exchange.
func New(model llm.Client, registry *tools.Registry, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		model:    model,
		registry: registry,
		logger:   logger,
	}
}

// Respond handles one exchange. It never returns an error: tool and model
// failures are folded into the reply text, so the caller always gets a
// well-formed outcome.
func (o *Orchestrator) Respond(ctx context.Context, principal *auth.Principal, message string, history []llm.HistoryMessage) *Outcome {
	start := time.Now()
	defer func() {
		metrics.ChatExchangeDuration.Observe(time.Since(start).Seconds())
	}()

	if o.model == nil {
		return o.respondFallback(ctx, principal, message)
	}
	return o.respondModel(ctx, principal, message, history)
}

func (o *Orchestrator) respondFallback(ctx context.Context, principal *auth.Principal, message string) *Outcome {
	decision := DecideFallback(message)
	if decision.Invocation == nil {
		metrics.ChatExchanges.WithLabelValues("fallback", "ok").Inc()
		return &Outcome{Reply: decision.Reply, ToolCalls: []tools.Record{}}
	}

	record := decision.Invocation.Record()
	status := o.execute(ctx, principal, decision.Invocation)

	metrics.ChatExchanges.WithLabelValues("fallback", "ok").Inc()
	return &Outcome{
		Reply:     fmt.Sprintf(decision.Template, status),
		ToolCalls: []tools.Record{record},
	}
}

func (o *Orchestrator) respondModel(ctx context.Context, principal *auth.Principal, message string, history []llm.HistoryMessage) *Outcome {
	chatResp, err := o.model.Chat(ctx, &llm.ChatRequest{
		Preamble: preamble,
		Message:  message,
		History:  history,
		Tools:    declarations(),
	})
	if err != nil {
		o.logger.Warn("Model capability failed on first pass", zap.Error(err))
		metrics.ChatExchanges.WithLabelValues("model", "degraded").Inc()
		return &Outcome{Reply: ApologyReply, ToolCalls: []tools.Record{}}
	}

	if len(chatResp.ToolCalls) == 0 {
		metrics.ChatExchanges.WithLabelValues("model", "ok").Inc()
		return &Outcome{Reply: chatResp.Text, ToolCalls: []tools.Record{}}
	}

	// Proposed invocations run strictly in declaration order: a later call
	// may depend on an earlier one's side effects.
	records := make([]tools.Record, 0, len(chatResp.ToolCalls))
	outcomes := make([]llm.ToolOutcome, 0, len(chatResp.ToolCalls))
	for _, call := range chatResp.ToolCalls {
		records = append(records, tools.Record{Name: call.Name, Parameters: call.Parameters})

		var status string
		inv, err := tools.Parse(call.Name, call.Parameters)
		if err != nil {
			status = fmt.Sprintf("Error executing %s: %v", call.Name, err)
		} else {
			status = o.execute(ctx, principal, inv)
		}
		outcomes = append(outcomes, llm.ToolOutcome{Call: call, Output: status})
	}

	reply, err := o.model.Synthesize(ctx, &llm.SynthesisRequest{
		Preamble: preamble,
		Message:  message,
		History:  history,
		Outcomes: outcomes,
	})
	if err != nil {
		o.logger.Warn("Model capability failed on synthesis pass", zap.Error(err))
		metrics.ChatExchanges.WithLabelValues("model", "degraded").Inc()
		return &Outcome{Reply: ApologyReply, ToolCalls: records}
	}

	metrics.ChatExchanges.WithLabelValues("model", "ok").Inc()
	return &Outcome{Reply: reply, ToolCalls: records}
}

// execute runs one invocation, converting any failure into a textual
// result. Errors never cross back past the invocation boundary.
func (o *Orchestrator) execute(ctx context.Context, principal *auth.Principal, inv tools.Invocation) string {
	res, err := o.registry.Execute(ctx, principal, inv)
	if err != nil {
		return fmt.Sprintf("Error executing %s: %v", inv.Name(), err)
	}
	return res.Status
}

func declarations() []llm.ToolDeclaration {
	decls := tools.Declarations()
	out := make([]llm.ToolDeclaration, 0, len(decls))
	for _, d := range decls {
		out = append(out, llm.ToolDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}
	return out
}
