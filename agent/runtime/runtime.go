// Package runtime models the conversation primitives the agents run
// against: an append-only message thread, a run with a terminal status, and
// a bounded tool-dispatch loop over a tool-calling chat model. The loop is
// explicit and bounded so an agent can never cycle tool calls forever; the
// terminal condition is an assistant message with no pending tool calls.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
	toolx "github.com/abhaygunhalkar/insurance-agents/agent/tool"
	costtrackx "github.com/abhaygunhalkar/insurance-agents/pkg/costtrack"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

const defaultMaxToolRounds = 8

// Message is a single immutable turn on a thread. AgentID is set for
// assistant and tool-result messages so delegated output stays attributable.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	AgentID string    `json:"agent_id,omitempty"`
	At      time.Time `json:"at"`
}

// Thread is the ordered, append-only message log for one session.
type Thread struct {
	ID       string
	messages []Message
}

func NewThread() *Thread {
	return &Thread{ID: uuid.NewString()}
}

func (t *Thread) Append(msg Message) {
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}
	t.messages = append(t.messages, msg)
}

// Messages returns a copy of the log; the log itself is never mutated.
func (t *Thread) Messages() []Message {
	return append([]Message(nil), t.messages...)
}

// LastAssistant returns the most recent agent-authored message.
func (t *Thread) LastAssistant() (Message, bool) {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == RoleAssistant {
			return t.messages[i], true
		}
	}
	return Message{}, false
}

type RunStatus string

const (
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// Run is one execution pass of an agent against a thread's current state.
// It must reach a terminal status before Output is read.
type Run struct {
	ID          string
	AgentID     string
	Status      RunStatus
	ToolResults []contractx.ToolResult
	Output      string
	Err         string
	StartedAt   time.Time
	EndedAt     time.Time
}

func (r *Run) fail(err error, now time.Time) *Run {
	r.Status = RunFailed
	r.Err = err.Error()
	r.EndedAt = now
	return r
}

func (r *Run) complete(output string, now time.Time) *Run {
	r.Status = RunCompleted
	r.Output = output
	r.EndedAt = now
	return r
}

// LoopOption customizes a Loop.
type LoopOption func(*Loop)

func WithMaxToolRounds(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.maxRounds = n
		}
	}
}

func WithClock(now func() time.Time) LoopOption {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// WithCostTracking prices every model call against the named model.
func WithCostTracking(calc *costtrackx.Calculator, modelName string) LoopOption {
	return func(l *Loop) {
		if calc != nil && strings.TrimSpace(modelName) != "" {
			l.costs = calc
			l.costModel = strings.TrimSpace(modelName)
		}
	}
}

// Loop drives one run: render the thread, generate, execute any requested
// tool calls against the registry, feed the results back, repeat. Tool
// invocations are sequential and synchronous within a run.
type Loop struct {
	agentID      string
	instructions string
	model        einomodel.ToolCallingChatModel
	registry     *toolx.Registry
	maxRounds    int
	now          func() time.Time

	costs     *costtrackx.Calculator
	costModel string
}

func NewLoop(
	agentID string,
	instructions string,
	chatModel einomodel.ToolCallingChatModel,
	registry *toolx.Registry,
	opts ...LoopOption,
) (*Loop, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, fmt.Errorf("%w: agent id is required", contractx.ErrValidation)
	}
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrValidation)
	}
	if registry == nil {
		return nil, fmt.Errorf("%w: tool registry is required", contractx.ErrValidation)
	}

	bound := chatModel
	if infos := registry.ToolInfos(); len(infos) > 0 {
		var err error
		bound, err = chatModel.WithTools(infos)
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools for agent=%s: %v", contractx.ErrModelInvoke, agentID, err)
		}
	}

	l := &Loop{
		agentID:      agentID,
		instructions: strings.TrimSpace(instructions),
		model:        bound,
		registry:     registry,
		maxRounds:    defaultMaxToolRounds,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Execute runs the bounded dispatch loop. The final assistant message is
// appended to the thread on completion; tool results are appended as
// tool-role messages so the transcript carries them verbatim.
func (l *Loop) Execute(ctx context.Context, thread *Thread) *Run {
	run := &Run{
		ID:        uuid.NewString(),
		AgentID:   l.agentID,
		Status:    RunInProgress,
		StartedAt: l.now().UTC(),
	}
	if thread == nil {
		return run.fail(fmt.Errorf("%w: thread is nil", contractx.ErrValidation), l.now().UTC())
	}

	msgs := l.renderThread(thread)

	for round := 0; round < l.maxRounds; round++ {
		out, err := l.model.Generate(ctx, msgs)
		if err != nil {
			return run.fail(fmt.Errorf("%w: agent=%s: %v", contractx.ErrModelInvoke, l.agentID, err), l.now().UTC())
		}
		if out == nil {
			return run.fail(fmt.Errorf("%w: agent=%s returned no message", contractx.ErrSchemaViolation, l.agentID), l.now().UTC())
		}
		l.trackCost(out)

		if len(out.ToolCalls) == 0 {
			reply := strings.TrimSpace(out.Content)
			if reply == "" {
				return run.fail(fmt.Errorf("%w: agent=%s returned empty reply", contractx.ErrSchemaViolation, l.agentID), l.now().UTC())
			}
			thread.Append(Message{Role: RoleAssistant, Content: reply, AgentID: l.agentID})
			return run.complete(reply, l.now().UTC())
		}

		msgs = append(msgs, out)
		for _, call := range out.ToolCalls {
			result := l.dispatch(ctx, call)
			run.ToolResults = append(run.ToolResults, result)
			thread.Append(Message{Role: RoleTool, Content: result.Outcome.Message, AgentID: l.agentID})
			msgs = append(msgs, schema.ToolMessage(result.Outcome.Message, call.ID))

			log.Debug().
				Str("agent", l.agentID).
				Str("tool", result.Tool).
				Bool("ok", result.Outcome.OK).
				Msg("tool call dispatched")
		}
	}

	return run.fail(
		fmt.Errorf("%w: agent=%s max_rounds=%d", contractx.ErrRunExhausted, l.agentID, l.maxRounds),
		l.now().UTC(),
	)
}

func (l *Loop) trackCost(out *schema.Message) {
	if l.costs == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	if _, err := l.costs.Track(l.costModel, usage.PromptTokens, usage.CompletionTokens); err != nil {
		log.Debug().Err(err).Str("model", l.costModel).Msg("cost tracking skipped")
	}
}

func (l *Loop) dispatch(ctx context.Context, call schema.ToolCall) contractx.ToolResult {
	name := strings.TrimSpace(call.Function.Name)
	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return contractx.ToolResult{
				Tool:    name,
				Outcome: contractx.Errf(contractx.FailInvalidArgs, "tool=%s arguments are not valid JSON: %v", name, err),
			}
		}
	}
	return l.registry.Execute(ctx, contractx.ToolRequest{Tool: name, Args: args})
}

func (l *Loop) renderThread(thread *Thread) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(thread.messages)+1)
	if l.instructions != "" {
		msgs = append(msgs, schema.SystemMessage(l.instructions))
	}
	for _, m := range thread.messages {
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, schema.UserMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		}
	}
	return msgs
}
