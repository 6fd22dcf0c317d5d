package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
)

// compileStructuredLLMGraph builds prompt -> model -> JSON parse for a
// typed structured output.
func compileStructuredLLMGraph[T any](
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, T], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	parser := schema.NewMessageJSONParser[T](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, T]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add structured prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add structured model node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("add structured parser node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add structured edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add structured edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "parse_json"); err != nil {
		return nil, fmt.Errorf("add structured edge model->parse: %w", err)
	}
	if err := graph.AddEdge("parse_json", compose.END); err != nil {
		return nil, fmt.Errorf("add structured edge parse->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile structured graph: %w", err)
	}
	return runner, nil
}

/* ------------------------------ extractor ------------------------------- */

type extractorImpl struct {
	runner compose.Runnable[map[string]any, contractx.LeadFields]
}

var _ contractx.FieldExtractor = (*extractorImpl)(nil)

// NewFieldExtractor builds the structured-LLM lead field extractor.
func NewFieldExtractor(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (contractx.FieldExtractor, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: extractor prompt", contractx.ErrPromptMissing)
	}
	runner, err := compileStructuredLLMGraph[contractx.LeadFields](ctx, chatModel, systemPrompt, "intake.extractor_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile extractor graph: %v", contractx.ErrModelInvoke, err)
	}
	return &extractorImpl{runner: runner}, nil
}

func (e *extractorImpl) Extract(ctx context.Context, req contractx.ExtractRequest) (contractx.LeadFields, error) {
	if strings.TrimSpace(req.UserMessage) == "" {
		return contractx.LeadFields{}, fmt.Errorf("%w: user message is required", contractx.ErrValidation)
	}

	payload := map[string]any{
		"user_message": req.UserMessage,
		"known":        req.Known,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return contractx.LeadFields{}, fmt.Errorf("%w: marshal extractor payload: %v", contractx.ErrValidation, err)
	}

	out, err := e.runner.Invoke(ctx, map[string]any{"input": string(input)})
	if err != nil {
		return contractx.LeadFields{}, fmt.Errorf("%w: extractor invoke: %v", contractx.ErrModelInvoke, err)
	}
	return out, nil
}

/* ---------------------------- intent classifier -------------------------- */

type intentLLMOutput struct {
	Intent string `json:"intent"`
}

type classifierImpl struct {
	runner compose.Runnable[map[string]any, intentLLMOutput]
}

var _ contractx.IntentClassifier = (*classifierImpl)(nil)

// NewIntentClassifier builds the structured-LLM turn classifier.
func NewIntentClassifier(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (contractx.IntentClassifier, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: intent prompt", contractx.ErrPromptMissing)
	}
	runner, err := compileStructuredLLMGraph[intentLLMOutput](ctx, chatModel, systemPrompt, "support.intent_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile intent graph: %v", contractx.ErrModelInvoke, err)
	}
	return &classifierImpl{runner: runner}, nil
}

func (c *classifierImpl) Classify(ctx context.Context, text string) (contractx.Intent, error) {
	payload, err := json.Marshal(map[string]any{"user_message": text})
	if err != nil {
		return "", fmt.Errorf("%w: marshal intent payload: %v", contractx.ErrValidation, err)
	}

	out, err := c.runner.Invoke(ctx, map[string]any{"input": string(payload)})
	if err != nil {
		return "", fmt.Errorf("%w: intent invoke: %v", contractx.ErrModelInvoke, err)
	}

	switch contractx.Intent(strings.ToLower(strings.TrimSpace(out.Intent))) {
	case contractx.IntentPurchase:
		return contractx.IntentPurchase, nil
	case contractx.IntentQuestion:
		return contractx.IntentQuestion, nil
	case contractx.IntentOther:
		return contractx.IntentOther, nil
	default:
		return "", fmt.Errorf("%w: unsupported intent=%q", contractx.ErrSchemaViolation, out.Intent)
	}
}
