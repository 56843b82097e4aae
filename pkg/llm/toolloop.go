package llm

import (
	"context"
	"encoding/json"

	"github.com/memoradio/memo-agent/pkg/tools"
)

// maxToolIterations bounds the tool-execution loop per spec §4.6.
const maxToolIterations = 5

// ToolLoop implements the orchestrator-side tool-execution loop of spec
// §4.6: call the client, and while it asks for tool calls instead of
// returning content, execute them and feed results back.
type ToolLoop struct {
	client         Client
	registry       *tools.Registry
	executor       *tools.Executor
	fallbackPhrase string
}

// NewToolLoop creates a loop over client, advertising registry's tools and
// dispatching calls through executor. fallbackPhrase is spoken when the
// iteration cap is exceeded.
func NewToolLoop(client Client, registry *tools.Registry, executor *tools.Executor, fallbackPhrase string) *ToolLoop {
	return &ToolLoop{
		client:         client,
		registry:       registry,
		executor:       executor,
		fallbackPhrase: fallbackPhrase,
	}
}

func toolSpecsFromRegistry(registry *tools.Registry) []ToolSpec {
	if registry == nil {
		return nil
	}
	defs := registry.Definitions()
	specs := make([]ToolSpec, 0, len(defs))
	for _, d := range defs {
		specs = append(specs, ToolSpec{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  json.RawMessage(d.ParameterSchema),
		})
	}
	return specs
}

// Run drives the loop from req, returning the final spoken content.
func (l *ToolLoop) Run(ctx context.Context, req Request) (string, error) {
	resp, err := l.RunDetailed(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// RunDetailed drives the same loop as Run but returns the full terminal
// Response, including its StopReason, so callers that need to apply
// spec §4.6's truncation handling (substituting a fallback phrase when
// stop_reason indicates length overflow) can see why the loop stopped.
// The iteration-cap fallback is reported as a StopNormal response carrying
// the configured fallback phrase, since it was never actually truncated by
// the model.
func (l *ToolLoop) RunDetailed(ctx context.Context, req Request) (Response, error) {
	req.Tools = toolSpecsFromRegistry(l.registry)

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		resp, err := l.client.GenerateWithTools(ctx, req)
		if err != nil {
			return Response{}, err
		}

		if len(resp.ToolCalls) == 0 {
			return resp, nil
		}

		req.History = append(req.History, assistantToolCallMessage(resp))
		for _, call := range resp.ToolCalls {
			result := l.executor.ExecuteSync(ctx, call.Name, call.ArgumentsJSON)
			req.History = append(req.History, toolResultMessage(call, result))
		}
		req.UserPrompt = ""
	}

	return Response{Content: l.fallbackPhrase, StopReason: StopNormal}, nil
}

func assistantToolCallMessage(resp Response) ChatMessage {
	return ChatMessage{
		Role:      "assistant",
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	}
}

func toolResultMessage(call ToolCall, result tools.Result) ChatMessage {
	content := result.Content
	if !result.Success {
		content = "Error: " + result.Error
	}
	return ChatMessage{
		Role:       "tool",
		Content:    content,
		ToolCallID: call.ID,
	}
}
