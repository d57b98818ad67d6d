package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/user/agendabot/pkg/llm"
)

// ToolSpec describes one tool across the host boundary.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// CallRequest is a single tool invocation. Credential is the bearer token
// of the request that started the turn; the host injects it into the tool
// arguments, so the model never carries it.
type CallRequest struct {
	Name       string          `json:"name"`
	Args       json.RawMessage `json:"args"`
	Credential string          `json:"-"`
}

// CallResult is the single response to a CallRequest. Errors are data, not
// exceptions: an error-flagged result goes back into the agent's reasoning
// so it can recover (ask the user for a missing parameter, report a failed
// delete) instead of aborting the turn.
type CallResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// Host is the narrow request/response boundary between the turn loop and
// the tool set. The runtime holds only a Host; it never reaches into the
// registry or the tools directly.
type Host struct {
	registry *Registry
}

// NewHost wraps a registry in a Host.
func NewHost(registry *Registry) *Host {
	return &Host{registry: registry}
}

// ListTools returns the declared specs of every registered tool.
func (h *Host) ListTools() []ToolSpec {
	tools := h.registry.All()
	out := make([]ToolSpec, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return out
}

// LLMTools returns the tool declarations in provider format.
func (h *Host) LLMTools() []llm.Tool {
	return h.registry.AsLLMTools()
}

// Call executes one tool invocation and returns its single result. Unknown
// tools and tool failures come back as error-flagged results.
func (h *Host) Call(ctx context.Context, req CallRequest) CallResult {
	tool, ok := h.registry.Get(req.Name)
	if !ok {
		return CallResult{Content: fmt.Sprintf("unknown tool %q", req.Name), IsError: true}
	}

	args, err := injectCredential(req.Args, req.Credential)
	if err != nil {
		return CallResult{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		slog.Debug("tool call failed", "tool", req.Name, "error", err)
		return CallResult{Content: err.Error(), IsError: true}
	}
	return CallResult{Content: result}
}

// injectCredential overlays the request credential onto the model-chosen
// arguments. Any token the model supplied is discarded; tools only ever see
// the credential presented with the originating request.
func injectCredential(args json.RawMessage, credential string) (json.RawMessage, error) {
	m := make(map[string]any)
	if len(args) > 0 {
		if err := json.Unmarshal(args, &m); err != nil {
			return nil, fmt.Errorf("parse args: %w", err)
		}
	}
	m["token"] = credential
	return json.Marshal(m)
}
