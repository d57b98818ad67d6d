package runtime

import (
	"context"
	"fmt"
	"time"

	ctxengine "github.com/user/agendabot/internal/context"
	"github.com/user/agendabot/internal/gateway"
	"github.com/user/agendabot/internal/types"
	"github.com/user/agendabot/pkg/llm"
)

// Runtime implements the agentic turn loop.
type Runtime struct {
	provider  llm.Provider
	engine    *ctxengine.Engine
	sessions  types.SessionStore
	host      *Host
	maxRounds int
}

// New creates a Runtime with the given dependencies.
func New(
	provider llm.Provider,
	engine *ctxengine.Engine,
	sessions types.SessionStore,
	host *Host,
	maxRounds int,
) *Runtime {
	return &Runtime{
		provider:  provider,
		engine:    engine,
		sessions:  sessions,
		host:      host,
		maxRounds: maxRounds,
	}
}

// ProcessRun executes the agentic turn loop for a single run. This is the
// function passed to Queue.SetProcessor; the queue guarantees at most one
// ProcessRun per session at a time.
//
// The user turn is appended before the model runs and stays in the transcript
// even when the turn fails. Tool calls and tool results are per-turn working
// state; only the final reply is persisted. A failed turn leaves the session
// in error status until the next message arrives.
func (rt *Runtime) ProcessRun(run *gateway.Run) error {
	ctx := run.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if err := rt.sessions.SetStatus(ctx, run.SessionID, types.StatusInTurn); err != nil {
		return fmt.Errorf("mark session in turn: %w", err)
	}

	userTurn := types.Turn{Speaker: types.SpeakerUser, Text: run.Message.Text, At: time.Now()}
	if err := rt.sessions.AppendTurn(ctx, run.SessionID, userTurn); err != nil {
		return rt.failTurn(ctx, run, fmt.Errorf("record user turn: %w", err))
	}

	history, err := rt.sessions.History(ctx, run.SessionID)
	if err != nil {
		return rt.failTurn(ctx, run, fmt.Errorf("load history: %w", err))
	}

	var toolNames []string
	for _, spec := range rt.host.ListTools() {
		toolNames = append(toolNames, spec.Name)
	}

	messages, err := rt.engine.BuildMessages(history, toolNames)
	if err != nil {
		return rt.failTurn(ctx, run, fmt.Errorf("build prompt: %w", err))
	}

	for round := 0; round < rt.maxRounds; round++ {
		resp, err := rt.provider.Complete(ctx, messages, rt.host.LLMTools())
		if err != nil {
			return rt.failTurn(ctx, run, fmt.Errorf("LLM call: %w", err))
		}

		if len(resp.ToolCalls) > 0 {
			messages = append(messages, llm.Message{
				Role:    "assistant",
				Content: resp.Content,
				Tools:   resp.ToolCalls,
			})
			for _, tc := range resp.ToolCalls {
				result := rt.host.Call(ctx, CallRequest{
					Name:       tc.Function.Name,
					Args:       tc.Function.Arguments,
					Credential: run.Message.Credential,
				})
				content := result.Content
				if result.IsError {
					content = "error: " + content
				}
				messages = append(messages, llm.Message{
					Role:       "tool",
					Content:    content,
					ToolCallID: tc.ID,
				})
			}
			continue
		}

		if resp.Content != "" {
			agentTurn := types.Turn{Speaker: types.SpeakerAgent, Text: resp.Content, At: time.Now()}
			if err := rt.sessions.AppendTurn(ctx, run.SessionID, agentTurn); err != nil {
				return rt.failTurn(ctx, run, fmt.Errorf("record reply: %w", err))
			}
		}
		if err := rt.sessions.SetStatus(ctx, run.SessionID, types.StatusReady); err != nil {
			return fmt.Errorf("mark session ready: %w", err)
		}
		if run.OnComplete != nil {
			run.OnComplete(resp.Content)
		}
		return nil
	}

	return rt.failTurn(ctx, run, fmt.Errorf("max tool rounds (%d) exceeded", rt.maxRounds))
}

// failTurn records the error status and hands the error back to the lane.
// Uses a fresh context so the status write survives a cancelled turn.
func (rt *Runtime) failTurn(ctx context.Context, run *gateway.Run, err error) error {
	statusCtx := context.WithoutCancel(ctx)
	if serr := rt.sessions.SetStatus(statusCtx, run.SessionID, types.StatusError); serr != nil {
		return fmt.Errorf("%w (and mark session error: %v)", err, serr)
	}
	return err
}
