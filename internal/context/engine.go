package context

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/agendabot/internal/types"
	"github.com/user/agendabot/pkg/llm"
)

// Engine assembles token-budgeted prompts for the LLM.
type Engine struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
	now       func() time.Time
}

// New creates a context engine with the specified token budget.
// model selects the tokenizer (e.g. "gpt-4"); maxTokens is the model's
// context window size; reserve is held back for the model's response.
func New(model string, maxTokens, reserve int) (*Engine, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Engine{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
		now:       time.Now,
	}, nil
}

func (e *Engine) countTokens(text string) int {
	return len(e.tokenizer.Encode(text, nil, nil))
}

// BuildMessages assembles the system prompt plus as much recent history as
// fits the budget. History is walked newest-first so that when the transcript
// outgrows the window, the oldest turns fall off and the current exchange
// always survives.
func (e *Engine) BuildMessages(history []types.Turn, toolNames []string) ([]llm.Message, error) {
	now := e.now()
	sysPrompt, err := RenderPrompt(PromptData{
		Date:    now.Format("2006-01-02"),
		Weekday: now.Weekday().String(),
		Time:    now.Format("15:04:05"),
		Tools:   strings.Join(toolNames, ", "),
	})
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	budget := e.maxTokens - e.reserve - e.countTokens(sysPrompt)

	var kept []llm.Message
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		msg := turnToMessage(history[i])
		msgTokens := e.countTokens(msg.Content)
		if used+msgTokens > budget {
			break
		}
		kept = append(kept, msg)
		used += msgTokens
	}

	messages := make([]llm.Message, 0, 1+len(kept))
	messages = append(messages, llm.Message{Role: "system", Content: sysPrompt})
	for i := len(kept) - 1; i >= 0; i-- {
		messages = append(messages, kept[i])
	}
	return messages, nil
}

func turnToMessage(turn types.Turn) llm.Message {
	role := "user"
	if turn.Speaker == types.SpeakerAgent {
		role = "assistant"
	}
	return llm.Message{Role: role, Content: turn.Text}
}
