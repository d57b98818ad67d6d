package context

import (
	"strings"
	"testing"
	"time"

	"github.com/user/agendabot/internal/types"
)

func TestNewEngine(t *testing.T) {
	e, err := New("gpt-4", 128000, 4096)
	if err != nil {
		t.Fatal(err)
	}
	if e == nil {
		t.Fatal("expected non-nil engine")
	}
}

func TestBuildMessagesBasic(t *testing.T) {
	e, err := New("gpt-4", 128000, 4096)
	if err != nil {
		t.Fatal(err)
	}

	history := []types.Turn{
		{Speaker: types.SpeakerUser, Text: "what do I have tomorrow?"},
		{Speaker: types.SpeakerAgent, Text: "Nothing scheduled for tomorrow."},
		{Speaker: types.SpeakerUser, Text: "add lunch at noon"},
	}

	messages, err := e.BuildMessages(history, []string{"current_date", "add_schedule"})
	if err != nil {
		t.Fatal(err)
	}

	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("expected system message first, got %q", messages[0].Role)
	}
	if !strings.Contains(messages[0].Content, "current_date") {
		t.Error("expected tool names in system prompt")
	}
	if messages[1].Role != "user" || messages[1].Content != "what do I have tomorrow?" {
		t.Errorf("unexpected first history message: %+v", messages[1])
	}
	if messages[2].Role != "assistant" {
		t.Errorf("expected assistant message, got %q", messages[2].Role)
	}
	if messages[3].Content != "add lunch at noon" {
		t.Errorf("unexpected last message: %+v", messages[3])
	}
}

func TestBuildMessagesIncludesDate(t *testing.T) {
	e, err := New("gpt-4", 128000, 4096)
	if err != nil {
		t.Fatal(err)
	}
	e.now = func() time.Time {
		return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	}

	messages, err := e.BuildMessages(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(messages[0].Content, "2025-03-14") {
		t.Error("expected today's date in system prompt")
	}
	if !strings.Contains(messages[0].Content, "Friday") {
		t.Error("expected weekday in system prompt")
	}
}

func TestBuildMessagesBudgetDropsOldest(t *testing.T) {
	// Tiny budget: only 500 tokens total, 100 reserve
	e, err := New("gpt-4", 500, 100)
	if err != nil {
		t.Fatal(err)
	}

	history := make([]types.Turn, 50)
	for i := range history {
		history[i] = types.Turn{
			Speaker: types.SpeakerUser,
			Text:    "This is a message that takes up tokens in the context window budget.",
		}
	}
	history[len(history)-1].Text = "the newest message"

	messages, err := e.BuildMessages(history, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(messages) >= 51 {
		t.Fatalf("expected truncation, got %d messages for 50 turns", len(messages))
	}
	if len(messages) < 2 {
		t.Fatal("expected system prompt plus at least the newest turn")
	}
	if got := messages[len(messages)-1].Content; got != "the newest message" {
		t.Errorf("expected newest turn to survive truncation, got %q", got)
	}
}
