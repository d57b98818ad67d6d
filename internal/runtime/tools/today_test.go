package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestCurrentDate(t *testing.T) {
	tool := NewCurrentDate()
	tool.now = func() time.Time {
		return time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	}

	out, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if out != "2025-06-02 (Monday)" {
		t.Errorf("unexpected output %q", out)
	}
}
