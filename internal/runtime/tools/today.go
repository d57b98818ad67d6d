package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// CurrentDate reports today's date. It is the only tool that takes no
// credential; the date is not user data.
type CurrentDate struct {
	now func() time.Time
}

// NewCurrentDate creates a new CurrentDate tool.
func NewCurrentDate() *CurrentDate {
	return &CurrentDate{now: time.Now}
}

func (c *CurrentDate) Name() string        { return "current_date" }
func (c *CurrentDate) Description() string { return "Get today's date" }
func (c *CurrentDate) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {}
	}`)
}

func (c *CurrentDate) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	now := c.now()
	return fmt.Sprintf("%s (%s)", now.Format("2006-01-02"), now.Weekday()), nil
}
