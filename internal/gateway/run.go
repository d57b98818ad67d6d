package gateway

import (
	"context"
	"time"

	"github.com/user/agendabot/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run tracks a single execution of an inbound message against a session.
// The message carries the caller's credential for the duration of the run;
// runs are never persisted.
type Run struct {
	ID         types.RunID
	SessionID  types.SessionID
	Message    *types.InboundMessage
	Status     RunStatus
	CreatedAt  time.Time
	Ctx        context.Context
	OnComplete func(response string)
	OnError    func(err error)
}

// NewRun creates a Run in the Queued state for the given session and message.
func NewRun(sessionID types.SessionID, msg *types.InboundMessage) *Run {
	return &Run{
		ID:        types.NewRunID(),
		SessionID: sessionID,
		Message:   msg,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}
