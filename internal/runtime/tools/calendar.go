package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/agendabot/internal/auth"
	"github.com/user/agendabot/internal/calendar"
	"github.com/user/agendabot/internal/types"
)

// Deps is the shared wiring for all calendar tools. Every tool resolves the
// injected credential through the verifier on every call; no tool trusts a
// user id from anywhere else.
type Deps struct {
	Verifier *auth.Verifier
	Store    types.CalendarStore
}

// callParams is the superset of arguments the calendar tools accept. Token is
// injected by the host, never declared in a tool schema.
type callParams struct {
	Token       string `json:"token"`
	Date        string `json:"date"`
	Title       string `json:"title"`
	Time        string `json:"time"`
	Description string `json:"description"`
	ScheduleID  *int64 `json:"schedule_id"`
}

func parseParams(args json.RawMessage) (*callParams, error) {
	var p callParams
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	return &p, nil
}

// resolveUser turns the injected token into a user id. Rejections surface as
// tool errors so the agent can tell the user their session is not authorized.
func (d Deps) resolveUser(ctx context.Context, p *callParams) (types.UserID, error) {
	user, err := d.Verifier.Verify(ctx, p.Token)
	if err != nil {
		if errors.Is(err, auth.ErrRejected) {
			return 0, fmt.Errorf("not authorized")
		}
		slog.Error("credential check failed", "error", err)
		return 0, errStorage
	}
	return user, nil
}

// errStorage is the only storage failure text the model ever sees. Details go
// to the log, not into the conversation.
var errStorage = errors.New("the calendar storage is unavailable right now, try again later")

func storageFailure(op string, err error) error {
	slog.Error("calendar operation failed", "op", op, "error", err)
	return errStorage
}

func requireDate(date string) error {
	if date == "" {
		return fmt.Errorf("insufficient parameters: date is required")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid date %q: must be YYYY-MM-DD", date)
	}
	return nil
}

func optionalTime(t string) (*string, error) {
	if t == "" {
		return nil, nil
	}
	if _, err := time.Parse("15:04:05", t); err != nil {
		return nil, fmt.Errorf("invalid time %q: must be 24-hour hh:mm:ss", t)
	}
	return &t, nil
}

func renderSchedules(schedules []types.Schedule) (string, error) {
	if len(schedules) == 0 {
		return "no schedules found", nil
	}
	out, err := json.Marshal(schedules)
	if err != nil {
		return "", fmt.Errorf("marshal schedules: %w", err)
	}
	return string(out), nil
}

// ListSchedules returns every schedule belonging to the caller.
type ListSchedules struct{ Deps }

func NewListSchedules(deps Deps) *ListSchedules { return &ListSchedules{deps} }

func (t *ListSchedules) Name() string { return "list_schedules" }
func (t *ListSchedules) Description() string {
	return "List all of the user's schedules"
}
func (t *ListSchedules) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {}
	}`)
}

func (t *ListSchedules) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	p, err := parseParams(args)
	if err != nil {
		return "", err
	}
	user, err := t.resolveUser(ctx, p)
	if err != nil {
		return "", err
	}
	schedules, err := t.Store.ListAll(ctx, user)
	if err != nil {
		return "", storageFailure("list_schedules", err)
	}
	return renderSchedules(schedules)
}

// ListSchedulesByDate returns the caller's schedules on one date.
type ListSchedulesByDate struct{ Deps }

func NewListSchedulesByDate(deps Deps) *ListSchedulesByDate { return &ListSchedulesByDate{deps} }

func (t *ListSchedulesByDate) Name() string { return "list_schedules_by_date" }
func (t *ListSchedulesByDate) Description() string {
	return "List the user's schedules on a specific date"
}
func (t *ListSchedulesByDate) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"date": {"type": "string", "description": "Date in YYYY-MM-DD format"}
		},
		"required": ["date"]
	}`)
}

func (t *ListSchedulesByDate) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	p, err := parseParams(args)
	if err != nil {
		return "", err
	}
	if err := requireDate(p.Date); err != nil {
		return "", err
	}
	user, err := t.resolveUser(ctx, p)
	if err != nil {
		return "", err
	}
	schedules, err := t.Store.ListByDate(ctx, user, p.Date)
	if err != nil {
		return "", storageFailure("list_schedules_by_date", err)
	}
	return renderSchedules(schedules)
}

// AddSchedule creates one schedule for the caller.
type AddSchedule struct{ Deps }

func NewAddSchedule(deps Deps) *AddSchedule { return &AddSchedule{deps} }

func (t *AddSchedule) Name() string { return "add_schedule" }
func (t *AddSchedule) Description() string {
	return "Add a schedule to the user's calendar"
}
func (t *AddSchedule) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"date": {"type": "string", "description": "Date in YYYY-MM-DD format"},
			"title": {"type": "string", "description": "Short title of the schedule"},
			"time": {"type": "string", "description": "Optional start time, 24-hour hh:mm:ss"},
			"description": {"type": "string", "description": "Optional longer description"}
		},
		"required": ["date", "title"]
	}`)
}

func (t *AddSchedule) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	p, err := parseParams(args)
	if err != nil {
		return "", err
	}
	if err := requireDate(p.Date); err != nil {
		return "", err
	}
	if p.Title == "" {
		return "", fmt.Errorf("insufficient parameters: title is required")
	}
	timeOfDay, err := optionalTime(p.Time)
	if err != nil {
		return "", err
	}
	var description *string
	if p.Description != "" {
		description = &p.Description
	}

	user, err := t.resolveUser(ctx, p)
	if err != nil {
		return "", err
	}
	if err := t.Store.Create(ctx, user, p.Date, p.Title, timeOfDay, description); err != nil {
		return "", storageFailure("add_schedule", err)
	}
	return fmt.Sprintf("added %q on %s", p.Title, p.Date), nil
}

// RemoveSchedulesByDate deletes all of the caller's schedules on one date.
type RemoveSchedulesByDate struct{ Deps }

func NewRemoveSchedulesByDate(deps Deps) *RemoveSchedulesByDate { return &RemoveSchedulesByDate{deps} }

func (t *RemoveSchedulesByDate) Name() string { return "remove_schedules_by_date" }
func (t *RemoveSchedulesByDate) Description() string {
	return "Remove all of the user's schedules on a specific date"
}
func (t *RemoveSchedulesByDate) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"date": {"type": "string", "description": "Date in YYYY-MM-DD format"}
		},
		"required": ["date"]
	}`)
}

func (t *RemoveSchedulesByDate) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	p, err := parseParams(args)
	if err != nil {
		return "", err
	}
	if err := requireDate(p.Date); err != nil {
		return "", err
	}
	user, err := t.resolveUser(ctx, p)
	if err != nil {
		return "", err
	}
	if err := t.Store.DeleteByDate(ctx, user, p.Date); err != nil {
		return "", storageFailure("remove_schedules_by_date", err)
	}
	return fmt.Sprintf("removed all schedules on %s", p.Date), nil
}

// RemoveAllSchedules deletes every schedule belonging to the caller.
type RemoveAllSchedules struct{ Deps }

func NewRemoveAllSchedules(deps Deps) *RemoveAllSchedules { return &RemoveAllSchedules{deps} }

func (t *RemoveAllSchedules) Name() string { return "remove_all_schedules" }
func (t *RemoveAllSchedules) Description() string {
	return "Remove every schedule on the user's calendar"
}
func (t *RemoveAllSchedules) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {}
	}`)
}

func (t *RemoveAllSchedules) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	p, err := parseParams(args)
	if err != nil {
		return "", err
	}
	user, err := t.resolveUser(ctx, p)
	if err != nil {
		return "", err
	}
	if err := t.Store.DeleteByUser(ctx, user); err != nil {
		return "", storageFailure("remove_all_schedules", err)
	}
	return "removed all schedules", nil
}

// RemoveScheduleByID deletes one schedule by id, only if it belongs to the
// caller. A miss is a normal outcome, not an error: the agent relays it.
type RemoveScheduleByID struct{ Deps }

func NewRemoveScheduleByID(deps Deps) *RemoveScheduleByID { return &RemoveScheduleByID{deps} }

func (t *RemoveScheduleByID) Name() string { return "remove_schedule_by_id" }
func (t *RemoveScheduleByID) Description() string {
	return "Remove a single schedule by its id"
}
func (t *RemoveScheduleByID) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"schedule_id": {"type": "integer", "description": "The schedule_id to remove"}
		},
		"required": ["schedule_id"]
	}`)
}

func (t *RemoveScheduleByID) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	p, err := parseParams(args)
	if err != nil {
		return "", err
	}
	if p.ScheduleID == nil {
		return "", fmt.Errorf("insufficient parameters: schedule_id is required")
	}
	user, err := t.resolveUser(ctx, p)
	if err != nil {
		return "", err
	}
	err = t.Store.DeleteByID(ctx, *p.ScheduleID, user)
	if errors.Is(err, calendar.ErrNotOwned) {
		return fmt.Sprintf("no schedule with id %d exists for this user", *p.ScheduleID), nil
	}
	if err != nil {
		return "", storageFailure("remove_schedule_by_id", err)
	}
	return fmt.Sprintf("removed schedule %d", *p.ScheduleID), nil
}
