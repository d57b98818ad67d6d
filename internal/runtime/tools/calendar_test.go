package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/user/agendabot/internal/auth"
	"github.com/user/agendabot/internal/calendar"
	"github.com/user/agendabot/internal/types"
)

const testSecret = "tool-test-secret"

type fakeStore struct {
	schedules []types.Schedule
	nextID    int64
	failWith  error
}

func (f *fakeStore) ListAll(ctx context.Context, user types.UserID) ([]types.Schedule, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []types.Schedule
	for _, s := range f.schedules {
		if s.UserID == user {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByDate(ctx context.Context, user types.UserID, date string) ([]types.Schedule, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []types.Schedule
	for _, s := range f.schedules {
		if s.UserID == user && s.Date == date {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) Create(ctx context.Context, user types.UserID, date, title string, timeOfDay, description *string) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.nextID++
	s := types.Schedule{ID: f.nextID, UserID: user, Date: date, Title: title}
	if timeOfDay != nil {
		s.Time = *timeOfDay
	}
	if description != nil {
		s.Description = *description
	}
	f.schedules = append(f.schedules, s)
	return nil
}

func (f *fakeStore) DeleteByDate(ctx context.Context, user types.UserID, date string) error {
	if f.failWith != nil {
		return f.failWith
	}
	kept := f.schedules[:0]
	for _, s := range f.schedules {
		if !(s.UserID == user && s.Date == date) {
			kept = append(kept, s)
		}
	}
	f.schedules = kept
	return nil
}

func (f *fakeStore) DeleteByUser(ctx context.Context, user types.UserID) error {
	if f.failWith != nil {
		return f.failWith
	}
	kept := f.schedules[:0]
	for _, s := range f.schedules {
		if s.UserID != user {
			kept = append(kept, s)
		}
	}
	f.schedules = kept
	return nil
}

func (f *fakeStore) DeleteByID(ctx context.Context, id int64, user types.UserID) error {
	if f.failWith != nil {
		return f.failWith
	}
	for i, s := range f.schedules {
		if s.ID == id && s.UserID == user {
			f.schedules = append(f.schedules[:i], f.schedules[i+1:]...)
			return nil
		}
	}
	return calendar.ErrNotOwned
}

type fakeUsers struct{ known map[types.UserID]bool }

func (f *fakeUsers) UserExists(ctx context.Context, id types.UserID) (bool, error) {
	return f.known[id], nil
}

func testDeps(t *testing.T, store *fakeStore) Deps {
	t.Helper()
	users := &fakeUsers{known: map[types.UserID]bool{1: true, 2: true}}
	return Deps{Verifier: auth.New(testSecret, users), Store: store}
}

func argsWithToken(t *testing.T, user types.UserID, extra map[string]any) json.RawMessage {
	t.Helper()
	token, err := auth.Sign(testSecret, user, nil)
	if err != nil {
		t.Fatal(err)
	}
	if extra == nil {
		extra = map[string]any{}
	}
	extra["token"] = token
	raw, err := json.Marshal(extra)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestAddAndListSchedules(t *testing.T) {
	store := &fakeStore{}
	deps := testDeps(t, store)
	ctx := context.Background()

	add := NewAddSchedule(deps)
	out, err := add.Execute(ctx, argsWithToken(t, 1, map[string]any{
		"date": "2025-06-01", "title": "dentist", "time": "09:30:00",
	}))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "dentist") {
		t.Errorf("unexpected add result %q", out)
	}

	list := NewListSchedules(deps)
	out, err = list.Execute(ctx, argsWithToken(t, 1, nil))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []types.Schedule
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("list output not JSON: %q", out)
	}
	if len(got) != 1 || got[0].Title != "dentist" || got[0].Time != "09:30:00" {
		t.Errorf("unexpected schedules: %+v", got)
	}
}

func TestListSchedulesEmpty(t *testing.T) {
	deps := testDeps(t, &fakeStore{})
	out, err := NewListSchedules(deps).Execute(context.Background(), argsWithToken(t, 1, nil))
	if err != nil {
		t.Fatal(err)
	}
	if out != "no schedules found" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestListByDateFiltersOtherUsers(t *testing.T) {
	store := &fakeStore{schedules: []types.Schedule{
		{ID: 1, UserID: 1, Date: "2025-06-01", Title: "mine"},
		{ID: 2, UserID: 2, Date: "2025-06-01", Title: "theirs"},
	}}
	deps := testDeps(t, store)

	out, err := NewListSchedulesByDate(deps).Execute(context.Background(),
		argsWithToken(t, 1, map[string]any{"date": "2025-06-01"}))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "theirs") {
		t.Errorf("leaked another user's schedule: %q", out)
	}
	if !strings.Contains(out, "mine") {
		t.Errorf("missing own schedule: %q", out)
	}
}

func TestAddScheduleMissingParams(t *testing.T) {
	deps := testDeps(t, &fakeStore{})
	add := NewAddSchedule(deps)

	_, err := add.Execute(context.Background(), argsWithToken(t, 1, map[string]any{"title": "x"}))
	if err == nil || !strings.Contains(err.Error(), "date is required") {
		t.Errorf("expected missing date error, got %v", err)
	}

	_, err = add.Execute(context.Background(), argsWithToken(t, 1, map[string]any{"date": "2025-06-01"}))
	if err == nil || !strings.Contains(err.Error(), "title is required") {
		t.Errorf("expected missing title error, got %v", err)
	}
}

func TestAddScheduleRejectsBadFormats(t *testing.T) {
	deps := testDeps(t, &fakeStore{})
	add := NewAddSchedule(deps)

	_, err := add.Execute(context.Background(), argsWithToken(t, 1, map[string]any{
		"date": "June 1st", "title": "x",
	}))
	if err == nil || !strings.Contains(err.Error(), "YYYY-MM-DD") {
		t.Errorf("expected date format error, got %v", err)
	}

	_, err = add.Execute(context.Background(), argsWithToken(t, 1, map[string]any{
		"date": "2025-06-01", "title": "x", "time": "9am",
	}))
	if err == nil || !strings.Contains(err.Error(), "hh:mm:ss") {
		t.Errorf("expected time format error, got %v", err)
	}
}

func TestRemoveScheduleByIDOwnership(t *testing.T) {
	store := &fakeStore{schedules: []types.Schedule{
		{ID: 7, UserID: 2, Date: "2025-06-01", Title: "theirs"},
	}}
	deps := testDeps(t, store)

	// User 1 tries to delete user 2's schedule: normal not-found outcome.
	out, err := NewRemoveScheduleByID(deps).Execute(context.Background(),
		argsWithToken(t, 1, map[string]any{"schedule_id": 7}))
	if err != nil {
		t.Fatalf("expected normal outcome, got error %v", err)
	}
	if !strings.Contains(out, "no schedule with id 7") {
		t.Errorf("unexpected output %q", out)
	}
	if len(store.schedules) != 1 {
		t.Error("schedule should survive a non-owner delete")
	}

	out, err = NewRemoveScheduleByID(deps).Execute(context.Background(),
		argsWithToken(t, 2, map[string]any{"schedule_id": 7}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "removed schedule 7") {
		t.Errorf("unexpected output %q", out)
	}
	if len(store.schedules) != 0 {
		t.Error("owner delete should remove the row")
	}
}

func TestRemoveAllAndByDate(t *testing.T) {
	store := &fakeStore{schedules: []types.Schedule{
		{ID: 1, UserID: 1, Date: "2025-06-01", Title: "a"},
		{ID: 2, UserID: 1, Date: "2025-06-02", Title: "b"},
		{ID: 3, UserID: 2, Date: "2025-06-01", Title: "c"},
	}}
	deps := testDeps(t, store)
	ctx := context.Background()

	if _, err := NewRemoveSchedulesByDate(deps).Execute(ctx,
		argsWithToken(t, 1, map[string]any{"date": "2025-06-01"})); err != nil {
		t.Fatal(err)
	}
	if len(store.schedules) != 2 {
		t.Fatalf("expected 2 rows left, got %d", len(store.schedules))
	}

	if _, err := NewRemoveAllSchedules(deps).Execute(ctx, argsWithToken(t, 1, nil)); err != nil {
		t.Fatal(err)
	}
	if len(store.schedules) != 1 || store.schedules[0].UserID != 2 {
		t.Errorf("remove_all must only touch the caller's rows: %+v", store.schedules)
	}
}

func TestBadTokenRejected(t *testing.T) {
	deps := testDeps(t, &fakeStore{})
	_, err := NewListSchedules(deps).Execute(context.Background(),
		json.RawMessage(`{"token": "not-a-jwt"}`))
	if err == nil || err.Error() != "not authorized" {
		t.Errorf("expected not authorized, got %v", err)
	}
}

func TestUnknownUserRejected(t *testing.T) {
	deps := testDeps(t, &fakeStore{})
	_, err := NewListSchedules(deps).Execute(context.Background(), argsWithToken(t, 99, nil))
	if err == nil || err.Error() != "not authorized" {
		t.Errorf("expected not authorized, got %v", err)
	}
}

func TestStorageErrorHidesDetails(t *testing.T) {
	boom := errors.New("pq: relation schedules does not exist at host db.internal:5432")
	deps := testDeps(t, &fakeStore{failWith: boom})

	_, err := NewListSchedules(deps).Execute(context.Background(), argsWithToken(t, 1, nil))
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "db.internal") {
		t.Errorf("storage details leaked: %v", err)
	}
}

func TestScheduleIDRoundTrip(t *testing.T) {
	store := &fakeStore{}
	deps := testDeps(t, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := NewAddSchedule(deps).Execute(ctx, argsWithToken(t, 1, map[string]any{
			"date": "2025-06-01", "title": fmt.Sprintf("item %d", i),
		})); err != nil {
			t.Fatal(err)
		}
	}

	out, err := NewListSchedules(deps).Execute(ctx, argsWithToken(t, 1, nil))
	if err != nil {
		t.Fatal(err)
	}
	var got []types.Schedule
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 schedules, got %d", len(got))
	}
	if got[1].ID == 0 {
		t.Error("listed schedules must carry their ids for later removal")
	}
}
