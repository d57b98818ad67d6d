package state

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *ReminderStore {
	t.Helper()
	return NewReminderStore(filepath.Join(t.TempDir(), "reminders.json"))
}

func TestListEmptyStore(t *testing.T) {
	store := newTestStore(t)
	reminders, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(reminders) != 0 {
		t.Errorf("expected empty list, got %d", len(reminders))
	}
}

func TestAddGetRemove(t *testing.T) {
	store := newTestStore(t)

	r := &Reminder{
		Name:       "morning-digest",
		Prompt:     "What do I have scheduled today?",
		Schedule:   "0 8 * * *",
		SessionKey: "telegram:1:100",
		Enabled:    true,
	}
	if err := store.Add(r); err != nil {
		t.Fatal(err)
	}

	if err := store.Add(&Reminder{Name: "morning-digest"}); err == nil {
		t.Error("expected duplicate name error")
	}

	got, err := store.Get("morning-digest")
	if err != nil {
		t.Fatal(err)
	}
	if got.Prompt != r.Prompt || got.Schedule != r.Schedule || got.SessionKey != r.SessionKey {
		t.Errorf("unexpected reminder %+v", got)
	}

	if err := store.Remove("morning-digest"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get("morning-digest"); err == nil {
		t.Error("expected not found after remove")
	}
	if err := store.Remove("morning-digest"); err == nil {
		t.Error("expected error removing missing reminder")
	}
}

func TestSetEnabled(t *testing.T) {
	store := newTestStore(t)
	if err := store.Add(&Reminder{Name: "r", Schedule: "0 8 * * *", Enabled: true}); err != nil {
		t.Fatal(err)
	}

	if err := store.SetEnabled("r", false); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get("r")
	if err != nil {
		t.Fatal(err)
	}
	if got.Enabled {
		t.Error("expected disabled reminder")
	}

	if err := store.SetEnabled("missing", true); err == nil {
		t.Error("expected error for unknown reminder")
	}
}

func TestSaveIsAtomic(t *testing.T) {
	store := newTestStore(t)
	if err := store.Add(&Reminder{Name: "r"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(store.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not survive a save")
	}
}

func TestPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.json")
	first := NewReminderStore(path)
	if err := first.Add(&Reminder{Name: "r", Prompt: "p", Enabled: true}); err != nil {
		t.Fatal(err)
	}

	second := NewReminderStore(path)
	got, err := second.Get("r")
	if err != nil {
		t.Fatal(err)
	}
	if got.Prompt != "p" {
		t.Errorf("unexpected reminder %+v", got)
	}
}
