// internal/types/ids_test.go
package types

import "testing"

func TestNewSessionIDUnique(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()
	if a == b {
		t.Error("expected unique session IDs")
	}
	if a == "" {
		t.Error("expected non-empty session ID")
	}
}

func TestNewSessionKey(t *testing.T) {
	key := NewSessionKey("telegram", "42", "1001")
	if key != "telegram:42:1001" {
		t.Errorf("expected 'telegram:42:1001', got %q", key)
	}
}
