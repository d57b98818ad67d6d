package runtime

import (
	"context"
	"encoding/json"
	"testing"
)

func TestHostListTools(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&echoTool{name: "a"})
	registry.Register(&echoTool{name: "b"})
	host := NewHost(registry)

	specs := host.ListTools()
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	names := map[string]bool{}
	for _, s := range specs {
		names[s.Name] = true
		if len(s.Parameters) == 0 {
			t.Errorf("tool %s missing parameters schema", s.Name)
		}
	}
	if !names["a"] || !names["b"] {
		t.Errorf("unexpected names %v", names)
	}
}

func TestHostCallInvalidArgs(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&echoTool{name: "a"})
	host := NewHost(registry)

	result := host.Call(context.Background(), CallRequest{Name: "a", Args: json.RawMessage(`not json`)})
	if !result.IsError {
		t.Error("expected error result for malformed args")
	}
}

func TestHostCallUnknownTool(t *testing.T) {
	host := NewHost(NewRegistry())
	result := host.Call(context.Background(), CallRequest{Name: "missing"})
	if !result.IsError {
		t.Error("expected error result for unknown tool")
	}
}

func TestInjectCredentialEmptyArgs(t *testing.T) {
	out, err := injectCredential(nil, "tok")
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatal(err)
	}
	if m["token"] != "tok" {
		t.Errorf("expected token, got %v", m)
	}
}
