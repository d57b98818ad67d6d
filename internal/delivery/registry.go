package delivery

import (
	"fmt"
	"strings"
	"sync"
)

// Handler delivers a message to a session identified by sessionKey.
type Handler func(sessionKey, message string) error

// Registry routes messages to the appropriate delivery handler based on
// session key prefix (e.g. "telegram:"). Reminder replies flow through here
// so the scheduler never needs to know which channel a session lives on.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for session keys starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver finds the handler with the longest prefix matching the session key
// and calls it. Returns an error if no handler matches.
func (r *Registry) Deliver(sessionKey, message string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best string
	found := false
	for prefix := range r.handlers {
		if strings.HasPrefix(sessionKey, prefix) && (!found || len(prefix) > len(best)) {
			best = prefix
			found = true
		}
	}
	if !found {
		return fmt.Errorf("no delivery handler for session key: %s", sessionKey)
	}
	return r.handlers[best](sessionKey, message)
}
