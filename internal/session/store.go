// internal/session/store.go
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/user/agendabot/internal/types"
)

// session holds one conversation. Turns are append-only; the gateway's
// per-session lanes guarantee that at most one turn mutates a session at a
// time, so the store lock only covers individual reads and writes.
type session struct {
	id        types.SessionID
	key       types.SessionKey
	status    types.SessionStatus
	turns     []types.Turn
	createdAt time.Time
	updatedAt time.Time
}

// Store keeps all sessions in process memory. State is reset on restart by
// design; sessions are never evicted, which is a known growth limitation
// for long-lived processes.
type Store struct {
	mu    sync.RWMutex
	byKey map[types.SessionKey]*session
	byID  map[types.SessionID]*session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		byKey: make(map[types.SessionKey]*session),
		byID:  make(map[types.SessionID]*session),
	}
}

// ResolveOrCreate returns the session id for the key, creating an empty
// ready session on first reference.
func (s *Store) ResolveOrCreate(_ context.Context, key types.SessionKey) (types.SessionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byKey[key]; ok {
		return existing.id, nil
	}

	now := time.Now()
	sess := &session{
		id:        types.NewSessionID(),
		key:       key,
		status:    types.StatusReady,
		createdAt: now,
		updatedAt: now,
	}
	s.byKey[key] = sess
	s.byID[sess.id] = sess
	return sess.id, nil
}

// AppendTurn appends one turn to the session's transcript.
func (s *Store) AppendTurn(_ context.Context, id types.SessionID, turn types.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	if turn.At.IsZero() {
		turn.At = time.Now()
	}
	sess.turns = append(sess.turns, turn)
	sess.updatedAt = time.Now()
	return nil
}

// History returns a copy of the session's transcript in order.
func (s *Store) History(_ context.Context, id types.SessionID) ([]types.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	out := make([]types.Turn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

// SetStatus records the session's turn state.
func (s *Store) SetStatus(_ context.Context, id types.SessionID, status types.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	sess.status = status
	sess.updatedAt = time.Now()
	return nil
}

// Get returns a read-only view of one session.
func (s *Store) Get(_ context.Context, id types.SessionID) (*types.SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return infoOf(sess), nil
}

// List returns read-only views of all sessions.
func (s *Store) List(_ context.Context) ([]*types.SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.SessionInfo, 0, len(s.byID))
	for _, sess := range s.byID {
		out = append(out, infoOf(sess))
	}
	return out, nil
}

func infoOf(sess *session) *types.SessionInfo {
	return &types.SessionInfo{
		SessionID:  sess.id,
		SessionKey: sess.key,
		Status:     sess.status,
		CreatedAt:  sess.createdAt,
		UpdatedAt:  sess.updatedAt,
		TurnCount:  len(sess.turns),
	}
}

var _ types.SessionStore = (*Store)(nil)
