package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/user/agendabot/internal/auth"
	"github.com/user/agendabot/internal/gateway"
	"github.com/user/agendabot/internal/session"
	"github.com/user/agendabot/internal/types"
)

const testSecret = "httpapi-test-secret"

type fakeUsers struct{ known map[types.UserID]bool }

func (f *fakeUsers) UserExists(ctx context.Context, id types.UserID) (bool, error) {
	return f.known[id], nil
}

func newTestServer(t *testing.T, processor func(*gateway.Run) error) (*Server, *session.Store) {
	t.Helper()
	sessions := session.NewStore()
	gw := gateway.New(sessions, gateway.Options{MaxConcurrent: 2})
	gw.Start(context.Background())
	t.Cleanup(gw.Stop)
	gw.Queue.SetProcessor(processor)

	verifier := auth.New(testSecret, &fakeUsers{known: map[types.UserID]bool{1: true}})
	return NewServer(verifier, gw, sessions), sessions
}

func token(t *testing.T, user types.UserID) string {
	t.Helper()
	tok, err := auth.Sign(testSecret, user, nil)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func postChat(t *testing.T, srv *Server, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestChatRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, func(run *gateway.Run) error {
		run.OnComplete("echo: " + run.Message.Text)
		return nil
	})

	rec := postChat(t, srv, `{"session_id":"abc","message":"hello"}`, token(t, 1))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message != "echo: hello" {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if resp.SessionID != "abc" {
		t.Errorf("unexpected session id %q", resp.SessionID)
	}
}

func TestChatGeneratesSessionID(t *testing.T) {
	srv, _ := newTestServer(t, func(run *gateway.Run) error {
		run.OnComplete("ok")
		return nil
	})

	rec := postChat(t, srv, `{"message":"hello"}`, token(t, 1))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var resp chatResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.SessionID == "" {
		t.Error("expected generated session id")
	}
}

func TestChatRejectsWithoutToken(t *testing.T) {
	called := false
	srv, sessions := newTestServer(t, func(run *gateway.Run) error {
		called = true
		return nil
	})

	rec := postChat(t, srv, `{"message":"hello"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if called {
		t.Error("unauthenticated request must not reach the processor")
	}
	infos, _ := sessions.List(context.Background())
	if len(infos) != 0 {
		t.Error("unauthenticated request must not create a session")
	}
}

func TestChatRejectsBadToken(t *testing.T) {
	srv, _ := newTestServer(t, func(run *gateway.Run) error { return nil })

	rec := postChat(t, srv, `{"message":"hello"}`, "garbage")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	// Valid signature but unknown user.
	rec = postChat(t, srv, `{"message":"hello"}`, token(t, 99))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", rec.Code)
	}
}

func TestChatRequiresMessage(t *testing.T) {
	srv, _ := newTestServer(t, func(run *gateway.Run) error { return nil })

	rec := postChat(t, srv, `{"session_id":"abc"}`, token(t, 1))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatSurfacesTurnError(t *testing.T) {
	srv, _ := newTestServer(t, func(run *gateway.Run) error {
		return errors.New("max tool rounds (5) exceeded")
	})

	rec := postChat(t, srv, `{"message":"loop"}`, token(t, 1))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "max tool rounds") {
		t.Errorf("expected error text in body, got %s", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, func(run *gateway.Run) error { return nil })
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestAPISessions(t *testing.T) {
	srv, sessions := newTestServer(t, func(run *gateway.Run) error {
		run.OnComplete("ok")
		return nil
	})

	rec := postChat(t, srv, `{"session_id":"abc","message":"hello"}`, token(t, 1))
	if rec.Code != http.StatusOK {
		t.Fatal(rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	apiRec := httptest.NewRecorder()
	srv.ServeHTTP(apiRec, req)
	if apiRec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", apiRec.Code)
	}
	var infos []*types.SessionInfo
	if err := json.Unmarshal(apiRec.Body.Bytes(), &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 session, got %d", len(infos))
	}

	stored, _ := sessions.List(context.Background())
	if infos[0].SessionID != stored[0].SessionID {
		t.Error("debug API should reflect the session store")
	}
}
