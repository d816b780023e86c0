package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waitroom-triage/internal/core"
	"waitroom-triage/internal/db"
	"waitroom-triage/pkg"
)

func newTestServer(t *testing.T, store db.Store, messageCap int) *Server {
	t.Helper()
	rules, err := core.LoadRules("")
	require.NoError(t, err)
	return NewServer(store, core.NewOrchestrator(store, rules, core.WithMessageCap(messageCap)), nil, 0)
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func chat(t *testing.T, srv http.Handler, id, msg string) (int, chatReply) {
	t.Helper()
	body, err := json.Marshal(pkg.ChatRequest{ConversationID: id, Message: msg})
	require.NoError(t, err)
	rec := do(t, srv, http.MethodPost, "/api/chat", string(body))
	var out chatReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, db.NewMemoryStore(), 0)
	rec := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestServer_ChatFlowAndClinicianViews(t *testing.T) {
	store := db.NewMemoryStore()
	srv := newTestServer(t, store, 0)

	code, reply := chat(t, srv, "c1", "hello")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, pkg.StateGreeting, reply.State)
	assert.Equal(t, pkg.Disclaimer, reply.Disclaimer)

	code, reply = chat(t, srv, "c1", "I have chest pain")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, pkg.StateClosed, reply.State)
	assert.True(t, reply.RequiresHandoff)
	require.NotNil(t, reply.HandoffTicket)

	rec := do(t, srv, http.MethodGet, "/api/sessions/c1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sess pkg.TriageSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, []string{"chest_pain"}, sess.RedFlagsDetected)
	assert.NotEmpty(t, sess.AuditLog)

	rec = do(t, srv, http.MethodGet, "/api/sessions/c1/transcript", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []pkg.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	assert.Len(t, msgs, 4)

	rec = do(t, srv, http.MethodGet, "/api/sessions/c1/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Red flags: chest_pain")

	rec = do(t, srv, http.MethodGet, "/api/sessions/c1/assessment", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"conversation_id":"c1"`)

	rec = do(t, srv, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"conversation_id":"c1"`)

	rec = do(t, srv, http.MethodGet, "/api/tickets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tickets []pkg.HandoffTicket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tickets))
	require.Len(t, tickets, 1)
	assert.Equal(t, reply.HandoffTicket.TicketID, tickets[0].TicketID)

	rec = do(t, srv, http.MethodPost, "/api/tickets/"+tickets[0].TicketID+"/resolve", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"remaining":0`)

	rec = do(t, srv, http.MethodPost, "/api/tickets/"+tickets[0].TicketID+"/resolve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ChatValidation(t *testing.T) {
	srv := newTestServer(t, db.NewMemoryStore(), 0)

	rec := do(t, srv, http.MethodPost, "/api/chat", `{"conversation_id":"c1","message":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/chat", `{"message":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/chat", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/chat", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_MessageCap(t *testing.T) {
	store := db.NewMemoryStore()
	srv := newTestServer(t, store, 2)

	chat(t, srv, "c1", "hello")
	chat(t, srv, "c1", "what services do you offer")
	code, reply := chat(t, srv, "c1", "I have a cough")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, core.CapMessage, reply.Response)
	assert.Equal(t, pkg.StateGreeting, reply.State, "no turn was run")

	n, err := store.CountMessages(context.Background(), "c1", pkg.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestServer_UnknownSession(t *testing.T) {
	srv := newTestServer(t, db.NewMemoryStore(), 0)
	for _, path := range []string{"/api/sessions/nope", "/api/sessions/nope/summary", "/api/sessions/nope/assessment"} {
		rec := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	rec := do(t, srv, http.MethodGet, "/api/sessions/nope/other", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RedFlagPastMessageCap(t *testing.T) {
	store := db.NewMemoryStore()
	srv := newTestServer(t, store, 1)

	chat(t, srv, "c1", "hello")
	code, reply := chat(t, srv, "c1", "I have chest pain and I can't breathe")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, pkg.StateClosed, reply.State)
	assert.Equal(t, pkg.UrgencyEmergency, reply.UrgencyLevel)
	assert.True(t, reply.RequiresHandoff)
	require.NotNil(t, reply.HandoffTicket)

	code, reply = chat(t, srv, "c1", "thanks")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, core.CapMessage, reply.Response)
	assert.Equal(t, pkg.StateClosed, reply.State)
}

type failingStore struct {
	*db.MemoryStore
}

func (failingStore) SaveSession(context.Context, *pkg.TriageSession) error {
	return errors.New("database unavailable")
}

func TestServer_StoreFailureReturnsFailsafe(t *testing.T) {
	srv := newTestServer(t, failingStore{db.NewMemoryStore()}, 0)
	code, reply := chat(t, srv, "c1", "hello")

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, core.FailsafeReply, reply.Response)
	assert.True(t, reply.RequiresHandoff)
	require.NotNil(t, reply.HandoffReason)
	assert.Equal(t, core.ReasonFailsafe, *reply.HandoffReason)
	assert.Equal(t, pkg.Disclaimer, reply.Disclaimer)
}
