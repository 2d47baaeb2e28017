package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/caremesh/core"
	"github.com/hupe1980/caremesh/dispatch"
	"github.com/hupe1980/caremesh/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubRunner returns a canned reply or error for every turn.
type stubRunner struct {
	reply string
	err   error
}

func (s *stubRunner) Run(_ context.Context, _, _ string, _ bool) (string, error) {
	return s.reply, s.err
}

func (s *stubRunner) RunStream(_ context.Context, _, _ string, _ bool) (<-chan dispatch.Chunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(chan dispatch.Chunk, 8)
	go func() {
		defer close(out)
		inSpace := false
		start := 0
		for i := 0; i <= len(s.reply); i++ {
			if i == len(s.reply) || (s.reply[i] == ' ') != inSpace {
				if i > start {
					out <- dispatch.Chunk{Token: s.reply[start:i]}
				}
				start = i
				inSpace = !inSpace
			}
		}
	}()
	return out, nil
}

func newTestServer(runner ChatRunner, contextualURL string) (*Server, *session.InMemoryStore) {
	store := session.NewInMemoryStore()
	srv := New(runner, store, func(o *Options) {
		if contextualURL != "" {
			o.ContextualAPIURL = contextualURL
		}
	})
	return srv, store
}

func TestHealthcheck(t *testing.T) {
	srv, _ := newTestServer(&stubRunner{}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}

// -------------------- Session Start Tests --------------------

func TestSessionStart(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/patient/p-123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "p-123", "name": "John Carter", "dob": "1980-02-01"}`))
	}))
	defer upstream.Close()

	srv, store := newTestServer(&stubRunner{}, upstream.URL+"/patient")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/session/start", strings.NewReader(`{"patient_id": "p-123"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp SessionStartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "p-123", resp.PatientID)
	assert.Equal(t, "John Carter", resp.PatientName)
	require.NotEmpty(t, resp.SessionID)

	// The session is seeded with exactly one context message.
	msgs := store.Get(resp.SessionID)
	require.Len(t, msgs, 1)
	assert.Equal(t, core.RoleSystem, msgs[0].Role)
	data := msgs[0].Parts[0].(core.DataPart)
	assert.Contains(t, data.Data, "patient_context")
}

func TestSessionStart_UnknownPatient(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	srv, _ := newTestServer(&stubRunner{}, upstream.URL+"/patient")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/session/start", strings.NewReader(`{"patient_id": "nope"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid patient_id")
}

func TestSessionStart_UpstreamDown(t *testing.T) {
	srv, _ := newTestServer(&stubRunner{}, "http://127.0.0.1:1/patient")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/session/start", strings.NewReader(`{"patient_id": "p-123"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSessionStart_MissingPatientID(t *testing.T) {
	srv, _ := newTestServer(&stubRunner{}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/session/start", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// -------------------- Chat Tests --------------------

func TestChat(t *testing.T) {
	srv, _ := newTestServer(&stubRunner{reply: "Hello!"}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message": "hi", "session_id": "s1"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reply": "Hello!"}`, w.Body.String())
}

func TestChat_DispatchError(t *testing.T) {
	srv, _ := newTestServer(&stubRunner{err: errors.New("model unavailable")}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "model unavailable")
}

func TestChat_MissingMessage(t *testing.T) {
	srv, _ := newTestServer(&stubRunner{}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// -------------------- Stream Tests --------------------

// closeNotifyRecorder adds the http.CloseNotifier method gin's c.Stream
// requires, which httptest.ResponseRecorder does not implement.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newCloseNotifyRecorder() *closeNotifyRecorder {
	return &closeNotifyRecorder{httptest.NewRecorder(), make(chan bool, 1)}
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func TestChatStream(t *testing.T) {
	srv, _ := newTestServer(&stubRunner{reply: "hello world"}, "")

	w := newCloseNotifyRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(`{"message": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `data: {"content":"hello"}`)
	assert.Contains(t, body, `data: {"content":" "}`)
	assert.Contains(t, body, `data: {"content":"world"}`)
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}

func TestChatStream_Error(t *testing.T) {
	srv, _ := newTestServer(&stubRunner{err: errors.New("boom")}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(`{"message": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	body := w.Body.String()
	assert.Contains(t, body, `data: {"error":"boom"}`)
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}
