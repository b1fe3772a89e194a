package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receptly/chat-widget/internal/api"
	"github.com/receptly/chat-widget/internal/api/handler"
	"github.com/receptly/chat-widget/internal/config"
	"github.com/receptly/chat-widget/internal/domain"
	"github.com/receptly/chat-widget/internal/storage/memory"
	"github.com/receptly/chat-widget/internal/transport"
	"github.com/receptly/chat-widget/internal/widget"
)

// stubAgent is a canned conversational agent. reply is returned for the
// next posted message; posted records everything the engine sent.
type stubAgent struct {
	reply  *transport.ChatResponse
	posted []string
}

func (a *stubAgent) FetchHistory(ctx context.Context, businessID, sessionID string) (*transport.HistoryResponse, error) {
	return &transport.HistoryResponse{}, nil
}

func (a *stubAgent) FetchGreeting(ctx context.Context, businessID, sessionID string) (*transport.GreetingResponse, error) {
	return &transport.GreetingResponse{BusinessName: "Glow Salon", Message: "Welcome!"}, nil
}

func (a *stubAgent) PostMessage(ctx context.Context, businessID, sessionID, text string) (*transport.ChatResponse, error) {
	a.posted = append(a.posted, text)
	if a.reply != nil {
		return a.reply, nil
	}
	return &transport.ChatResponse{Message: "ok", InputType: "text"}, nil
}

func (a *stubAgent) DeleteSession(ctx context.Context, businessID, sessionID string) error {
	return nil
}

func newTestRouter(agent widget.Agent) http.Handler {
	cfg := &config.Config{}
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.CORS.AllowedOrigins = []string{"*"}
	return api.NewRouter(cfg, widget.NewRegistry(memory.NewStore(), agent))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   any             `json:"error"`
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return rec.Code, env
}

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()

	handler.HealthCheck(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.True(t, env.Success)
}

func TestWidgetInit_RequiresBusinessID(t *testing.T) {
	router := newTestRouter(&stubAgent{})

	code, env := doJSON(t, router, http.MethodPost, "/api/v1/widget/init", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
}

func TestWidgetState_UnknownClient(t *testing.T) {
	router := newTestRouter(&stubAgent{})

	code, _ := doJSON(t, router, http.MethodGet, "/api/v1/widget/nope/state", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestWidgetFlow(t *testing.T) {
	agent := &stubAgent{}
	router := newTestRouter(agent)

	// Init assigns a client id and opens with a greeting.
	code, env := doJSON(t, router, http.MethodPost, "/api/v1/widget/init",
		map[string]string{"business_id": "biz-1"})
	require.Equal(t, http.StatusCreated, code)

	var initData struct {
		ClientID string          `json:"client_id"`
		Snapshot widget.Snapshot `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &initData))
	require.NotEmpty(t, initData.ClientID)
	assert.True(t, initData.Snapshot.Open)
	assert.Equal(t, "Glow Salon", initData.Snapshot.BusinessName)
	require.Len(t, initData.Snapshot.Messages, 1)

	base := "/api/v1/widget/" + initData.ClientID

	// A free-text message whose reply activates the service picker.
	agent.reply = &transport.ChatResponse{
		Message:   "Pick a service:",
		InputType: "service_select",
		InputConfig: domain.InputConfig{
			Services: []domain.ServiceOption{{ID: "s1", Name: "Haircut", Price: 40}},
		},
	}
	code, env = doJSON(t, router, http.MethodPost, base+"/message",
		map[string]string{"text": "I'd like to book"})
	require.Equal(t, http.StatusOK, code)

	var snap widget.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, domain.InputServiceSelect, snap.InputType)
	require.NotNil(t, snap.ServiceSelect)

	// Typing is rejected while the picker is up.
	code, _ = doJSON(t, router, http.MethodPost, base+"/message",
		map[string]string{"text": "typed anyway"})
	assert.Equal(t, http.StatusBadRequest, code)

	// Toggle and submit encode the selection as one message.
	code, _ = doJSON(t, router, http.MethodPost, base+"/services/toggle",
		map[string]string{"service_id": "s1"})
	require.Equal(t, http.StatusOK, code)

	agent.reply = nil
	code, env = doJSON(t, router, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, domain.InputText, snap.InputType)

	require.Len(t, agent.posted, 2)
	assert.Equal(t, "I'd like to book: Haircut [service_id:s1]", agent.posted[1])

	// Reset clears the transcript back to a single fresh greeting.
	code, env = doJSON(t, router, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	require.Len(t, snap.Messages, 1)

	// The same client id resolves to the same widget.
	code, _ = doJSON(t, router, http.MethodGet, base+"/state", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestWidgetSubmit_EmptySelectionRejected(t *testing.T) {
	agent := &stubAgent{reply: &transport.ChatResponse{
		Message:     "Pick:",
		InputType:   "service_select",
		InputConfig: domain.InputConfig{Services: []domain.ServiceOption{{ID: "s1", Name: "Haircut"}}},
	}}
	router := newTestRouter(agent)

	code, env := doJSON(t, router, http.MethodPost, "/api/v1/widget/init",
		map[string]string{"business_id": "biz-1"})
	require.Equal(t, http.StatusCreated, code)

	var initData struct {
		ClientID string `json:"client_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &initData))
	base := "/api/v1/widget/" + initData.ClientID

	code, _ = doJSON(t, router, http.MethodPost, base+"/message",
		map[string]string{"text": "book me"})
	require.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, router, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
