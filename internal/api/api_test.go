package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gocup/internal/api/apierr"
	"github.com/mcoot/gocup/internal/api/response"
	"github.com/mcoot/gocup/internal/factory"
	"github.com/mcoot/gocup/internal/model"
)

// testServer wraps the router of a test app
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Close(ctx)
	})

	return &testServer{
		handler: app.Router(),
		app:     app,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	// Register
	registerBody := map[string]string{
		"username": "alice",
		"password": "secret123",
	}
	rr := ts.request(http.MethodPost, "/api/v1/players/register", registerBody, "")
	assert.Equal(t, http.StatusCreated, rr.Code)

	registerResp := decode[response.AuthResponse](t, rr)
	assert.Equal(t, "alice", registerResp.User.Username)
	assert.Equal(t, model.DefaultElo, registerResp.User.Elo)
	assert.NotEmpty(t, registerResp.Token)

	// Login
	loginBody := map[string]string{
		"username": "alice",
		"password": "secret123",
	}
	rr = ts.request(http.MethodPost, "/api/v1/players/login", loginBody, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	loginResp := decode[response.AuthResponse](t, rr)
	assert.Equal(t, registerResp.User.ID, loginResp.User.ID)
	assert.NotEmpty(t, loginResp.Token)
}

func TestRegisterErrors(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "alice")

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"malformed body", "not an object", http.StatusBadRequest, apierr.CodeInvalidRequest},
		{"missing password", map[string]string{"username": "bob"}, http.StatusBadRequest, apierr.CodeInvalidRequest},
		{"short password", map[string]string{"username": "bob", "password": "abc"}, http.StatusBadRequest, apierr.CodeValidationFailed},
		{"bad username", map[string]string{"username": "b!", "password": "secret123"}, http.StatusBadRequest, apierr.CodeValidationFailed},
		{"duplicate", map[string]string{"username": "alice", "password": "secret123"}, http.StatusConflict, apierr.CodeUsernameExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.request(http.MethodPost, "/api/v1/players/register", tt.body, "")
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.code, decode[apierr.ErrorResponse](t, rr).Error.Code)
		})
	}
}

func TestLoginWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "alice")

	body := map[string]string{"username": "alice", "password": "wrong-password"}
	rr := ts.request(http.MethodPost, "/api/v1/players/login", body, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeInvalidCredentials, decode[apierr.ErrorResponse](t, rr).Error.Code)
}

func TestGetMe(t *testing.T) {
	ts := newTestServer(t)
	token := register(t, ts, "alice")

	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, token)
	assert.Equal(t, http.StatusOK, rr.Code)

	user := decode[response.User](t, rr)
	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.IsOnline)
}

func TestGetMeWithCookie(t *testing.T) {
	ts := newTestServer(t)
	token := register(t, ts, "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/players/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/players/me", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestQueueStatus(t *testing.T) {
	ts := newTestServer(t)
	token := register(t, ts, "alice")

	rr := ts.request(http.MethodGet, "/api/v1/queue", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	data := decode[model.QueueData](t, rr)
	assert.Equal(t, 0, data.InQueue)
	assert.Nil(t, data.TimeElapsed)

	_, err := ts.app.Queue.Enqueue("alice", model.Preferences{})
	require.NoError(t, err)
	ts.app.MockClock.Advance(7 * time.Second)

	// Anonymous callers only see the count
	rr = ts.request(http.MethodGet, "/api/v1/queue", nil, "")
	data = decode[model.QueueData](t, rr)
	assert.Equal(t, 1, data.InQueue)
	assert.Nil(t, data.TimeElapsed)

	rr = ts.request(http.MethodGet, "/api/v1/queue", nil, token)
	data = decode[model.QueueData](t, rr)
	assert.Equal(t, 1, data.InQueue)
	require.NotNil(t, data.TimeElapsed)
	assert.Equal(t, 7, *data.TimeElapsed)
}

func TestGetGameAndChat(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "alice")
	register(t, ts, "bob")
	ctx := context.Background()

	ts.app.MockRandom.QueueString("game1")
	game, err := ts.app.Sessions.CreateSession(ctx,
		model.Participant{Username: "alice"}, model.Participant{Username: "bob"},
		model.Preferences{BoardSize: 9})
	require.NoError(t, err)
	_, err = ts.app.Sessions.CreateChatEntryByGameID(ctx, game.ID, "bob", "hello")
	require.NoError(t, err)

	rr := ts.request(http.MethodGet, "/api/v1/games/game1", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	fetched := decode[model.GameSession](t, rr)
	assert.Equal(t, model.StatusWaiting, fetched.Status)
	assert.Equal(t, model.Username("alice"), fetched.Black.Username)
	assert.Len(t, fetched.Board, 9)

	rr = ts.request(http.MethodGet, "/api/v1/games/game1/chat", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	history := decode[response.ChatHistory](t, rr)
	require.Len(t, history.Entries, 1)
	assert.Equal(t, "hello", history.Entries[0].Message)
	assert.Equal(t, model.Username("bob"), history.Entries[0].AuthorName)
}

func TestGetGameNotFound(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/games/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeGameNotFound, decode[apierr.ErrorResponse](t, rr).Error.Code)

	rr = ts.request(http.MethodGet, "/api/v1/games/missing/chat", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWebsocketThroughRouter(t *testing.T) {
	ts := newTestServer(t)
	token := register(t, ts, "alice")

	server := httptest.NewServer(ts.handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(map[string]any{
		"event": model.EventAuthenticate,
		"args":  []any{token},
	}))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg struct {
			Event string `json:"event"`
		}
		require.NoError(t, ws.ReadJSON(&msg))
		if msg.Event == string(model.EventAuthenticated) {
			break
		}
	}

	online, err := ts.app.Users.IsUserOnline(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, online)
}

// register creates a player and returns its token
func register(t *testing.T, ts *testServer, username string) string {
	t.Helper()

	body := map[string]string{"username": username, "password": "secret123"}
	rr := ts.request(http.MethodPost, "/api/v1/players/register", body, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	return decode[response.AuthResponse](t, rr).Token
}
