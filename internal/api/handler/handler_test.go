package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/feed"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/storage"
)

type stubStatsStore struct {
	stats *storage.Stats
	err   error
}

func (s *stubStatsStore) GetStats(ctx context.Context) (*storage.Stats, error) {
	return s.stats, s.err
}

func newTestRouter(t *testing.T, cfg *config.Config) (*gin.Engine, *feed.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := &stubStatsStore{stats: &storage.Stats{Users: 7, ActiveRooms: 2}}
	hub := feed.NewHub(nil)
	h := NewHandler(store, hub, cfg)

	r := gin.New()
	h.Register(r)
	return r, hub
}

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "test-secret", OpsPassword: "sesame"}
}

func loginToken(t *testing.T, r *gin.Engine, password string) string {
	t.Helper()

	body := strings.NewReader(`{"password":"` + password + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestLoginIssuesUsableToken(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())
	token := loginToken(t, r, "sesame")

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var stats storage.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(7), stats.Users)
	assert.Equal(t, int64(2), stats.ActiveRooms)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	body := strings.NewReader(`{"password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRequiresPassword(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginDisabledWithoutConfiguredPassword(t *testing.T) {
	cfg := testConfig()
	cfg.OpsPassword = ""
	r, _ := newTestRouter(t, cfg)

	body := strings.NewReader(`{"password":""}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatsRequiresToken(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatsRejectsForeignAndRolelessTokens(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "moderator",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := foreign.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	roleless := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err = roleless.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestModerationFeedStreamsEvents(t *testing.T) {
	r, hub := newTestRouter(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(r)
	defer srv.Close()

	token := loginToken(t, r, "sesame")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/moderation?token=" + token

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	// Give the hub a beat to register the client before broadcasting.
	time.Sleep(50 * time.Millisecond)
	hub.EventsCh <- models.MirrorEvent{Kind: models.MirrorSpam, SenderID: 9, Text: "flagged"}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev models.MirrorEvent
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, models.MirrorSpam, ev.Kind)
	assert.Equal(t, int64(9), ev.SenderID)
}

func TestModerationFeedRejectsMissingToken(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/moderation"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	if conn != nil {
		conn.Close()
	}
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
