package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ukwikibot/internal/entities"
	"ukwikibot/internal/infrastructure"
	"ukwikibot/internal/repository"
	"ukwikibot/internal/usecases"
)

type fakeAssistant struct {
	match    *usecases.Match
	resp     entities.Response
	err      error
	lastText string
	lastMsg  entities.Message
}

func (f *fakeAssistant) Classify(text string) (usecases.Match, bool) {
	f.lastText = text
	if f.match == nil {
		return usecases.Match{}, false
	}
	return *f.match, true
}

func (f *fakeAssistant) Ask(_ context.Context, text string) (entities.Response, error) {
	f.lastText = text
	return f.resp, f.err
}

func (f *fakeAssistant) Process(_ context.Context, msg entities.Message) (entities.Response, error) {
	f.lastMsg = msg
	return f.resp, f.err
}

type fakeStats struct {
	days int
	err  error
}

func (f *fakeStats) Summary(_ context.Context, days int) (*usecases.UsageStats, error) {
	f.days = days
	if f.err != nil {
		return nil, f.err
	}
	return &usecases.UsageStats{Messages: 5, Items: 7}, nil
}

type fakeSession struct {
	png       []byte
	err       error
	loggedIn  bool
	loggedOut bool
}

func (f *fakeSession) QRPNG(int) ([]byte, error) { return f.png, f.err }
func (f *fakeSession) IsLoggedIn() bool          { return f.loggedIn }
func (f *fakeSession) IsConnected() bool         { return f.loggedIn }
func (f *fakeSession) GetPhoneNumber() string    { return "380501234567" }

func (f *fakeSession) Logout(context.Context) error {
	f.loggedOut = true
	f.loggedIn = false
	return nil
}

type testServer struct {
	engine        *gin.Engine
	assistant     *fakeAssistant
	stats         *fakeStats
	adminToken    string
	operatorToken string
}

func newTestServer(t *testing.T, session WhatsAppSession, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx := context.Background()
	auth := usecases.NewAuthUsecase(repository.NewMemoryUserStore(), "test-secret")
	require.NoError(t, auth.Register(ctx, "admin", "admin-pass", entities.RoleAdmin))
	require.NoError(t, auth.Register(ctx, "operator", "operator-pass", ""))

	adminToken, err := auth.Login(ctx, "admin", "admin-pass")
	require.NoError(t, err)
	operatorToken, err := auth.Login(ctx, "operator", "operator-pass")
	require.NoError(t, err)

	if opts.UserRate == 0 {
		opts.UserRate, opts.UserBurst = 1000, 1000
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	ts := &testServer{
		engine:        gin.New(),
		assistant:     &fakeAssistant{},
		stats:         &fakeStats{},
		adminToken:    adminToken,
		operatorToken: operatorToken,
	}
	deps := Dependencies{Assistant: ts.assistant, Auth: auth, Stats: ts.stats}
	if session != nil {
		deps.WhatsApp = session
	}
	SetupRoutes(ts.engine, deps, opts, NewMiddleware(auth))
	return ts
}

func (ts *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil, Options{})

	w := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "ok", decode(t, w)["status"])
}

type fakeRuntime struct{}

func (fakeRuntime) GetStats() map[string]interface{} {
	return map[string]interface{}{"active_chats": 3}
}

func TestHealthWithRuntimeStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r, Dependencies{Runtime: fakeRuntime{}}, Options{UserRate: 1, UserBurst: 1, MaxBodyBytes: 1024}, NewMiddleware(nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, map[string]interface{}{"active_chats": float64(3)}, body["chats"])
}

func TestRequestIDIsReused(t *testing.T) {
	ts := newTestServer(t, nil, Options{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	assert.Equal(t, "abc123", w.Header().Get("X-Request-ID"))
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t, nil, Options{})

	w := ts.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "admin", Password: "admin-pass"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["token"])

	w = ts.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "bad name", Password: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])

	w = ts.do(http.MethodPost, "/api/auth/login", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, nil, Options{})

	w := ts.do(http.MethodPost, "/api/classify", "", MessageRequest{Text: "Київ"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/api/classify", "not-a-token", MessageRequest{Text: "Київ"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClassify(t *testing.T) {
	ts := newTestServer(t, nil, Options{})

	w := ts.do(http.MethodPost, "/api/classify", ts.operatorToken, MessageRequest{Text: "просто текст"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["matched"])

	ts.assistant.match = &usecases.Match{Intent: entities.IntentCoords, Args: []string{"Києва"}}
	w = ts.do(http.MethodPost, "/api/classify", ts.operatorToken, MessageRequest{Text: "Координати Києва\x00"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["matched"])
	assert.Equal(t, "coords", body["intent"])
	assert.Equal(t, "coordinates", body["kind"])
	assert.Equal(t, []interface{}{"Києва"}, body["args"])
	assert.Equal(t, "Координати Києва", ts.assistant.lastText)

	w = ts.do(http.MethodPost, "/api/classify", ts.operatorToken, MessageRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAsk(t *testing.T) {
	ts := newTestServer(t, nil, Options{})

	ts.assistant.err = usecases.ErrNoIntent
	w := ts.do(http.MethodPost, "/api/ask", ts.operatorToken, MessageRequest{Text: "хм"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	ts.assistant.err = errors.New("backend down")
	w = ts.do(http.MethodPost, "/api/ask", ts.operatorToken, MessageRequest{Text: "Київ"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, decode(t, w)["trace_id"])

	ts.assistant.err = nil
	ts.assistant.resp = entities.Response{
		Intent: entities.IntentCoords,
		Kind:   entities.KindCoordinates,
		Items:  []entities.ResponseItem{entities.CoordinatesItem(entities.Coordinates{Latitude: 50.45, Longitude: 30.52})},
	}
	w = ts.do(http.MethodPost, "/api/ask", ts.operatorToken, MessageRequest{Text: "Координати Києва"})
	require.Equal(t, http.StatusOK, w.Code)

	var dto ResponseDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	require.Len(t, dto.Items, 1)
	assert.Equal(t, entities.IntentCoords, dto.Intent)
	assert.Equal(t, entities.KindCoordinates, dto.Items[0].Kind)
	require.NotNil(t, dto.Items[0].Latitude)
	require.NotNil(t, dto.Items[0].Longitude)
	assert.Equal(t, 50.45, *dto.Items[0].Latitude)
	assert.Equal(t, 30.52, *dto.Items[0].Longitude)
}

func TestAsk_ZeroCoordinatesAreKept(t *testing.T) {
	ts := newTestServer(t, nil, Options{})
	ts.assistant.resp = entities.Response{
		Intent: entities.IntentCoordsGen,
		Kind:   entities.KindCoordinates,
		Items:  []entities.ResponseItem{entities.CoordinatesItem(entities.Coordinates{Latitude: 0, Longitude: 6.7})},
	}

	w := ts.do(http.MethodPost, "/api/ask", ts.operatorToken, MessageRequest{Text: "Координати Сан-Томе"})
	require.Equal(t, http.StatusOK, w.Code)

	items := decode(t, w)["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Contains(t, item, "latitude")
	assert.Equal(t, float64(0), item["latitude"])
	assert.Equal(t, 6.7, item["longitude"])
}

func TestToDTO_TextItemsCarryNoCoordinates(t *testing.T) {
	dto := toDTO(entities.Response{
		Intent: entities.IntentWiki,
		Kind:   entities.KindText,
		Items:  []entities.ResponseItem{entities.TextItem("https://uk.wikipedia.org/")},
	})
	require.Len(t, dto.Items, 1)
	assert.Nil(t, dto.Items[0].Latitude)
	assert.Nil(t, dto.Items[0].Longitude)
}

func TestHandleWebMessage(t *testing.T) {
	ts := newTestServer(t, nil, Options{})

	ts.assistant.err = usecases.ErrNoIntent
	w := ts.do(http.MethodPost, "/webhook/web", "", WebMessageRequest{From: "visitor-1", Content: "хм"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, entities.PlatformWeb, ts.assistant.lastMsg.Platform)
	assert.Equal(t, "visitor-1", ts.assistant.lastMsg.ChatID)

	ts.assistant.err = usecases.ErrRateLimited
	w = ts.do(http.MethodPost, "/webhook/web", "", WebMessageRequest{From: "visitor-1", Content: "Київ"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	ts.assistant.err = nil
	ts.assistant.resp = entities.Response{
		Intent: entities.IntentHelp,
		Kind:   entities.KindText,
		Items:  []entities.ResponseItem{entities.TextItem("довідка")},
	}
	w = ts.do(http.MethodPost, "/webhook/web", "", WebMessageRequest{From: "visitor-1", Content: "/help"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "help", body["intent"])
	assert.Len(t, body["items"], 1)

	w = ts.do(http.MethodPost, "/webhook/web", "", WebMessageRequest{Content: "/help"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRateLimitPerIP(t *testing.T) {
	ts := newTestServer(t, nil, Options{UserRate: 0.001, UserBurst: 1})
	ts.assistant.err = usecases.ErrNoIntent

	w := ts.do(http.MethodPost, "/webhook/web", "", WebMessageRequest{From: "a", Content: "x"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodPost, "/webhook/web", "", WebMessageRequest{From: "a", Content: "x"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestStats(t *testing.T) {
	ts := newTestServer(t, nil, Options{})

	w := ts.do(http.MethodGet, "/api/stats", ts.operatorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, ts.stats.days)
	assert.Equal(t, float64(5), decode(t, w)["messages"])

	w = ts.do(http.MethodGet, "/api/stats?days=30", ts.operatorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 30, ts.stats.days)

	w = ts.do(http.MethodGet, "/api/stats?days=400", ts.operatorToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodGet, "/api/stats?days=abc", ts.operatorToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWhatsAppRoutes(t *testing.T) {
	t.Run("operator is forbidden", func(t *testing.T) {
		ts := newTestServer(t, &fakeSession{}, Options{})
		w := ts.do(http.MethodGet, "/api/whatsapp/qr", ts.operatorToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("not configured", func(t *testing.T) {
		ts := newTestServer(t, nil, Options{})
		w := ts.do(http.MethodGet, "/api/whatsapp/qr", ts.adminToken, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		w = ts.do(http.MethodGet, "/api/whatsapp/status", ts.adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, decode(t, w)["configured"])
	})

	t.Run("qr pending", func(t *testing.T) {
		ts := newTestServer(t, &fakeSession{err: infrastructure.ErrNoQRCode}, Options{})
		w := ts.do(http.MethodGet, "/api/whatsapp/qr", ts.adminToken, nil)
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("qr image", func(t *testing.T) {
		ts := newTestServer(t, &fakeSession{png: []byte("\x89PNG")}, Options{})
		w := ts.do(http.MethodGet, "/api/whatsapp/qr", ts.adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Equal(t, []byte("\x89PNG"), w.Body.Bytes())
	})

	t.Run("logged in", func(t *testing.T) {
		ts := newTestServer(t, &fakeSession{loggedIn: true}, Options{})
		w := ts.do(http.MethodGet, "/api/whatsapp/qr", ts.adminToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Already logged in", w.Body.String())

		w = ts.do(http.MethodGet, "/api/whatsapp/status", ts.adminToken, nil)
		body := decode(t, w)
		assert.Equal(t, true, body["logged_in"])
		assert.Equal(t, "380501234567", body["phone"])
	})

	t.Run("logout", func(t *testing.T) {
		session := &fakeSession{loggedIn: true}
		ts := newTestServer(t, session, Options{})
		w := ts.do(http.MethodPost, "/api/whatsapp/logout", ts.adminToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, session.loggedOut)

		ts = newTestServer(t, nil, Options{})
		w = ts.do(http.MethodPost, "/api/whatsapp/logout", ts.adminToken, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestValidationMessage(t *testing.T) {
	v := NewValidator()
	err := v.Struct(LoginRequest{Username: "a b"})
	assert.Equal(t, "username: username; password: required", ValidationMessage(err))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("a\x00bc"))
	assert.Equal(t, "ab", SanitizeString("a\xffb"))
	assert.Equal(t, "Київ", SanitizeString("Київ"))
}
