package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Moaaz208/Mizo-Candle/internal/database"
	"github.com/Moaaz208/Mizo-Candle/internal/gateway"
	"github.com/Moaaz208/Mizo-Candle/internal/handlers"
	"github.com/Moaaz208/Mizo-Candle/internal/middleware"
	"github.com/Moaaz208/Mizo-Candle/internal/services"
	"github.com/Moaaz208/Mizo-Candle/internal/store"
	"github.com/Moaaz208/Mizo-Candle/internal/testutil"
	"github.com/Moaaz208/Mizo-Candle/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offlineAI answers every AI call without a network.
type offlineAI struct{}

func (offlineAI) GenerateText(context.Context, string, string) string {
	return services.FallbackDescriptionError
}
func (offlineAI) GenerateHeroCopy(context.Context, string) services.HeroCopy {
	return services.HeroCopy{Title: "Offline", Subtitle: "Offline"}
}
func (offlineAI) GenerateImage(context.Context, string, services.ImageOptions) (string, error) {
	return "data:image/png;base64,AAAA", nil
}
func (offlineAI) EditImage(context.Context, string, string) (string, error) {
	return "", services.ErrAIUnavailable
}
func (offlineAI) GenerateVideo(context.Context, string, services.VideoOptions) (string, error) {
	return "", services.ErrAIUnavailable
}
func (offlineAI) DownloadVideo(context.Context, string) (io.ReadCloser, string, error) {
	return nil, "", services.ErrForeignVideo
}
func (offlineAI) AnalyzeMedia(context.Context, string, string, string) (string, error) {
	return "", services.ErrAIUnavailable
}
func (offlineAI) Transcribe(context.Context, string) (string, error) {
	return "", services.ErrAIUnavailable
}
func (offlineAI) SynthesizeSpeech(context.Context, string, string) (*services.Speech, error) {
	return nil, services.ErrAIUnavailable
}
func (offlineAI) DeepThink(context.Context, string) (string, error) {
	return "", services.ErrAIUnavailable
}
func (offlineAI) NewChat(bool) services.Chat { return offlineChat{} }

type offlineChat struct{}

func (offlineChat) Send(context.Context, string) (string, error) { return "Hello from the shop.", nil }

type nowhereGeo struct{}

func (nowhereGeo) Lookup(_ context.Context, ip string) services.GeoResult {
	return services.GeoResult{IP: ip}
}

func setupRouter(t *testing.T, public bool) http.Handler {
	t.Helper()
	ctx := context.Background()

	backend := database.NewMemoryDB()
	st := store.New(backend, "nexus")
	st.SaveSiteConfig(ctx, testutil.TestSiteConfig(public))

	sessionCfg := &config.SessionConfig{
		Secret:      []byte("test-secret-key-minimum-32-bytes-long!"),
		TokenExpiry: time.Hour,
	}
	sessions := services.NewSessionService(gateway.Options{}, time.Hour)
	tokens := services.NewTokenService(sessionCfg)
	collector := services.NewCollector(nowhereGeo{}, st, 10*time.Millisecond)
	t.Cleanup(collector.Wait)

	app := services.NewAppService(ctx, st, sessions, tokens, collector, offlineAI{}, config.GateConfig{PasscodeLength: 6})

	return newRouter(routerDeps{
		app:        app,
		tokens:     tokens,
		sessions:   sessions,
		limiter:    middleware.NewRateLimiter(database.NewMemoryDB(), 1000, time.Minute),
		gateLimit:  100,
		health:     handlers.NewHealthHandler(backend),
		origins:    []string{"http://localhost:5173"},
		cookieName: "app_session",
	})
}

// client drives the router the way the browser app does.
type client struct {
	t      *testing.T
	router http.Handler
	token  string
}

func boot(t *testing.T, router http.Handler) *client {
	t.Helper()

	rec := testutil.Serve(router, testutil.MakeRequest(t, http.MethodPost, "/api/v1/app/boot", services.ClientReport{Language: "en-US"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body handlers.BootResponse
	testutil.ParseJSONResponse(t, rec, &body)
	require.NotEmpty(t, body.Token)

	return &client{t: t, router: router, token: body.Token}
}

func (c *client) do(method, path string, body interface{}) int {
	c.t.Helper()
	req := testutil.MakeRequest(c.t, method, path, body)
	if c.token != "" {
		testutil.SetAuthHeader(req, c.token)
	}
	return testutil.Serve(c.router, req).Code
}

func TestRouterPublicSite(t *testing.T) {
	router := setupRouter(t, true)
	c := boot(t, router)

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/storefront", nil))
	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/v1/chat", map[string]string{"message": "hi"}))

	// protected areas need the passcode
	assert.Equal(t, http.StatusForbidden, c.do(http.MethodGet, "/api/v1/admin/config", nil))
	assert.Equal(t, http.StatusForbidden, c.do(http.MethodGet, "/api/v1/monitor/visitors", nil))
	assert.Equal(t, http.StatusForbidden, c.do(http.MethodPost, "/api/v1/ai/image", map[string]string{"prompt": "x"}))

	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/v1/app/navigate", map[string]string{"view": "admin"}))
	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/v1/app/gate/passcode", map[string]string{"passcode": testutil.TestPasscode}))

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/admin/config", nil))
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/monitor/visitors", nil))
	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/v1/ai/image", map[string]string{"prompt": "x"}))
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/api/v1/ai/video/download?uri=https://evil.example/x", nil))

	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/v1/app/logout", nil))
	assert.Equal(t, http.StatusForbidden, c.do(http.MethodGet, "/api/v1/admin/config", nil))
}

func TestRouterLockedSite(t *testing.T) {
	router := setupRouter(t, false)
	c := boot(t, router)

	assert.Equal(t, http.StatusLocked, c.do(http.MethodGet, "/api/v1/storefront", nil))
	assert.Equal(t, http.StatusLocked, c.do(http.MethodPost, "/api/v1/chat", map[string]string{"message": "hi"}))
	assert.Equal(t, http.StatusLocked, c.do(http.MethodGet, "/api/v1/admin/products", nil))
	assert.Equal(t, http.StatusLocked, c.do(http.MethodPost, "/api/v1/app/gate/cancel", nil))

	for _, key := range strings.Split(testutil.TestPasscode, "") {
		assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/v1/app/gate/keys", map[string]string{"key": key}))
	}

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/storefront", nil))
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/admin/products", nil))
}

func TestRouterRequiresSession(t *testing.T) {
	router := setupRouter(t, true)
	anonymous := &client{t: t, router: router}

	for _, path := range []string{"/api/v1/app/state", "/api/v1/storefront", "/api/v1/admin/config"} {
		assert.Equal(t, http.StatusUnauthorized, anonymous.do(http.MethodGet, path, nil), path)
	}

	forged := &client{t: t, router: router, token: "not-a-token"}
	assert.Equal(t, http.StatusUnauthorized, forged.do(http.MethodGet, "/api/v1/app/state", nil))
}

func TestRouterOperationalEndpoints(t *testing.T) {
	router := setupRouter(t, true)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		rec := testutil.Serve(router, testutil.MakeRequest(t, http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := testutil.Serve(router, testutil.MakeRequest(t, http.MethodGet, "/health", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouterAPIDocs(t *testing.T) {
	router := setupRouter(t, false)

	rec := testutil.Serve(router, testutil.MakeRequest(t, http.MethodGet, "/api/docs/doc.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc struct {
		OpenAPI string                     `json:"openapi"`
		Paths   map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc.OpenAPI)
	for _, path := range []string{"/app/boot", "/app/gate/keys", "/admin/config", "/monitor/visitors", "/ai/video/download"} {
		assert.Contains(t, doc.Paths, path)
	}

	// the UI needs no session, even on a locked site
	rec = testutil.Serve(router, testutil.MakeRequest(t, http.MethodGet, "/api/docs/index.html", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/docs/doc.json")
}
