package handlers

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/Moaaz208/Mizo-Candle/internal/database"
	"github.com/Moaaz208/Mizo-Candle/internal/gateway"
	"github.com/Moaaz208/Mizo-Candle/internal/models"
	"github.com/Moaaz208/Mizo-Candle/internal/services"
	"github.com/Moaaz208/Mizo-Candle/internal/store"
	"github.com/Moaaz208/Mizo-Candle/internal/testutil"
	"github.com/Moaaz208/Mizo-Candle/pkg/config"
	"github.com/stretchr/testify/mock"
)

// MockAIService is a mock implementation of services.AIService
type MockAIService struct {
	mock.Mock
}

func (m *MockAIService) GenerateText(ctx context.Context, productName, category string) string {
	args := m.Called(ctx, productName, category)
	return args.String(0)
}

func (m *MockAIService) GenerateHeroCopy(ctx context.Context, siteName string) services.HeroCopy {
	args := m.Called(ctx, siteName)
	return args.Get(0).(services.HeroCopy)
}

func (m *MockAIService) GenerateImage(ctx context.Context, prompt string, opts services.ImageOptions) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

func (m *MockAIService) EditImage(ctx context.Context, image, prompt string) (string, error) {
	args := m.Called(ctx, image, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockAIService) GenerateVideo(ctx context.Context, prompt string, opts services.VideoOptions) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

func (m *MockAIService) DownloadVideo(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	args := m.Called(ctx, uri)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.String(1), args.Error(2)
}

func (m *MockAIService) AnalyzeMedia(ctx context.Context, media, mimeType, prompt string) (string, error) {
	args := m.Called(ctx, media, mimeType, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockAIService) Transcribe(ctx context.Context, audio string) (string, error) {
	args := m.Called(ctx, audio)
	return args.String(0), args.Error(1)
}

func (m *MockAIService) SynthesizeSpeech(ctx context.Context, text, voice string) (*services.Speech, error) {
	args := m.Called(ctx, text, voice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Speech), args.Error(1)
}

func (m *MockAIService) DeepThink(ctx context.Context, query string) (string, error) {
	args := m.Called(ctx, query)
	return args.String(0), args.Error(1)
}

func (m *MockAIService) NewChat(thinking bool) services.Chat {
	args := m.Called(thinking)
	return args.Get(0).(services.Chat)
}

// MockChat is a mock implementation of services.Chat
type MockChat struct {
	mock.Mock
}

func (m *MockChat) Send(ctx context.Context, message string) (string, error) {
	args := m.Called(ctx, message)
	return args.String(0), args.Error(1)
}

// egyptGeo resolves every address to Egypt without network access.
type egyptGeo struct{}

func (egyptGeo) Lookup(_ context.Context, ip string) services.GeoResult {
	return services.GeoResult{IP: ip, Country: "Egypt"}
}

// appFixture is a real AppService over an in-memory store.
type appFixture struct {
	app      *services.AppService
	store    *store.Store
	sessions *services.SessionService
	ai       *MockAIService
}

func setupApp(t *testing.T, public bool, gate gateway.Options) *appFixture {
	t.Helper()
	ctx := context.Background()

	st := store.New(database.NewMemoryDB(), "nexus")
	st.SaveSiteConfig(ctx, testutil.TestSiteConfig(public))

	sessions := services.NewSessionService(gate, time.Hour)
	tokens := services.NewTokenService(&config.SessionConfig{
		Secret:      []byte("test-secret-key-minimum-32-bytes-long!"),
		TokenExpiry: time.Hour,
	})
	collector := services.NewCollector(egyptGeo{}, st, 20*time.Millisecond)
	ai := new(MockAIService)

	app := services.NewAppService(ctx, st, sessions, tokens, collector, ai, config.GateConfig{PasscodeLength: 6})
	t.Cleanup(collector.Wait)

	return &appFixture{app: app, store: st, sessions: sessions, ai: ai}
}

// session creates a fresh client session directly in the registry.
func (f *appFixture) session(t *testing.T) *services.ClientSession {
	t.Helper()
	return f.sessions.CreateSession(context.Background(), "Chrome", testutil.IPAddresses.Public)
}

// unlocked returns a session that has entered the passcode.
func (f *appFixture) unlocked(t *testing.T) *services.ClientSession {
	t.Helper()
	s := f.session(t)
	if _, err := f.app.Navigate(s, string(models.ViewAdmin)); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	outcome, _, err := f.app.SubmitPasscode(s, testutil.TestPasscode)
	if err != nil || outcome != gateway.OutcomeGranted {
		t.Fatalf("unlock: %v %v", outcome, err)
	}
	return s
}
