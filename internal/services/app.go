package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Moaaz208/Mizo-Candle/internal/gateway"
	"github.com/Moaaz208/Mizo-Candle/internal/models"
	"github.com/Moaaz208/Mizo-Candle/pkg/config"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSiteLocked means the whole site is hidden behind the gate.
	ErrSiteLocked = errors.New("site is locked")

	// ErrGateRequired means a protected view was requested without the passcode.
	ErrGateRequired = errors.New("passcode required")

	// ErrInvalidView wraps an unknown view name.
	ErrInvalidView = errors.New("invalid view")
)

// Keypad keys besides the digits.
const (
	KeyClear   = "C"
	KeyConfirm = "OK"
)

// Gate attempt results passed to the gate observer.
const (
	GateGranted   = "granted"
	GateDenied    = "denied"
	GateThrottled = "throttled"
)

// StorefrontStore is the persistence the controller needs.
type StorefrontStore interface {
	LoadProducts(ctx context.Context) []models.Product
	SaveProducts(ctx context.Context, products []models.Product)
	LoadSiteConfig(ctx context.Context) models.SiteConfig
	SaveSiteConfig(ctx context.Context, cfg models.SiteConfig)
	LoadVisitorLogs(ctx context.Context) []models.VisitorLog
}

// AppService is the application controller. It owns the site config and the
// catalog (loaded once at startup and written through on every change), and
// drives each client session's gate against the current passcode.
type AppService struct {
	store     StorefrontStore
	sessions  *SessionService
	tokens    *TokenService
	collector *Collector
	ai        AIService
	gate      config.GateConfig

	mu       sync.RWMutex
	site     models.SiteConfig
	products []models.Product

	onGate func(result string)
}

// NewAppService loads the persisted records and returns the controller.
func NewAppService(
	ctx context.Context,
	store StorefrontStore,
	sessions *SessionService,
	tokens *TokenService,
	collector *Collector,
	ai AIService,
	gate config.GateConfig,
) *AppService {
	s := &AppService{
		store:     store,
		sessions:  sessions,
		tokens:    tokens,
		collector: collector,
		ai:        ai,
		gate:      gate,
		site:      store.LoadSiteConfig(ctx),
		products:  store.LoadProducts(ctx),
		onGate:    func(string) {},
	}

	log.Info().
		Str("site", s.site.SiteName).
		Bool("public", s.site.IsPublic).
		Int("products", len(s.products)).
		Msg("Storefront loaded")

	return s
}

// OnGateAttempt registers an observer for every passcode submission.
func (s *AppService) OnGateAttempt(fn func(result string)) {
	s.onGate = fn
}

// AppState is what a client renders: the gate snapshot plus the branding
// needed to draw the shell around it.
type AppState struct {
	gateway.Snapshot
	SiteName     string `json:"siteName"`
	PrimaryColor string `json:"primaryColor"`
	ChatEnabled  bool   `json:"chatEnabled"`
}

// BootResult is returned once per app load.
type BootResult struct {
	Session *ClientSession
	Token   *SessionToken
	State   AppState
}

// Boot starts a new client session, unauthenticated and on the storefront,
// and kicks off the visitor snapshot in the background.
func (s *AppService) Boot(ctx context.Context, ip, userAgent string, report ClientReport) (*BootResult, error) {
	if report.UserAgent == "" {
		report.UserAgent = userAgent
	}

	session := s.sessions.CreateSession(ctx, ExtractDeviceInfo(report.UserAgent), ip)

	token, err := s.tokens.Issue(session.ID)
	if err != nil {
		s.sessions.RevokeSession(ctx, session.ID)
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	if s.collector != nil {
		s.collector.Capture(ctx, ip, report, session)
	}

	return &BootResult{
		Session: session,
		Token:   token,
		State:   s.State(session),
	}, nil
}

// State returns the client's current state.
func (s *AppService) State(session *ClientSession) AppState {
	s.mu.RLock()
	site := s.site
	s.mu.RUnlock()

	snap := session.Gate.Snapshot(policyOf(site))
	return AppState{
		Snapshot:     snap,
		SiteName:     site.SiteName,
		PrimaryColor: site.PrimaryColor,
		ChatEnabled:  !snap.SiteLocked,
	}
}

// Navigate requests a view. Protected views requested before authenticating
// open the gate instead.
func (s *AppService) Navigate(session *ClientSession, view string) (AppState, error) {
	v, err := models.ParseView(view)
	if err != nil {
		return AppState{}, fmt.Errorf("%w: %v", ErrInvalidView, err)
	}

	if gated := session.Gate.Navigate(v); gated {
		log.Debug().Str("session_id", session.ID).Str("view", view).Msg("Protected view gated")
	}
	return s.State(session), nil
}

// PressKey feeds one keypad key: a digit, KeyClear or KeyConfirm.
func (s *AppService) PressKey(session *ClientSession, key string) (gateway.Outcome, AppState, error) {
	p := s.policy()

	var (
		outcome gateway.Outcome
		err     error
	)
	switch {
	case key == KeyClear:
		outcome, err = session.Gate.Clear(p)
	case key == KeyConfirm:
		outcome, err = session.Gate.Confirm(p)
	case len(key) == 1:
		outcome, err = session.Gate.Press(p, rune(key[0]))
	default:
		err = gateway.ErrInvalidKey
	}

	s.observe(session, outcome, err)
	return outcome, s.State(session), err
}

// SubmitPasscode checks a whole passcode at once.
func (s *AppService) SubmitPasscode(session *ClientSession, passcode string) (gateway.Outcome, AppState, error) {
	outcome, err := session.Gate.Submit(s.policy(), passcode)
	s.observe(session, outcome, err)
	return outcome, s.State(session), err
}

// CancelGate abandons a pending protected view.
func (s *AppService) CancelGate(session *ClientSession) (AppState, error) {
	err := session.Gate.Cancel(s.policy())
	return s.State(session), err
}

// Logout drops the session's authentication.
func (s *AppService) Logout(session *ClientSession) AppState {
	session.Gate.Logout()
	log.Info().Str("session_id", session.ID).Msg("Client logged out")
	return s.State(session)
}

// RequireUnlocked fails unless the session has entered the passcode.
func (s *AppService) RequireUnlocked(session *ClientSession) error {
	if session.Gate.Authenticated() {
		return nil
	}
	if session.Gate.SiteLocked(s.policy()) {
		return ErrSiteLocked
	}
	return ErrGateRequired
}

// RequireSiteVisible fails while the whole site is locked for the session.
func (s *AppService) RequireSiteVisible(session *ClientSession) error {
	if session.Gate.SiteLocked(s.policy()) {
		return ErrSiteLocked
	}
	return nil
}

func (s *AppService) policy() gateway.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return policyOf(s.site)
}

func policyOf(site models.SiteConfig) gateway.Policy {
	return gateway.Policy{Passcode: site.MasterPasscode, Public: site.IsPublic}
}

func (s *AppService) observe(session *ClientSession, outcome gateway.Outcome, err error) {
	switch {
	case errors.Is(err, gateway.ErrThrottled):
		s.onGate(GateThrottled)
		log.Warn().Str("session_id", session.ID).Str("ip", session.IPAddress).Msg("Passcode attempt throttled")
	case outcome == gateway.OutcomeGranted:
		s.onGate(GateGranted)
		log.Info().Str("session_id", session.ID).Msg("Passcode accepted")
	case outcome == gateway.OutcomeDenied:
		s.onGate(GateDenied)
		log.Warn().Str("session_id", session.ID).Str("ip", session.IPAddress).Msg("Passcode rejected")
	}
}
