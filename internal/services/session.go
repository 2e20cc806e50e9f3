package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Moaaz208/Mizo-Candle/internal/gateway"
	"github.com/google/uuid"
	"github.com/mileusna/useragent"
	"github.com/rs/zerolog/log"
)

// ErrSessionNotFound is returned when a token names a session that expired
// or never existed. Clients recover by booting again.
var ErrSessionNotFound = errors.New("client session not found")

// ClientSession is one running app instance. It owns the gate state and the
// concierge chat, and is discarded when the client reboots or goes idle.
type ClientSession struct {
	ID         string
	Gate       *gateway.Session
	DeviceInfo string
	IPAddress  string
	CreatedAt  time.Time

	mu       sync.Mutex
	lastSeen time.Time
	chat     Chat
	location chan Coordinates
	awaiting bool // a snapshot will read location
}

// LastSeen returns when the session last handled a request.
func (c *ClientSession) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// Chat returns the active concierge conversation, or nil.
func (c *ClientSession) Chat() Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chat
}

// SetChat replaces the concierge conversation. Passing nil resets it.
func (c *ClientSession) SetChat(chat Chat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chat = chat
}

// ExpectLocation opens the slot for one late precise-location fix. The slot
// closes again when Locate returns.
func (c *ClientSession) ExpectLocation() {
	c.mu.Lock()
	c.awaiting = true
	c.mu.Unlock()
}

// ReportLocation hands late precise-location coordinates to the visitor
// snapshot waiting on them. It reports false if no snapshot is waiting or a
// fix was already delivered.
func (c *ClientSession) ReportLocation(coords Coordinates) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.awaiting {
		return false
	}
	select {
	case c.location <- coords:
		return true
	default:
		return false
	}
}

func (c *ClientSession) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

// SessionService keeps client sessions in memory. Nothing here is ever
// persisted: a restart logs every client out, exactly like a page reload.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*ClientSession
	gateOpts gateway.Options
	idleTTL  time.Duration
	now      func() time.Time
	onChange func(active int)
}

// NewSessionService creates an empty registry. Sessions idle for longer than
// idleTTL are removed by SweepIdle.
func NewSessionService(gateOpts gateway.Options, idleTTL time.Duration) *SessionService {
	return &SessionService{
		sessions: make(map[string]*ClientSession),
		gateOpts: gateOpts,
		idleTTL:  idleTTL,
		now:      time.Now,
		onChange: func(int) {},
	}
}

// OnChange registers a callback receiving the active session count after
// every create, delete and sweep. Used to feed the sessions gauge.
func (s *SessionService) OnChange(fn func(active int)) {
	s.onChange = fn
}

// CreateSession registers a new unauthenticated client session.
func (s *SessionService) CreateSession(ctx context.Context, deviceInfo, ipAddress string) *ClientSession {
	now := s.now()
	session := &ClientSession{
		ID:         uuid.New().String(),
		Gate:       gateway.NewSession(s.gateOpts),
		DeviceInfo: deviceInfo,
		IPAddress:  ipAddress,
		CreatedAt:  now,
		lastSeen:   now,
		location:   make(chan Coordinates, 1),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	count := len(s.sessions)
	s.mu.Unlock()

	s.onChange(count)

	log.Info().
		Str("session_id", session.ID).
		Str("device", deviceInfo).
		Str("ip", ipAddress).
		Msg("Client session created")

	return session
}

// GetSession looks a session up and marks it as active.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*ClientSession, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	session.touch(s.now())
	return session, nil
}

// RevokeSession removes a session. Removing an unknown session is not an error.
func (s *SessionService) RevokeSession(ctx context.Context, sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	count := len(s.sessions)
	s.mu.Unlock()

	s.onChange(count)

	log.Info().Str("session_id", sessionID).Msg("Client session revoked")
}

// SweepIdle drops sessions that have not been seen for the idle TTL and
// returns how many were removed.
func (s *SessionService) SweepIdle(ctx context.Context) int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	removed := 0
	for id, session := range s.sessions {
		if session.LastSeen().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	s.onChange(count)

	if removed > 0 {
		log.Info().Int("removed", removed).Int("active", count).Msg("Idle client sessions swept")
	}
	return removed
}

// Count returns the number of live sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ExtractDeviceInfo parses a User-Agent string into a human-readable device
// description for logs.
//
// Example outputs:
//   - "Chrome 120.0 · Windows 10 · Computer"
//   - "Safari 17.0 · iOS 17.1 · Mobile"
//   - "Unknown Device" (for empty user agent)
func ExtractDeviceInfo(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}

	ua := useragent.Parse(userAgent)

	var parts []string

	if ua.Name != "" {
		browser := ua.Name
		if ua.Version != "" {
			browser += " " + ua.Version
		}
		parts = append(parts, browser)
	}

	if ua.OS != "" {
		os := ua.OS
		if ua.OSVersion != "" {
			os += " " + ua.OSVersion
		}
		parts = append(parts, os)
	}

	parts = append(parts, ExtractDeviceType(userAgent))

	if len(parts) == 1 {
		if len(userAgent) > 100 {
			return userAgent[:100] + "..."
		}
		return userAgent
	}

	return strings.Join(parts, " · ")
}

// ExtractDeviceType classifies a User-Agent as "Tablet", "Mobile" or
// "Computer". Tablets are checked first because many tablet agents also
// claim to be mobile.
func ExtractDeviceType(userAgent string) string {
	ua := useragent.Parse(userAgent)
	lower := strings.ToLower(userAgent)

	switch {
	case ua.Tablet, containsAny(lower, "tablet", "ipad", "playbook", "silk"):
		return "Tablet"
	case ua.Mobile, containsAny(lower, "mobile", "iphone", "ipod", "android", "blackberry", "opera mini", "iemobile"):
		return "Mobile"
	}
	return "Computer"
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
