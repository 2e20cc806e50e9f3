// Package gateway implements the passcode gate that guards the storefront.
//
// A Session tracks one app instance: whether it has entered the passcode,
// which view is visible, which protected view is waiting behind the gate and
// what has been typed on the keypad. The gate is open in two situations:
//
//   - whole-site lock: the shop is not public and the session has not
//     authenticated, so nothing but the keypad is shown;
//   - pending view: a protected view (admin, monitor, AI studio) was
//     requested before authenticating.
//
// Authentication lives only in the Session. It is never persisted, and a new
// Session always starts unauthenticated.
//
// The passcode and the public flag are passed in on every call as a Policy,
// so an admin edit to the site config applies to the very next keypress.
package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/Moaaz208/Mizo-Candle/internal/models"
)

var (
	// ErrGateClosed is returned by keypad operations when no gate is shown.
	ErrGateClosed = errors.New("gate is not open")

	// ErrGlobalLock is returned by Cancel while the whole site is locked.
	ErrGlobalLock = errors.New("whole-site lock cannot be cancelled")

	// ErrNothingPending is returned by Cancel when no view is waiting.
	ErrNothingPending = errors.New("no pending view to cancel")

	// ErrThrottled is returned while the keypad is locked out after too many
	// wrong passcodes. Only possible when Options.MaxFailures is set.
	ErrThrottled = errors.New("too many failed attempts")

	// ErrInvalidKey is returned by Press for anything but 0-9.
	ErrInvalidKey = errors.New("invalid keypad key")
)

// Policy is the slice of the site config the gate depends on.
type Policy struct {
	Passcode string
	Public   bool
}

// Options tune the gate. The zero value is usable: a 500ms error flash and no
// throttling.
type Options struct {
	// ErrorFlash is how long the mismatch indicator stays raised.
	ErrorFlash time.Duration

	// MaxFailures consecutive mismatches lock the keypad for Lockout.
	// Zero disables throttling.
	MaxFailures int
	Lockout     time.Duration

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// DefaultErrorFlash is used when Options.ErrorFlash is zero.
const DefaultErrorFlash = 500 * time.Millisecond

// Outcome reports what a keypad event did.
type Outcome string

const (
	// OutcomeAccepted means the digit was buffered and nothing was submitted.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeIgnored means the buffer was already full.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeCleared means the buffer was emptied.
	OutcomeCleared Outcome = "cleared"
	// OutcomeGranted means the passcode matched.
	OutcomeGranted Outcome = "granted"
	// OutcomeDenied means the passcode did not match.
	OutcomeDenied Outcome = "denied"
)

// Session is the in-memory authentication state of one app instance.
// It is safe for concurrent use; every method runs to completion before the
// next one starts.
type Session struct {
	mu   sync.Mutex
	opts Options

	authenticated bool
	view          models.View
	pending       models.View // "" when no protected view is waiting
	input         string
	errorUntil    time.Time
	failures      int
	lockedUntil   time.Time
}

// NewSession returns an unauthenticated session showing the storefront.
func NewSession(opts Options) *Session {
	if opts.ErrorFlash <= 0 {
		opts.ErrorFlash = DefaultErrorFlash
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		opts: opts,
		view: models.ViewShowcase,
	}
}

// Navigate requests a view. A protected view requested before
// authenticating is parked behind the gate and the visible view does not
// change; it reports true in that case.
func (s *Session) Navigate(view models.View) (gated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if view.Protected() && !s.authenticated {
		s.pending = view
		return true
	}
	s.view = view
	return false
}

// Press appends a digit to the keypad buffer. Once the buffer is as long as
// the passcode it is submitted automatically. Digits are refused while the
// keypad is throttled.
func (s *Session) Press(p Policy, digit rune) (Outcome, error) {
	if digit < '0' || digit > '9' {
		return "", ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.gateOpen(p) {
		return "", ErrGateClosed
	}
	if s.opts.Now().Before(s.lockedUntil) {
		s.input = ""
		return "", ErrThrottled
	}
	if len(s.input) >= len(p.Passcode) {
		return OutcomeIgnored, nil
	}

	s.input += string(digit)
	if len(s.input) == len(p.Passcode) {
		return s.submit(p, s.input)
	}
	return OutcomeAccepted, nil
}

// Clear empties the keypad buffer.
func (s *Session) Clear(p Policy) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.gateOpen(p) {
		return "", ErrGateClosed
	}
	s.input = ""
	return OutcomeCleared, nil
}

// Confirm submits whatever is in the keypad buffer.
func (s *Session) Confirm(p Policy) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.gateOpen(p) {
		return "", ErrGateClosed
	}
	return s.submit(p, s.input)
}

// Submit checks a full passcode in one call, bypassing the keypad buffer.
func (s *Session) Submit(p Policy, input string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.gateOpen(p) {
		return "", ErrGateClosed
	}
	return s.submit(p, input)
}

// Cancel closes a pending-view gate without authenticating. The visible view
// is left as it was.
func (s *Session) Cancel(p Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.siteLocked(p) {
		return ErrGlobalLock
	}
	if s.pending == "" {
		return ErrNothingPending
	}
	s.pending = ""
	s.input = ""
	return nil
}

// Logout drops authentication. A protected view that was on screen falls
// back to the storefront, so nothing gated stays visible.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authenticated = false
	s.pending = ""
	s.input = ""
	if s.view.Protected() {
		s.view = models.ViewShowcase
	}
}

// Authenticated reports whether the passcode has been entered.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// SiteLocked reports whether the whole site is hidden behind the gate.
func (s *Session) SiteLocked(p Policy) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.siteLocked(p)
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Authenticated bool        `json:"authenticated"`
	SiteLocked    bool        `json:"siteLocked"`
	GateOpen      bool        `json:"gateOpen"`
	GlobalLock    bool        `json:"globalLock"`
	View          models.View `json:"view"`
	PendingView   models.View `json:"pendingView,omitempty"`
	InputLength   int         `json:"inputLength"`
	CodeLength    int         `json:"codeLength"`
	Error         bool        `json:"error"`
	LockedUntil   *time.Time  `json:"lockedUntil,omitempty"`
}

// Snapshot returns the current state. While the site is locked the visible
// view is reported as models.ViewLocked.
func (s *Session) Snapshot(p Policy) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	locked := s.siteLocked(p)

	snap := Snapshot{
		Authenticated: s.authenticated,
		SiteLocked:    locked,
		GateOpen:      s.gateOpen(p),
		GlobalLock:    locked,
		View:          s.view,
		PendingView:   s.pending,
		InputLength:   len(s.input),
		CodeLength:    len(p.Passcode),
		Error:         now.Before(s.errorUntil),
	}
	if locked {
		snap.View = models.ViewLocked
	}
	if now.Before(s.lockedUntil) {
		until := s.lockedUntil
		snap.LockedUntil = &until
	}
	return snap
}

func (s *Session) siteLocked(p Policy) bool {
	return !p.Public && !s.authenticated
}

func (s *Session) gateOpen(p Policy) bool {
	if s.authenticated {
		return false
	}
	return s.siteLocked(p) || s.pending != ""
}

// submit compares input to the passcode. Callers hold s.mu and have checked
// that the gate is open.
func (s *Session) submit(p Policy, input string) (Outcome, error) {
	now := s.opts.Now()

	if now.Before(s.lockedUntil) {
		s.input = ""
		return "", ErrThrottled
	}

	if input != p.Passcode || p.Passcode == "" {
		s.input = ""
		s.errorUntil = now.Add(s.opts.ErrorFlash)
		s.failures++
		if s.opts.MaxFailures > 0 && s.failures >= s.opts.MaxFailures {
			s.lockedUntil = now.Add(s.opts.Lockout)
			s.failures = 0
		}
		return OutcomeDenied, nil
	}

	s.authenticated = true
	s.input = ""
	s.failures = 0
	s.errorUntil = time.Time{}
	if s.pending != "" {
		s.view = s.pending
		s.pending = ""
	}
	return OutcomeGranted, nil
}
