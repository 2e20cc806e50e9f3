package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Moaaz208/Mizo-Candle/internal/gateway"
	"github.com/Moaaz208/Mizo-Candle/internal/middleware"
	"github.com/Moaaz208/Mizo-Candle/internal/services"
	"github.com/Moaaz208/Mizo-Candle/pkg/utils"
	"github.com/rs/zerolog/log"
)

// AppController drives the per-client access gateway.
type AppController interface {
	Boot(ctx context.Context, ip, userAgent string, report services.ClientReport) (*services.BootResult, error)
	State(session *services.ClientSession) services.AppState
	Navigate(session *services.ClientSession, view string) (services.AppState, error)
	PressKey(session *services.ClientSession, key string) (gateway.Outcome, services.AppState, error)
	SubmitPasscode(session *services.ClientSession, passcode string) (gateway.Outcome, services.AppState, error)
	CancelGate(session *services.ClientSession) (services.AppState, error)
	Logout(session *services.ClientSession) services.AppState
}

// AppHandler serves the client shell: boot, navigation and the passcode
// keypad. Every route except Boot runs behind middleware.SessionAuth.
type AppHandler struct {
	app          AppController
	cookieName   string
	isProduction bool
}

// NewAppHandler creates an app handler. The session token is also set as a
// cookie named cookieName.
func NewAppHandler(app AppController, cookieName string, isProduction bool) *AppHandler {
	return &AppHandler{
		app:          app,
		cookieName:   cookieName,
		isProduction: isProduction,
	}
}

// BootResponse is returned once per app load.
type BootResponse struct {
	SessionID string            `json:"session_id"`
	Token     string            `json:"token"`
	ExpiresAt int64             `json:"expires_at"`
	State     services.AppState `json:"state"`
}

// GateResponse reports the effect of a keypad event.
type GateResponse struct {
	Outcome gateway.Outcome   `json:"outcome,omitempty"`
	State   services.AppState `json:"state"`
}

type navigateRequest struct {
	View string `json:"view"`
}

type keyRequest struct {
	Key string `json:"key"`
}

type passcodeRequest struct {
	Passcode string `json:"passcode"`
}

// Boot starts a client session.
//
// The optional body is the client's environment report used for the visitor
// snapshot. The snapshot is captured in the background and never delays the
// response.
func (h *AppHandler) Boot(w http.ResponseWriter, r *http.Request) {
	var report services.ClientReport
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &report); err != nil {
			utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	res, err := h.app.Boot(r.Context(), utils.ExtractClientIP(r), r.UserAgent(), report)
	if err != nil {
		log.Error().Err(err).Msg("Failed to boot client session")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to start session")
		return
	}

	utils.SetSessionCookie(w, h.cookieName, res.Token.Token, res.Token.ExpiresAt, h.isProduction)

	utils.RespondWithJSON(w, r, http.StatusOK, BootResponse{
		SessionID: res.Session.ID,
		Token:     res.Token.Token,
		ExpiresAt: res.Token.ExpiresAt.Unix(),
		State:     res.State,
	})
}

// State returns the current gate and view state.
func (h *AppHandler) State(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, h.app.State(session))
}

// Navigate requests a view. A protected view opens the passcode gate when
// the session is not authenticated yet; the response shows it as pending.
func (h *AppHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	var req navigateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.app.Navigate(session, req.View)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, state)
}

// PressKey feeds one keypad key: "0" to "9", "C" or "OK".
//
// A wrong passcode is not an error: the response carries outcome "denied"
// and the state's error flag.
func (h *AppHandler) PressKey(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	var req keyRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	outcome, state, err := h.app.PressKey(session, req.Key)
	if err != nil {
		setRetryAfter(w, state)
		respondAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, GateResponse{Outcome: outcome, State: state})
}

// SubmitPasscode checks a whole passcode at once, for clients that collect
// the digits themselves.
func (h *AppHandler) SubmitPasscode(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	var req passcodeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	outcome, state, err := h.app.SubmitPasscode(session, req.Passcode)
	if err != nil {
		setRetryAfter(w, state)
		respondAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, GateResponse{Outcome: outcome, State: state})
}

// CancelGate abandons a pending protected view.
func (h *AppHandler) CancelGate(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	state, err := h.app.CancelGate(session)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, GateResponse{State: state})
}

// Logout drops the session's authentication. The session itself and its
// token stay valid.
func (h *AppHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, h.app.Logout(session))
}

// ReportLocation delivers the precise location the user allowed after boot.
// Only the first report counts; it is used if the boot snapshot is still
// waiting for it.
func (h *AppHandler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	var req services.Coordinates
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondWithJSON(w, r, http.StatusAccepted, map[string]bool{
		"accepted": session.ReportLocation(req),
	})
}

// sessionFrom fetches the session set by SessionAuth, answering 401 when the
// route was mounted without it.
func sessionFrom(w http.ResponseWriter, r *http.Request) (*services.ClientSession, bool) {
	session, ok := middleware.GetClientSession(r.Context())
	if !ok {
		utils.RespondWithErrorCode(w, r, http.StatusUnauthorized, "session_required", "Missing session")
		return nil, false
	}
	return session, true
}

// setRetryAfter tells a throttled client when the keypad unlocks.
func setRetryAfter(w http.ResponseWriter, state services.AppState) {
	if state.LockedUntil == nil {
		return
	}
	secs := int(math.Ceil(time.Until(*state.LockedUntil).Seconds()))
	if secs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
}

func respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidView):
		utils.RespondWithErrorCode(w, r, http.StatusBadRequest, "invalid_view", err.Error())
	case errors.Is(err, gateway.ErrInvalidKey):
		utils.RespondWithErrorCode(w, r, http.StatusBadRequest, "invalid_key", err.Error())
	case errors.Is(err, gateway.ErrGateClosed):
		utils.RespondWithErrorCode(w, r, http.StatusConflict, "gate_closed", err.Error())
	case errors.Is(err, gateway.ErrNothingPending):
		utils.RespondWithErrorCode(w, r, http.StatusConflict, "nothing_pending", err.Error())
	case errors.Is(err, gateway.ErrGlobalLock):
		utils.RespondWithErrorCode(w, r, http.StatusLocked, "site_locked", err.Error())
	case errors.Is(err, gateway.ErrThrottled):
		utils.RespondWithErrorCode(w, r, http.StatusTooManyRequests, "throttled", err.Error())
	default:
		log.Error().Err(err).Str("request_id", utils.GetRequestID(r.Context())).Msg("Unexpected app error")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Internal error")
	}
}
