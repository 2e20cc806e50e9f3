package handlers

import (
	"net/http"
	"strings"

	"github.com/Moaaz208/Mizo-Candle/internal/services"
	"github.com/Moaaz208/Mizo-Candle/pkg/utils"
	"github.com/rs/zerolog/log"
)

// StorefrontReader exposes the public shop.
type StorefrontReader interface {
	Storefront() services.Storefront
}

// ChatStarter opens concierge conversations.
type ChatStarter interface {
	NewChat(thinking bool) services.Chat
}

// StorefrontHandler serves the public shop and the concierge chat. Both are
// hidden while the whole site is locked.
type StorefrontHandler struct {
	shop StorefrontReader
	ai   ChatStarter
}

// NewStorefrontHandler creates a storefront handler.
func NewStorefrontHandler(shop StorefrontReader, ai ChatStarter) *StorefrontHandler {
	return &StorefrontHandler{shop: shop, ai: ai}
}

// ChatRequest is one user turn. Thinking only takes effect on the first
// message of a conversation.
type ChatRequest struct {
	Message  string `json:"message"`
	Thinking bool   `json:"thinking"`
}

// ChatResponse is the concierge's reply.
type ChatResponse struct {
	Reply    string `json:"reply"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Storefront returns branding (without the passcode) and the catalog.
func (h *StorefrontHandler) Storefront(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, r, http.StatusOK, h.shop.Storefront())
}

// Chat sends a message to the session's concierge conversation, starting one
// if needed. A failed turn is answered with a fixed apology instead of an
// error, and is not kept in the history.
func (h *StorefrontHandler) Chat(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Message is required")
		return
	}

	chat := session.Chat()
	if chat == nil {
		chat = h.ai.NewChat(req.Thinking)
		session.SetChat(chat)
	}

	reply, err := chat.Send(r.Context(), req.Message)
	if err != nil {
		log.Warn().Err(err).Str("session_id", session.ID).Msg("Concierge chat failed")
		utils.RespondWithJSON(w, r, http.StatusOK, ChatResponse{Reply: services.ChatFallbackReply, Fallback: true})
		return
	}

	utils.RespondWithJSON(w, r, http.StatusOK, ChatResponse{Reply: reply})
}

// ResetChat forgets the session's conversation.
func (h *StorefrontHandler) ResetChat(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	session.SetChat(nil)
	w.WriteHeader(http.StatusNoContent)
}
