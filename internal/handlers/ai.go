package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/Moaaz208/Mizo-Candle/internal/services"
	"github.com/Moaaz208/Mizo-Candle/pkg/utils"
	"github.com/rs/zerolog/log"
)

// videoDownloadPath is where clients fetch generated videos. It must match
// the route registered in cmd/server.
const videoDownloadPath = "/api/v1/ai/video/download"

// AIHandler exposes the AI studio: image, video, media analysis, audio and
// deep thinking tools for authenticated sessions.
type AIHandler struct {
	ai services.AIService
}

// NewAIHandler creates an AI studio handler.
func NewAIHandler(ai services.AIService) *AIHandler {
	return &AIHandler{ai: ai}
}

type imageRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio"`
	ImageSize   string `json:"imageSize"`
}

type editImageRequest struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
}

type videoRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio"`
	Image       string `json:"image"`
}

type analyzeRequest struct {
	Media    string `json:"media"`
	MimeType string `json:"mimeType"`
	Prompt   string `json:"prompt"`
}

type transcribeRequest struct {
	Audio string `json:"audio"`
}

type speechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type thinkRequest struct {
	Query string `json:"query"`
}

// ImageResponse carries an image as a data URL.
type ImageResponse struct {
	Image string `json:"image"`
}

// VideoResponse points at a generated video. DownloadURL goes through this
// service so the provider key never reaches the browser.
type VideoResponse struct {
	URI         string `json:"uri"`
	DownloadURL string `json:"downloadUrl"`
}

// TextResponse carries generated text.
type TextResponse struct {
	Text string `json:"text"`
}

// GenerateImage renders an image from a prompt.
func (h *AIHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if !decodeRequired(w, r, &req, func() bool { return req.Prompt != "" }, "Prompt is required") {
		return
	}

	image, err := h.ai.GenerateImage(r.Context(), req.Prompt, services.ImageOptions{
		AspectRatio: req.AspectRatio,
		ImageSize:   req.ImageSize,
	})
	if err != nil {
		respondAIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, ImageResponse{Image: image})
}

// EditImage applies a prompt to an uploaded image.
func (h *AIHandler) EditImage(w http.ResponseWriter, r *http.Request) {
	var req editImageRequest
	if !decodeRequired(w, r, &req, func() bool { return req.Image != "" && req.Prompt != "" }, "Image and prompt are required") {
		return
	}

	image, err := h.ai.EditImage(r.Context(), req.Image, req.Prompt)
	if err != nil {
		respondAIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, ImageResponse{Image: image})
}

// GenerateVideo starts a video job and waits for it. This can take minutes;
// the server's write timeout must allow for it.
func (h *AIHandler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if !decodeRequired(w, r, &req, func() bool { return req.Prompt != "" }, "Prompt is required") {
		return
	}

	uri, err := h.ai.GenerateVideo(r.Context(), req.Prompt, services.VideoOptions{
		AspectRatio: req.AspectRatio,
		Image:       req.Image,
	})
	if err != nil {
		respondAIError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, r, http.StatusOK, VideoResponse{
		URI:         uri,
		DownloadURL: videoDownloadPath + "?uri=" + url.QueryEscape(uri),
	})
}

// DownloadVideo streams a generated video from the provider.
func (h *AIHandler) DownloadVideo(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "uri is required")
		return
	}

	body, contentType, err := h.ai.DownloadVideo(r.Context(), uri)
	if err != nil {
		respondAIError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		log.Warn().Err(err).Msg("Video download interrupted")
	}
}

// AnalyzeMedia answers a prompt about an uploaded image or video.
func (h *AIHandler) AnalyzeMedia(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeRequired(w, r, &req, func() bool { return req.Media != "" && req.MimeType != "" }, "Media and mimeType are required") {
		return
	}

	text, err := h.ai.AnalyzeMedia(r.Context(), req.Media, req.MimeType, req.Prompt)
	if err != nil {
		respondAIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, TextResponse{Text: text})
}

// Transcribe turns recorded audio into text.
func (h *AIHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if !decodeRequired(w, r, &req, func() bool { return req.Audio != "" }, "Audio is required") {
		return
	}

	text, err := h.ai.Transcribe(r.Context(), req.Audio)
	if err != nil {
		respondAIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, TextResponse{Text: text})
}

// SynthesizeSpeech reads text aloud. The response is raw PCM, base64
// encoded, with its sample rate.
func (h *AIHandler) SynthesizeSpeech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if !decodeRequired(w, r, &req, func() bool { return req.Text != "" }, "Text is required") {
		return
	}

	speech, err := h.ai.SynthesizeSpeech(r.Context(), req.Text, req.Voice)
	if err != nil {
		respondAIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, speech)
}

// DeepThink answers a hard question with an extended reasoning budget.
func (h *AIHandler) DeepThink(w http.ResponseWriter, r *http.Request) {
	var req thinkRequest
	if !decodeRequired(w, r, &req, func() bool { return req.Query != "" }, "Query is required") {
		return
	}

	text, err := h.ai.DeepThink(r.Context(), req.Query)
	if err != nil {
		respondAIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, TextResponse{Text: text})
}

// decodeRequired decodes the body into dst and checks it with valid.
func decodeRequired(w http.ResponseWriter, r *http.Request, dst interface{}, valid func() bool, msg string) bool {
	if err := utils.DecodeJSON(r, dst); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return false
	}
	if !valid() {
		utils.RespondWithError(w, r, http.StatusBadRequest, msg)
		return false
	}
	return true
}

func respondAIError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrForeignVideo):
		utils.RespondWithErrorCode(w, r, http.StatusBadRequest, "foreign_video", err.Error())
	case errors.Is(err, services.ErrNoMedia):
		utils.RespondWithErrorCode(w, r, http.StatusBadGateway, "no_media", "The model did not return any media, try another prompt")
	case errors.Is(err, services.ErrAIUnavailable):
		utils.RespondWithErrorCode(w, r, http.StatusBadGateway, "ai_unavailable", "The AI service is unavailable right now")
	case errors.Is(err, context.Canceled):
		// client went away, nobody to answer
	default:
		log.Error().Err(err).Msg("AI request failed")
		utils.RespondWithErrorCode(w, r, http.StatusBadGateway, "ai_unavailable", "The AI service is unavailable right now")
	}
}
