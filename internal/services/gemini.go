package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Moaaz208/Mizo-Candle/pkg/config"
	"github.com/Moaaz208/Mizo-Candle/pkg/utils"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var (
	// ErrAIUnavailable is returned for every model failure: transport errors,
	// non-2xx responses, a disabled client or missing credentials. The
	// underlying cause is logged, never returned.
	ErrAIUnavailable = errors.New("AI service unavailable")

	// ErrNoMedia is returned when an image, speech or video call succeeded
	// but the model produced nothing usable.
	ErrNoMedia = errors.New("model returned no media")

	// ErrForeignVideo is returned by DownloadVideo for URIs outside the
	// Gemini API host.
	ErrForeignVideo = errors.New("video URI does not belong to the AI provider")
)

// Models used by each capability.
const (
	ModelDescription = "gemini-2.5-flash-lite-latest"
	ModelHeroCopy    = "gemini-3-flash-preview"
	ModelImageEdit   = "gemini-2.5-flash-image"
	ModelImagePro    = "gemini-3-pro-image-preview"
	ModelVideo       = "veo-3.1-fast-generate-preview"
	ModelAnalysis    = "gemini-3-pro-preview"
	ModelTranscribe  = "gemini-3-flash-preview"
	ModelSpeech      = "gemini-2.5-flash-preview-tts"
	ModelThinking    = "gemini-3-pro-preview"
	ModelChat        = "gemini-3-pro-preview"
)

// Neutral copy returned when the model fails or answers with nothing.
const (
	FallbackDescriptionEmpty = "Quality product for modern lifestyles."
	FallbackDescriptionError = "High-performance product designed with excellence in mind."
	FallbackAnalysis         = "No analysis generated."
	FallbackTranscription    = "Transcription failed."
	FallbackThinking         = "Thinking session yielded no results."
	ChatFallbackReply        = "Sorry, I'm having trouble connecting to the candle network."
)

// ConciergeInstruction is the system prompt of the storefront chat.
const ConciergeInstruction = "You are the Mizo Candle AI concierge. Help users with questions about our artisanal candles, lighting, and creating a peaceful atmosphere. Be warm, professional, and sophisticated."

const (
	thinkingBudget     = 32768
	defaultVoice       = "Kore"
	defaultAspectRatio = "1:1"
	defaultImageSize   = "1K"
	speechSampleRate   = 24000
)

// HeroCopy is a generated hero headline and subtitle.
type HeroCopy struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

var (
	heroCopyEmpty = HeroCopy{Title: "The Future of Design", Subtitle: "Excellence in every single detail."}
	heroCopyError = HeroCopy{Title: "Curated Excellence", Subtitle: "Handpicked essentials for the discerning modern lifestyle."}
)

// ImageOptions controls pro image generation.
type ImageOptions struct {
	AspectRatio string `json:"aspectRatio"`
	ImageSize   string `json:"imageSize"`
}

// VideoOptions controls video generation. Image is an optional JPEG start
// frame, raw base64 or a data URL.
type VideoOptions struct {
	AspectRatio string `json:"aspectRatio"`
	Image       string `json:"image,omitempty"`
}

// Speech is synthesized audio: raw 16-bit PCM, base64-encoded.
type Speech struct {
	Data       string `json:"data"`
	SampleRate int    `json:"sampleRate"`
}

// AIService is the generative AI boundary. Every method is independent and
// stateless except for chats, which keep their own history.
type AIService interface {
	GenerateText(ctx context.Context, productName, category string) string
	GenerateHeroCopy(ctx context.Context, siteName string) HeroCopy
	GenerateImage(ctx context.Context, prompt string, opts ImageOptions) (string, error)
	EditImage(ctx context.Context, image, prompt string) (string, error)
	GenerateVideo(ctx context.Context, prompt string, opts VideoOptions) (string, error)
	DownloadVideo(ctx context.Context, uri string) (io.ReadCloser, string, error)
	AnalyzeMedia(ctx context.Context, media, mimeType, prompt string) (string, error)
	Transcribe(ctx context.Context, audio string) (string, error)
	SynthesizeSpeech(ctx context.Context, text, voice string) (*Speech, error)
	DeepThink(ctx context.Context, query string) (string, error)
	NewChat(thinking bool) Chat
}

// Chat is a multi-turn concierge conversation.
type Chat interface {
	Send(ctx context.Context, message string) (string, error)
}

// GeminiService talks to the Gemini REST API.
type GeminiService struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	enabled      bool
	pollInterval time.Duration
	maxWait      time.Duration
	retry        utils.RetryConfig
}

// GeminiOption configures a GeminiService.
type GeminiOption func(*GeminiService)

// WithTokenSource authenticates with OAuth2 bearer tokens instead of an API
// key. Mostly useful in tests; production picks up Application Default
// Credentials automatically.
func WithTokenSource(ts oauth2.TokenSource) GeminiOption {
	return func(s *GeminiService) {
		s.apiKey = ""
		s.client = oauth2.NewClient(context.Background(), ts)
	}
}

// WithRetry overrides the retry policy for model calls.
func WithRetry(cfg utils.RetryConfig) GeminiOption {
	return func(s *GeminiService) { s.retry = cfg }
}

// NewGeminiService builds the client. With an API key, requests carry the
// x-goog-api-key header. Without one, Google Application Default Credentials
// are used; if none can be found the service is created disabled and every
// call reports ErrAIUnavailable.
func NewGeminiService(ctx context.Context, cfg *config.AIConfig, opts ...GeminiOption) *GeminiService {
	s := &GeminiService{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		client:       &http.Client{},
		enabled:      cfg.Enabled,
		pollInterval: cfg.VideoPollInterval,
		maxWait:      cfg.VideoMaxWait,
		retry:        utils.ExternalAPIRetryConfig(),
	}

	if s.enabled && s.apiKey == "" {
		ts, err := google.DefaultTokenSource(ctx,
			"https://www.googleapis.com/auth/generative-language",
			"https://www.googleapis.com/auth/cloud-platform",
		)
		if err != nil {
			log.Warn().Err(err).Msg("No Gemini API key or default credentials, AI features disabled")
			s.enabled = false
		} else {
			s.client = oauth2.NewClient(ctx, ts)
		}
	}

	for _, opt := range opts {
		opt(s)
	}

	s.client.Timeout = cfg.RequestTimeout
	if s.pollInterval <= 0 {
		s.pollInterval = 5 * time.Second
	}

	return s
}

// Enabled reports whether model calls can be attempted.
func (s *GeminiService) Enabled() bool {
	return s.enabled
}

// GenerateText writes a two-sentence marketing description for a product.
// It never fails: errors and empty answers yield neutral copy.
func (s *GeminiService) GenerateText(ctx context.Context, productName, category string) string {
	prompt := fmt.Sprintf(
		`Write a sophisticated, 2-sentence marketing description for a premium product named "%s" in the "%s" category. Focus on innovation and quality.`,
		productName, category,
	)

	res, err := s.generate(ctx, ModelDescription, generateRequest{Contents: userText(prompt)})
	if err != nil {
		return FallbackDescriptionError
	}
	if text := responseText(res); text != "" {
		return text
	}
	return FallbackDescriptionEmpty
}

// GenerateHeroCopy writes a short headline and subtitle for the storefront
// hero. Like GenerateText it always returns usable copy.
func (s *GeminiService) GenerateHeroCopy(ctx context.Context, siteName string) HeroCopy {
	prompt := fmt.Sprintf(
		`Write a powerful, short hero headline (max 5 words) and a compelling subtitle (max 15 words) for a high-end showcase website named "%s". Format as JSON with "title" and "subtitle" keys.`,
		siteName,
	)

	res, err := s.generate(ctx, ModelHeroCopy, generateRequest{
		Contents:         userText(prompt),
		GenerationConfig: map[string]interface{}{"responseMimeType": "application/json"},
	})
	if err != nil {
		return heroCopyError
	}

	text := responseText(res)
	if text == "" {
		return heroCopyEmpty
	}
	if !gjson.Valid(text) {
		log.Warn().Str("model", ModelHeroCopy).Msg("Hero copy is not valid JSON")
		return heroCopyError
	}

	parsed := gjson.Parse(text)
	hero := HeroCopy{
		Title:    parsed.Get("title").String(),
		Subtitle: parsed.Get("subtitle").String(),
	}
	if hero.Title == "" || hero.Subtitle == "" {
		return heroCopyError
	}
	return hero
}

// GenerateImage renders a new image and returns it as a PNG data URL.
func (s *GeminiService) GenerateImage(ctx context.Context, prompt string, opts ImageOptions) (string, error) {
	if opts.AspectRatio == "" {
		opts.AspectRatio = defaultAspectRatio
	}
	if opts.ImageSize == "" {
		opts.ImageSize = defaultImageSize
	}

	res, err := s.generate(ctx, ModelImagePro, generateRequest{
		Contents: userText(prompt),
		GenerationConfig: map[string]interface{}{
			"imageConfig": map[string]string{
				"aspectRatio": opts.AspectRatio,
				"imageSize":   opts.ImageSize,
			},
		},
	})
	if err != nil {
		return "", err
	}
	return imageDataURL(res)
}

// EditImage applies prompt to a JPEG image and returns a PNG data URL.
func (s *GeminiService) EditImage(ctx context.Context, image, prompt string) (string, error) {
	res, err := s.generate(ctx, ModelImageEdit, generateRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &inlineData{MimeType: "image/jpeg", Data: stripDataURL(image)}},
				{Text: prompt},
			},
		}},
	})
	if err != nil {
		return "", err
	}
	return imageDataURL(res)
}

// GenerateVideo starts a video job and polls it every poll interval until it
// finishes. It returns the provider URI of the generated video; the URI needs
// credentials to download, see DownloadVideo.
func (s *GeminiService) GenerateVideo(ctx context.Context, prompt string, opts VideoOptions) (string, error) {
	if opts.AspectRatio != "9:16" {
		opts.AspectRatio = "16:9"
	}

	instance := map[string]interface{}{"prompt": prompt}
	if opts.Image != "" {
		instance["image"] = map[string]string{
			"bytesBase64Encoded": stripDataURL(opts.Image),
			"mimeType":           "image/jpeg",
		}
	}

	body := map[string]interface{}{
		"instances": []interface{}{instance},
		"parameters": map[string]interface{}{
			"numberOfVideos": 1,
			"resolution":     "720p",
			"aspectRatio":    opts.AspectRatio,
		},
	}

	op, err := s.call(ctx, http.MethodPost, "/models/"+ModelVideo+":predictLongRunning", body)
	if err != nil {
		return "", err
	}

	name := op.Get("name").String()
	if name == "" {
		log.Error().Str("model", ModelVideo).Msg("Video operation has no name")
		return "", ErrAIUnavailable
	}

	if s.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.maxWait)
		defer cancel()
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for !op.Get("done").Bool() {
		select {
		case <-ctx.Done():
			log.Warn().Err(ctx.Err()).Str("operation", name).Msg("Gave up waiting for video")
			return "", ErrAIUnavailable
		case <-ticker.C:
		}

		op, err = s.call(ctx, http.MethodGet, "/"+strings.TrimPrefix(name, "/"), nil)
		if err != nil {
			return "", err
		}
	}

	if msg := op.Get("error.message").String(); msg != "" {
		log.Error().Str("operation", name).Str("error", msg).Msg("Video generation failed")
		return "", ErrAIUnavailable
	}

	for _, path := range []string{
		"response.generateVideoResponse.generatedSamples.0.video.uri",
		"response.generatedVideos.0.video.uri",
	} {
		if uri := op.Get(path).String(); uri != "" {
			return uri, nil
		}
	}
	return "", ErrNoMedia
}

// DownloadVideo streams a generated video. The provider URI is fetched with
// the server's credentials so the key never reaches the browser.
func (s *GeminiService) DownloadVideo(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	if !s.enabled {
		return nil, "", ErrAIUnavailable
	}

	target, err := url.Parse(uri)
	if err != nil {
		return nil, "", ErrForeignVideo
	}
	base, err := url.Parse(s.baseURL)
	if err != nil || target.Scheme != base.Scheme || target.Host != base.Host {
		return nil, "", ErrForeignVideo
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, "", ErrForeignVideo
	}
	resp, err := s.do(req)
	if err != nil {
		log.Error().Err(err).Msg("Video download failed")
		return nil, "", ErrAIUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		log.Error().Int("status", resp.StatusCode).Msg("Video download rejected")
		return nil, "", ErrAIUnavailable
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	return resp.Body, contentType, nil
}

// AnalyzeMedia answers prompt about an image or a video.
func (s *GeminiService) AnalyzeMedia(ctx context.Context, media, mimeType, prompt string) (string, error) {
	res, err := s.generate(ctx, ModelAnalysis, generateRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &inlineData{MimeType: mimeType, Data: stripDataURL(media)}},
				{Text: prompt},
			},
		}},
	})
	if err != nil {
		return "", err
	}
	return textOr(res, FallbackAnalysis), nil
}

// Transcribe turns a WAV recording into text.
func (s *GeminiService) Transcribe(ctx context.Context, audio string) (string, error) {
	res, err := s.generate(ctx, ModelTranscribe, generateRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &inlineData{MimeType: "audio/wav", Data: stripDataURL(audio)}},
				{Text: "Transcribe this audio accurately. If it is empty, say so."},
			},
		}},
	})
	if err != nil {
		return "", err
	}
	return textOr(res, FallbackTranscription), nil
}

// SynthesizeSpeech reads text aloud with a prebuilt voice.
func (s *GeminiService) SynthesizeSpeech(ctx context.Context, text, voice string) (*Speech, error) {
	if voice == "" {
		voice = defaultVoice
	}

	res, err := s.generate(ctx, ModelSpeech, generateRequest{
		Contents: userText(text),
		GenerationConfig: map[string]interface{}{
			"responseModalities": []string{"AUDIO"},
			"speechConfig": map[string]interface{}{
				"voiceConfig": map[string]interface{}{
					"prebuiltVoiceConfig": map[string]string{"voiceName": voice},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	data := res.Get("candidates.0.content.parts.0.inlineData.data").String()
	if data == "" {
		return nil, ErrNoMedia
	}
	return &Speech{Data: data, SampleRate: speechSampleRate}, nil
}

// DeepThink answers with the maximum thinking budget.
func (s *GeminiService) DeepThink(ctx context.Context, query string) (string, error) {
	res, err := s.generate(ctx, ModelThinking, generateRequest{
		Contents:         userText(query),
		GenerationConfig: thinkingConfig(),
	})
	if err != nil {
		return "", err
	}
	return textOr(res, FallbackThinking), nil
}

// NewChat starts an empty concierge conversation.
func (s *GeminiService) NewChat(thinking bool) Chat {
	return &geminiChat{svc: s, thinking: thinking}
}

type geminiChat struct {
	svc      *GeminiService
	thinking bool

	mu      sync.Mutex
	history []geminiContent
}

// Send appends the message to the conversation and returns the reply. A
// failed turn is not kept in the history.
func (c *geminiChat) Send(ctx context.Context, message string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	turn := geminiContent{Role: "user", Parts: []geminiPart{{Text: message}}}
	contents := append(append([]geminiContent{}, c.history...), turn)

	req := generateRequest{
		Contents:          contents,
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: ConciergeInstruction}}},
	}
	if c.thinking {
		req.GenerationConfig = thinkingConfig()
	}

	res, err := c.svc.generate(ctx, ModelChat, req)
	if err != nil {
		return "", err
	}

	reply := responseText(res)
	c.history = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: reply}}})
	return reply, nil
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generateRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  map[string]interface{} `json:"generationConfig,omitempty"`
}

func userText(text string) []geminiContent {
	return []geminiContent{{Role: "user", Parts: []geminiPart{{Text: text}}}}
}

func thinkingConfig() map[string]interface{} {
	return map[string]interface{}{
		"thinkingConfig": map[string]int{"thinkingBudget": thinkingBudget},
	}
}

func (s *GeminiService) generate(ctx context.Context, model string, req generateRequest) (gjson.Result, error) {
	return s.call(ctx, http.MethodPost, "/models/"+model+":generateContent", req)
}

// call performs one API request with retries on rate limits and server
// errors. Every failure is logged and collapsed into ErrAIUnavailable.
func (s *GeminiService) call(ctx context.Context, method, path string, payload interface{}) (gjson.Result, error) {
	if !s.enabled {
		return gjson.Result{}, ErrAIUnavailable
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to encode AI request")
			return gjson.Result{}, ErrAIUnavailable
		}
	}

	var result gjson.Result
	err := utils.Retry(ctx, s.retry, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := s.do(req)
		if err != nil {
			return utils.NewRetryableError(err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return utils.NewRetryableError(err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := fmt.Errorf("status %d: %s", resp.StatusCode, gjson.GetBytes(data, "error.message").String())
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return utils.NewRetryableError(apiErr)
			}
			return apiErr
		}

		if !gjson.ValidBytes(data) {
			return fmt.Errorf("invalid JSON response")
		}
		result = gjson.ParseBytes(data)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("path", path).Msg("AI request failed")
		return gjson.Result{}, ErrAIUnavailable
	}
	return result, nil
}

func (s *GeminiService) do(req *http.Request) (*http.Response, error) {
	if s.apiKey != "" {
		req.Header.Set("x-goog-api-key", s.apiKey)
	}
	return s.client.Do(req)
}

// responseText joins the text parts of the first candidate, skipping
// thought summaries.
func responseText(res gjson.Result) string {
	var b strings.Builder
	res.Get("candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		if !part.Get("thought").Bool() {
			b.WriteString(part.Get("text").String())
		}
		return true
	})
	return strings.TrimSpace(b.String())
}

func textOr(res gjson.Result, fallback string) string {
	if text := responseText(res); text != "" {
		return text
	}
	return fallback
}

func imageDataURL(res gjson.Result) (string, error) {
	var data string
	res.Get("candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		data = part.Get("inlineData.data").String()
		return data == ""
	})
	if data == "" {
		return "", ErrNoMedia
	}
	return "data:image/png;base64," + data, nil
}

// stripDataURL accepts either a data URL or bare base64.
func stripDataURL(s string) string {
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}
