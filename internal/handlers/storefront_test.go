package handlers

import (
	"net/http"
	"testing"

	"github.com/Moaaz208/Mizo-Candle/internal/gateway"
	"github.com/Moaaz208/Mizo-Candle/internal/services"
	"github.com/Moaaz208/Mizo-Candle/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStorefrontHandler(t *testing.T) {
	f := setupApp(t, true, gateway.Options{})
	h := NewStorefrontHandler(f.app, f.ai)

	rec := testutil.Serve(http.HandlerFunc(h.Storefront), testutil.MakeRequest(t, http.MethodGet, "/api/v1/storefront", nil))
	testutil.AssertStatusCode(t, rec, http.StatusOK)

	assert.NotContains(t, rec.Body.String(), testutil.TestPasscode)
	assert.NotContains(t, rec.Body.String(), "masterPasscode")

	var shop services.Storefront
	testutil.ParseJSONResponse(t, rec, &shop)
	assert.Equal(t, "Mizo Candle", shop.Config.SiteName)
	require.NotEmpty(t, shop.Products)
	for _, p := range shop.Products {
		assert.Equal(t, p.FinalPrice, p.Product.FinalPrice())
	}
}

func TestChatHandler(t *testing.T) {
	t.Run("first message opens the conversation", func(t *testing.T) {
		f := setupApp(t, true, gateway.Options{})
		h := NewStorefrontHandler(f.app, f.ai)
		s := f.session(t)

		chat := new(MockChat)
		f.ai.On("NewChat", true).Return(chat).Once()
		chat.On("Send", mock.Anything, "Which scent for a study?").Return("Try sandalwood.", nil).Once()
		chat.On("Send", mock.Anything, "And for a bedroom?").Return("Lavender.", nil).Once()

		var body ChatResponse
		rec := testutil.Serve(http.HandlerFunc(h.Chat), withSession(testutil.MakeRequest(t, http.MethodPost, "/", ChatRequest{Message: "Which scent for a study?", Thinking: true}), s))
		testutil.AssertStatusCode(t, rec, http.StatusOK)
		testutil.ParseJSONResponse(t, rec, &body)
		assert.Equal(t, "Try sandalwood.", body.Reply)
		assert.False(t, body.Fallback)

		// thinking is fixed by the first message
		rec = testutil.Serve(http.HandlerFunc(h.Chat), withSession(testutil.MakeRequest(t, http.MethodPost, "/", ChatRequest{Message: "And for a bedroom?"}), s))
		testutil.ParseJSONResponse(t, rec, &body)
		assert.Equal(t, "Lavender.", body.Reply)

		f.ai.AssertExpectations(t)
		chat.AssertExpectations(t)
	})

	t.Run("failed turn answers with the apology", func(t *testing.T) {
		f := setupApp(t, true, gateway.Options{})
		h := NewStorefrontHandler(f.app, f.ai)

		chat := new(MockChat)
		f.ai.On("NewChat", false).Return(chat)
		chat.On("Send", mock.Anything, "hello").Return("", services.ErrAIUnavailable)

		rec := testutil.Serve(http.HandlerFunc(h.Chat), withSession(testutil.MakeRequest(t, http.MethodPost, "/", ChatRequest{Message: "hello"}), f.session(t)))
		testutil.AssertStatusCode(t, rec, http.StatusOK)

		var body ChatResponse
		testutil.ParseJSONResponse(t, rec, &body)
		assert.Equal(t, services.ChatFallbackReply, body.Reply)
		assert.True(t, body.Fallback)
	})

	t.Run("empty message", func(t *testing.T) {
		f := setupApp(t, true, gateway.Options{})
		h := NewStorefrontHandler(f.app, f.ai)

		rec := testutil.Serve(http.HandlerFunc(h.Chat), withSession(testutil.MakeRequest(t, http.MethodPost, "/", ChatRequest{Message: "   "}), f.session(t)))
		testutil.AssertStatusCode(t, rec, http.StatusBadRequest)
		f.ai.AssertNotCalled(t, "NewChat", mock.Anything)
	})

	t.Run("reset starts a new conversation", func(t *testing.T) {
		f := setupApp(t, true, gateway.Options{})
		h := NewStorefrontHandler(f.app, f.ai)
		s := f.session(t)

		old := new(MockChat)
		s.SetChat(old)

		rec := testutil.Serve(http.HandlerFunc(h.ResetChat), withSession(testutil.MakeRequest(t, http.MethodPost, "/", nil), s))
		testutil.AssertStatusCode(t, rec, http.StatusNoContent)
		assert.Nil(t, s.Chat())

		fresh := new(MockChat)
		f.ai.On("NewChat", false).Return(fresh).Once()
		fresh.On("Send", mock.Anything, "hi").Return("Welcome back.", nil)

		testutil.Serve(http.HandlerFunc(h.Chat), withSession(testutil.MakeRequest(t, http.MethodPost, "/", ChatRequest{Message: "hi"}), s))
		old.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		fresh.AssertExpectations(t)
	})

	t.Run("no session", func(t *testing.T) {
		h := NewStorefrontHandler(nil, nil)

		rec := testutil.Serve(http.HandlerFunc(h.Chat), testutil.MakeRequest(t, http.MethodPost, "/", ChatRequest{Message: "hi"}))
		testutil.AssertStatusCode(t, rec, http.StatusUnauthorized)
	})
}
