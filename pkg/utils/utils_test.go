package utils

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.42, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.42"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.7 "}, "10.0.0.2:1234", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"no port", nil, "192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ExtractClientIP(req))
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	for ip, want := range map[string]bool{
		"127.0.0.1":    true,
		"10.1.2.3":     true,
		"192.168.1.10": true,
		"169.254.1.1":  true,
		"::1":          true,
		"203.0.113.42": false,
		"8.8.8.8":      false,
		"not-an-ip":    false,
	} {
		assert.Equal(t, want, IsPrivateIP(ip), ip)
	}
}

func TestParsePageParams(t *testing.T) {
	tests := []struct {
		query        string
		wantPage     int
		wantPageSize int
		wantOffset   int
	}{
		{"", 1, DefaultPageSize, 0},
		{"page=3&page_size=10", 3, 10, 20},
		{"page=0&page_size=0", 1, MinPageSize, 0},
		{"page=-2&page_size=5000", 1, MaxPageSize, 0},
		{"page=abc", 1, DefaultPageSize, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := ParsePageParams(httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil))
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantPageSize, p.PageSize)
			assert.Equal(t, tt.wantOffset, p.Offset)
		})
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page := Paginate(items, PageParams{Page: 2, PageSize: 2, Offset: 2})
	assert.Equal(t, []int{3, 4}, page.Data)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.True(t, page.Pagination.HasNext)

	past := Paginate(items, PageParams{Page: 9, PageSize: 2, Offset: 16})
	assert.Equal(t, []int{}, past.Data)
	assert.False(t, past.Pagination.HasNext)

	empty := Paginate([]int{}, PageParams{Page: 1, PageSize: 20})
	assert.Equal(t, 1, empty.Pagination.TotalPages)
}

func TestRespondWithErrorCode(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRequestID(req.Context(), "req-123"))
	rec := httptest.NewRecorder()

	RespondWithErrorCode(rec, req, http.StatusLocked, "site_locked", "Enter the passcode")

	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Locked","code":"site_locked","message":"Enter the passcode","request_id":"req-123"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Amber"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "Amber", dst.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nmae":"Amber"}`))
	assert.Error(t, DecodeJSON(req, &dst), "unknown fields are rejected")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.EqualError(t, DecodeJSON(req, &dst), "request body is empty")
}

func TestSetSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "app_session", "tok", time.Now().Add(time.Hour), true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), fastRetry(3), func() error {
			calls++
			if calls < 3 {
				return errors.New("not yet")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		cause := errors.New("down")
		err := Retry(context.Background(), fastRetry(2), func() error { return cause })
		assert.ErrorIs(t, err, cause)
	})

	t.Run("only marked errors", func(t *testing.T) {
		cfg := fastRetry(5)
		cfg.OnlyMarked = true

		calls := 0
		err := Retry(context.Background(), cfg, func() error {
			calls++
			if calls == 1 {
				return NewRetryableError(errors.New("429"))
			}
			return errors.New("400")
		})
		assert.EqualError(t, err, "400")
		assert.Equal(t, 2, calls)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		cfg := fastRetry(3)
		cfg.InitialDelay = time.Hour
		cfg.MaxDelay = time.Hour

		err := Retry(ctx, cfg, func() error { return errors.New("down") })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCalculateDelayCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, calculateDelay(1, cfg))
	assert.Equal(t, 200*time.Millisecond, calculateDelay(2, cfg))
	assert.Equal(t, 300*time.Millisecond, calculateDelay(5, cfg))
}
