package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// MakeRequest builds a JSON request. A string body is sent as is, so tests
// can post malformed JSON; anything else is marshalled.
func MakeRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()

	var bodyReader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		bodyReader = strings.NewReader(b)
	default:
		jsonBody, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, url, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req
}

// Serve runs req through h and returns the recorded response.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ParseJSONResponse parses a JSON response into the provided interface
func ParseJSONResponse(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(resp.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to parse JSON response: %v\nBody: %s", err, resp.Body.String())
	}
}

// ErrorCode returns the machine-readable code of an error response.
func ErrorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Code string `json:"code"`
	}
	ParseJSONResponse(t, resp, &body)
	return body.Code
}

// AssertStatusCode checks if the response has the expected status code
func AssertStatusCode(t *testing.T, resp *httptest.ResponseRecorder, expected int) {
	t.Helper()

	if resp.Code != expected {
		t.Errorf("Expected status code %d, got %d\nBody: %s",
			expected, resp.Code, resp.Body.String())
	}
}

// AssertCookie checks if a cookie exists and optionally validates its value
func AssertCookie(t *testing.T, resp *httptest.ResponseRecorder, name string, expectedValue ...string) *http.Cookie {
	t.Helper()

	for _, cookie := range resp.Result().Cookies() {
		if cookie.Name == name {
			if len(expectedValue) > 0 && cookie.Value != expectedValue[0] {
				t.Errorf("Cookie %s: expected value '%s', got '%s'",
					name, expectedValue[0], cookie.Value)
			}
			return cookie
		}
	}

	t.Errorf("Cookie %s not found in response", name)
	return nil
}

// SetCookie adds a cookie to an HTTP request
func SetCookie(req *http.Request, name, value string) {
	req.AddCookie(&http.Cookie{
		Name:  name,
		Value: value,
	})
}

// SetAuthHeader sets the Authorization header with a Bearer token
func SetAuthHeader(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}
