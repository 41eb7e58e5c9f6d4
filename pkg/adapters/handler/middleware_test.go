package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/shortlink/pkg/adapters/token"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

func TestAuthMiddleware(t *testing.T) {
	tokens, err := token.NewHMACService("testservlet")
	require.NoError(t, err)
	mw := NewMiddleware(tokens, discardLogger())

	valid, err := tokens.Issue(&domain.User{ID: "42", Email: "test@example.com"})
	require.NoError(t, err)

	tests := []struct {
		name           string
		path           string
		bearer         string
		cookieValue    string
		expectedStatus int
		expectedKind   domain.Kind
	}{
		{
			name:           "No Token - API",
			path:           "/api/v1/links",
			expectedStatus: http.StatusUnauthorized,
			expectedKind:   domain.KindUnauthorized,
		},
		{
			name:           "No Token - Outside API",
			path:           "/dashboard",
			expectedStatus: http.StatusUnauthorized,
			expectedKind:   domain.KindUnauthorized,
		},
		{
			name:           "Invalid Cookie - API",
			path:           "/api/v1/links",
			cookieValue:    "invalid",
			expectedStatus: http.StatusUnauthorized,
			expectedKind:   domain.KindInvalidToken,
		},
		{
			name:           "Invalid Bearer - API",
			path:           "/api/v1/links",
			bearer:         "not.a.token",
			expectedStatus: http.StatusUnauthorized,
			expectedKind:   domain.KindInvalidToken,
		},
		{
			name:           "Valid Cookie - API",
			path:           "/api/v1/links",
			cookieValue:    valid,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Valid Bearer - API",
			path:           "/api/v1/links",
			bearer:         valid,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.cookieValue != "" {
				req.AddCookie(&http.Cookie{Name: authCookieName, Value: tt.cookieValue})
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}

			rr := httptest.NewRecorder()
			var seen *domain.Identity
			handler := mw.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = IdentityFrom(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedKind != "" {
				assert.Equal(t, tt.expectedKind, decodeError(t, rr).Kind)
			}
			if tt.expectedStatus == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, "42", seen.UserID)
				assert.Equal(t, "test@example.com", seen.Email)
			}
		})
	}
}

func TestAuthMiddlewareExpiredToken(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	issuer, err := token.NewHMACService("s", token.WithClock(func() time.Time { return past }), token.WithTTL(time.Hour))
	require.NoError(t, err)
	expired, err := issuer.Issue(&domain.User{ID: "1", Email: "old@example.com"})
	require.NoError(t, err)

	verifier, err := token.NewHMACService("s")
	require.NoError(t, err)
	mw := NewMiddleware(verifier, discardLogger())

	req := httptest.NewRequest("GET", "/api/v1/links", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rr := httptest.NewRecorder()
	mw.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("expired token reached the handler")
	})).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, domain.KindInvalidToken, decodeError(t, rr).Kind)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	mw := NewMiddleware(nil, newBufferLogger(&buf))

	var requestID string
	handler := mw.RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/abc123", nil))

	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, rr.Header().Get("X-Request-ID"))
	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "path=/abc123")

	// an incoming id is kept
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "upstream-1")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "upstream-1", rr.Header().Get("X-Request-ID"))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", tt.header)
		assert.Equal(t, tt.want, bearerToken(req), tt.header)
	}
}
