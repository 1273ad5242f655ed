package handler

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
)

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{
		JWTSecret: "testservlet",
	}
	mw := NewMiddleware(cfg)

	valid := generateTestToken(t, cfg.JWTSecret, "7", time.Now().Add(5*time.Minute))

	tests := []struct {
		name           string
		cookieValue    string
		header         string
		expectedStatus int
		expectedUser   int64
	}{
		{
			name:           "No Token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Cookie",
			cookieValue:    "invalid",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Valid Cookie",
			cookieValue:    valid,
			expectedStatus: http.StatusOK,
			expectedUser:   7,
		},
		{
			name:           "Valid Bearer Header",
			header:         "Bearer " + valid,
			expectedStatus: http.StatusOK,
			expectedUser:   7,
		},
		{
			name:           "Expired Token",
			header:         "Bearer " + generateTestToken(t, cfg.JWTSecret, "7", time.Now().Add(-time.Minute)),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong Secret",
			header:         "Bearer " + generateTestToken(t, "other", "7", time.Now().Add(time.Minute)),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Non Numeric Subject",
			header:         "Bearer " + generateTestToken(t, cfg.JWTSecret, "test@example.com", time.Now().Add(time.Minute)),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/links", nil)
			if tt.cookieValue != "" {
				req.AddCookie(&http.Cookie{Name: authCookie, Value: tt.cookieValue})
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			var gotUser int64
			rr := httptest.NewRecorder()
			handler := mw.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = UserIDFrom(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, tt.expectedUser, gotUser)
		})
	}
}

func TestSignTokenRoundTrip(t *testing.T) {
	mw := NewMiddleware(&config.Config{JWTSecret: "s"})
	token, err := SignToken("s", 99, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	mw.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strconv.FormatInt(UserIDFrom(r.Context()), 10)))
	})).ServeHTTP(rr, req)

	assert.Equal(t, "99", rr.Body.String())
}

func generateTestToken(t *testing.T, secret, subject string, expiresAt time.Time) string {
	claims := &jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return tokenString
}
