package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddleware(t *testing.T) {
	const secret = "test-secret"
	id := uuid.New()
	token, _, _, err := GenerateToken(id, "ada@example.com", secret, time.Hour)
	require.NoError(t, err)

	var seen *Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = nil
		if p, ok := PrincipalFromContext(r.Context()); ok {
			seen = &p
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := HTTPMiddleware(next, secret, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		header     string
		wantStatus int
		wantCaller bool
	}{
		{name: "protected without token", method: http.MethodPost, path: "/v1/requests", wantStatus: http.StatusUnauthorized},
		{name: "protected with token", method: http.MethodPost, path: "/v1/requests", header: "Bearer " + token, wantStatus: http.StatusOK, wantCaller: true},
		{name: "protected with bad token", method: http.MethodPatch, path: "/v1/requests/x/status", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "read without token", method: http.MethodGet, path: "/v1/board", wantStatus: http.StatusOK},
		{name: "read with token", method: http.MethodGet, path: "/v1/board", header: "Bearer " + token, wantStatus: http.StatusOK, wantCaller: true},
		{name: "metrics is open", method: http.MethodPost, path: "/metrics", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCaller {
				require.NotNil(t, seen)
				assert.Equal(t, id, seen.ProfileID)
			}
		})
	}
}
