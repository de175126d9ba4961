package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIPAllowlist(t *testing.T) {
	rules := map[string][]string{
		"/api/sign/order":    {"10.0.0.5", "10.0.0.6"},
		"/api/sign/transfer": {},
	}
	h := IPAllowlist(rules, testLogger())(okHandler())

	tests := []struct {
		name       string
		path       string
		remoteAddr string
		headers    map[string]string
		want       int
	}{
		{"listed ip allowed", "/api/sign/order", "10.0.0.5:44321", nil, http.StatusOK},
		{"unlisted ip refused", "/api/sign/order", "10.0.0.9:44321", nil, http.StatusForbidden},
		{"forwarded-for honoured", "/api/sign/order", "172.16.0.1:80",
			map[string]string{"X-Forwarded-For": "10.0.0.6, 172.16.0.1"}, http.StatusOK},
		{"real-ip honoured", "/api/sign/order", "172.16.0.1:80",
			map[string]string{"X-Real-IP": "10.0.0.5"}, http.StatusOK},
		{"empty rule passes everyone", "/api/sign/transfer", "10.0.0.9:44321", nil, http.StatusOK},
		{"unruled path passes everyone", "/api/audit", "10.0.0.9:44321", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:5000"
	assert.Equal(t, "192.168.1.10", ClientIP(req))

	req.Header.Set("X-Real-IP", "10.1.1.1")
	assert.Equal(t, "10.1.1.1", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "10.2.2.2, 10.1.1.1")
	assert.Equal(t, "10.2.2.2", ClientIP(req))
}
