package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/sovaehr/internal/auth"
)

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if seen == "" {
		t.Fatal("expected a generated request id")
	}
	if got := rec.Header().Get("X-Request-Id"); got != seen {
		t.Errorf("header = %q, want %q", got, seen)
	}
}

func TestRequestIDHonoursInbound(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.RequestID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-Id", "edge-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "edge-123" {
		t.Errorf("request id = %q, want edge-123", seen)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-Id", "bad id with spaces\n")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "bad id with spaces\n" {
		t.Error("malformed inbound id should be replaced")
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusNotFound, "level=WARN"},
		{http.StatusInternalServerError, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		handler := RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/signin", nil))

		out := buf.String()
		if !strings.Contains(out, tt.level) {
			t.Errorf("status %d logged %q, want %s", tt.status, out, tt.level)
		}
		if !strings.Contains(out, "path=/signin") || !strings.Contains(out, "request_id=") {
			t.Errorf("missing attrs in %q", out)
		}
	}
}
