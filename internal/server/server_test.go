package server

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/sovaehr/internal/authclient"
	"github.com/dukerupert/sovaehr/internal/guard"
	"github.com/dukerupert/sovaehr/internal/handler"
	"github.com/dukerupert/sovaehr/internal/middleware"
	"github.com/dukerupert/sovaehr/internal/notify"
	"github.com/dukerupert/sovaehr/internal/session"
	"github.com/dukerupert/sovaehr/internal/storage"
	"github.com/dukerupert/sovaehr/internal/view"
	ws "github.com/dukerupert/sovaehr/internal/websocket"
	"github.com/dukerupert/sovaehr/web"
)

const testClientID = "5d2a8c1e-7b4f-4e3a-9c6d-1f0e2d3c4b5a"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg Config) (*Server, *session.Provider) {
	t.Helper()
	logger := quietLogger()

	tmpl, err := handler.LoadTemplates(web.Templates)
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	views, err := view.NewRenderer(time.UTC)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	static, err := fs.Sub(web.Static, "static")
	if err != nil {
		t.Fatalf("fs.Sub: %v", err)
	}
	cfg.Static = static
	if cfg.RatePerSecond == 0 {
		cfg.RatePerSecond, cfg.RateBurst = 100, 100
	}

	sessions := session.NewProvider(storage.NewTab(), storage.NewTab(), logger)
	hub := ws.NewHub(logger)
	client := authclient.New("http://127.0.0.1:0", authclient.WithLogger(logger))
	t.Cleanup(client.Wait)

	srv := New(Deps{
		Templates: tmpl,
		Sessions:  sessions,
		Guard:     guard.New(logger),
		Auth:      client,
		Toasts:    notify.NewCenter(notify.NewBoard(), hub, notify.NewManualScheduler(), notify.Config{}, logger),
		Hub:       hub,
		Source:    view.NewSampleSource(time.UTC),
		Views:     views,
	}, cfg, logger)
	return srv, sessions
}

func request(method, target string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	r.AddCookie(&http.Cookie{Name: middleware.ClientCookieName, Value: testClientID})
	return r
}

func tokenExpiringAt(exp time.Time) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`)) + "." +
		enc.EncodeToString([]byte(`{"exp":`+strconv.FormatInt(exp.Unix(), 10)+`}`)) + "." +
		enc.EncodeToString([]byte("signature"))
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("request id header missing")
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("client cookie not issued")
	}
}

func TestLegacyPathsRedirect(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	router := srv.Router()

	for legacy, canonical := range legacyPaths {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, request("GET", legacy))
		if rec.Code != http.StatusMovedPermanently || rec.Header().Get("Location") != canonical {
			t.Errorf("%s: %d %q, want 301 %s", legacy, rec.Code, rec.Header().Get("Location"), canonical)
		}
	}
}

func TestDashboardRequiresSession(t *testing.T) {
	tests := []struct {
		name        string
		token       string
		wantStatus  int
		wantCleared bool
	}{
		{"no token", "", http.StatusSeeOther, false},
		{"valid", tokenExpiringAt(time.Now().Add(time.Hour)), http.StatusOK, false},
		{"expired", tokenExpiringAt(time.Now().Add(-time.Hour)), http.StatusSeeOther, true},
		{"malformed", "not-a-token", http.StatusSeeOther, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, sessions := newTestServer(t, Config{})
			store := sessions.For(testClientID)
			if tt.token != "" {
				store.SetToken(tt.token)
			}

			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, request("GET", "/dashboard"))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Code == http.StatusSeeOther && rec.Header().Get("Location") != "/signin" {
				t.Errorf("Location = %q, want /signin", rec.Header().Get("Location"))
			}
			_, has := store.Token()
			if tt.wantCleared && has {
				t.Error("token should have been cleared")
			}
		})
	}
}

func TestStaticAssets(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, request("GET", "/static/app.js"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "connectLive") {
		t.Error("app.js body not served")
	}
}

func TestUnknownPath(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, request("GET", "/nope"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestFormPostsAreRateLimited(t *testing.T) {
	srv, _ := newTestServer(t, Config{RatePerSecond: 0.001, RateBurst: 1})
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, request("POST", "/demo-request"))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("first status = %d, want 303", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, request("POST", "/demo-request"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", rec.Code)
	}
}

func TestCSRFProtectsForms(t *testing.T) {
	key := []byte(strings.Repeat("k", 32))
	srv, _ := newTestServer(t, Config{CSRFKey: key})
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, request("POST", "/demo-request"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("POST without token = %d, want 403", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, request("GET", "/signin"))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /signin = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `name="gorilla.csrf.Token"`) {
		t.Error("form token field missing")
	}
}
