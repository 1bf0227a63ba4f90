// Package session keeps one browser's bearer token and remembered emails on
// top of its durable and tab-scoped storage areas.
package session

import (
	"log/slog"
	"time"

	"github.com/dukerupert/sovaehr/internal/storage"
)

const (
	TokenKey           = "sovaehr:auth-token"
	LastSigninEmailKey = "sovaehr:last-signin-email"
	LastSignupEmailKey = "sovaehr:last-signup-email"
	LastDemoRequestKey = "sovaehr:last-demo-request"

	// Keys written by the earlier page scripts. Read as a fallback, removed on clear.
	LegacyTokenKey = "authToken"
	LegacyEmailKey = "userEmail"
)

// AreaSource hands out a browser's storage area.
type AreaSource interface {
	For(clientID string) storage.Area
}

// Provider builds a Store per browser.
type Provider struct {
	durable AreaSource
	tab     AreaSource
	logger  *slog.Logger
}

func NewProvider(durable, tab AreaSource, logger *slog.Logger) *Provider {
	return &Provider{durable: durable, tab: tab, logger: logger.With("component", "session")}
}

func (p *Provider) For(clientID string) *Store {
	return New(p.durable.For(clientID), p.tab.For(clientID), p.logger.With("client_id", clientID))
}

// Store reads and writes session state. Storage failures are logged and read
// as "absent"; no method returns an error.
type Store struct {
	durable storage.Area
	tab     storage.Area
	logger  *slog.Logger
}

func New(durable, tab storage.Area, logger *slog.Logger) *Store {
	return &Store{durable: durable, tab: tab, logger: logger}
}

// Token returns the bearer token, preferring the durable area.
func (s *Store) Token() (string, bool) {
	return s.lookup(TokenKey, LegacyTokenKey)
}

func (s *Store) SetToken(token string) {
	s.set(s.durable, TokenKey, token)
}

// ClearToken removes the token from both areas, legacy key included.
func (s *Store) ClearToken() {
	s.remove(TokenKey, LegacyTokenKey)
}

// LastEmail returns the email of the last successful sign-in.
func (s *Store) LastEmail() (string, bool) {
	return s.lookup(LastSigninEmailKey, LegacyEmailKey)
}

func (s *Store) SetLastEmail(email string) {
	s.set(s.durable, LastSigninEmailKey, email)
}

func (s *Store) LastSignupEmail() (string, bool) {
	return s.lookup(LastSignupEmailKey)
}

func (s *Store) SetLastSignupEmail(email string) {
	s.set(s.durable, LastSignupEmailKey, email)
}

// LastDemoRequest returns when this browser last asked for a demo.
func (s *Store) LastDemoRequest() (time.Time, bool) {
	v, ok := s.lookup(LastDemoRequestKey)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		s.logger.Warn("unparseable demo request timestamp", "value", v, "error", err)
		return time.Time{}, false
	}
	return t, true
}

func (s *Store) SetLastDemoRequest(at time.Time) {
	s.set(s.durable, LastDemoRequestKey, at.UTC().Format(time.RFC3339))
}

// Clear removes everything sign-out should forget: the token and the
// signed-in email, under current and legacy keys.
func (s *Store) Clear() {
	s.remove(TokenKey, LegacyTokenKey, LastSigninEmailKey, LegacyEmailKey)
}

// lookup checks each key in the durable area, then each key in the tab area.
func (s *Store) lookup(keys ...string) (string, bool) {
	for _, area := range []storage.Area{s.durable, s.tab} {
		for _, key := range keys {
			v, ok, err := area.Get(key)
			if err != nil {
				s.logger.Warn("storage read failed", "key", key, "error", err)
				continue
			}
			if ok && v != "" {
				return v, true
			}
		}
	}
	return "", false
}

func (s *Store) set(area storage.Area, key, value string) {
	if err := area.Set(key, value); err != nil {
		s.logger.Error("storage write failed", "key", key, "error", err)
	}
}

func (s *Store) remove(keys ...string) {
	for _, area := range []storage.Area{s.durable, s.tab} {
		for _, key := range keys {
			if err := area.Remove(key); err != nil {
				s.logger.Error("storage remove failed", "key", key, "error", err)
			}
		}
	}
}
