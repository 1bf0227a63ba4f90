// Package guard performs the local session check for protected pages: token
// presence, three-segment shape, decodable payload and the exp claim. The
// signature is never verified; the auth API remains the authority.
package guard

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type State int

const (
	Unchecked State = iota
	Valid
	Absent
	Malformed
	Expired
)

func (s State) String() string {
	switch s {
	case Valid:
		return "valid"
	case Absent:
		return "absent"
	case Malformed:
		return "malformed"
	case Expired:
		return "expired"
	default:
		return "unchecked"
	}
}

// Result is the outcome of one evaluation.
type Result struct {
	State     State
	Claims    jwt.MapClaims
	ExpiresAt *time.Time
	Reason    string
}

// Allowed reports whether protected content may render.
func (r Result) Allowed() bool { return r.State == Valid }

// Cleared reports whether the stored token must be discarded.
func (r Result) Cleared() bool { return r.State == Malformed || r.State == Expired }

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Evaluate classifies a token at the given instant. An empty token is absent.
// exp is compared in whole seconds and a token expiring this very second is
// still valid.
func Evaluate(token string, now time.Time) Result {
	if token == "" {
		return Result{State: Absent}
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Result{State: Malformed, Reason: fmt.Sprintf("token has %d segments, want 3", len(parts))}
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return Result{State: Malformed, Reason: fmt.Sprintf("decode payload: %v", err)}
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Result{State: Malformed, Reason: fmt.Sprintf("parse payload: %v", err)}
	}
	if decoded == nil {
		return Result{State: Malformed, Reason: "payload is null"}
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		// Arrays, strings and numbers carry no exp claim.
		return Result{State: Valid}
	}
	claims := jwt.MapClaims(obj)

	if _, present := claims["exp"]; !present {
		return Result{State: Valid, Claims: claims}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Result{State: Malformed, Claims: claims, Reason: fmt.Sprintf("exp claim: %v", err)}
	}
	// jwt reports a zero exp as missing; here it is the epoch.
	expiresAt := time.Unix(0, 0)
	if exp != nil {
		expiresAt = exp.Time
	}
	if expiresAt.Unix() < now.Unix() {
		return Result{State: Expired, Claims: claims, ExpiresAt: &expiresAt}
	}
	return Result{State: Valid, Claims: claims, ExpiresAt: &expiresAt}
}

// decodeSegment accepts base64url with or without padding, and plain base64
// as written by older token issuers.
func decodeSegment(seg string) ([]byte, error) {
	b, err := segmentParser.DecodeSegment(seg)
	if err == nil {
		return b, nil
	}
	if std, stdErr := base64.StdEncoding.DecodeString(seg); stdErr == nil {
		return std, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(seg); rawErr == nil {
		return raw, nil
	}
	return nil, err
}

// TokenStore is the slice of the session store the guard needs.
type TokenStore interface {
	Token() (string, bool)
	Clear()
}

// Guard applies Evaluate to a browser's stored token.
type Guard struct {
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Guard)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func New(logger *slog.Logger, opts ...Option) *Guard {
	g := &Guard{now: time.Now, logger: logger.With("component", "guard")}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check evaluates the stored token once and clears the session when the
// token is malformed or expired.
func (g *Guard) Check(s TokenStore) Result {
	token, _ := s.Token()
	res := Evaluate(token, g.now())

	switch res.State {
	case Malformed:
		g.logger.Info("discarding malformed session token", "reason", res.Reason)
		s.Clear()
	case Expired:
		g.logger.Info("discarding expired session token", "expired_at", res.ExpiresAt)
		s.Clear()
	}
	return res
}
