// Package authclient talks to the external SovaEHR auth API and records the
// outcome in a browser's session store.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/dukerupert/sovaehr/internal/validate"
)

const (
	signInPath  = "/api/auth/signin"
	signUpPath  = "/api/auth/signup"
	signOutPath = "/api/auth/signout"

	maxBodyBytes = 1 << 20
)

// SessionStore is where successful calls leave their results.
type SessionStore interface {
	Token() (string, bool)
	SetToken(token string)
	SetLastEmail(email string)
	SetLastSignupEmail(email string)
	Clear()
}

// SignInResult is a successful sign-in response.
type SignInResult struct {
	Token string
	Body  map[string]any
}

// SignUpResult is a successful sign-up response. Sign-up never authenticates.
type SignUpResult struct {
	Message string
	Body    map[string]any
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// Client issues one request per call and never retries.
type Client struct {
	baseURL        string
	signUpRedirect string
	httpClient     *http.Client
	logger         *slog.Logger
	wg             sync.WaitGroup
}

type Option func(*Client)

// WithHTTPClient replaces the default client. The default has no timeout;
// requests are bounded by their context only.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSignUpRedirect sets the redirect_to sent with sign-up requests.
func WithSignUpRedirect(url string) Option {
	return func(c *Client) { c.signUpRedirect = url }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "authclient")
	return c
}

// SignIn posts the credential. The token and email are persisted only after
// a 2xx response that carries a token.
func (c *Client) SignIn(ctx context.Context, store SessionStore, cred validate.Credential) (*SignInResult, error) {
	status, body, err := c.post(ctx, signInPath, signInRequest{Email: cred.Email, Password: cred.Password}, "")
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		f := ParseFailure(status, body).withFallback(SignInFallback)
		c.logger.Info("sign-in rejected", "status", status, "kind", f.Kind)
		return nil, f
	}

	payload := c.decodeBody("sign-in", status, body)
	token, _ := payload["token"].(string)
	if token == "" {
		c.logger.Warn("sign-in succeeded without a token", "status", status)
		return nil, &Failure{Kind: KindUnstructured, Message: NoTokenMessage, Status: status}
	}

	store.SetToken(token)
	store.SetLastEmail(cred.Email)
	return &SignInResult{Token: token, Body: payload}, nil
}

// SignUp posts the registration. Only the email is persisted on success.
func (c *Client) SignUp(ctx context.Context, store SessionStore, reg validate.Registration) (*SignUpResult, error) {
	first, last := reg.FirstName, reg.LastName
	if first == "" && last == "" {
		first, last = validate.SplitFullName(reg.FullName)
	}

	req := signUpRequest{
		Email:      reg.Email,
		Password:   reg.Password,
		FirstName:  first,
		LastName:   last,
		RedirectTo: c.signUpRedirect,
	}
	status, body, err := c.post(ctx, signUpPath, req, "")
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		f := ParseFailure(status, body).withFallback(SignUpFallback)
		c.logger.Info("sign-up rejected", "status", status, "kind", f.Kind)
		return nil, f
	}

	payload := c.decodeBody("sign-up", status, body)
	msg, _ := payload["message"].(string)

	store.SetLastSignupEmail(reg.Email)
	return &SignUpResult{Message: msg, Body: payload}, nil
}

// SignOut clears local state before returning. When a token was held the
// server is notified in the background; that call's outcome is only logged.
func (c *Client) SignOut(ctx context.Context, store SessionStore) {
	token, hadToken := store.Token()
	store.Clear()
	if !hadToken {
		return
	}

	bg := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		status, _, err := c.post(bg, signOutPath, nil, token)
		if err != nil {
			c.logger.Warn("sign-out notification failed", "error", err)
			return
		}
		if !isSuccess(status) {
			c.logger.Warn("sign-out notification rejected", "status", status)
		}
	}()
}

// Wait blocks until background sign-out notifications finish.
func (c *Client) Wait() {
	c.wg.Wait()
}

func (c *Client) post(ctx context.Context, path string, payload any, bearer string) (int, []byte, error) {
	var reqBody io.Reader = http.NoBody
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, networkFailure(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, networkFailure(fmt.Errorf("read response: %w", err))
	}
	return resp.StatusCode, body, nil
}

// decodeBody parses a 2xx JSON body. A body that is not a JSON object yields
// a nil map; callers fall back on their missing-field handling.
func (c *Client) decodeBody(op string, status int, body []byte) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Debug("unparsable success body", "op", op, "status", status, "error", err)
		return nil
	}
	return payload
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
