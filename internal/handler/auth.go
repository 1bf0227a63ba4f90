package handler

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/sovaehr/internal/auth"
	"github.com/dukerupert/sovaehr/internal/authclient"
	"github.com/dukerupert/sovaehr/internal/notify"
	"github.com/dukerupert/sovaehr/internal/session"
	"github.com/dukerupert/sovaehr/internal/validate"
	"github.com/dukerupert/sovaehr/internal/view"
)

const (
	fixFieldsMessage      = "Fix the highlighted fields and try again."
	signedInMessage       = "Signed in! Redirecting to your dashboard..."
	accountCreatedMessage = "Account created! Check your email to confirm access."
	signedOutMessage      = "Signed out. See you soon!"
	genericErrorMessage   = "Something went wrong. Try again in a moment."

	dashboardPath = "/dashboard"
	signInPath    = "/signin"
)

// Redirects holds the pause between a success toast and the navigation that
// follows it. Zero navigates immediately.
type Redirects struct {
	SignIn  time.Duration
	SignOut time.Duration
}

type AuthHandler struct {
	pageRenderer
	sessions  *session.Provider
	client    *authclient.Client
	redirects Redirects
}

func NewAuthHandler(
	tmpl map[string]*template.Template,
	toasts *notify.Center,
	sessions *session.Provider,
	client *authclient.Client,
	redirects Redirects,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		pageRenderer: newPageRenderer(tmpl, toasts, logger),
		sessions:     sessions,
		client:       client,
		redirects:    redirects,
	}
}

func (h *AuthHandler) store(r *http.Request) *session.Store {
	return h.sessions.For(auth.ClientID(r.Context()))
}

// SignInPage renders the sign-in form, prefilled with the last email used.
func (h *AuthHandler) SignInPage(w http.ResponseWriter, r *http.Request) {
	store := h.store(r)
	if _, ok := store.Token(); ok {
		h.toast(r, "Welcome back!", notify.ToneSuccess, notify.DwellSignIn)
	}
	email, _ := store.LastEmail()
	h.render(w, r, http.StatusOK, "signin.html", map[string]any{"Email": email})
}

// SignIn validates the form, exchanges the credential for a token and sends
// the browser to the dashboard.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	cred := validate.Credential{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	data := map[string]any{"Email": cred.Email}

	if errs := validate.SignIn(cred); !errs.OK() {
		h.toast(r, fixFieldsMessage, notify.ToneError, notify.DwellSignIn)
		data["Errors"] = map[string]string(errs)
		h.render(w, r, http.StatusUnprocessableEntity, "signin.html", data)
		return
	}

	if _, err := h.client.SignIn(r.Context(), h.store(r), cred); err != nil {
		msg, status := h.failure(err)
		h.toast(r, msg, notify.ToneError, notify.DwellSignIn)
		h.render(w, r, status, "signin.html", data)
		return
	}

	h.toast(r, signedInMessage, notify.ToneSuccess, notify.DwellSignIn)
	if h.redirects.SignIn <= 0 {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	refreshAfter(w, data, dashboardPath, h.redirects.SignIn)
	h.render(w, r, http.StatusOK, "signin.html", data)
}

// SignUpPage renders the sign-up form and greets a browser that registered
// before.
func (h *AuthHandler) SignUpPage(w http.ResponseWriter, r *http.Request) {
	if email, ok := h.store(r).LastSignupEmail(); ok {
		h.toast(r, fmt.Sprintf("Welcome back, %s!", view.LocalPart(email)), notify.ToneSuccess, notify.DwellSignUp)
	}
	h.render(w, r, http.StatusOK, "signup.html", map[string]any{"Form": validate.Registration{}})
}

// SignUp registers the account. The browser stays signed out until the email
// is confirmed and the user signs in.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	reg := validate.Registration{
		FullName:        strings.TrimSpace(r.PostFormValue("fullName")),
		FirstName:       strings.TrimSpace(r.PostFormValue("firstName")),
		LastName:        strings.TrimSpace(r.PostFormValue("lastName")),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}
	// Passwords are never echoed back into the form.
	form := validate.Registration{FullName: reg.FullName, FirstName: reg.FirstName, LastName: reg.LastName, Email: reg.Email}

	if errs := validate.SignUp(reg); !errs.OK() {
		h.toast(r, fixFieldsMessage, notify.ToneError, notify.DwellSignUp)
		h.render(w, r, http.StatusUnprocessableEntity, "signup.html", map[string]any{
			"Form":   form,
			"Errors": map[string]string(errs),
		})
		return
	}

	if _, err := h.client.SignUp(r.Context(), h.store(r), reg); err != nil {
		msg, status := h.failure(err)
		h.toast(r, msg, notify.ToneError, notify.DwellSignUp)
		h.render(w, r, status, "signup.html", map[string]any{"Form": form})
		return
	}

	h.toast(r, accountCreatedMessage, notify.ToneSuccess, notify.DwellSignUp)
	h.render(w, r, http.StatusOK, "signup.html", map[string]any{"Form": validate.Registration{}})
}

// SignOut forgets the session locally and sends the browser to sign-in. The
// auth API is told in the background.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.client.SignOut(r.Context(), h.store(r))
	h.toast(r, signedOutMessage, notify.ToneSuccess, notify.DwellDashboard)

	if h.redirects.SignOut <= 0 {
		http.Redirect(w, r, signInPath, http.StatusSeeOther)
		return
	}
	data := map[string]any{}
	refreshAfter(w, data, signInPath, h.redirects.SignOut)
	h.render(w, r, http.StatusOK, "signed_out.html", data)
}

// failure maps an auth client error to the toast text and response status.
// Upstream 4xx statuses pass through; everything else is a bad gateway.
func (h *AuthHandler) failure(err error) (string, int) {
	var f *authclient.Failure
	if !errors.As(err, &f) {
		h.logger.Error("auth request", "error", err)
		return genericErrorMessage, http.StatusBadGateway
	}
	msg := f.Message
	if msg == "" {
		msg = genericErrorMessage
	}
	if f.Kind != authclient.KindNetwork && f.Status >= 400 && f.Status < 500 {
		return msg, f.Status
	}
	return msg, http.StatusBadGateway
}
