package handler

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/dukerupert/sovaehr/internal/auth"
	"github.com/dukerupert/sovaehr/internal/notify"
	"github.com/dukerupert/sovaehr/internal/session"
	"github.com/dukerupert/sovaehr/internal/view"
)

const demoThanksMessage = "Thanks! We’ll reach out soon to schedule your walkthrough."

type MarketingHandler struct {
	pageRenderer
	sessions *session.Provider
	source   view.Source
	views    *view.Renderer
}

func NewMarketingHandler(
	tmpl map[string]*template.Template,
	toasts *notify.Center,
	sessions *session.Provider,
	source view.Source,
	views *view.Renderer,
	logger *slog.Logger,
) *MarketingHandler {
	return &MarketingHandler{
		pageRenderer: newPageRenderer(tmpl, toasts, logger),
		sessions:     sessions,
		source:       source,
		views:        views,
	}
}

// LandingPage renders the homepage with today's schedule preview. Returning
// visitors who asked for a demo are reminded when they did.
func (h *MarketingHandler) LandingPage(w http.ResponseWriter, r *http.Request) {
	appts, err := h.source.Appointments(r.Context())
	if err != nil {
		h.logger.Error("load appointments", "error", err)
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	preview, err := h.views.SchedulePreview(appts)
	if err != nil {
		h.logger.Error("render schedule preview", "error", err)
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}

	clientID := auth.ClientID(r.Context())
	if at, ok := h.sessions.For(clientID).LastDemoRequest(); ok && len(h.toasts.Pending(clientID)) == 0 {
		msg := fmt.Sprintf("Hi again! Your last demo request was %s.", view.RelativeTime(at, h.now()))
		h.toast(r, msg, notify.ToneSuccess, notify.DwellMarketing)
	}

	h.render(w, r, http.StatusOK, "index.html", map[string]any{
		"SchedulePreview": preview,
	})
}

// RequestDemo records when the visitor asked for a walkthrough.
func (h *MarketingHandler) RequestDemo(w http.ResponseWriter, r *http.Request) {
	h.sessions.For(auth.ClientID(r.Context())).SetLastDemoRequest(h.now())
	h.toast(r, demoThanksMessage, notify.ToneSuccess, notify.DwellMarketing)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ForgotPassword renders the placeholder; there is no recovery flow.
func (h *MarketingHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "forgot_password.html", nil)
}
