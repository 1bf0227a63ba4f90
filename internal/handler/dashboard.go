package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/dukerupert/sovaehr/internal/auth"
	"github.com/dukerupert/sovaehr/internal/notify"
	"github.com/dukerupert/sovaehr/internal/session"
	"github.com/dukerupert/sovaehr/internal/view"
)

type DashboardHandler struct {
	pageRenderer
	sessions *session.Provider
	source   view.Source
	views    *view.Renderer
}

func NewDashboardHandler(
	tmpl map[string]*template.Template,
	toasts *notify.Center,
	sessions *session.Provider,
	source view.Source,
	views *view.Renderer,
	logger *slog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		pageRenderer: newPageRenderer(tmpl, toasts, logger),
		sessions:     sessions,
		source:       source,
		views:        views,
	}
}

// Dashboard renders today's schedule and open tasks. Routes wrap it in
// middleware.RequireSession.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appts, err := h.source.Appointments(ctx)
	if err != nil {
		h.logger.Error("load appointments", "error", err)
		http.Error(w, "failed to load dashboard", http.StatusInternalServerError)
		return
	}
	tasks, err := h.source.Tasks(ctx)
	if err != nil {
		h.logger.Error("load tasks", "error", err)
		http.Error(w, "failed to load dashboard", http.StatusInternalServerError)
		return
	}

	timeline, err := h.views.Timeline(appts)
	if err != nil {
		h.logger.Error("render timeline", "error", err)
		http.Error(w, "failed to load dashboard", http.StatusInternalServerError)
		return
	}
	actionItems, err := h.views.ActionItems(tasks)
	if err != nil {
		h.logger.Error("render action items", "error", err)
		http.Error(w, "failed to load dashboard", http.StatusInternalServerError)
		return
	}

	email, _ := h.sessions.For(auth.ClientID(ctx)).LastEmail()
	h.render(w, r, http.StatusOK, "dashboard.html", map[string]any{
		"Greeting":    view.Greeting(email),
		"Metrics":     view.ComputeMetrics(appts, tasks),
		"Timeline":    timeline,
		"ActionItems": actionItems,
	})
}
