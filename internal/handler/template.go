package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/csrf"

	"github.com/dukerupert/sovaehr/internal/auth"
	"github.com/dukerupert/sovaehr/internal/notify"
)

// Pages are parsed one per set alongside layout.html so each can define its
// own "title" and "content" blocks.
var Pages = []string{
	"index.html",
	"signin.html",
	"signup.html",
	"dashboard.html",
	"forgot_password.html",
	"signed_out.html",
}

// LoadTemplates parses every page under templates/ in fsys.
func LoadTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template, len(Pages))
	for _, page := range Pages {
		tmpl, err := template.ParseFS(fsys, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		templates[page] = tmpl
	}
	return templates, nil
}

// pageRenderer is shared by the page handlers. It adds the layout data every
// page needs: pending toasts, the CSRF field and the footer year.
type pageRenderer struct {
	templates map[string]*template.Template
	toasts    *notify.Center
	logger    *slog.Logger
	now       func() time.Time
}

func newPageRenderer(templates map[string]*template.Template, toasts *notify.Center, logger *slog.Logger) pageRenderer {
	return pageRenderer{templates: templates, toasts: toasts, logger: logger, now: time.Now}
}

func (p pageRenderer) toast(r *http.Request, message string, tone notify.Tone, dwell time.Duration) {
	p.toasts.Show(auth.ClientID(r.Context()), message, tone, notify.WithDwell(dwell))
}

func (p pageRenderer) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	tmpl, ok := p.templates[name]
	if !ok {
		p.logger.Error("template not found", "name", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["Page"] = strings.TrimSuffix(name, ".html")
	data["Toasts"] = p.toasts.Pending(auth.ClientID(r.Context()))
	data["CSRFField"] = csrf.TemplateField(r)
	data["CSRFToken"] = csrf.Token(r)
	data["Year"] = p.now().Year()
	if _, ok := data["Errors"]; !ok {
		data["Errors"] = map[string]string{}
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		p.logger.Error("template render", "name", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// refreshAfter schedules a client-side navigation. The Refresh header covers
// browsers without scripts; app.js reads the data attributes for exact timing.
func refreshAfter(w http.ResponseWriter, data map[string]any, target string, delay time.Duration) {
	secs := int((delay + time.Second - 1) / time.Second)
	w.Header().Set("Refresh", fmt.Sprintf("%d; url=%s", secs, target))
	data["RedirectTo"] = target
	data["RedirectMs"] = delay.Milliseconds()
}
