// Package view turns schedule data into the HTML fragments and labels the
// dashboard and marketing pages display. Order is always source order.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dukerupert/sovaehr/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var modalityPills = map[string]string{
	"Telehealth": "pill-telehealth",
	"In person":  "pill-in-person",
	"Admin":      "pill-admin",
}

const defaultPill = "pill-telehealth"

// Renderer renders list fragments. Times are shown in loc.
type Renderer struct {
	tmpl *template.Template
	loc  *time.Location
}

func NewRenderer(loc *time.Location) (*Renderer, error) {
	if loc == nil {
		loc = time.Local
	}
	r := &Renderer{loc: loc}

	tmpl, err := template.New("fragments").Funcs(template.FuncMap{
		"timeLabel": r.TimeLabel,
		"pillClass": PillClass,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse fragments: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// Timeline renders the dashboard's appointment list.
func (r *Renderer) Timeline(appts []model.Appointment) (template.HTML, error) {
	return r.render("timeline", appts)
}

// ActionItems renders the dashboard's task list.
func (r *Renderer) ActionItems(tasks []model.Task) (template.HTML, error) {
	return r.render("action_items", tasks)
}

// SchedulePreview renders the marketing page's appointment list with
// modality pills.
func (r *Renderer) SchedulePreview(appts []model.Appointment) (template.HTML, error) {
	return r.render("schedule_preview", appts)
}

func (r *Renderer) render(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(strings.TrimSpace(buf.String())), nil
}

// TimeLabel formats a start time as "9:00 AM".
func (r *Renderer) TimeLabel(t time.Time) string {
	return t.In(r.loc).Format("3:04 PM")
}

// PillClass maps a modality to its pill style.
func PillClass(modality string) string {
	if c, ok := modalityPills[modality]; ok {
		return c
	}
	return defaultPill
}

// Metrics are the dashboard's headline counts.
type Metrics struct {
	Appointments int
	Tasks        int
}

func ComputeMetrics(appts []model.Appointment, tasks []model.Task) Metrics {
	return Metrics{Appointments: len(appts), Tasks: len(tasks)}
}

var nameSeparators = regexp.MustCompile(`[._-]`)

// DisplayName turns an email's local part into a name:
// "jordan.alvarez@x" becomes "Jordan Alvarez".
func DisplayName(email string) string {
	local := LocalPart(email)
	if local == "" {
		return ""
	}
	caser := cases.Title(language.Und, cases.NoLower)
	segments := nameSeparators.Split(local, -1)
	for i, s := range segments {
		segments[i] = caser.String(s)
	}
	return strings.Join(segments, " ")
}

// LocalPart returns everything before the first "@".
func LocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// Greeting is the dashboard headline for the signed-in email.
func Greeting(email string) string {
	name := DisplayName(email)
	if name == "" {
		return "Welcome back!"
	}
	return fmt.Sprintf("Welcome back, %s!", name)
}

// RelativeTime describes t relative to now, rounded to the hour; anything
// under half an hour reads "just now".
func RelativeTime(t, now time.Time) string {
	hours := now.Sub(t).Round(time.Hour)
	if hours == 0 {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
