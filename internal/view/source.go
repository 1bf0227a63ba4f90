package view

import (
	"context"
	"time"

	"github.com/dukerupert/sovaehr/internal/model"
)

// Source supplies the data a page renders.
type Source interface {
	Appointments(ctx context.Context) ([]model.Appointment, error)
	Tasks(ctx context.Context) ([]model.Task, error)
}

// SampleSource serves the fixed demo schedule, dated on the current day.
type SampleSource struct {
	Loc *time.Location
	Now func() time.Time
}

func NewSampleSource(loc *time.Location) *SampleSource {
	if loc == nil {
		loc = time.Local
	}
	return &SampleSource{Loc: loc, Now: time.Now}
}

func (s *SampleSource) Appointments(ctx context.Context) ([]model.Appointment, error) {
	day := s.Now().In(s.Loc)
	at := func(hour, minute int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, s.Loc)
	}
	return []model.Appointment{
		{ID: 1, Start: at(9, 0), Patient: "Jordan Alvarez", Summary: "Initial consult", Status: "Confirmed", Modality: "Telehealth"},
		{ID: 2, Start: at(10, 30), Patient: "Priya Natarajan", Summary: "Follow-up", Status: "Telehealth", Modality: "In person"},
		{ID: 3, Start: at(13, 0), Patient: "Marcus Lee", Summary: "Billing review", Status: "In office", Modality: "Admin"},
	}, nil
}

func (s *SampleSource) Tasks(ctx context.Context) ([]model.Task, error) {
	return []model.Task{
		{ID: "t-1", Title: "Review intake questionnaire for Jordan Alvarez", Due: "Today • 8:45 AM"},
		{ID: "t-2", Title: "Approve treatment plan updates for Priya Natarajan", Due: "Today • 12:00 PM"},
	}, nil
}
