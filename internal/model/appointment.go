package model

import "time"

// Appointment is a display-only schedule entry.
type Appointment struct {
	ID       int64     `json:"id"`
	Start    time.Time `json:"start"`
	Patient  string    `json:"patient"`
	Summary  string    `json:"summary"`
	Status   string    `json:"status"`
	Modality string    `json:"modality"`
}

// Task is a display-only action item.
type Task struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Due   string `json:"due"`
}
