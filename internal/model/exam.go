package model

import (
	"fmt"
	"time"
)

// Exam represents a mock-test paper's metadata.
type Exam struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Year            int        `json:"year"`
	TotalMarks      int        `json:"total_marks"`
	DurationMinutes int        `json:"duration_minutes"`
	AccessTier      Tier       `json:"access_tier"`
	IsPublished     bool       `json:"is_published"`
	AvailableFrom   *time.Time `json:"available_from,omitempty"`
	AvailableUntil  *time.Time `json:"available_until,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Title returns the display title, e.g. "DCET 2023".
func (e *Exam) Title() string {
	return fmt.Sprintf("%s %d", e.Name, e.Year)
}

// AvailableAt reports whether the exam can be started at the given instant:
// it must be published and inside its availability window, if one is set.
func (e *Exam) AvailableAt(now time.Time) bool {
	if !e.IsPublished {
		return false
	}
	if e.AvailableFrom != nil && now.Before(*e.AvailableFrom) {
		return false
	}
	if e.AvailableUntil != nil && now.After(*e.AvailableUntil) {
		return false
	}
	return true
}
