package model

import "time"

// DateLayout is the calendar date key used for slots.
const DateLayout = "2006-01-02"

// Slot sources.
const (
	SourcePlanner  = "planner"
	SourceUser     = "user"
	SourceCalendar = "calendar"
)

// Slot is a fixed time interval on a calendar date.
type Slot struct {
	ID        string
	Date      string
	Start     time.Time
	End       time.Time
	Locked    bool
	SubtaskID string // empty when open
	Source    string
}

func (s Slot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Overlaps reports whether two half-open intervals [Start, End) intersect.
func (s Slot) Overlaps(o Slot) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Assignment is a newly planned slot carrying one subtask.
type Assignment struct {
	Start     time.Time
	End       time.Time
	SubtaskID string
	TaskID    string
	Category  Category
	Title     string
	Score     float64
}
