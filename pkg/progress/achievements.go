package progress

import (
	"slices"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

// Achievement is a static threshold over a profile summary.
type Achievement struct {
	ID    string
	Title string
	met   func(Summary) bool
}

var catalog = []Achievement{
	{"first-task", "First Blood", func(s Summary) bool { return s.TasksCompleted >= 1 }},
	{"ten-tasks", "Getting Things Done", func(s Summary) bool { return s.TasksCompleted >= 10 }},
	{"fifty-tasks", "Taskmaster", func(s Summary) bool { return s.TasksCompleted >= 50 }},
	{"first-session", "Deep Work", func(s Summary) bool { return s.Sessions >= 1 }},
	{"week-streak", "Seven Days Strong", func(s Summary) bool { return s.LongestStreak >= 7 }},
	{"month-streak", "Unbreakable", func(s Summary) bool { return s.LongestStreak >= 30 }},
	{"comeback", "Back in the Saddle", func(s Summary) bool { return s.Pillars.Resilience >= 1 }},
	{"level-5", "Apprentice", func(s Summary) bool { return s.Level >= 5 }},
	{"level-10", "Adept", func(s Summary) bool { return s.Level >= 10 }},
}

// Catalog returns every known achievement.
func Catalog() []Achievement {
	return slices.Clone(catalog)
}

// Award checks the catalog against the profile and records newly met
// achievements, returning them in catalog order.
func Award(p model.Profile) (model.Profile, []Achievement) {
	s := Summarize(p)
	var unlocked []Achievement
	for _, a := range catalog {
		if slices.Contains(p.Achievements, a.ID) || !a.met(s) {
			continue
		}
		unlocked = append(unlocked, a)
	}
	if len(unlocked) > 0 {
		p.Achievements = slices.Clone(p.Achievements)
		for _, a := range unlocked {
			p.Achievements = append(p.Achievements, a.ID)
		}
	}
	return p, unlocked
}
