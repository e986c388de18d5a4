package model

// Pillars are secondary behavioural accumulators kept alongside XP.
type Pillars struct {
	Resilience  int `json:"resilience"`
	Consistency int `json:"consistency"`
	Focus       int `json:"focus"`
}

// Profile holds a user's cumulative progress. Level and rank are derived from
// TotalXP on read and never stored.
type Profile struct {
	TotalXP        int
	CurrentStreak  int
	LongestStreak  int
	LastActiveDay  string // DateLayout, empty before the first activity
	TasksCompleted int
	Sessions       int
	Pillars        Pillars
	Achievements   []string
}
