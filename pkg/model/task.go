package model

import (
	"fmt"
	"strings"
	"time"
)

// Category is the closed set of domains a task can belong to.
type Category string

const (
	CategoryProgramming Category = "programming"
	CategoryFinance     Category = "finance"
	CategoryMusic       Category = "music"
	CategoryGeneral     Category = "general"
)

// Categories lists every known category in display order.
var Categories = []Category{CategoryProgramming, CategoryFinance, CategoryMusic, CategoryGeneral}

// ParseCategory maps free text onto a Category. Unknown values fall back to general.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return CategoryGeneral
}

// Difficulty determines a task's base XP.
type Difficulty string

const (
	DifficultyBasic        Difficulty = "basic"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyBasic, DifficultyIntermediate, DifficultyAdvanced:
		return d, nil
	case "":
		return DifficultyBasic, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
}

// State is a task lifecycle state.
type State string

const (
	StateCreated    State = "CREATED"
	StateInProgress State = "IN_PROGRESS"
	StatePaused     State = "PAUSED"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

const (
	MinPriority = 1
	MaxPriority = 5
)

// ScoringInputs is the part of a task that XP is computed from. It is frozen
// when the task first leaves CREATED.
type ScoringInputs struct {
	Difficulty       Difficulty `json:"difficulty"`
	Priority         int        `json:"priority"`
	EstimatedMinutes int        `json:"estimated_minutes"`
}

// RecordMetadata is the optional payload of a lifecycle transition.
type RecordMetadata struct {
	PauseReason   string `json:"pause_reason,omitempty"`
	ActualMinutes *int   `json:"actual_minutes,omitempty"`
	XPAwarded     *int   `json:"xp_awarded,omitempty"`
	Note          string `json:"note,omitempty"`
}

// LifecycleRecord is one append-only entry of a task's audit trail.
type LifecycleRecord struct {
	From     State          `json:"from"`
	To       State          `json:"to"`
	At       time.Time      `json:"at"`
	Metadata RecordMetadata `json:"metadata"`
}

// Task represents a unit of declared work.
type Task struct {
	ID               string
	Title            string
	Category         Category
	Difficulty       Difficulty
	Priority         int
	EstimatedMinutes int
	Due              time.Time // zero when unset
	ValueScore       int
	CreatedAt        time.Time

	// Lifecycle
	State         State
	StartedAt     time.Time
	ResumedAt     time.Time
	ActiveTime    time.Duration
	ActualMinutes *int
	Scoring       *ScoringInputs
	Records       []LifecycleRecord
}

// Inputs returns the frozen scoring inputs, or the live fields while the task
// has not left CREATED yet.
func (t Task) Inputs() ScoringInputs {
	if t.Scoring != nil {
		return *t.Scoring
	}
	return ScoringInputs{Difficulty: t.Difficulty, Priority: t.Priority, EstimatedMinutes: t.EstimatedMinutes}
}

// Clone returns a deep copy so that callers can treat Task as a value.
func (t Task) Clone() Task {
	c := t
	if t.ActualMinutes != nil {
		v := *t.ActualMinutes
		c.ActualMinutes = &v
	}
	if t.Scoring != nil {
		s := *t.Scoring
		c.Scoring = &s
	}
	if t.Records != nil {
		c.Records = make([]LifecycleRecord, len(t.Records))
		copy(c.Records, t.Records)
	}
	return c
}

// Terminal reports whether the task can no longer be scheduled.
func (t Task) Terminal() bool {
	return t.State == StateCompleted || t.State == StateFailed
}

// SubtaskStatus is the status of a schedulable slice of work.
type SubtaskStatus string

const (
	SubtaskTodo       SubtaskStatus = "todo"
	SubtaskInProgress SubtaskStatus = "in-progress"
	SubtaskDone       SubtaskStatus = "done"
	SubtaskBlocked    SubtaskStatus = "blocked"
)

func ParseSubtaskStatus(s string) (SubtaskStatus, error) {
	switch st := SubtaskStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case SubtaskTodo, SubtaskInProgress, SubtaskDone, SubtaskBlocked:
		return st, nil
	default:
		return "", fmt.Errorf("unknown subtask status %q", s)
	}
}

// Subtask is a schedulable slice of a Task.
type Subtask struct {
	ID               string
	TaskID           string
	Title            string
	EstimatedMinutes int
	Status           SubtaskStatus
	Seq              int
	Tags             []string
}

// Schedulable reports whether the subtask may be placed into a slot.
func (s Subtask) Schedulable() bool {
	return s.Status == SubtaskTodo || s.Status == SubtaskInProgress
}

// ImportedTask is a task read from an external tool, with its subtasks.
type ImportedTask struct {
	Task       Task
	Subtasks   []Subtask
	Source     string
	ExternalID string
}
