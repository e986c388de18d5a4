package scheduler

import (
	"math"
	"time"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

const (
	urgencyWeight  = 0.45
	densityWeight  = 0.35
	priorityWeight = 0.15

	// DefaultHorizon stands in for hours-until-due when a candidate has no due date.
	DefaultHorizon = 48 * time.Hour

	StreakBoost  = 1.15
	NoveltyBoost = 1.10
)

// Candidate is a pending subtask joined with its parent task's scheduling weight.
type Candidate struct {
	SubtaskID        string
	TaskID           string
	Title            string
	Category         model.Category
	Priority         int
	Due              time.Time
	ValueScore       int
	EstimatedMinutes int
	Energy           string
}

func (c Candidate) Estimate() time.Duration {
	return time.Duration(c.EstimatedMinutes) * time.Minute
}

// SlotContext is what a score function may know about the day so far.
type SlotContext struct {
	Slot        model.Slot
	Previous    model.Category // category of the last assigned or pinned slot
	HasPrevious bool
	seen        map[model.Category]bool
}

// Seen reports whether category was assigned or pinned earlier in the day.
func (sc SlotContext) Seen(category model.Category) bool {
	return sc.seen[category]
}

// ScoreFunc rates a candidate for a slot; the highest score wins.
type ScoreFunc func(c Candidate, sc SlotContext) float64

// DefaultScore is the composite urgency/value/priority score with the
// diversity boost applied.
func DefaultScore(c Candidate, sc SlotContext) float64 {
	return BaseScore(c, sc.Slot.Start) * DiversityBoost(c, sc)
}

// BaseScore = 0.45*deadlineUrgency + 0.35*valueDensity + 0.15*priorityFactor.
func BaseScore(c Candidate, at time.Time) float64 {
	hours := DefaultHorizon.Hours()
	if !c.Due.IsZero() {
		hours = c.Due.Sub(at).Hours()
	}
	urgency := 1 / math.Max(1, hours)
	density := float64(c.ValueScore) / math.Max(1, float64(c.EstimatedMinutes))
	priority := 0.5 + 0.5*(float64(c.Priority)/model.MaxPriority)
	return urgencyWeight*urgency + densityWeight*density + priorityWeight*priority
}

// DiversityBoost favours continuing the previous slot's category (x1.15) or
// introducing a category not yet seen today (x1.10). Only the larger applies
// and nothing applies before the first assignment.
func DiversityBoost(c Candidate, sc SlotContext) float64 {
	if !sc.HasPrevious {
		return 1
	}
	boost := 1.0
	if c.Category == sc.Previous {
		boost = math.Max(boost, StreakBoost)
	}
	if !sc.Seen(c.Category) {
		boost = math.Max(boost, NoveltyBoost)
	}
	return boost
}
