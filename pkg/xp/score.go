// Package xp converts completed work into experience points and cumulative
// experience into levels and ranks. Everything here is pure and total: out of
// range inputs are clamped, never rejected.
package xp

import (
	"math"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

const (
	priorityStep      = 0.05
	efficiencySwing   = 0.20
	minEfficiencyRate = 0.5
	maxEfficiencyRate = 2.0
	focusMax          = 0.15
	streakStep        = 0.03
	streakCapDays     = 10
	resilienceBonus   = 0.10
	dungeonBonus      = 0.25
	floorFactor       = 0.5
	ceilingFactor     = 2.0
)

var baseXP = map[model.Difficulty]int{
	model.DifficultyBasic:        20,
	model.DifficultyIntermediate: 75,
	model.DifficultyAdvanced:     200,
}

// BaseXP returns the table value for a difficulty. Unknown difficulties score as basic.
func BaseXP(d model.Difficulty) int {
	if v, ok := baseXP[d]; ok {
		return v
	}
	return baseXP[model.DifficultyBasic]
}

// Completion describes a finished task for scoring.
type Completion struct {
	Difficulty       model.Difficulty
	Priority         int
	EstimatedMinutes int
	ActualMinutes    int
	FocusScore       int
	ReturnedAfterGap bool
	StreakDays       int
	DungeonMode      bool
}

// Breakdown is an auditable XP award. Percentages are signed contributions of
// each multiplier, e.g. 10 for x1.10 and -20 for x0.80.
type Breakdown struct {
	BaseXP        int
	PriorityPct   float64
	EfficiencyPct float64
	FocusPct      float64
	StreakPct     float64
	ResiliencePct float64
	DungeonPct    float64
	Multiplier    float64
	RawXP         float64
	CappedXP      int
}

// ScoreTaskCompletion scores a completed task.
func ScoreTaskCompletion(c Completion) Breakdown {
	m := multipliers{
		priority:   PriorityMultiplier(c.Priority),
		efficiency: EfficiencyMultiplier(c.EstimatedMinutes, c.ActualMinutes),
		focus:      FocusMultiplier(c.FocusScore),
		streak:     StreakMultiplier(c.StreakDays),
		resilience: 1,
		dungeon:    1,
	}
	if c.ReturnedAfterGap {
		m.resilience = 1 + resilienceBonus
	}
	if c.DungeonMode {
		m.dungeon = 1 + dungeonBonus
	}
	return m.apply(BaseXP(c.Difficulty))
}

// Session describes a finished timed focus session.
type Session struct {
	Minutes     int
	FocusScore  int
	StreakDays  int
	DungeonMode bool
}

// ScoreFocusSession scores a timed session at one XP per focused minute.
func ScoreFocusSession(s Session) Breakdown {
	m := multipliers{
		priority:   1,
		efficiency: 1,
		focus:      FocusMultiplier(s.FocusScore),
		streak:     StreakMultiplier(s.StreakDays),
		resilience: 1,
		dungeon:    1,
	}
	if s.DungeonMode {
		m.dungeon = 1 + dungeonBonus
	}
	return m.apply(clampInt(s.Minutes, 0, math.MaxInt32))
}

type multipliers struct {
	priority, efficiency, focus, streak, resilience, dungeon float64
}

func (m multipliers) apply(base int) Breakdown {
	b := Breakdown{
		BaseXP:        base,
		PriorityPct:   pct(m.priority),
		EfficiencyPct: pct(m.efficiency),
		FocusPct:      pct(m.focus),
		StreakPct:     pct(m.streak),
		ResiliencePct: pct(m.resilience),
		DungeonPct:    pct(m.dungeon),
		Multiplier:    m.priority * m.efficiency * m.focus * m.streak * m.resilience * m.dungeon,
	}
	fb := float64(base)
	b.RawXP = fb * b.Multiplier
	capped := math.Min(math.Max(b.RawXP, floorFactor*fb), ceilingFactor*fb)
	b.CappedXP = int(math.Round(capped))
	return b
}

// PriorityMultiplier is linear in priority: 1.00 at 1, 1.20 at 5.
func PriorityMultiplier(priority int) float64 {
	p := clampInt(priority, model.MinPriority, model.MaxPriority)
	return 1 + float64(p-1)*priorityStep
}

// EfficiencyMultiplier maps actual/estimated, clamped to [0.5, 2.0], linearly
// onto [+20%, -20%]. An unknown estimate is neutral.
func EfficiencyMultiplier(estimatedMinutes, actualMinutes int) float64 {
	if estimatedMinutes <= 0 {
		return 1
	}
	actual := math.Max(float64(actualMinutes), 1)
	ratio := actual / float64(estimatedMinutes)
	ratio = math.Min(math.Max(ratio, minEfficiencyRate), maxEfficiencyRate)
	span := maxEfficiencyRate - minEfficiencyRate
	return 1 + efficiencySwing - (ratio-minEfficiencyRate)*(2*efficiencySwing/span)
}

// FocusMultiplier adds up to 15% for a focus score of 100.
func FocusMultiplier(focusScore int) float64 {
	f := clampInt(focusScore, 0, 100)
	return 1 + focusMax*float64(f)/100
}

// StreakMultiplier adds 3% per streak day, capped at ten days.
func StreakMultiplier(streakDays int) float64 {
	d := clampInt(streakDays, 0, streakCapDays)
	return 1 + float64(d)*streakStep
}

func pct(multiplier float64) float64 {
	return math.Round((multiplier-1)*10000) / 100
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
