package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/harrisonrobin/taskquest/pkg/model"
	"github.com/harrisonrobin/taskquest/pkg/xp"
)

func dayAt(d int) time.Time {
	return time.Date(2024, 6, d, 15, 0, 0, 0, time.UTC)
}

func TestObserveActivity_Streaks(t *testing.T) {
	var p model.Profile

	p, u := ObserveActivity(p, dayAt(1))
	assert.Equal(t, StreakUpdate{StreakDays: 1}, u)

	p, u = ObserveActivity(p, dayAt(1).Add(3*time.Hour))
	assert.Equal(t, 1, u.StreakDays)
	assert.False(t, u.Extended)

	p, u = ObserveActivity(p, dayAt(2))
	assert.True(t, u.Extended)
	p, u = ObserveActivity(p, dayAt(3))
	assert.Equal(t, 3, u.StreakDays)
	assert.Equal(t, 3, p.LongestStreak)
	assert.Equal(t, 2, p.Pillars.Consistency)

	p, u = ObserveActivity(p, dayAt(6))
	assert.True(t, u.ReturnedAfterGap)
	assert.Equal(t, 1, u.StreakDays)
	assert.Equal(t, 1, p.Pillars.Resilience)
	assert.Equal(t, 3, p.LongestStreak)

	// the comeback is only credited once
	p, u = ObserveActivity(p, dayAt(6).Add(time.Hour))
	assert.False(t, u.ReturnedAfterGap)
	assert.Equal(t, 1, p.Pillars.Resilience)
	assert.Equal(t, "2024-06-06", p.LastActiveDay)
}

func TestObserveActivity_ClockBackwards(t *testing.T) {
	p := model.Profile{LastActiveDay: "2024-06-10", CurrentStreak: 4, LongestStreak: 4}
	next, u := ObserveActivity(p, dayAt(8))
	assert.Equal(t, p, next)
	assert.Equal(t, 4, u.StreakDays)
}

func TestApply(t *testing.T) {
	var p model.Profile
	p = ApplyTask(p, xp.Breakdown{CappedXP: 26}, 80)
	p = ApplySession(p, xp.Breakdown{CappedXP: 30}, 150)

	assert.Equal(t, 56, p.TotalXP)
	assert.Equal(t, 1, p.TasksCompleted)
	assert.Equal(t, 1, p.Sessions)
	assert.Equal(t, 18, p.Pillars.Focus)
}

func TestSummarize(t *testing.T) {
	s := Summarize(model.Profile{TotalXP: 700})
	assert.Equal(t, 5, s.Level)
	assert.Equal(t, xp.RankApprentice, s.Rank)
	assert.Equal(t, 300, s.XPToNextLevel)
}

func TestAward(t *testing.T) {
	p := model.Profile{TasksCompleted: 1, LongestStreak: 7}
	p, got := Award(p)

	var ids []string
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"first-task", "week-streak"}, ids)
	assert.Equal(t, ids, p.Achievements)

	_, again := Award(p)
	assert.Empty(t, again)
}
