// Package progress applies scoring results to a profile: XP totals, daily
// streaks with comeback detection, pillars and achievements.
package progress

import (
	"time"

	"github.com/harrisonrobin/taskquest/pkg/model"
	"github.com/harrisonrobin/taskquest/pkg/xp"
)

// StreakUpdate describes what one day of activity did to the streak.
type StreakUpdate struct {
	StreakDays       int
	Extended         bool
	ReturnedAfterGap bool
}

// ObserveActivity records activity on the calendar day of at. Repeated
// activity on the same day changes nothing; the first activity after one or
// more missed days restarts the streak and counts as a comeback.
func ObserveActivity(p model.Profile, at time.Time) (model.Profile, StreakUpdate) {
	today := at.Format(model.DateLayout)
	if p.LastActiveDay == "" {
		p.LastActiveDay = today
		p.CurrentStreak = 1
		p.LongestStreak = max(p.LongestStreak, 1)
		return p, StreakUpdate{StreakDays: 1}
	}

	last, err := time.ParseInLocation(model.DateLayout, p.LastActiveDay, at.Location())
	if err != nil {
		// unreadable history is treated as a fresh start
		p.LastActiveDay = today
		p.CurrentStreak = 1
		return p, StreakUpdate{StreakDays: 1}
	}
	current, _ := time.ParseInLocation(model.DateLayout, today, at.Location())
	gap := int(current.Sub(last).Hours()+0.5) / 24

	var u StreakUpdate
	switch {
	case gap <= 0:
		return p, StreakUpdate{StreakDays: p.CurrentStreak}
	case gap == 1:
		p.CurrentStreak++
		p.Pillars.Consistency++
		u.Extended = true
	default:
		p.CurrentStreak = 1
		p.Pillars.Resilience++
		u.ReturnedAfterGap = true
	}
	p.LastActiveDay = today
	p.LongestStreak = max(p.LongestStreak, p.CurrentStreak)
	u.StreakDays = p.CurrentStreak
	return p, u
}

// ApplyTask adds a task completion award to the profile.
func ApplyTask(p model.Profile, b xp.Breakdown, focusScore int) model.Profile {
	p.TotalXP += b.CappedXP
	p.TasksCompleted++
	p.Pillars.Focus += clamp(focusScore, 0, 100) / 10
	return p
}

// ApplySession adds a focus session award to the profile.
func ApplySession(p model.Profile, b xp.Breakdown, focusScore int) model.Profile {
	p.TotalXP += b.CappedXP
	p.Sessions++
	p.Pillars.Focus += clamp(focusScore, 0, 100) / 10
	return p
}

// Summary is the read view of a profile with derived level and rank.
type Summary struct {
	model.Profile
	xp.LevelInfo
	Rank xp.Rank
}

func Summarize(p model.Profile) Summary {
	info := xp.LevelFromTotalXP(p.TotalXP)
	return Summary{Profile: p, LevelInfo: info, Rank: xp.RankFromLevel(info.Level)}
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
