package scheduler

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

var day = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

func at(hhmm string) time.Time {
	d, err := ParseClock(hhmm)
	if err != nil {
		panic(err)
	}
	return day.Add(d)
}

func window(start, end string, sprint, brk time.Duration) Window {
	s, _ := ParseClock(start)
	e, _ := ParseClock(end)
	return Window{DayStart: s, DayEnd: e, Sprint: sprint, Break: brk}
}

func TestGenerateSlots_MorningWindow(t *testing.T) {
	slots, err := GenerateSlots(day, window("09:00", "11:00", 45*time.Minute, 15*time.Minute), nil)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, at("09:00"), slots[0].Start)
	assert.Equal(t, at("09:45"), slots[0].End)
	assert.Equal(t, at("10:00"), slots[1].Start)
	assert.Equal(t, at("10:45"), slots[1].End)
	assert.Equal(t, "2024-05-06", slots[0].Date)
}

func TestGenerateSlots_DaylightSavingDays(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	w := window("09:00", "11:00", 45*time.Minute, 15*time.Minute)

	for _, date := range []time.Time{
		time.Date(2026, 3, 8, 0, 0, 0, 0, ny),  // clocks spring forward
		time.Date(2026, 11, 1, 0, 0, 0, 0, ny), // clocks fall back
	} {
		start, end := w.Bounds(date)
		assert.Equal(t, "09:00", start.Format("15:04"))
		assert.Equal(t, "11:00", end.Format("15:04"))

		slots, err := GenerateSlots(date, w, nil)
		require.NoError(t, err)
		require.Len(t, slots, 2, date.Format(model.DateLayout))
		assert.Equal(t, "09:00", slots[0].Start.Format("15:04"))
		assert.Equal(t, "10:00", slots[1].Start.Format("15:04"))
		assert.Equal(t, "10:45", slots[1].End.Format("15:04"))
		assert.False(t, slots[1].End.After(end))
		assert.Equal(t, date.Format(model.DateLayout), slots[1].Date)
	}
}

func TestAtClock_EndOfDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	date := time.Date(2026, 3, 8, 0, 0, 0, 0, ny)

	assert.True(t, AtClock(date, 24*time.Hour).Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, ny)))
	assert.Equal(t, "2026-03-08 23:59", AtClock(date, 24*time.Hour-time.Minute).Format("2006-01-02 15:04"))
}

func TestGenerateSlots_SkipsLocked(t *testing.T) {
	locked := []model.Slot{{Start: at("10:10"), End: at("10:40"), Locked: true}}
	slots, err := GenerateSlots(day, window("09:00", "12:00", 45*time.Minute, 15*time.Minute), locked)
	require.NoError(t, err)

	// 09:00-09:45, then 10:00 block hits the lock, resume at 10:40
	require.Len(t, slots, 2)
	assert.Equal(t, at("09:00"), slots[0].Start)
	assert.Equal(t, at("10:40"), slots[1].Start)
	assert.Equal(t, at("11:25"), slots[1].End)
}

func TestGenerateSlots_NoOverlap(t *testing.T) {
	locked := []model.Slot{
		{Start: at("08:30"), End: at("09:20"), Locked: true},
		{Start: at("11:00"), End: at("11:05"), Locked: true},
		{Start: at("11:03"), End: at("12:30"), Locked: true},
		{Start: at("15:59"), End: at("16:01"), Locked: true},
	}
	w := window("08:00", "18:00", 25*time.Minute, 5*time.Minute)
	slots, err := GenerateSlots(day, w, locked)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	start, end := w.Bounds(day)
	for i, s := range slots {
		assert.False(t, s.Start.Before(start))
		assert.False(t, s.End.After(end))
		assert.Equal(t, 25*time.Minute, s.Duration())
		for _, l := range locked {
			assert.False(t, s.Overlaps(l), "slot %s overlaps locked %s", s.Start, l.Start)
		}
		for j := i + 1; j < len(slots); j++ {
			assert.False(t, s.Overlaps(slots[j]))
		}
	}
}

func TestGenerateSlots_InvalidWindow(t *testing.T) {
	tests := []struct {
		name string
		w    Window
	}{
		{"inverted", window("17:00", "09:00", 45*time.Minute, 15*time.Minute)},
		{"empty", window("09:00", "09:00", 45*time.Minute, 15*time.Minute)},
		{"zero sprint", window("09:00", "17:00", 0, 15*time.Minute)},
		{"negative break", window("09:00", "17:00", 45*time.Minute, -time.Minute)},
		{"past midnight", Window{DayStart: time.Hour, DayEnd: 25 * time.Hour, Sprint: time.Hour}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := GenerateSlots(day, tt.w, nil)
			assert.Nil(t, slots)
			assert.True(t, errors.Is(err, ErrInvalidWindow), "got %v", err)
		})
	}
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour+30*time.Minute, d)

	d, err = ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, d)

	for _, bad := range []string{"", "9", "aa:00", "10:75", "24:30", "-1:00"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestPlan_EmptyPool(t *testing.T) {
	plan, err := New().Plan(Request{Date: day, Window: window("09:00", "17:00", 45*time.Minute, 15*time.Minute)})
	require.NoError(t, err)
	assert.Empty(t, plan.Assignments)
	assert.Len(t, plan.Open(), len(plan.Slots))
}

func TestPlan_InvalidWindowFailsBeforeAssigning(t *testing.T) {
	_, err := New().Plan(Request{
		Date:       day,
		Window:     window("12:00", "08:00", 45*time.Minute, 15*time.Minute),
		Candidates: []Candidate{{SubtaskID: "a", EstimatedMinutes: 10}},
	})
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestPlan_PicksHighestScoreAndNeverDoubleBooks(t *testing.T) {
	candidates := []Candidate{
		{SubtaskID: "low", Category: model.CategoryGeneral, Priority: 1, ValueScore: 1, EstimatedMinutes: 40},
		{SubtaskID: "urgent", Category: model.CategoryFinance, Priority: 5, ValueScore: 5, EstimatedMinutes: 30, Due: at("11:30")},
		{SubtaskID: "dense", Category: model.CategoryProgramming, Priority: 3, ValueScore: 20, EstimatedMinutes: 20},
	}
	plan, err := New().Plan(Request{
		Date:       day,
		Window:     window("09:00", "12:00", 45*time.Minute, 15*time.Minute),
		Candidates: candidates,
	})
	require.NoError(t, err)
	require.Len(t, plan.Assignments, 3)

	ids := map[string]bool{}
	for _, a := range plan.Assignments {
		assert.False(t, ids[a.SubtaskID], "double booked %s", a.SubtaskID)
		ids[a.SubtaskID] = true
	}
	assert.Equal(t, "dense", plan.Assignments[0].SubtaskID)
	assert.Equal(t, at("09:00"), plan.Assignments[0].Start)
	assert.Empty(t, plan.Open())
	assert.Equal(t, "dense", plan.Slots[0].SubtaskID)
}

func TestPlan_EligibilityTolerance(t *testing.T) {
	candidates := []Candidate{
		{SubtaskID: "fits-with-tolerance", ValueScore: 1, EstimatedMinutes: 50},
		{SubtaskID: "too-long", ValueScore: 100, EstimatedMinutes: 51},
	}
	plan, err := New().Plan(Request{
		Date:       day,
		Window:     window("09:00", "10:00", 45*time.Minute, 15*time.Minute),
		Candidates: candidates,
	})
	require.NoError(t, err)
	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, "fits-with-tolerance", plan.Assignments[0].SubtaskID)
}

func TestPlan_TiesKeepPoolOrder(t *testing.T) {
	same := Candidate{Category: model.CategoryMusic, Priority: 2, ValueScore: 3, EstimatedMinutes: 30}
	a, b := same, same
	a.SubtaskID, b.SubtaskID = "first", "second"

	plan, err := New().Plan(Request{
		Date:       day,
		Window:     window("09:00", "09:45", 45*time.Minute, 15*time.Minute),
		Candidates: []Candidate{a, b},
	})
	require.NoError(t, err)
	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, "first", plan.Assignments[0].SubtaskID)
}

func TestPlan_LockedAssignmentsLeaveThePool(t *testing.T) {
	locked := []model.Slot{{Start: at("13:00"), End: at("14:00"), Locked: true, SubtaskID: "pinned"}}
	plan, err := New().Plan(Request{
		Date:   day,
		Window: window("09:00", "09:45", 45*time.Minute, 15*time.Minute),
		Locked: locked,
		Candidates: []Candidate{
			{SubtaskID: "pinned", ValueScore: 100, EstimatedMinutes: 10},
			{SubtaskID: "other", ValueScore: 1, EstimatedMinutes: 10},
		},
	})
	require.NoError(t, err)
	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, "other", plan.Assignments[0].SubtaskID)
}

func TestPlan_DoesNotMutateCallerPool(t *testing.T) {
	candidates := []Candidate{{SubtaskID: "a", EstimatedMinutes: 10}, {SubtaskID: "b", EstimatedMinutes: 10}}
	_, err := New().Plan(Request{Date: day, Window: window("09:00", "11:00", 45*time.Minute, 15*time.Minute), Candidates: candidates})
	require.NoError(t, err)
	assert.Equal(t, "a", candidates[0].SubtaskID)
	assert.Equal(t, "b", candidates[1].SubtaskID)
}

func TestPlan_CustomScoreFunc(t *testing.T) {
	// prefer the longest estimate, ignoring value
	longest := func(c Candidate, _ SlotContext) float64 { return float64(c.EstimatedMinutes) }
	plan, err := New(WithScoreFunc(longest)).Plan(Request{
		Date:   day,
		Window: window("09:00", "09:45", 45*time.Minute, 15*time.Minute),
		Candidates: []Candidate{
			{SubtaskID: "short", ValueScore: 100, EstimatedMinutes: 5},
			{SubtaskID: "long", ValueScore: 1, EstimatedMinutes: 40},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "long", plan.Assignments[0].SubtaskID)
}

func TestDiversityBoost(t *testing.T) {
	first := SlotContext{seen: map[model.Category]bool{}}
	assert.Equal(t, 1.0, DiversityBoost(Candidate{Category: model.CategoryMusic}, first))

	sc := SlotContext{
		Previous:    model.CategoryProgramming,
		HasPrevious: true,
		seen:        map[model.Category]bool{model.CategoryProgramming: true, model.CategoryFinance: true},
	}
	assert.Equal(t, StreakBoost, DiversityBoost(Candidate{Category: model.CategoryProgramming}, sc))
	assert.Equal(t, NoveltyBoost, DiversityBoost(Candidate{Category: model.CategoryMusic}, sc))
	assert.Equal(t, 1.0, DiversityBoost(Candidate{Category: model.CategoryFinance}, sc))
}

func TestPlan_StreakBoostBreaksNearTie(t *testing.T) {
	plan, err := New().Plan(Request{
		Date:   day,
		Window: window("09:00", "12:00", 45*time.Minute, 15*time.Minute),
		Candidates: []Candidate{
			{SubtaskID: "fin-1", Category: model.CategoryFinance, Priority: 3, ValueScore: 30, EstimatedMinutes: 30},
			{SubtaskID: "prog-1", Category: model.CategoryProgramming, Priority: 3, ValueScore: 31, EstimatedMinutes: 30},
			{SubtaskID: "fin-2", Category: model.CategoryFinance, Priority: 3, ValueScore: 20, EstimatedMinutes: 30},
			{SubtaskID: "prog-2", Category: model.CategoryProgramming, Priority: 3, ValueScore: 19, EstimatedMinutes: 30},
		},
	})
	require.NoError(t, err)
	require.Len(t, plan.Assignments, 3)
	assert.Equal(t, "prog-1", plan.Assignments[0].SubtaskID)
	// novelty lifts fin-1 over prog-2, then the finance streak lifts fin-2
	assert.Equal(t, "fin-1", plan.Assignments[1].SubtaskID)
	assert.Equal(t, "fin-2", plan.Assignments[2].SubtaskID)
}

func TestPlan_PinnedSlotSeedsDiversity(t *testing.T) {
	// music is pinned 09:00-09:45, so the next slot continues the music streak
	locked := []model.Slot{{Start: at("09:00"), End: at("09:45"), Locked: true, SubtaskID: "rehearse"}}
	candidates := []Candidate{
		{SubtaskID: "prog", Category: model.CategoryProgramming, Priority: 3, ValueScore: 31, EstimatedMinutes: 30},
		{SubtaskID: "mix", Category: model.CategoryMusic, Priority: 3, ValueScore: 30, EstimatedMinutes: 30},
	}
	w := window("09:00", "10:30", 45*time.Minute, 15*time.Minute)

	plan, err := New().Plan(Request{
		Date:       day,
		Window:     w,
		Locked:     locked,
		Candidates: candidates,
		Pinned:     map[string]model.Category{"rehearse": model.CategoryMusic},
	})
	require.NoError(t, err)
	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, at("09:45"), plan.Assignments[0].Start)
	assert.Equal(t, "mix", plan.Assignments[0].SubtaskID)

	// without the pinned category the higher value wins
	plan, err = New().Plan(Request{Date: day, Window: w, Locked: locked, Candidates: candidates})
	require.NoError(t, err)
	assert.Equal(t, "prog", plan.Assignments[0].SubtaskID)
}

func TestPlan_PinnedCandidateCategoryIsUsed(t *testing.T) {
	locked := []model.Slot{{Start: at("09:00"), End: at("09:45"), Locked: true, SubtaskID: "rehearse"}}
	plan, err := New().Plan(Request{
		Date:   day,
		Window: window("09:00", "10:30", 45*time.Minute, 15*time.Minute),
		Locked: locked,
		Candidates: []Candidate{
			{SubtaskID: "rehearse", Category: model.CategoryMusic, Priority: 3, ValueScore: 90, EstimatedMinutes: 30},
			{SubtaskID: "prog", Category: model.CategoryProgramming, Priority: 3, ValueScore: 31, EstimatedMinutes: 30},
			{SubtaskID: "mix", Category: model.CategoryMusic, Priority: 3, ValueScore: 30, EstimatedMinutes: 30},
		},
	})
	require.NoError(t, err)
	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, "mix", plan.Assignments[0].SubtaskID)
}

func TestBaseScore(t *testing.T) {
	noDue := Candidate{Priority: 5, ValueScore: 10, EstimatedMinutes: 10}
	// 0.45/48 + 0.35*1 + 0.15*1
	assert.InDelta(t, 0.45/48+0.35+0.15, BaseScore(noDue, at("09:00")), 1e-9)

	overdue := noDue
	overdue.Due = at("08:00")
	assert.InDelta(t, 0.45+0.35+0.15, BaseScore(overdue, at("09:00")), 1e-9)

	zeroEstimate := Candidate{Priority: 0, ValueScore: 2}
	assert.InDelta(t, 0.45/48+0.35*2+0.15*0.5, BaseScore(zeroEstimate, at("09:00")), 1e-9)
}
