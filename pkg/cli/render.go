package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/harrisonrobin/taskquest/pkg/model"
	"github.com/harrisonrobin/taskquest/pkg/progress"
	"github.com/harrisonrobin/taskquest/pkg/service"
)

var (
	accent  = lipgloss.Color("#8BC34A")
	muted   = lipgloss.Color("#6B7280")
	warning = lipgloss.Color("#FFC107")
	danger  = lipgloss.Color("#E53935")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	mutedStyle  = lipgloss.NewStyle().Foreground(muted)
	lockedStyle = lipgloss.NewStyle().Foreground(warning)
	failedStyle = lipgloss.NewStyle().Foreground(danger)
	xpStyle     = lipgloss.NewStyle().Bold(true).Foreground(accent)
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)

	categoryStyles = map[model.Category]lipgloss.Style{
		model.CategoryProgramming: lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3")),
		model.CategoryFinance:     lipgloss.NewStyle().Foreground(lipgloss.Color("#4DB6AC")),
		model.CategoryMusic:       lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8A65")),
		model.CategoryGeneral:     mutedStyle,
	}
)

const clockLayout = "15:04"

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func categoryTag(c model.Category) string {
	style, ok := categoryStyles[c]
	if !ok {
		style = mutedStyle
	}
	return style.Render(fmt.Sprintf("%-11s", c))
}

func stateTag(s model.State) string {
	label := fmt.Sprintf("%-11s", s)
	switch s {
	case model.StateFailed:
		return failedStyle.Render(label)
	case model.StateCompleted:
		return xpStyle.Render(label)
	case model.StatePaused:
		return lockedStyle.Render(label)
	}
	return label
}

func renderTasks(w io.Writer, tasks []model.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No tasks."))
		return
	}
	fmt.Fprintln(w, headerStyle.Render("Tasks"))
	for _, t := range tasks {
		due := ""
		if !t.Due.IsZero() {
			due = mutedStyle.Render(" due " + t.Due.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(w, "%s  %s %s P%d  %s%s\n", shortID(t.ID), stateTag(t.State), categoryTag(t.Category), t.Priority, t.Title, due)
	}
}

func renderTask(w io.Writer, t model.Task, subtasks []model.Subtask) {
	fmt.Fprintln(w, headerStyle.Render(t.Title))
	fmt.Fprintf(w, "id:         %s\n", t.ID)
	fmt.Fprintf(w, "state:      %s\n", stateTag(t.State))
	fmt.Fprintf(w, "category:   %s\n", t.Category)
	fmt.Fprintf(w, "difficulty: %s\n", t.Difficulty)
	fmt.Fprintf(w, "priority:   %d\n", t.Priority)
	if t.EstimatedMinutes > 0 {
		fmt.Fprintf(w, "estimate:   %dm\n", t.EstimatedMinutes)
	}
	if !t.Due.IsZero() {
		fmt.Fprintf(w, "due:        %s\n", t.Due.Local().Format("2006-01-02 15:04"))
	}
	if t.ActualMinutes != nil {
		fmt.Fprintf(w, "actual:     %dm\n", *t.ActualMinutes)
	}

	if len(subtasks) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Subtasks"))
		renderSubtasks(w, subtasks)
	}
	if len(t.Records) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("History"))
		for _, r := range t.Records {
			line := fmt.Sprintf("%s  %s -> %s", r.At.Local().Format("2006-01-02 15:04"), r.From, r.To)
			if r.Metadata.PauseReason != "" {
				line += mutedStyle.Render("  " + r.Metadata.PauseReason)
			}
			if r.Metadata.Note != "" {
				line += mutedStyle.Render("  " + r.Metadata.Note)
			}
			if r.Metadata.XPAwarded != nil {
				line += xpStyle.Render(fmt.Sprintf("  +%d XP", *r.Metadata.XPAwarded))
			}
			fmt.Fprintln(w, line)
		}
	}
}

func renderSubtasks(w io.Writer, subtasks []model.Subtask) {
	for _, st := range subtasks {
		tags := ""
		if len(st.Tags) > 0 {
			tags = mutedStyle.Render(" #" + strings.Join(st.Tags, " #"))
		}
		fmt.Fprintf(w, "%s  %d. %-11s %3dm  %s%s\n", shortID(st.ID), st.Seq, st.Status, st.EstimatedMinutes, st.Title, tags)
	}
}

type dayRow struct {
	slot  model.Slot
	title string
}

// renderDay prints stored slots and calendar busy time in start order.
func renderDay(w io.Writer, date string, slots []model.Slot, titles map[string]string) {
	rows := make([]dayRow, 0, len(slots))
	for _, s := range slots {
		title := titles[s.SubtaskID]
		if s.SubtaskID == "" {
			title = "(busy)"
		}
		rows = append(rows, dayRow{slot: s, title: title})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].slot.Start.Before(rows[j].slot.Start) })

	fmt.Fprintln(w, headerStyle.Render("Plan for "+date))
	if len(rows) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("Nothing planned."))
		return
	}
	for _, r := range rows {
		span := fmt.Sprintf("%s-%s", r.slot.Start.Local().Format(clockLayout), r.slot.End.Local().Format(clockLayout))
		marker := "      "
		if r.slot.Locked {
			marker = lockedStyle.Render("locked")
		}
		line := fmt.Sprintf("%s %s  %s", span, marker, r.title)
		if r.slot.Source == model.SourceCalendar {
			line = mutedStyle.Render(line)
		}
		fmt.Fprintf(w, "%s  %s\n", line, mutedStyle.Render(r.slot.ID))
	}
}

func renderPlan(w io.Writer, plan service.DayPlan, titles map[string]string) {
	slots := append(append([]model.Slot{}, plan.Locked...), plan.Slots...)
	renderDay(w, plan.Date, slots, titles)
	if n := len(plan.Open); n > 0 {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d open slot(s) left without work.", n)))
	}
}

func renderSync(w io.Writer, r service.SyncReport) {
	fmt.Fprintf(w, "Calendar: %d published, %d removed", r.Published, r.Removed)
	if r.Failed > 0 {
		fmt.Fprint(w, failedStyle.Render(fmt.Sprintf(", %d failed", r.Failed)))
	}
	fmt.Fprintln(w)
}

func renderAward(w io.Writer, a service.Award) {
	b := a.Breakdown
	fmt.Fprintln(w, xpStyle.Render(fmt.Sprintf("+%d XP", b.CappedXP)))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf(
		"base %d  priority %+.0f%%  efficiency %+.0f%%  focus %+.0f%%  streak %+.0f%%  resilience %+.0f%%  dungeon %+.0f%%",
		b.BaseXP, b.PriorityPct, b.EfficiencyPct, b.FocusPct, b.StreakPct, b.ResiliencePct, b.DungeonPct)))
	switch {
	case a.Streak.ReturnedAfterGap:
		fmt.Fprintln(w, "Welcome back! Streak restarted.")
	case a.Streak.Extended:
		fmt.Fprintf(w, "Streak extended to %d days.\n", a.Streak.StreakDays)
	}
	if a.LeveledUp {
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Level up! You are now level %d (%s).", a.Summary.Level, a.Summary.Rank)))
	}
	for _, ach := range a.Unlocked {
		fmt.Fprintln(w, lockedStyle.Render("Achievement unlocked: "+ach.Title))
	}
}

func renderProfile(w io.Writer, s progress.Summary, now time.Time) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", headerStyle.Render(fmt.Sprintf("Level %d  %s", s.Level, s.Rank)))
	fmt.Fprintf(&b, "XP      %d (%d to next level)\n", s.TotalXP, s.XPToNextLevel)
	fmt.Fprintf(&b, "Streak  %d days (longest %d)\n", s.CurrentStreak, s.LongestStreak)
	fmt.Fprintf(&b, "Done    %d tasks, %d sessions\n", s.TasksCompleted, s.Sessions)
	fmt.Fprintf(&b, "Pillars resilience %d  consistency %d  focus %d", s.Pillars.Resilience, s.Pillars.Consistency, s.Pillars.Focus)
	if len(s.Achievements) > 0 {
		fmt.Fprintf(&b, "\n%s", mutedStyle.Render("Achievements: "+strings.Join(s.Achievements, ", ")))
	}
	if s.LastActiveDay != "" && s.LastActiveDay != now.Format(model.DateLayout) {
		fmt.Fprintf(&b, "\n%s", mutedStyle.Render("Last active "+s.LastActiveDay))
	}
	fmt.Fprintln(w, cardStyle.Render(b.String()))
}
