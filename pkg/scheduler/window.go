// Package scheduler builds a day's time blocks and greedily fills them with
// pending subtasks. It is a single-pass heuristic: slots are processed in
// chronological order and each takes the best eligible candidate left.
package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

// ErrInvalidWindow is returned, wrapped, when a day window cannot produce slots.
var ErrInvalidWindow = errors.New("invalid day window")

// Window configures slot generation. DayStart and DayEnd are wall-clock
// times of day, held as hours and minutes past midnight.
type Window struct {
	DayStart time.Duration
	DayEnd   time.Duration
	Sprint   time.Duration
	Break    time.Duration
}

func (w Window) Validate() error {
	switch {
	case w.DayStart < 0 || w.DayEnd > 24*time.Hour:
		return fmt.Errorf("%w: %s-%s is outside the day", ErrInvalidWindow, clock(w.DayStart), clock(w.DayEnd))
	case w.DayEnd <= w.DayStart:
		return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidWindow, clock(w.DayEnd), clock(w.DayStart))
	case w.Sprint <= 0:
		return fmt.Errorf("%w: sprint duration %s must be positive", ErrInvalidWindow, w.Sprint)
	case w.Break < 0:
		return fmt.Errorf("%w: break duration %s is negative", ErrInvalidWindow, w.Break)
	}
	return nil
}

// Bounds returns the absolute start and end of the window on date, read as
// wall-clock times in date's location so daylight-saving days keep the
// configured hours.
func (w Window) Bounds(date time.Time) (time.Time, time.Time) {
	return AtClock(date, w.DayStart), AtClock(date, w.DayEnd)
}

// AtClock places a time-of-day offset, as returned by ParseClock, on date's
// calendar day in date's location. "24:00" lands on the next midnight.
func AtClock(date time.Time, offset time.Duration) time.Time {
	y, m, d := date.Date()
	h := int(offset / time.Hour)
	minute := int(offset % time.Hour / time.Minute)
	return time.Date(y, m, d, h, minute, 0, 0, date.Location())
}

// Midnight truncates t to the start of its day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseClock parses "HH:MM" into an offset from midnight. "24:00" is accepted.
func ParseClock(s string) (time.Duration, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minutes, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if hours < 0 || hours > 24 || minutes < 0 || minutes > 59 || (hours == 24 && minutes != 0) {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// GenerateSlots lays fixed sprint blocks separated by breaks across the
// window. A block that would overlap a locked slot is skipped and generation
// resumes at that locked slot's end. Locked slots are never returned.
func GenerateSlots(date time.Time, w Window, locked []model.Slot) ([]model.Slot, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	start, end := w.Bounds(date)
	day := Midnight(date).Format(model.DateLayout)

	var slots []model.Slot
	cursor := start
	for {
		blockEnd := cursor.Add(w.Sprint)
		if blockEnd.After(end) {
			break
		}
		block := model.Slot{Date: day, Start: cursor, End: blockEnd, Source: model.SourcePlanner}
		if l, ok := firstOverlap(block, locked); ok {
			cursor = l.End
			continue
		}
		slots = append(slots, block)
		cursor = blockEnd.Add(w.Break)
	}
	return slots, nil
}

func firstOverlap(block model.Slot, locked []model.Slot) (model.Slot, bool) {
	var hit model.Slot
	found := false
	for _, l := range locked {
		if !l.Overlaps(block) {
			continue
		}
		if !found || l.Start.Before(hit.Start) {
			hit = l
			found = true
		}
	}
	return hit, found
}
