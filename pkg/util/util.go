package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

// SlotProperty is the private extended property linking an event to a slot.
const SlotProperty = "taskquest_slot"

// Summary prefixes.
const (
	PrefixDone    = "✓"
	PrefixActive  = "‣"
	PrefixOverdue = "!"
)

var durationRegex = regexp.MustCompile(`(\d+)([HMS])`)

// ParseDuration parses ISO 8601 durations of the PT1H30M form.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	if len(s) < 2 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid ISO 8601 duration format: %s", s)
	}

	s = s[1:]
	if len(s) == 0 || s[0] != 'T' {
		return 0, fmt.Errorf("invalid ISO 8601 duration (missing T): P%s", s)
	}
	s = s[1:]

	var total time.Duration
	for _, match := range durationRegex.FindAllStringSubmatch(s, -1) {
		value, _ := strconv.Atoi(match[1])
		switch match[2] {
		case "H":
			total += time.Duration(value) * time.Hour
		case "M":
			total += time.Duration(value) * time.Minute
		case "S":
			total += time.Duration(value) * time.Second
		}
	}

	if total == 0 {
		return 0, fmt.Errorf("invalid ISO 8601 duration: PT%s", s)
	}

	return total, nil
}

// SlotEvent is everything needed to render a planned slot as a calendar event.
type SlotEvent struct {
	SlotID     string
	Assignment model.Assignment
	TaskTitle  string
	Status     model.SubtaskStatus
	Tags       []string
	ColorID    string
}

// Summary returns the event title with its status prefix.
func (se SlotEvent) Summary(now time.Time) string {
	prefix := ""
	switch {
	case se.Status == model.SubtaskDone:
		prefix = PrefixDone
	case se.Status == model.SubtaskInProgress:
		prefix = PrefixActive
	case se.Assignment.End.Before(now):
		prefix = PrefixOverdue
	}
	if prefix == "" {
		return se.Title()
	}
	return prefix + " " + se.Title()
}

// Title returns the event title without a status prefix.
func (se SlotEvent) Title() string {
	title := se.Assignment.Title
	if se.TaskTitle != "" && se.TaskTitle != title {
		title = fmt.Sprintf("%s: %s", se.TaskTitle, title)
	}
	return title
}

// ConvertSlotToEvent renders se as a timed event tagged with its slot id.
func ConvertSlotToEvent(se SlotEvent, now time.Time) (*calendar.Event, error) {
	if se.SlotID == "" {
		return nil, fmt.Errorf("could not convert slot without id")
	}
	a := se.Assignment
	if a.Start.IsZero() || !a.End.After(a.Start) {
		return nil, fmt.Errorf("slot %s has no valid time range", se.SlotID)
	}

	var desc strings.Builder
	if len(se.Tags) > 0 {
		for _, tag := range se.Tags {
			fmt.Fprintf(&desc, "#%s ", tag)
		}
		desc.WriteString("\n\n")
	}
	fmt.Fprintf(&desc, "Category: %s\n", a.Category)
	fmt.Fprintf(&desc, "Status: %s\n", se.Status)
	fmt.Fprintf(&desc, "Task: %s\n", a.TaskID)
	fmt.Fprintf(&desc, "Subtask: %s\n", a.SubtaskID)
	fmt.Fprintf(&desc, "\nPlanning:\n• slot: %s\n• score: %.3f\n", a.End.Sub(a.Start), a.Score)

	return &calendar.Event{
		Summary:     se.Summary(now),
		ColorId:     se.ColorID,
		Description: desc.String(),
		Start:       &calendar.EventDateTime{DateTime: a.Start.UTC().Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: a.End.UTC().Format(time.RFC3339)},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{SlotProperty: se.SlotID},
		},
	}, nil
}

// SlotIDFromEvent returns the slot id an event was published for.
func SlotIDFromEvent(e *calendar.Event) (string, bool) {
	if e == nil || e.ExtendedProperties == nil {
		return "", false
	}
	id, ok := e.ExtendedProperties.Private[SlotProperty]
	return id, ok && id != ""
}

// EventNeedsUpdate returns a patch carrying the fields of target that differ
// from existing, or nil when they match.
func EventNeedsUpdate(existing, target *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}

	same, err := sameRange(existing, target)
	if err != nil {
		return nil, err
	}
	if !same {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch, nil
	}
	return nil, nil
}

func sameRange(a, b *calendar.Event) (bool, error) {
	if a.Start == nil || a.End == nil || b.Start == nil || b.End == nil {
		return false, nil
	}
	var ts [4]time.Time
	for i, s := range []string{a.Start.DateTime, b.Start.DateTime, a.End.DateTime, b.End.DateTime} {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return false, err
		}
		ts[i] = t
	}
	return ts[0].Equal(ts[1]) && ts[2].Equal(ts[3]), nil
}

// EventRange returns the start and end of a timed event. All-day events
// report ok=false.
func EventRange(e *calendar.Event) (start, end time.Time, ok bool) {
	if e.Start == nil || e.End == nil || e.Start.DateTime == "" || e.End.DateTime == "" {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse(time.RFC3339, e.Start.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = time.Parse(time.RFC3339, e.End.DateTime)
	if err != nil || !end.After(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
