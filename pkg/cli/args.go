package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/taskquest/pkg/model"
	"github.com/harrisonrobin/taskquest/pkg/scheduler"
	"github.com/harrisonrobin/taskquest/pkg/service"
	"github.com/harrisonrobin/taskquest/pkg/store"
)

// parseDate accepts today, tomorrow or YYYY-MM-DD in now's location.
func parseDate(s string, now time.Time) (time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today":
		return scheduler.Midnight(now), nil
	case "tomorrow":
		return scheduler.Midnight(now).AddDate(0, 0, 1), nil
	}
	d, err := time.ParseInLocation(model.DateLayout, s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}

// parseDue accepts YYYY-MM-DD (end of that day) or "YYYY-MM-DD HH:MM".
func parseDue(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, loc); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(model.DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q, want YYYY-MM-DD or \"YYYY-MM-DD HH:MM\"", s)
	}
	return scheduler.AtClock(d, 24*time.Hour-time.Minute), nil
}

// atClock places an HH:MM time of day on date.
func atClock(date time.Time, s string) (time.Time, error) {
	offset, err := scheduler.ParseClock(s)
	if err != nil {
		return time.Time{}, err
	}
	return scheduler.AtClock(date, offset), nil
}

// resolveTask finds the task whose id is arg or starts with it.
func resolveTask(ctx context.Context, svc *service.Service, arg string) (string, error) {
	tasks, err := svc.ListTasks(ctx)
	if err != nil {
		return "", err
	}
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return matchID("task", arg, ids)
}

func resolveSubtask(ctx context.Context, svc *service.Service, arg string) (string, error) {
	subtasks, err := svc.ListSubtasks(ctx, "")
	if err != nil {
		return "", err
	}
	ids := make([]string, len(subtasks))
	for i, st := range subtasks {
		ids[i] = st.ID
	}
	return matchID("subtask", arg, ids)
}

func matchID(kind, arg string, ids []string) (string, error) {
	var found []string
	for _, id := range ids {
		if id == arg {
			return id, nil
		}
		if strings.HasPrefix(id, arg) {
			found = append(found, id)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%s %s: %w", kind, arg, store.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%s id %q is ambiguous (%d matches)", kind, arg, len(found))
	}
}

// subtaskTitles maps subtask ids to "Task: Subtask" labels for display.
func subtaskTitles(ctx context.Context, svc *service.Service) (map[string]string, error) {
	tasks, err := svc.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	parents := make(map[string]string, len(tasks))
	for _, t := range tasks {
		parents[t.ID] = t.Title
	}
	subtasks, err := svc.ListSubtasks(ctx, "")
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string, len(subtasks))
	for _, st := range subtasks {
		title := st.Title
		if parent := parents[st.TaskID]; parent != "" && parent != title {
			title = parent + ": " + title
		}
		titles[st.ID] = title
	}
	return titles, nil
}
