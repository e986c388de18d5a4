package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

type ImportReport struct {
	Tasks    int
	Subtasks int
	Skipped  int
}

// Import stores tasks read from an external tool. A task whose title matches
// an open task already stored is skipped, so repeated imports are harmless.
func (s *Service) Import(ctx context.Context, in []model.ImportedTask) (ImportReport, error) {
	s.writes.Lock()
	defer s.writes.Unlock()

	existing, err := s.store.ListTasks(ctx)
	if err != nil {
		return ImportReport{}, err
	}
	open := make(map[string]bool)
	for _, t := range existing {
		if !t.Terminal() {
			open[titleKey(t.Title)] = true
		}
	}

	var report ImportReport
	now := s.Now()
	for _, it := range in {
		key := titleKey(it.Task.Title)
		if key == "" || open[key] {
			s.log.Debug("Skipping imported task", zap.String("title", it.Task.Title), zap.String("source", it.Source))
			report.Skipped++
			continue
		}

		t := it.Task
		t.ID = ""
		t.Category = model.ParseCategory(string(t.Category))
		if t.Difficulty == "" {
			t.Difficulty = model.DifficultyBasic
		}
		t.Priority = clampPriority(t.Priority)
		t.CreatedAt = now
		t.State = model.StateCreated
		t.Records = nil
		if t, err = s.store.CreateTask(ctx, t); err != nil {
			return report, err
		}
		open[key] = true
		report.Tasks++

		for _, st := range it.Subtasks {
			st.ID = ""
			st.TaskID = t.ID
			st.Seq = 0
			if st.Status == "" {
				st.Status = model.SubtaskTodo
			}
			if _, err := s.store.CreateSubtask(ctx, st); err != nil {
				return report, err
			}
			report.Subtasks++
		}
		s.log.Debug("Imported task",
			zap.String("id", t.ID),
			zap.String("source", it.Source),
			zap.String("external_id", it.ExternalID),
			zap.Int("subtasks", len(it.Subtasks)))
	}

	s.log.Info("Import finished",
		zap.Int("tasks", report.Tasks),
		zap.Int("subtasks", report.Subtasks),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

func titleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func clampPriority(p int) int {
	switch {
	case p < 1:
		return 1
	case p > 5:
		return 5
	}
	return p
}
