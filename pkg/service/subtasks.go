package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

// NewSubtask is the user input for adding a subtask to a task.
type NewSubtask struct {
	TaskID           string `validate:"required"`
	Title            string `validate:"required"`
	EstimatedMinutes int    `validate:"gte=0"`
	Tags             []string
}

func (s *Service) AddSubtask(ctx context.Context, in NewSubtask) (model.Subtask, error) {
	if err := validate.Struct(in); err != nil {
		return model.Subtask{}, fmt.Errorf("invalid subtask: %w", err)
	}
	parent, err := s.store.GetTask(ctx, in.TaskID)
	if err != nil {
		return model.Subtask{}, err
	}
	if parent.Terminal() {
		return model.Subtask{}, fmt.Errorf("task %s is %s and takes no new subtasks", parent.ID, parent.State)
	}

	st, err := s.store.CreateSubtask(ctx, model.Subtask{
		TaskID:           in.TaskID,
		Title:            in.Title,
		EstimatedMinutes: in.EstimatedMinutes,
		Status:           model.SubtaskTodo,
		Tags:             in.Tags,
	})
	if err != nil {
		return model.Subtask{}, err
	}
	s.log.Info("Subtask added", zap.String("id", st.ID), zap.String("task", st.TaskID), zap.Int("seq", st.Seq))
	return st, nil
}

// ListSubtasks lists the subtasks of taskID, or of every task when it is empty.
func (s *Service) ListSubtasks(ctx context.Context, taskID string) ([]model.Subtask, error) {
	return s.store.ListSubtasks(ctx, taskID)
}

func (s *Service) SetSubtaskStatus(ctx context.Context, id string, status model.SubtaskStatus) error {
	if _, err := model.ParseSubtaskStatus(string(status)); err != nil {
		return err
	}
	if err := s.store.SetSubtaskStatus(ctx, id, status); err != nil {
		return err
	}
	s.log.Info("Subtask status changed", zap.String("id", id), zap.String("status", string(status)))
	return nil
}

// energyTagPrefix marks the subtask tag carrying its energy requirement,
// e.g. "energy:high".
const energyTagPrefix = "energy:"

func energy(tags []string) string {
	for _, tag := range tags {
		if v, ok := strings.CutPrefix(tag, energyTagPrefix); ok {
			return v
		}
	}
	return ""
}
