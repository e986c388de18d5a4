package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

func TestImport(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	mustTask(t, s, NewTask{Title: "Pay rent", Category: "finance", Priority: 4})

	report, err := s.Import(ctx, []model.ImportedTask{
		{
			Task:       model.Task{Title: "  pay RENT ", Priority: 3},
			Subtasks:   []model.Subtask{{Title: "Pay rent", EstimatedMinutes: 10}},
			Source:     "taskwarrior",
			ExternalID: "dup",
		},
		{
			Task: model.Task{Title: "Practice scales", Category: "music", Priority: 9, EstimatedMinutes: 60},
			Subtasks: []model.Subtask{
				{Title: "Major", EstimatedMinutes: 30, Status: model.SubtaskDone},
				{Title: "Minor", EstimatedMinutes: 30, Seq: 7},
			},
			Source: "org",
		},
		{Task: model.Task{Title: "   "}},
		{
			Task:   model.Task{Title: "Practice scales"},
			Source: "org",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, ImportReport{Tasks: 1, Subtasks: 2, Skipped: 3}, report)

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	scales := tasks[1]
	assert.Equal(t, "Practice scales", scales.Title)
	assert.Equal(t, model.CategoryMusic, scales.Category)
	assert.Equal(t, model.DifficultyBasic, scales.Difficulty)
	assert.Equal(t, 5, scales.Priority)
	assert.Equal(t, model.StateCreated, scales.State)

	subs, err := s.ListSubtasks(ctx, scales.ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "Major", subs[0].Title)
	assert.Equal(t, model.SubtaskDone, subs[0].Status)
	assert.Equal(t, 1, subs[0].Seq)
	assert.Equal(t, model.SubtaskTodo, subs[1].Status)
	assert.Equal(t, 2, subs[1].Seq)

	// a terminal task frees its title for re-import
	_, err = s.Fail(ctx, tasks[0].ID, "moved")
	require.NoError(t, err)
	report, err = s.Import(ctx, []model.ImportedTask{{Task: model.Task{Title: "Pay rent", Priority: 3}}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Tasks)
}
